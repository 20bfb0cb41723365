package agent

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// snapshot is the serialized form of the weight graph. Binary msgpack keeps
// large float matrices compact enough to store as a single database BLOB.
type snapshot struct {
	NumActions int            `msgpack:"num_actions"`
	Glow       float64        `msgpack:"glow"`
	Damp       float64        `msgpack:"damp"`
	Beta       float64        `msgpack:"beta"`
	Percepts   map[string]int `msgpack:"percepts"`
	H          [][]float64    `msgpack:"h"`
	G          [][]float64    `msgpack:"g"`
}

// Snapshot serializes the agent's configuration and full weight graph.
func (a *Agent) Snapshot() ([]byte, error) {
	data, err := msgpack.Marshal(snapshot{
		NumActions: a.cfg.NumActions,
		Glow:       a.cfg.Glow,
		Damp:       a.cfg.Damp,
		Beta:       a.cfg.Beta,
		Percepts:   a.percepts,
		H:          a.h,
		G:          a.g,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize agent snapshot: %w", err)
	}
	return data, nil
}

// Restore replaces the agent's weight graph with a previously serialized
// snapshot. The snapshot must have been taken with the same action count.
func (a *Agent) Restore(data []byte) error {
	var snap snapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("failed to deserialize agent snapshot: %w", err)
	}
	if snap.NumActions != a.cfg.NumActions {
		return fmt.Errorf("snapshot has %d actions, agent has %d", snap.NumActions, a.cfg.NumActions)
	}

	if snap.Percepts == nil {
		snap.Percepts = make(map[string]int)
	}
	a.percepts = snap.Percepts
	a.h = snap.H
	a.g = snap.G
	a.cfg.Glow = snap.Glow
	a.cfg.Damp = snap.Damp
	a.cfg.Beta = snap.Beta
	return nil
}
