package logger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewSetsLevel(t *testing.T) {
	log := New(Config{Level: "debug"})
	assert.Equal(t, zerolog.DebugLevel, log.GetLevel())

	log = New(Config{Level: "error"})
	assert.Equal(t, zerolog.ErrorLevel, log.GetLevel())
}

func TestNewFallsBackToInfo(t *testing.T) {
	log := New(Config{Level: "bogus"})
	assert.Equal(t, zerolog.InfoLevel, log.GetLevel())

	log = New(Config{})
	assert.Equal(t, zerolog.InfoLevel, log.GetLevel())
}

func TestNewPrettyOutput(t *testing.T) {
	// Pretty mode only changes the writer; the level still applies.
	log := New(Config{Level: "warn", Pretty: true})
	assert.Equal(t, zerolog.WarnLevel, log.GetLevel())
}
