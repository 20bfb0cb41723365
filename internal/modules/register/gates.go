package register

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"

	"github.com/aristath/entangler/pkg/linalg"
)

// GateKind identifies the family a catalog entry belongs to.
type GateKind string

const (
	// GateRotation is a single-ion phase rotation exp(-i(θ/2)(cosφ·Sx + sinφ·Sy)).
	GateRotation GateKind = "rotation"
	// GateMS is the global Mølmer–Sørensen gate exp(-i(θ/4)(Σ_k Sx_k)²).
	GateMS GateKind = "ms"
)

// Gate describes one entry of the action catalog. Ion is -1 for global
// gates; Phi is meaningful only for rotations.
type Gate struct {
	Kind  GateKind `json:"kind"`
	Ion   int      `json:"ion"`
	Theta float64  `json:"theta"`
	Phi   float64  `json:"phi"`
}

// Describe renders the gate as a short human-readable label.
func (g Gate) Describe() string {
	switch g.Kind {
	case GateMS:
		return fmt.Sprintf("MS(θ=%.4f)", g.Theta)
	default:
		return fmt.Sprintf("R%d(θ=%.4f, φ=%.4f)", g.Ion, g.Theta, g.Phi)
	}
}

// sxEigen computes the eigendecomposition of the spin-j Sx operator in the
// symmetric qudit representation with j = (dim-1)/2. Sx is real symmetric
// tridiagonal, so a single mat.EigenSym factorization yields everything the
// catalog needs: rotations exponentiate Sx directly, and the MS generator
// (ΣSx)² is diagonal in the product eigenbasis.
func sxEigen(dim int) ([]float64, *mat.Dense, error) {
	j := float64(dim-1) / 2

	sx := mat.NewSymDense(dim, nil)
	for k := 0; k < dim-1; k++ {
		// Basis ordered by decreasing magnetic number m = j-k.
		m := j - float64(k)
		sx.SetSym(k, k+1, 0.5*math.Sqrt(j*(j+1)-m*(m-1)))
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(sx, true); !ok {
		return nil, nil, fmt.Errorf("eigendecomposition of %dx%d Sx failed", dim, dim)
	}

	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	return vals, &vecs, nil
}

// rotationLocal builds the dim×dim unitary for a single-ion rotation with
// pulse angle theta and pulse phase phi:
//
//	R(θ,φ) = P(φ) · exp(-i(θ/2)Sx) · P(φ)†  with  P(φ) = exp(-iφSz)
//
// which equals exp(-i(θ/2)(cosφ·Sx + sinφ·Sy)) since conjugating Sx by the
// diagonal Sz phase rotates it into the x-y plane.
func rotationLocal(dim int, theta, phi float64, sxVals []float64, sxVecs *mat.Dense) *mat.CDense {
	j := float64(dim-1) / 2

	// exp(-i(θ/2)Sx) = V · diag(exp(-i(θ/2)λ)) · Vᵀ, V real orthogonal.
	phases := make([]complex128, dim)
	for l := 0; l < dim; l++ {
		phases[l] = cmplx.Exp(complex(0, -theta/2*sxVals[l]))
	}

	u := mat.NewCDense(dim, dim, nil)
	for r := 0; r < dim; r++ {
		pr := cmplx.Exp(complex(0, -phi*(j-float64(r))))
		for c := 0; c < dim; c++ {
			var sum complex128
			for l := 0; l < dim; l++ {
				sum += complex(sxVecs.At(r, l)*sxVecs.At(c, l), 0) * phases[l]
			}
			pc := cmplx.Exp(complex(0, -phi*(j-float64(c))))
			u.Set(r, c, pr*sum*cmplx.Conj(pc))
		}
	}
	return u
}

// rotationUnitary embeds the local rotation on the addressed ion into the
// full register by Kronecker composition with identities on the other ions.
func rotationUnitary(cfg Config, ion int, theta, phi float64, sxVals []float64, sxVecs *mat.Dense) *mat.CDense {
	local := rotationLocal(cfg.Dim, theta, phi, sxVals, sxVecs)

	leftSize := 1
	for i := 0; i < ion; i++ {
		leftSize *= cfg.Dim
	}
	rightSize := cfg.StateSize() / (leftSize * cfg.Dim)

	return linalg.KronAll(linalg.Identity(leftSize), local, linalg.Identity(rightSize))
}

// msUnitary builds the global Mølmer–Sørensen gate exp(-i(θ/4)(Σ_k Sx_k)²).
// In the product eigenbasis W = V⊗…⊗V of Sx the generator is diagonal with
// entries (Σ_k λ_{l_k})², so the unitary is W · diag(phases) · Wᵀ.
func msUnitary(cfg Config, theta float64, sxVals []float64, sxVecs *mat.Dense) *mat.CDense {
	size := cfg.StateSize()

	vc := mat.NewCDense(cfg.Dim, cfg.Dim, nil)
	for r := 0; r < cfg.Dim; r++ {
		for c := 0; c < cfg.Dim; c++ {
			vc.Set(r, c, complex(sxVecs.At(r, c), 0))
		}
	}
	w := vc
	for k := 1; k < cfg.NumIons; k++ {
		w = linalg.Kron(w, vc)
	}

	phases := make([]complex128, size)
	for idx := 0; idx < size; idx++ {
		sum := 0.0
		rem := idx
		for k := 0; k < cfg.NumIons; k++ {
			sum += sxVals[rem%cfg.Dim]
			rem /= cfg.Dim
		}
		phases[idx] = cmplx.Exp(complex(0, -theta/4*sum*sum))
	}

	u := mat.NewCDense(size, size, nil)
	for r := 0; r < size; r++ {
		for c := 0; c < size; c++ {
			var sum complex128
			for l := 0; l < size; l++ {
				sum += w.At(r, l) * phases[l] * w.At(c, l)
			}
			u.Set(r, c, sum)
		}
	}
	return u
}

// buildCatalog constructs the fixed action table and its unitaries once at
// environment construction. Ordering is the stable bijection: all single-ion
// rotations first, by (ion, pulse angle index, pulse phase index), then the
// global MS gates by ms phase index.
func buildCatalog(cfg Config) ([]Gate, []*mat.CDense, error) {
	sxVals, sxVecs, err := sxEigen(cfg.Dim)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build gate catalog: %w", err)
	}

	numRotations := cfg.NumIons * len(cfg.Phases.PulseAngles) * len(cfg.Phases.PulsePhases)
	gates := make([]Gate, 0, numRotations+len(cfg.Phases.MSPhases))
	unitaries := make([]*mat.CDense, 0, cap(gates))

	for ion := 0; ion < cfg.NumIons; ion++ {
		for _, theta := range cfg.Phases.PulseAngles {
			for _, phi := range cfg.Phases.PulsePhases {
				gates = append(gates, Gate{Kind: GateRotation, Ion: ion, Theta: theta, Phi: phi})
				unitaries = append(unitaries, rotationUnitary(cfg, ion, theta, phi, sxVals, sxVecs))
			}
		}
	}
	for _, theta := range cfg.Phases.MSPhases {
		gates = append(gates, Gate{Kind: GateMS, Ion: -1, Theta: theta})
		unitaries = append(unitaries, msUnitary(cfg, theta, sxVals, sxVecs))
	}

	return gates, unitaries, nil
}
