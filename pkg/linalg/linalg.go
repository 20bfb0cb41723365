// Package linalg provides the complex linear-algebra routines used by the
// qudit register simulation: Kronecker composition, matrix-vector products on
// complex state vectors, partial traces of pure states, and Hermitian
// eigenvalue/rank computation.
//
// gonum's mat package carries the dense complex matrix type (mat.CDense) and
// the real symmetric eigensolver (mat.EigenSym); the helpers here bridge the
// gap between the two for Hermitian matrices, which gonum does not decompose
// directly.
package linalg

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// Identity returns the n×n complex identity matrix.
func Identity(n int) *mat.CDense {
	m := mat.NewCDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// Kron returns the Kronecker product a ⊗ b.
func Kron(a, b *mat.CDense) *mat.CDense {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	out := mat.NewCDense(ar*br, ac*bc, nil)
	for i := 0; i < ar; i++ {
		for j := 0; j < ac; j++ {
			aij := a.At(i, j)
			if aij == 0 {
				continue
			}
			for k := 0; k < br; k++ {
				for l := 0; l < bc; l++ {
					out.Set(i*br+k, j*bc+l, aij*b.At(k, l))
				}
			}
		}
	}
	return out
}

// KronAll folds Kron over the given factors, left to right.
// Panics if called with no factors.
func KronAll(factors ...*mat.CDense) *mat.CDense {
	if len(factors) == 0 {
		panic("linalg: KronAll requires at least one factor")
	}
	out := factors[0]
	for _, f := range factors[1:] {
		out = Kron(out, f)
	}
	return out
}

// MulVec computes m·v for a complex matrix and vector.
// Returns an error if the dimensions do not match.
func MulVec(m *mat.CDense, v []complex128) ([]complex128, error) {
	rows, cols := m.Dims()
	if cols != len(v) {
		return nil, fmt.Errorf("dimension mismatch: matrix is %dx%d, vector has length %d", rows, cols, len(v))
	}

	out := make([]complex128, rows)
	for i := 0; i < rows; i++ {
		var sum complex128
		for j := 0; j < cols; j++ {
			sum += m.At(i, j) * v[j]
		}
		out[i] = sum
	}
	return out, nil
}

// Norm returns the Euclidean norm of a complex vector.
func Norm(v []complex128) float64 {
	var sum float64
	for _, c := range v {
		sum += real(c)*real(c) + imag(c)*imag(c)
	}
	return math.Sqrt(sum)
}

// Normalize scales v in place to unit norm and returns the norm it had
// before scaling. A zero vector is left untouched.
func Normalize(v []complex128) float64 {
	norm := Norm(v)
	if norm == 0 {
		return 0
	}
	inv := complex(1/norm, 0)
	for i := range v {
		v[i] *= inv
	}
	return norm
}

// PartialTraceSingle computes the reduced density matrix of one site of a
// pure state living on numSites sites of local dimension dim each, tracing
// out every other site. The state is indexed site-major (site 0 most
// significant). Returns an error if the state length does not equal
// dim^numSites or the site index is out of range.
func PartialTraceSingle(state []complex128, numSites, dim, site int) (*mat.CDense, error) {
	if site < 0 || site >= numSites {
		return nil, fmt.Errorf("site index %d out of range [0,%d)", site, numSites)
	}

	total := 1
	for i := 0; i < numSites; i++ {
		total *= dim
	}
	if len(state) != total {
		return nil, fmt.Errorf("state length %d does not match %d sites of dimension %d", len(state), numSites, dim)
	}

	// Split the index as (left, s, right) with the traced site in the middle:
	// index = (left*dim + s)*rightSize + right.
	leftSize := 1
	for i := 0; i < site; i++ {
		leftSize *= dim
	}
	rightSize := total / (leftSize * dim)

	rho := mat.NewCDense(dim, dim, nil)
	for s := 0; s < dim; s++ {
		for t := 0; t < dim; t++ {
			var sum complex128
			for l := 0; l < leftSize; l++ {
				for r := 0; r < rightSize; r++ {
					a := state[(l*dim+s)*rightSize+r]
					b := state[(l*dim+t)*rightSize+r]
					sum += a * cmplx.Conj(b)
				}
			}
			rho.Set(s, t, sum)
		}
	}
	return rho, nil
}

// HermitianEigenvalues returns the eigenvalues of a Hermitian complex matrix
// in ascending order. The matrix is embedded as the 2n×2n real symmetric
// matrix [[Re, -Im], [Im, Re]], whose spectrum is that of the original with
// every eigenvalue doubled; the duplicates are collapsed after factorization.
func HermitianEigenvalues(h *mat.CDense) ([]float64, error) {
	n, c := h.Dims()
	if n != c {
		return nil, fmt.Errorf("matrix is %dx%d, want square", n, c)
	}

	embedded := mat.NewSymDense(2*n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := h.At(i, j)
			embedded.SetSym(i, j, real(v))
			embedded.SetSym(n+i, n+j, real(v))
			// The imaginary block is antisymmetric; SetSym mirrors, so only
			// the upper-right block is written.
			embedded.SetSym(i, n+j, -imag(v))
			if i != j {
				embedded.SetSym(j, n+i, -imag(h.At(j, i)))
			}
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(embedded, false); !ok {
		return nil, fmt.Errorf("eigendecomposition of %dx%d Hermitian embedding failed", 2*n, 2*n)
	}

	all := eig.Values(nil) // ascending
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = all[2*i]
	}
	return out, nil
}

// RankAboveTol counts the eigenvalues whose magnitude exceeds tol.
func RankAboveTol(eigenvalues []float64, tol float64) int {
	rank := 0
	for _, e := range eigenvalues {
		if math.Abs(e) > tol {
			rank++
		}
	}
	return rank
}
