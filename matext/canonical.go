package matext

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Eigenvalues returns the eigenvalues of a real square matrix. A matrix
// with NaN or Inf entries is rejected up front: the underlying Hessenberg
// QR iteration does not terminate on non-finite input.
func Eigenvalues(a *mat.Dense) ([]complex128, error) {
	if NaNOrInf(a) {
		return nil, errors.New("matext: eigenvalue factorization of a matrix with NaN or Inf entries")
	}
	var eig mat.Eigen
	if ok := eig.Factorize(a, mat.EigenNone); !ok {
		return nil, errors.New("matext: eigenvalue factorization failed")
	}
	return eig.Values(nil), nil
}

// SortComplex orders a slice of complex values by ascending real part,
// breaking ties on the imaginary part. Eigensolvers return values in a
// platform-dependent order, so any comparison has to canonicalize first.
func SortComplex(v []complex128) {
	sort.Slice(v, func(i, j int) bool {
		if real(v[i]) != real(v[j]) {
			return real(v[i]) < real(v[j])
		}
		return imag(v[i]) < imag(v[j])
	})
}

// CanonicalPoles reduces a set of eigenvalues to the canonical pole
// representation: conjugate pairs are collapsed onto their non-negative
// imaginary representative, real parts are forced negative for stability,
// and the result is ordered with real poles first, each group sorted by
// magnitude.
func CanonicalPoles(eigs []complex128) []complex128 {
	var poles []complex128
	for _, e := range eigs {
		if imag(e) < 0 {
			continue
		}
		poles = append(poles, complex(-math.Abs(real(e)), imag(e)))
	}
	sort.Slice(poles, func(i, j int) bool {
		ri, rj := imag(poles[i]) == 0, imag(poles[j]) == 0
		if ri != rj {
			return ri
		}
		if imag(poles[i]) != imag(poles[j]) {
			return imag(poles[i]) < imag(poles[j])
		}
		return real(poles[i]) < real(poles[j])
	})
	return poles
}
