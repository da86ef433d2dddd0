package matext

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestSolveLstSqRecoversExactSolution(t *testing.T) {
	// overdetermined but consistent: b = a x with x = (1, -2)
	a := mat.NewDense(4, 2, []float64{
		1, 0,
		0, 1,
		1, 1,
		2, -1,
	})
	x := []float64{1, -2}
	b := mat.NewDense(4, 1, nil)
	for i := 0; i < 4; i++ {
		b.Set(i, 0, a.At(i, 0)*x[0]+a.At(i, 1)*x[1])
	}

	res, err := SolveLstSq(a, b, -1)
	require.NoError(t, err)
	require.InDelta(t, x[0], res.X.At(0, 0), 1e-12)
	require.InDelta(t, x[1], res.X.At(1, 0), 1e-12)
	require.Greater(t, res.Cond, 0.0)
}

func TestSolveLstSqVec(t *testing.T) {
	a := mat.NewDense(3, 1, []float64{1, 1, 1})
	x, ls, err := SolveLstSqVec(a, []float64{1, 2, 3}, -1)
	require.NoError(t, err)
	require.Len(t, x, 1)
	require.InDelta(t, 2.0, x[0], 1e-12) // mean minimizes the residual
	require.Len(t, ls.SingularValues, 1)
}

func TestCInverse(t *testing.T) {
	c := mat.NewCDense(2, 2, []complex128{
		1 + 1i, 2,
		0, 3 - 1i,
	})
	inv, err := CInverse(c)
	require.NoError(t, err)
	prod := CMul(c, inv)
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			want := complex128(0)
			if i == j {
				want = 1
			}
			require.InDelta(t, real(want), real(prod.At(i, j)), 1e-12)
			require.InDelta(t, imag(want), imag(prod.At(i, j)), 1e-12)
		}
	}
}

func TestSingularValuesOfDiagonal(t *testing.T) {
	c := mat.NewCDense(2, 2, []complex128{
		3i, 0,
		0, 4,
	})
	sv, err := SingularValues(c)
	require.NoError(t, err)
	require.Len(t, sv, 2)
	require.InDelta(t, 4, sv[0], 1e-12)
	require.InDelta(t, 3, sv[1], 1e-12)
}

func TestCSVDReconstructs(t *testing.T) {
	c := mat.NewCDense(2, 3, []complex128{
		1 + 2i, -1, 0.5i,
		3, 2 - 1i, -0.25,
	})
	u, s, v, err := CSVD(c)
	require.NoError(t, err)
	require.Len(t, s, 2)
	require.True(t, s[0] >= s[1] && s[1] >= 0)

	// u diag(s) v^H must reproduce c
	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			var sum complex128
			for k := range s {
				sum += u.At(i, k) * complex(s[k], 0) * cmplx.Conj(v.At(j, k))
			}
			require.InDelta(t, real(c.At(i, j)), real(sum), 1e-10)
			require.InDelta(t, imag(c.At(i, j)), imag(sum), 1e-10)
		}
	}
}

func TestCSVDRepeatedSingularValues(t *testing.T) {
	// both singular values equal 3; the retained column pairs must still
	// satisfy c v = s u and reconstruct the matrix
	c := mat.NewCDense(2, 2, []complex128{3i, 0, 0, 3})
	u, s, v, err := CSVD(c)
	require.NoError(t, err)
	require.InDelta(t, 3, s[0], 1e-12)
	require.InDelta(t, 3, s[1], 1e-12)

	for k := range s {
		for i := 0; i < 2; i++ {
			var cv complex128
			for j := 0; j < 2; j++ {
				cv += c.At(i, j) * v.At(j, k)
			}
			require.InDelta(t, real(complex(s[k], 0)*u.At(i, k)), real(cv), 1e-10)
			require.InDelta(t, imag(complex(s[k], 0)*u.At(i, k)), imag(cv), 1e-10)
		}
	}
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			var sum complex128
			for k := range s {
				sum += u.At(i, k) * complex(s[k], 0) * cmplx.Conj(v.At(j, k))
			}
			require.InDelta(t, real(c.At(i, j)), real(sum), 1e-10)
			require.InDelta(t, imag(c.At(i, j)), imag(sum), 1e-10)
		}
	}
}

func TestEigenvaluesRejectNonFiniteMatrix(t *testing.T) {
	a := mat.NewDense(2, 2, []float64{1, math.NaN(), 0, 1})
	_, err := Eigenvalues(a)
	require.Error(t, err)

	a = mat.NewDense(2, 2, []float64{1, 0, math.Inf(1), 1})
	_, err = Eigenvalues(a)
	require.Error(t, err)
}

func TestEigenvaluesOfRotation(t *testing.T) {
	// the 90 degree rotation has eigenvalues +-i
	a := mat.NewDense(2, 2, []float64{0, -1, 1, 0})
	eigs, err := Eigenvalues(a)
	require.NoError(t, err)
	SortComplex(eigs)
	require.InDelta(t, 0, real(eigs[0]), 1e-12)
	require.InDelta(t, -1, imag(eigs[0]), 1e-12)
	require.InDelta(t, 1, imag(eigs[1]), 1e-12)
}

func TestCanonicalPoles(t *testing.T) {
	eigs := []complex128{
		complex(2, 0),  // unstable real, must flip sign
		complex(-1, 0), // stable real
		complex(-3, 4),
		complex(-3, -4), // conjugate partner, dropped
		complex(0.5, 2), // unstable pair representative
		complex(0.5, -2),
	}
	poles := CanonicalPoles(eigs)
	require.Len(t, poles, 4)

	// reals come first, everything has a negative real part
	require.Equal(t, complex(-2, 0), poles[0])
	require.Equal(t, complex(-1, 0), poles[1])
	for _, p := range poles {
		require.Negative(t, real(p))
		require.GreaterOrEqual(t, imag(p), 0.0)
	}
	require.Equal(t, complex(-0.5, 2), poles[2])
	require.Equal(t, complex(-3, 4), poles[3])
}

func TestEmbedRoundTrip(t *testing.T) {
	c := mat.NewCDense(2, 2, []complex128{1 + 2i, -3, 4i, 5 - 1i})
	k := Embed(c)
	r, cc := k.Dims()
	require.Equal(t, 4, r)
	require.Equal(t, 4, cc)
	require.Equal(t, 1.0, k.At(0, 0))
	require.Equal(t, -2.0, k.At(0, 2)) // -Im block
	require.Equal(t, 2.0, k.At(2, 0))  // Im block

	re, im := Parts(c)
	back := FromParts(re, im)
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			require.Equal(t, c.At(i, j), back.At(i, j))
		}
	}
}

func TestNaNOrInf(t *testing.T) {
	a := Ones(2, 2)
	require.False(t, NaNOrInf(a))
	a.Set(1, 0, math.Inf(1))
	require.True(t, NaNOrInf(a))
	a.Set(1, 0, math.NaN())
	require.True(t, NaNOrInf(a))
}
