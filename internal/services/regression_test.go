package services

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// linearDesign builds y = 4 + 2*x0 - 3*x1 + 0.5*x2 with small noise.
func linearDesign(n int, noise float64, seed uint64) ([][]float64, []float64) {
	rng := rand.New(rand.NewPCG(seed, seed))
	x := make([][]float64, n)
	y := make([]float64, n)
	for i := range x {
		x[i] = []float64{rng.NormFloat64(), rng.NormFloat64() * 2, rng.NormFloat64() + 5}
		y[i] = 4 + 2*x[i][0] - 3*x[i][1] + 0.5*x[i][2] + noise*rng.NormFloat64()
	}
	return x, y
}

func TestFitOLS_RecoversCoefficients(t *testing.T) {
	x, y := linearDesign(200, 0, 1)

	fit, err := fitOLS(x, y)
	require.NoError(t, err)

	assert.InDelta(t, 4.0, fit.intercept, 1e-8)
	assert.InDelta(t, 2.0, fit.coef[0], 1e-9)
	assert.InDelta(t, -3.0, fit.coef[1], 1e-9)
	assert.InDelta(t, 0.5, fit.coef[2], 1e-9)
	assert.InDelta(t, 1.0, calculateRSquared(y, fit.predict(x)), 1e-12)
}

func TestFitOLS_RankDeficient(t *testing.T) {
	x := [][]float64{{1, 2}, {2, 4}, {3, 6}, {4, 8}}
	y := []float64{3, 6, 9, 12}

	fit, err := fitOLS(x, y)
	require.NoError(t, err)

	for _, c := range fit.coef {
		assert.False(t, math.IsNaN(c))
		assert.False(t, math.IsInf(c, 0))
	}
	assert.InDeltaSlice(t, y, fit.predict(x), 1e-9)
	// Minimum-norm solution splits the weight along (1, 2).
	assert.InDelta(t, 0.6, fit.coef[0], 1e-9)
	assert.InDelta(t, 1.2, fit.coef[1], 1e-9)
}

func TestFitOLS_ConstantDesign(t *testing.T) {
	x := [][]float64{{1}, {1}, {1}}
	y := []float64{1, 2, 3}

	fit, err := fitOLS(x, y)
	require.NoError(t, err)
	assert.Equal(t, 0.0, fit.coef[0])
	assert.InDelta(t, 2.0, fit.intercept, 1e-12)

	_, err = fitOLS(nil, nil)
	assert.ErrorIs(t, err, errEmptyDesign)
}

func TestFitRidge_Shrinks(t *testing.T) {
	x, y := linearDesign(100, 1, 2)

	ols, err := fitOLS(x, y)
	require.NoError(t, err)
	zero, err := fitRidge(x, y, 0)
	require.NoError(t, err)
	assert.InDeltaSlice(t, ols.coef, zero.coef, 1e-12)

	prevNorm := math.Inf(1)
	for _, alpha := range []float64{0.1, 10, 1000, 100000} {
		fit, err := fitRidge(x, y, alpha)
		require.NoError(t, err)
		norm := 0.0
		for _, c := range fit.coef {
			norm += c * c
		}
		assert.Less(t, norm, prevNorm, "alpha=%g", alpha)
		prevNorm = norm
	}
}

func TestFitRidge_UnpenalizedIntercept(t *testing.T) {
	x := [][]float64{{1}, {2}, {3}, {4}}
	y := []float64{100, 100, 100, 100}

	fit, err := fitRidge(x, y, 50)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, fit.coef[0], 1e-12)
	assert.InDelta(t, 100.0, fit.intercept, 1e-12)
}

func TestFitElasticNet_LassoZeroes(t *testing.T) {
	x, y := linearDesign(200, 0.5, 3)
	// Add a pure-noise column.
	rng := rand.New(rand.NewPCG(9, 9))
	for i := range x {
		x[i] = append(x[i], rng.NormFloat64())
	}

	small, converged, err := fitElasticNet(x, y, 1e-6, 1)
	require.NoError(t, err)
	assert.True(t, converged)
	ols, err := fitOLS(x, y)
	require.NoError(t, err)
	assert.InDeltaSlice(t, ols.coef, small.coef, 1e-3)

	large, _, err := fitElasticNet(x, y, 0.8, 1)
	require.NoError(t, err)
	assert.Equal(t, 0.0, large.coef[3], "lasso should zero the noise column")
	assert.Equal(t, 0.0, large.coef[2])
	assert.Less(t, math.Abs(large.coef[1]), 3.0)

	huge, _, err := fitElasticNet(x, y, 1e6, 1)
	require.NoError(t, err)
	for _, c := range huge.coef {
		assert.Equal(t, 0.0, c)
	}
	assert.InDelta(t, calculateMeanFloat64(y), huge.intercept, 1e-9)
}

func TestFitElasticNet_PureL2MatchesRidge(t *testing.T) {
	x, y := linearDesign(80, 1, 4)
	alpha := 0.3
	n := float64(len(x))

	enet, converged, err := fitElasticNet(x, y, alpha, 0)
	require.NoError(t, err)
	assert.True(t, converged)

	// With l1Ratio=0 the objective is ridge with penalty alpha*n.
	ridge, err := fitRidge(x, y, alpha*n)
	require.NoError(t, err)
	assert.InDeltaSlice(t, ridge.coef, enet.coef, 1e-6)
}

func TestSoftThreshold(t *testing.T) {
	assert.Equal(t, 2.0, softThreshold(3, 1))
	assert.Equal(t, -2.0, softThreshold(-3, 1))
	assert.Equal(t, 0.0, softThreshold(0.5, 1))
	assert.Equal(t, 0.0, softThreshold(-1, 1))
}

func TestPrincipalAxes(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 5))
	x := make([][]float64, 300)
	for i := range x {
		a := rng.NormFloat64() * 3
		x[i] = []float64{a, a + 0.1*rng.NormFloat64(), rng.NormFloat64() * 0.5}
	}

	axes, explained, err := principalAxes(x, 3)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, explained[0], explained[1])
	assert.GreaterOrEqual(t, explained[1], explained[2])
	assert.InDelta(t, 1.0, explained[0]+explained[1]+explained[2], 1e-9, "all components explain all variance")

	// First axis follows the shared direction of the first two columns.
	assert.InDelta(t, 1/math.Sqrt2, axes.At(0, 0), 0.02)
	assert.InDelta(t, 1/math.Sqrt2, axes.At(1, 0), 0.02)

	for c := 0; c < 3; c++ {
		norm := 0.0
		for r := 0; r < 3; r++ {
			norm += axes.At(r, c) * axes.At(r, c)
		}
		assert.InDelta(t, 1.0, norm, 1e-9)
	}

	_, _, err = principalAxes(x, 4)
	assert.Error(t, err)
	_, _, err = principalAxes(x, 0)
	assert.Error(t, err)
}

func TestFitPCR_AllComponentsEqualsOLS(t *testing.T) {
	x, y := linearDesign(120, 1, 6)

	pcr, axes, explained, err := fitPCR(x, y, 3)
	require.NoError(t, err)
	assert.Len(t, explained, 3)
	ols, err := fitOLS(x, y)
	require.NoError(t, err)

	r, c := axes.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 3, c)
	assert.InDeltaSlice(t, ols.coef, pcr.coef, 1e-8)
	assert.InDelta(t, ols.intercept, pcr.intercept, 1e-8)
}

func TestResidualizeAgainst(t *testing.T) {
	x, _ := linearDesign(100, 0, 7)
	for i := range x {
		x[i][1] += 0.8 * x[i][0]
	}

	transform := residualizeAgainst(x, 0)
	out := transform(x)

	assert.Equal(t, columnOf(x, 0), columnOf(out, 0))
	for j := 1; j < 3; j++ {
		assert.InDelta(t, 0.0, calculateCorrelation(columnOf(out, 0), columnOf(out, j)), 1e-10)
		assert.InDelta(t, 0.0, calculateMeanFloat64(columnOf(out, j)), 1e-10)
	}
	// Input is not modified.
	assert.NotEqual(t, columnOf(x, 1), columnOf(out, 1))
}

func TestPrincipalAxes_ExplainedVarianceRatio(t *testing.T) {
	x, _ := linearDesign(200, 0, 11)
	for i := range x {
		x[i][1] += 2 * x[i][0]
	}

	tests := []struct {
		name string
		k    int
	}{
		{"one component", 1},
		{"two components", 2},
		{"all components", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, explained, err := principalAxes(x, tt.k)
			require.NoError(t, err)
			require.Len(t, explained, tt.k)

			sum := 0.0
			for i, v := range explained {
				assert.GreaterOrEqual(t, v, 0.0)
				if i > 0 {
					assert.LessOrEqual(t, v, explained[i-1])
				}
				sum += v
			}
			assert.LessOrEqual(t, sum, 1.0+1e-9)
			if tt.k == 3 {
				assert.InDelta(t, 1.0, sum, 1e-9)
			}
		})
	}
}
