package services

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	// Singular values below rankTolerance times the largest are treated as zero.
	rankTolerance = 1e-12

	coordinateDescentTol     = 1e-10
	coordinateDescentMaxIter = 10000
)

var errEmptyDesign = errors.New("design matrix has no rows")

// linearFit is an intercept plus one weight per design column.
type linearFit struct {
	intercept float64
	coef      []float64
}

func (f linearFit) predict(x [][]float64) []float64 {
	out := make([]float64, len(x))
	for i, row := range x {
		v := f.intercept
		for j, c := range f.coef {
			v += c * row[j]
		}
		out[i] = v
	}
	return out
}

// centeredDesign removes the column means of x and the mean of y.
func centeredDesign(x [][]float64, y []float64) (*mat.Dense, *mat.VecDense, []float64, float64) {
	n := len(x)
	p := len(x[0])
	xMean := make([]float64, p)
	for _, row := range x {
		for j, v := range row {
			xMean[j] += v
		}
	}
	for j := range xMean {
		xMean[j] /= float64(n)
	}
	yMean := calculateMeanFloat64(y)

	xc := mat.NewDense(n, p, nil)
	yc := mat.NewVecDense(n, nil)
	for i, row := range x {
		for j, v := range row {
			xc.Set(i, j, v-xMean[j])
		}
		yc.SetVec(i, y[i]-yMean)
	}
	return xc, yc, xMean, yMean
}

func withIntercept(w []float64, xMean []float64, yMean float64) linearFit {
	intercept := yMean
	for j, m := range xMean {
		intercept -= w[j] * m
	}
	return linearFit{intercept: intercept, coef: w}
}

// fitOLS solves least squares with an intercept. The centered design is
// factorized with an SVD so rank-deficient designs get the minimum-norm
// solution instead of failing.
func fitOLS(x [][]float64, y []float64) (linearFit, error) {
	if len(x) == 0 {
		return linearFit{}, errEmptyDesign
	}
	xc, yc, xMean, yMean := centeredDesign(x, y)
	_, p := xc.Dims()

	var svd mat.SVD
	if ok := svd.Factorize(xc, mat.SVDThin); !ok {
		return linearFit{}, fmt.Errorf("svd factorization failed")
	}
	w := make([]float64, p)
	if values := svd.Values(nil); len(values) > 0 && values[0] > 0 {
		rank := svd.Rank(rankTolerance)
		var sol mat.VecDense
		svd.SolveVecTo(&sol, yc, rank)
		for j := 0; j < p; j++ {
			w[j] = sol.AtVec(j)
		}
	}
	return withIntercept(w, xMean, yMean), nil
}

// fitRidge minimizes ||y - Xw||^2 + alpha*||w||^2 with an unpenalized intercept.
func fitRidge(x [][]float64, y []float64, alpha float64) (linearFit, error) {
	if alpha == 0 {
		return fitOLS(x, y)
	}
	if len(x) == 0 {
		return linearFit{}, errEmptyDesign
	}
	xc, yc, xMean, yMean := centeredDesign(x, y)
	_, p := xc.Dims()

	gram := mat.NewSymDense(p, nil)
	gram.SymOuterK(1, xc.T())
	for j := 0; j < p; j++ {
		gram.SetSym(j, j, gram.At(j, j)+alpha)
	}
	var xty mat.VecDense
	xty.MulVec(xc.T(), yc)

	var chol mat.Cholesky
	if ok := chol.Factorize(gram); !ok {
		return linearFit{}, fmt.Errorf("ridge system is not positive definite (alpha=%g)", alpha)
	}
	var sol mat.VecDense
	if err := chol.SolveVecTo(&sol, &xty); err != nil {
		return linearFit{}, fmt.Errorf("solve ridge system: %w", err)
	}
	w := make([]float64, p)
	for j := range w {
		w[j] = sol.AtVec(j)
	}
	return withIntercept(w, xMean, yMean), nil
}

// fitElasticNet minimizes
//
//	1/(2n)*||y - Xw||^2 + alpha*l1Ratio*||w||_1 + alpha*(1-l1Ratio)/2*||w||^2
//
// by cyclic coordinate descent on the centered design. l1Ratio=1 is the lasso.
// The second return value reports whether the iteration converged.
func fitElasticNet(x [][]float64, y []float64, alpha, l1Ratio float64) (linearFit, bool, error) {
	if len(x) == 0 {
		return linearFit{}, false, errEmptyDesign
	}
	xc, yc, xMean, yMean := centeredDesign(x, y)
	n, p := xc.Dims()
	nf := float64(n)

	l1 := alpha * l1Ratio * nf
	l2 := alpha * (1 - l1Ratio) * nf

	norms := make([]float64, p)
	for j := 0; j < p; j++ {
		col := xc.ColView(j)
		norms[j] = mat.Dot(col, col)
	}

	w := make([]float64, p)
	residual := make([]float64, n)
	for i := range residual {
		residual[i] = yc.AtVec(i)
	}

	converged := false
	for iter := 0; iter < coordinateDescentMaxIter; iter++ {
		maxDelta, maxW := 0.0, 0.0
		for j := 0; j < p; j++ {
			if norms[j] == 0 {
				continue
			}
			old := w[j]
			rho := 0.0
			for i := 0; i < n; i++ {
				xij := xc.At(i, j)
				rho += xij * (residual[i] + xij*old)
			}
			updated := softThreshold(rho, l1) / (norms[j] + l2)
			if delta := updated - old; delta != 0 {
				for i := 0; i < n; i++ {
					residual[i] -= xc.At(i, j) * delta
				}
				w[j] = updated
				maxDelta = math.Max(maxDelta, math.Abs(delta))
			}
			maxW = math.Max(maxW, math.Abs(w[j]))
		}
		if maxW == 0 || maxDelta <= coordinateDescentTol*maxW {
			converged = true
			break
		}
	}
	return withIntercept(w, xMean, yMean), converged, nil
}

func softThreshold(v, threshold float64) float64 {
	switch {
	case v > threshold:
		return v - threshold
	case v < -threshold:
		return v + threshold
	default:
		return 0
	}
}

// principalAxes returns the top-k eigenvectors of the covariance of x as
// columns of a p x k matrix, ordered by decreasing explained variance, and
// the share of total variance each one explains. Each axis is oriented so
// its largest-magnitude loading is positive.
func principalAxes(x [][]float64, k int) (*mat.Dense, []float64, error) {
	if len(x) == 0 {
		return nil, nil, errEmptyDesign
	}
	xc, _, _, _ := centeredDesign(x, make([]float64, len(x)))
	n, p := xc.Dims()
	if k < 1 || k > p {
		return nil, nil, fmt.Errorf("component count %d outside [1, %d]", k, p)
	}

	cov := mat.NewSymDense(p, nil)
	cov.SymOuterK(1/float64(n), xc.T())

	var eig mat.EigenSym
	if ok := eig.Factorize(cov, true); !ok {
		return nil, nil, fmt.Errorf("eigendecomposition of covariance failed")
	}
	values := eig.Values(nil)
	total := mat.Trace(cov)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	axes := mat.NewDense(p, k, nil)
	explained := make([]float64, k)
	for c := 0; c < k; c++ {
		src := p - 1 - c // eigenvalues are ascending
		if total > 0 {
			explained[c] = math.Max(values[src], 0) / total
		}
		sign, largest := 1.0, 0.0
		for r := 0; r < p; r++ {
			if v := vectors.At(r, src); math.Abs(v) > largest {
				largest = math.Abs(v)
				if v < 0 {
					sign = -1
				} else {
					sign = 1
				}
			}
		}
		for r := 0; r < p; r++ {
			axes.Set(r, c, sign*vectors.At(r, src))
		}
	}
	return axes, explained, nil
}

// projectRows multiplies each row of x by axes (p x k).
func projectRows(x [][]float64, axes *mat.Dense) [][]float64 {
	p, k := axes.Dims()
	out := make([][]float64, len(x))
	for i, row := range x {
		scores := make([]float64, k)
		for c := 0; c < k; c++ {
			for j := 0; j < p; j++ {
				scores[c] += row[j] * axes.At(j, c)
			}
		}
		out[i] = scores
	}
	return out
}

// fitPCR regresses y on the top-k principal component scores of x and maps
// the component weights back onto the columns of x. It also returns the axes
// and their explained variance ratios.
func fitPCR(x [][]float64, y []float64, k int) (linearFit, *mat.Dense, []float64, error) {
	axes, explained, err := principalAxes(x, k)
	if err != nil {
		return linearFit{}, nil, nil, err
	}
	scoreFit, err := fitOLS(projectRows(x, axes), y)
	if err != nil {
		return linearFit{}, nil, nil, fmt.Errorf("fit on component scores: %w", err)
	}

	var beta mat.VecDense
	beta.MulVec(axes, mat.NewVecDense(k, scoreFit.coef))
	p, _ := axes.Dims()
	w := make([]float64, p)
	for j := range w {
		w[j] = beta.AtVec(j)
	}
	return linearFit{intercept: scoreFit.intercept, coef: w}, axes, explained, nil
}

// residualizeAgainst returns a transform that replaces every column except
// base with its residual from a simple regression on the base column. The
// regressions are learned from train and reused on any later input.
func residualizeAgainst(train [][]float64, base int) func([][]float64) [][]float64 {
	p := len(train[0])
	baseCol := columnOf(train, base)
	baseMean := calculateMeanFloat64(baseCol)
	baseVar := 0.0
	for _, v := range baseCol {
		d := v - baseMean
		baseVar += d * d
	}

	slopes := make([]float64, p)
	intercepts := make([]float64, p)
	for j := 0; j < p; j++ {
		if j == base {
			continue
		}
		col := columnOf(train, j)
		colMean := calculateMeanFloat64(col)
		if baseVar > 0 {
			cov := 0.0
			for i, v := range col {
				cov += (baseCol[i] - baseMean) * (v - colMean)
			}
			slopes[j] = cov / baseVar
		}
		intercepts[j] = colMean - slopes[j]*baseMean
	}

	return func(x [][]float64) [][]float64 {
		out := copyRows(x)
		for _, row := range out {
			b := row[base]
			for j := range row {
				if j == base {
					continue
				}
				row[j] -= intercepts[j] + slopes[j]*b
			}
		}
		return out
	}
}
