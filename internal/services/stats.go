package services

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

func calculateMeanFloat64(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// calculatePopStdDev returns the population (divide by n) standard deviation.
func calculatePopStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	_, std := stat.PopMeanStdDev(values, nil)
	return std
}

func calculateMinMax(values []float64) (lo, hi float64) {
	if len(values) == 0 {
		return 0, 0
	}
	lo, hi = values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// calculateCorrelation returns the Pearson correlation of x and y, or 0 when
// either series has no variance.
func calculateCorrelation(x []float64, y []float64) float64 {
	n := len(x)
	if n < 2 || len(y) != n {
		return 0
	}
	if calculatePopStdDev(x) == 0 || calculatePopStdDev(y) == 0 {
		return 0
	}

	corr := stat.Correlation(x, y, nil)
	if math.IsNaN(corr) {
		return 0
	}
	if corr > 1 {
		return 1
	}
	if corr < -1 {
		return -1
	}
	return corr
}

// calculateRSquared is the unclamped coefficient of determination. A constant
// target scores 1 when predicted exactly and 0 otherwise.
func calculateRSquared(actual, predicted []float64) float64 {
	mean := calculateMeanFloat64(actual)
	var ssRes, ssTot float64
	for i, y := range actual {
		r := y - predicted[i]
		ssRes += r * r
		d := y - mean
		ssTot += d * d
	}
	if ssTot == 0 {
		if ssRes == 0 {
			return 1
		}
		return 0
	}
	return 1 - ssRes/ssTot
}

func columnOf(rows [][]float64, j int) []float64 {
	out := make([]float64, len(rows))
	for i, row := range rows {
		out[i] = row[j]
	}
	return out
}

func copyRows(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		out[i] = append([]float64(nil), row...)
	}
	return out
}
