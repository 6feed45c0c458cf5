package services

import (
	"math"
)

func calculateMeanFloat64(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func calculateStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := calculateMeanFloat64(values)
	var sumSquares float64
	for _, v := range values {
		diff := v - mean
		sumSquares += diff * diff
	}
	variance := sumSquares / float64(len(values)-1)
	return math.Sqrt(variance)
}

// populationVariance divides by n rather than n-1.
func populationVariance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := calculateMeanFloat64(values)
	var sumSquares float64
	for _, v := range values {
		diff := v - mean
		sumSquares += diff * diff
	}
	return sumSquares / float64(len(values))
}

// linearFit is an ordinary least squares line y = intercept + slope*x over
// x = 0..n-1.
type linearFit struct {
	slope     float64
	intercept float64
}

func (f linearFit) at(x float64) float64 {
	return f.intercept + f.slope*x
}

func fitLinear(series []float64) linearFit {
	n := len(series)
	if n == 0 {
		return linearFit{}
	}
	if n == 1 {
		return linearFit{intercept: series[0]}
	}

	var sumX, sumY, sumXX, sumXY float64
	for i, y := range series {
		x := float64(i)
		sumX += x
		sumY += y
		sumXX += x * x
		sumXY += x * y
	}

	nf := float64(n)
	denom := nf*sumXX - sumX*sumX
	if denom == 0 {
		return linearFit{intercept: calculateMeanFloat64(series)}
	}
	slope := (nf*sumXY - sumX*sumY) / denom
	return linearFit{slope: slope, intercept: (sumY - slope*sumX) / nf}
}

// residuals returns the deviations of the series from the fitted line.
func (f linearFit) residuals(series []float64) []float64 {
	out := make([]float64, len(series))
	for i, y := range series {
		out[i] = y - f.at(float64(i))
	}
	return out
}

// detrend returns the residuals of the series around its OLS line.
func detrend(series []float64) []float64 {
	return fitLinear(series).residuals(series)
}

// growthRates returns period-over-period growth. Non-positive predecessors
// yield ok=false.
func growthRates(series []float64) (rates []float64, ok bool) {
	if len(series) < 2 {
		return nil, false
	}
	rates = make([]float64, 0, len(series)-1)
	for i := 1; i < len(series); i++ {
		if series[i-1] <= 0 {
			return nil, false
		}
		rates = append(rates, series[i]/series[i-1]-1)
	}
	return rates, true
}

// geometricMeanGrowth is (last/first)^(1/(n-1)) - 1 for a strictly positive
// series.
func geometricMeanGrowth(series []float64) float64 {
	n := len(series)
	if n < 2 || series[0] <= 0 || series[n-1] <= 0 {
		return 0
	}
	return math.Pow(series[n-1]/series[0], 1/float64(n-1)) - 1
}

func allPositive(series []float64) bool {
	if len(series) == 0 {
		return false
	}
	for _, v := range series {
		if v <= 0 {
			return false
		}
	}
	return true
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
