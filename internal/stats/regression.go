package stats

import "fmt"

// Regression is an ordinary least squares fit y = Slope*x + Intercept.
type Regression struct {
	Slope     float64
	Intercept float64
	RSquared  float64
	N         int
}

// LinearRegression fits y against x. It needs at least two distinct x values.
func LinearRegression(x, y []float64) (Regression, error) {
	if len(x) != len(y) {
		return Regression{}, fmt.Errorf("%w: x has %d points, y has %d", ErrInvalidParameter, len(x), len(y))
	}
	if len(x) < 2 {
		return Regression{}, fmt.Errorf("%w: regression needs 2 points, got %d", ErrInsufficientData, len(x))
	}

	mx, my := mean(x), mean(y)
	var sxx, sxy float64
	for i := range x {
		dx := x[i] - mx
		sxx += dx * dx
		sxy += dx * (y[i] - my)
	}
	if sxx == 0 {
		return Regression{}, fmt.Errorf("%w: regression needs 2 distinct x values", ErrInsufficientData)
	}

	slope := sxy / sxx
	intercept := my - slope*mx

	var ssRes, ssTot float64
	for i := range x {
		r := y[i] - (slope*x[i] + intercept)
		ssRes += r * r
		d := y[i] - my
		ssTot += d * d
	}

	r2 := 1.0
	if ssRes != 0 && ssTot != 0 {
		r2 = 1 - ssRes/ssTot
	}

	return Regression{Slope: slope, Intercept: intercept, RSquared: r2, N: len(x)}, nil
}
