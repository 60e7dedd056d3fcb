package predictor

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Model is a fitted linear map from a lag window to the next value
type Model struct {
	Intercept float64
	Weights   [Lags]float64
}

// Predict applies the model to a lag window, most recent value first.
func (m Model) Predict(lags [Lags]float64) float64 {
	y := m.Intercept
	for k, w := range m.Weights {
		y += w * lags[k]
	}
	return y
}

// Fit solves ridge regression on mean-centred features, so the intercept is
// not penalised. A positive lambda keeps constant or collinear histories
// solvable; lambda == 0 is ordinary least squares.
func Fit(rows []Row, lambda float64) (Model, error) {
	if len(rows) == 0 {
		return Model{}, fmt.Errorf("%w: no training rows", ErrFit)
	}

	n := len(rows)
	targets := make([]float64, n)
	columns := make([][]float64, Lags)
	for k := range columns {
		columns[k] = make([]float64, n)
	}
	for i, r := range rows {
		targets[i] = r.Target
		for k := range Lags {
			columns[k][i] = r.Lags[k]
		}
	}

	var means [Lags]float64
	for k := range Lags {
		means[k] = stat.Mean(columns[k], nil)
	}
	targetMean := stat.Mean(targets, nil)

	x := mat.NewDense(n, Lags, nil)
	y := mat.NewVecDense(n, nil)
	for i := range n {
		for k := range Lags {
			x.Set(i, k, columns[k][i]-means[k])
		}
		y.SetVec(i, targets[i]-targetMean)
	}

	var xtx mat.Dense
	xtx.Mul(x.T(), x)
	for k := range Lags {
		xtx.Set(k, k, xtx.At(k, k)+lambda)
	}
	var xty mat.VecDense
	xty.MulVec(x.T(), y)

	var w mat.VecDense
	if err := w.SolveVec(&xtx, &xty); err != nil {
		return Model{}, fmt.Errorf("%w: %w", ErrFit, err)
	}

	m := Model{Intercept: targetMean}
	for k := range Lags {
		m.Weights[k] = w.AtVec(k)
		m.Intercept -= m.Weights[k] * means[k]
	}
	if !m.finite() {
		return Model{}, fmt.Errorf("%w: non-finite coefficients", ErrFit)
	}
	return m, nil
}

// MSE is the mean squared error of m over rows.
func MSE(m Model, rows []Row) float64 {
	if len(rows) == 0 {
		return 0
	}
	var sum float64
	for _, r := range rows {
		d := m.Predict(r.Lags) - r.Target
		sum += d * d
	}
	return sum / float64(len(rows))
}

func (m Model) finite() bool {
	if !isFinite(m.Intercept) {
		return false
	}
	for _, w := range m.Weights {
		if !isFinite(w) {
			return false
		}
	}
	return true
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
