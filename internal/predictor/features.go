// Package predictor turns a sensor's history into a one-step-ahead forecast:
// lag features, a deterministic train/test split, a ridge-regularised linear
// fit and a held-out mean squared error.
package predictor

// Lags is the number of prior values each feature row carries
const Lags = 3

// Row is one supervised example: the Lags values before Target, most recent first.
type Row struct {
	Lags   [Lags]float64
	Target float64
}

// BuildRows lags values by 1..Lags steps. The first Lags values have no full
// lag window and produce no row, so len(rows) == len(values)-Lags.
func BuildRows(values []float64) []Row {
	if len(values) <= Lags {
		return nil
	}
	rows := make([]Row, 0, len(values)-Lags)
	for i := Lags; i < len(values); i++ {
		var r Row
		for k := range Lags {
			r.Lags[k] = values[i-1-k]
		}
		r.Target = values[i]
		rows = append(rows, r)
	}
	return rows
}

// LatestWindow returns the Lags most recent values, most recent first: the
// input for the next-step forecast.
func LatestWindow(values []float64) ([Lags]float64, bool) {
	var w [Lags]float64
	n := len(values)
	if n < Lags {
		return w, false
	}
	for k := range Lags {
		w[k] = values[n-1-k]
	}
	return w, true
}
