package predictor

import (
	"errors"
	"fmt"
	"humidcast/internal/models"
)

var (
	// ErrInsufficientData means too few feature rows remain after lagging.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrMalformedSeries means the series has non-finite values or is not in date order.
	ErrMalformedSeries = errors.New("malformed series")
	// ErrFit means the regression could not be solved.
	ErrFit = errors.New("model fit failed")
)

// Options configure the pipeline. Zero values fall back to the defaults below.
type Options struct {
	TestRatio   float64
	MinRows     int
	Seed        uint64
	RidgeLambda float64
}

const (
	DefaultTestRatio = 0.2
	DefaultMinRows   = 5
)

// Forecast is a successful pipeline run
type Forecast struct {
	Value     float64
	MSE       float64
	TrainRows int
	TestRows  int
	Model     Model
}

// Pipeline trains and evaluates one model per call; it holds no state between runs
type Pipeline struct {
	opts Options
}

func New(opts Options) *Pipeline {
	if opts.TestRatio <= 0 || opts.TestRatio >= 1 {
		opts.TestRatio = DefaultTestRatio
	}
	// a split needs one train and one test row
	if opts.MinRows < 2 {
		opts.MinRows = DefaultMinRows
	}
	return &Pipeline{opts: opts}
}

// Run forecasts the reading that follows series.
func (p *Pipeline) Run(series models.Series) (Forecast, error) {
	for i := 1; i < len(series.Readings); i++ {
		if !series.Readings[i].Date.After(series.Readings[i-1].Date) {
			return Forecast{}, fmt.Errorf("%w: readings are not in ascending date order at index %d", ErrMalformedSeries, i)
		}
	}
	return p.Forecast(series.Values())
}

// Forecast runs the pipeline on bare values, oldest first.
func (p *Pipeline) Forecast(values []float64) (Forecast, error) {
	for i, v := range values {
		if !isFinite(v) {
			return Forecast{}, fmt.Errorf("%w: value %d is %v", ErrMalformedSeries, i, v)
		}
	}

	rows := BuildRows(values)
	if len(rows) < p.opts.MinRows {
		return Forecast{}, fmt.Errorf("%w: %d usable rows after lagging %d values, need at least %d",
			ErrInsufficientData, len(rows), len(values), p.opts.MinRows)
	}

	trainIdx, testIdx, err := Split(len(rows), p.opts.TestRatio, p.opts.Seed)
	if err != nil {
		return Forecast{}, err
	}
	train := pick(rows, trainIdx)
	test := pick(rows, testIdx)

	model, err := Fit(train, p.opts.RidgeLambda)
	if err != nil {
		return Forecast{}, err
	}

	window, _ := LatestWindow(values)
	value := model.Predict(window)
	if !isFinite(value) {
		return Forecast{}, fmt.Errorf("%w: forecast is %v", ErrFit, value)
	}

	return Forecast{
		Value:     value,
		MSE:       MSE(model, test),
		TrainRows: len(train),
		TestRows:  len(test),
		Model:     model,
	}, nil
}

func pick(rows []Row, idx []int) []Row {
	out := make([]Row, len(idx))
	for i, j := range idx {
		out[i] = rows[j]
	}
	return out
}
