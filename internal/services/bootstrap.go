package services

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/irfndi/mmm-collinearity/internal/models"
	"github.com/irfndi/mmm-collinearity/internal/utils"
	"github.com/sirupsen/logrus"
)

// ProgressFunc is called after every completed bootstrap round.
type ProgressFunc func(done, total int)

type bootstrapConfig struct {
	progress ProgressFunc
}

// BootstrapOption configures a bootstrap run.
type BootstrapOption func(*bootstrapConfig)

// WithProgress reports progress after each resample.
func WithProgress(fn ProgressFunc) BootstrapOption {
	return func(c *bootstrapConfig) {
		c.progress = fn
	}
}

// ClassifyStability maps a coefficient of variation (percent) to a label.
func ClassifyStability(cv float64) models.Stability {
	switch {
	case cv < 20:
		return models.StabilityStable
	case cv <= 50:
		return models.StabilityModerate
	default:
		return models.StabilityUnstable
	}
}

// summarizeCoefficients computes mean, population std, range and CV.
func summarizeCoefficients(values []float64) models.CoefficientSummary {
	mean := calculateMeanFloat64(values)
	std := calculatePopStdDev(values)
	lo, hi := calculateMinMax(values)

	summary := models.CoefficientSummary{
		Mean:   mean,
		StdDev: std,
		Min:    lo,
		Max:    hi,
	}
	if mean == 0 {
		summary.ZeroMean = true
	} else {
		summary.CV = 100 * std / math.Abs(mean)
	}
	summary.Stability = ClassifyStability(summary.CV)
	return summary
}

// BootstrapAnalyzer measures coefficient instability by refitting on
// resampled rows.
type BootstrapAnalyzer struct {
	logger *logrus.Logger
}

// NewBootstrapAnalyzer creates a new BootstrapAnalyzer.
func NewBootstrapAnalyzer(logger *logrus.Logger) *BootstrapAnalyzer {
	if logger == nil {
		logger = logrus.New()
	}
	return &BootstrapAnalyzer{logger: logger}
}

// Run resamples rows with replacement and refits ordinary least squares.
func (b *BootstrapAnalyzer) Run(ds *models.MarketingDataset, iterations int, seed int64, opts ...BootstrapOption) (*models.BootstrapResult, error) {
	return b.RunWithModel(ds, iterations, seed, models.FitSpec{Kind: models.MethodOLS}, opts...)
}

// RunWithModel resamples rows and refits the given variant on raw spend.
// The same seed always yields the same sequence of resamples.
func (b *BootstrapAnalyzer) RunWithModel(ds *models.MarketingDataset, iterations int, seed int64, spec models.FitSpec, opts ...BootstrapOption) (*models.BootstrapResult, error) {
	cfg := &bootstrapConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	if ds == nil {
		return nil, utils.NewConfigurationError("dataset", "dataset is required")
	}
	if err := ds.Validate(); err != nil {
		return nil, utils.NewConfigurationError("dataset", err.Error())
	}
	if iterations < 1 {
		return nil, utils.NewInsufficientDataError("bootstrap iterations", 1, iterations)
	}
	n, p := ds.NumRows(), ds.NumChannels()
	if n < p+1 {
		return nil, utils.NewInsufficientDataError("bootstrap fit", p+1, n)
	}
	if err := validateFitSpec(spec, ds.Channels); err != nil {
		return nil, err
	}

	rng := rand.New(newSeededSource(seed))
	values := make([][]float64, p)
	for j := range values {
		values[j] = make([]float64, 0, iterations)
	}

	x := make([][]float64, n)
	y := make([]float64, n)
	for iter := 0; iter < iterations; iter++ {
		for i := 0; i < n; i++ {
			idx := rng.IntN(n)
			x[i] = ds.Spend[idx]
			y[i] = ds.Outcome[idx]
		}
		model, err := Fit(spec, ds.Channels, x, y)
		if err != nil {
			return nil, fmt.Errorf("bootstrap round %d: %w", iter+1, err)
		}
		for j, c := range model.Coefficients {
			values[j] = append(values[j], c)
		}
		if cfg.progress != nil {
			cfg.progress(iter+1, iterations)
		}
	}

	result := &models.BootstrapResult{
		Iterations:    iterations,
		Seed:          seed,
		Method:        spec,
		Distributions: make([]models.CoefficientDistribution, p),
	}
	for j, ch := range ds.Channels {
		result.Distributions[j] = models.CoefficientDistribution{
			Channel: ch,
			Values:  values[j],
			Summary: summarizeCoefficients(values[j]),
		}
	}

	b.logger.WithFields(logrus.Fields{
		"iterations": iterations,
		"seed":       seed,
		"method":     spec.Kind.String(),
		"max_cv":     result.MaxCV(),
	}).Debug("Bootstrap analysis completed")

	return result, nil
}
