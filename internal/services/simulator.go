package services

import (
	"math"

	"github.com/irfndi/mmm-collinearity/internal/models"
	"github.com/irfndi/mmm-collinearity/internal/utils"
	"github.com/sirupsen/logrus"
)

const (
	MinSimulationSamples = 20
	MaxSimulationSamples = 500

	simulationIntercept = 10.0
)

// CorrelationLevel labels the strength of a pairwise correlation.
func CorrelationLevel(rho float64) string {
	r := math.Abs(rho)
	switch {
	case r < 0.3:
		return "low"
	case r < 0.7:
		return "moderate"
	case r < 0.95:
		return "high"
	default:
		return "near-perfect"
	}
}

// TheoreticalVIF is the VIF of either channel in a two-channel design with
// population correlation rho.
func TheoreticalVIF(rho float64) float64 {
	if math.Abs(rho) >= 1 {
		return math.Inf(1)
	}
	return 1 / (1 - rho*rho)
}

// PairSimulator fits OLS to two channels with a chosen correlation.
type PairSimulator struct {
	logger *logrus.Logger
}

// NewPairSimulator creates a new PairSimulator.
func NewPairSimulator(logger *logrus.Logger) *PairSimulator {
	if logger == nil {
		logger = logrus.New()
	}
	return &PairSimulator{logger: logger}
}

func validateSimulationParams(p models.SimulationParams) error {
	if p.Correlation < -1 || p.Correlation > 1 || math.IsNaN(p.Correlation) {
		return utils.NewConfigurationErrorf("correlation", "must be in [-1, 1], got %g", p.Correlation)
	}
	if p.SampleSize < MinSimulationSamples || p.SampleSize > MaxSimulationSamples {
		return utils.NewConfigurationErrorf("sample_size", "must be between %d and %d, got %d",
			MinSimulationSamples, MaxSimulationSamples, p.SampleSize)
	}
	if !(p.NoiseStd > 0) || math.IsInf(p.NoiseStd, 0) {
		return utils.NewConfigurationErrorf("noise_std", "must be a finite value > 0, got %g", p.NoiseStd)
	}
	for field, v := range map[string]float64{"true_coef1": p.TrueCoef1, "true_coef2": p.TrueCoef2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return utils.NewConfigurationErrorf(field, "must be finite, got %g", v)
		}
	}
	return nil
}

func estimationErrorPct(estimated, truth float64) float64 {
	if truth == 0 {
		return 0
	}
	return math.Abs(estimated-truth) / math.Abs(truth) * 100
}

// Simulate draws the design, fits OLS with an intercept and reports how far
// the estimates land from the true effects.
func (s *PairSimulator) Simulate(params models.SimulationParams) (*models.PairSimulation, error) {
	if err := validateSimulationParams(params); err != nil {
		return nil, err
	}

	x, y, err := GeneratePair(params.SampleSize, params.Correlation, simulationIntercept,
		params.TrueCoef1, params.TrueCoef2, params.NoiseStd, params.Seed)
	if err != nil {
		return nil, err
	}
	fit, err := fitOLS(x, y)
	if err != nil {
		return nil, err
	}

	predicted := fit.predict(x)
	residuals := make([]float64, len(y))
	for i := range y {
		residuals[i] = y[i] - predicted[i]
	}
	lo, hi := calculateMinMax(residuals)

	a, b := columnOf(x, 0), columnOf(x, 1)
	contrib1 := make([]float64, len(a))
	contrib2 := make([]float64, len(b))
	for i := range a {
		contrib1[i] = a[i] * fit.coef[0]
		contrib2[i] = b[i] * fit.coef[1]
	}

	result := &models.PairSimulation{
		Params:            params,
		SampleCorrelation: calculateCorrelation(a, b),
		TheoreticalVIF:    models.Metric(TheoreticalVIF(params.Correlation)),
		Intercept:         fit.intercept,
		EstimatedCoef1:    fit.coef[0],
		EstimatedCoef2:    fit.coef[1],
		Coef1ErrorPct:     estimationErrorPct(fit.coef[0], params.TrueCoef1),
		Coef2ErrorPct:     estimationErrorPct(fit.coef[1], params.TrueCoef2),
		RSquared:          calculateRSquared(y, predicted),
		Residuals: models.ResidualSummary{
			Mean:   calculateMeanFloat64(residuals),
			StdDev: calculatePopStdDev(residuals),
			Min:    lo,
			Max:    hi,
		},
		CorrelationLevel:  CorrelationLevel(params.Correlation),
		ContributionMeans: [2]float64{calculateMeanFloat64(contrib1), calculateMeanFloat64(contrib2)},
	}

	s.logger.WithFields(logrus.Fields{
		"correlation": params.Correlation,
		"sample_size": params.SampleSize,
		"vif":         result.TheoreticalVIF.Float(),
	}).Debug("Pair simulation completed")

	return result, nil
}
