package services

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/irfndi/mmm-collinearity/internal/models"
	"github.com/irfndi/mmm-collinearity/internal/utils"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

const (
	MinPeriods = 52
	MaxPeriods = 500

	// spendVarianceScale turns a correlation matrix into a spend covariance.
	spendVarianceScale = 200.0

	seasonalAmplitude = 0.3
	seasonalCycle     = 52.0
	trendGrowth       = 0.002

	// Outlier weeks repeat yearly starting at row 46 (Black Friday).
	outlierFirstRow = 46
	outlierInterval = 52
	outlierSpike    = 2.5

	// Eigenvalues of a non positive definite covariance are raised to this
	// fraction of the largest eigenvalue.
	eigenFloorRatio = 1e-3
)

// GenerateOptions toggle the realistic shaping steps.
type GenerateOptions struct {
	Seasonality bool `json:"seasonality" mapstructure:"seasonality"`
	Trend       bool `json:"trend" mapstructure:"trend"`
	Outliers    bool `json:"outliers" mapstructure:"outliers"`
}

// GenerateParams describe one synthetic dataset.
type GenerateParams struct {
	Periods           int             `json:"periods"`
	Scenario          models.Scenario `json:"-"`
	ChannelBaseLevels []float64       `json:"channel_base_levels,omitempty"` // nil selects the scenario means
	BaseSales         float64         `json:"base_sales"`
	NoisePct          float64         `json:"noise_pct"`
	Options           GenerateOptions `json:"options"`
	Seed              int64           `json:"seed"`
}

// DefaultGenerateParams returns the dashboard defaults.
func DefaultGenerateParams() GenerateParams {
	return GenerateParams{
		Periods:   104,
		Scenario:  models.ScenarioHigh,
		BaseSales: 500,
		NoisePct:  15,
		Options:   GenerateOptions{Seasonality: true, Trend: true, Outliers: true},
		Seed:      42,
	}
}

// Validate checks parameter shapes and ranges against the scenario.
func (p GenerateParams) Validate(scenario models.CovarianceScenario) error {
	if p.Periods < MinPeriods || p.Periods > MaxPeriods {
		return utils.NewConfigurationErrorf("periods", "must be between %d and %d, got %d", MinPeriods, MaxPeriods, p.Periods)
	}
	if p.ChannelBaseLevels != nil && len(p.ChannelBaseLevels) != scenario.Dim() {
		return utils.NewConfigurationErrorf("channel_base_levels", "expected %d values for scenario %s, got %d",
			scenario.Dim(), scenario.Scenario, len(p.ChannelBaseLevels))
	}
	for i, v := range p.ChannelBaseLevels {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return utils.NewConfigurationErrorf("channel_base_levels", "value %d is not finite", i)
		}
	}
	if p.NoisePct < 0 || p.NoisePct > 100 || math.IsNaN(p.NoisePct) {
		return utils.NewConfigurationErrorf("noise_pct", "must be in [0, 100], got %g", p.NoisePct)
	}
	if p.BaseSales < 0 || math.IsNaN(p.BaseSales) || math.IsInf(p.BaseSales, 0) {
		return utils.NewConfigurationErrorf("base_sales", "must be a finite value >= 0, got %g", p.BaseSales)
	}
	return nil
}

// DataGenerator draws synthetic marketing datasets from correlation scenarios.
type DataGenerator struct {
	logger *logrus.Logger
}

// NewDataGenerator creates a new DataGenerator.
func NewDataGenerator(logger *logrus.Logger) *DataGenerator {
	if logger == nil {
		logger = logrus.New()
	}
	return &DataGenerator{logger: logger}
}

func newSeededSource(seed int64) *rand.PCG {
	return rand.NewPCG(uint64(seed), uint64(seed))
}

// Generate samples a dataset. The same params always produce the same values.
func (g *DataGenerator) Generate(params GenerateParams) (*models.MarketingDataset, error) {
	scenario, err := models.LookupScenario(params.Scenario)
	if err != nil {
		return nil, utils.NewConfigurationError("scenario", err.Error())
	}
	if err := params.Validate(scenario); err != nil {
		return nil, err
	}

	means := scenario.MeanSpend
	if params.ChannelBaseLevels != nil {
		means = append([]float64(nil), params.ChannelBaseLevels...)
	}
	p := scenario.Dim()
	n := params.Periods

	src := newSeededSource(params.Seed)
	normal, err := g.spendDistribution(scenario, means, src)
	if err != nil {
		return nil, err
	}

	spend := make([][]float64, n)
	for t := 0; t < n; t++ {
		row := normal.Rand(nil)
		for j, v := range row {
			if v < 0 || math.IsNaN(v) {
				row[j] = 0
			}
		}
		multiplier := 1.0
		if params.Options.Seasonality {
			multiplier *= 1 + seasonalAmplitude*math.Sin(2*math.Pi*float64(t)/seasonalCycle)
		}
		if params.Options.Trend {
			multiplier *= 1 + trendGrowth*float64(t)
		}
		for j := range row {
			row[j] *= multiplier
		}
		spend[t] = row
	}

	noise := rand.New(src)
	noiseStd := params.NoisePct / 100 * params.BaseSales
	outcome := make([]float64, n)
	for t, row := range spend {
		sales := params.BaseSales
		for j := 0; j < p; j++ {
			sales += row[j] * models.GroundTruthCoefficients[j]
		}
		outcome[t] = sales + noiseStd*noise.NormFloat64()
	}

	if params.Options.Outliers {
		for t := outlierFirstRow; t < n; t += outlierInterval {
			for j := range spend[t] {
				spend[t][j] *= outlierSpike
			}
			outcome[t] *= outlierSpike
		}
	}

	periods := make([]int, n)
	for t := range periods {
		periods[t] = t + 1
	}

	ds := &models.MarketingDataset{
		Periods:     periods,
		Channels:    scenario.Channels,
		Spend:       spend,
		OutcomeName: models.DefaultOutcomeName,
		Outcome:     outcome,
		Scenario:    params.Scenario.String(),
		Seed:        params.Seed,
	}

	g.logger.WithFields(logrus.Fields{
		"periods":     n,
		"scenario":    params.Scenario.String(),
		"seed":        params.Seed,
		"fingerprint": fmt.Sprintf("%016x", ds.Fingerprint()),
	}).Debug("Generated marketing dataset")

	return ds, nil
}

// spendDistribution builds the multivariate normal for a scenario. A
// covariance that is not positive definite is repaired by clipping its
// eigenvalues before retrying.
func (g *DataGenerator) spendDistribution(scenario models.CovarianceScenario, means []float64, src rand.Source) (*distmv.Normal, error) {
	p := scenario.Dim()
	sigma := mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			sigma.SetSym(i, j, scenario.Correlation[i][j]*spendVarianceScale)
		}
	}

	if normal, ok := distmv.NewNormal(means, sigma, src); ok {
		return normal, nil
	}

	repaired, err := nearestPositiveDefinite(sigma)
	if err != nil {
		return nil, fmt.Errorf("repair covariance for scenario %s: %w", scenario.Scenario, err)
	}
	g.logger.WithField("scenario", scenario.Scenario.String()).Debug("Covariance not positive definite, clipped eigenvalues")

	normal, ok := distmv.NewNormal(means, repaired, src)
	if !ok {
		return nil, fmt.Errorf("covariance for scenario %s is degenerate", scenario.Scenario)
	}
	return normal, nil
}

// nearestPositiveDefinite rebuilds sigma from its eigendecomposition with
// every eigenvalue raised to at least eigenFloorRatio times the largest.
func nearestPositiveDefinite(sigma *mat.SymDense) (*mat.SymDense, error) {
	var eig mat.EigenSym
	if ok := eig.Factorize(sigma, true); !ok {
		return nil, fmt.Errorf("eigendecomposition failed")
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	largest := values[len(values)-1]
	if largest <= 0 {
		return nil, fmt.Errorf("covariance has no positive eigenvalue")
	}
	floor := eigenFloorRatio * largest
	for i, v := range values {
		if v < floor {
			values[i] = floor
		}
	}

	p := len(values)
	out := mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			sum := 0.0
			for k := 0; k < p; k++ {
				sum += vectors.At(i, k) * values[k] * vectors.At(j, k)
			}
			out.SetSym(i, j, sum)
		}
	}
	return out, nil
}

// GeneratePair draws n rows of two standard normal channels with population
// correlation rho and y = intercept + coef1*A + coef2*B + N(0, noiseStd).
// Spend values are not clamped, so the result is a design rather than a
// MarketingDataset.
func GeneratePair(n int, rho, intercept, coef1, coef2, noiseStd float64, seed int64) ([][]float64, []float64, error) {
	if n < 3 {
		return nil, nil, utils.NewInsufficientDataError("pair design", 3, n)
	}
	if rho < -1 || rho > 1 || math.IsNaN(rho) {
		return nil, nil, utils.NewConfigurationErrorf("correlation", "must be in [-1, 1], got %g", rho)
	}
	if noiseStd < 0 || math.IsNaN(noiseStd) {
		return nil, nil, utils.NewConfigurationErrorf("noise_std", "must be >= 0, got %g", noiseStd)
	}

	rng := rand.New(newSeededSource(seed))
	orth := math.Sqrt(1 - rho*rho)
	x := make([][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		a := rng.NormFloat64()
		b := rho*a + orth*rng.NormFloat64()
		x[i] = []float64{a, b}
	}
	for i := 0; i < n; i++ {
		y[i] = intercept + coef1*x[i][0] + coef2*x[i][1] + noiseStd*rng.NormFloat64()
	}
	return x, y, nil
}

// FromColumns builds a validated dataset from caller-supplied columns.
// spend is indexed rows x channels.
func FromColumns(channels []string, spend [][]float64, outcomeName string, outcome []float64) (*models.MarketingDataset, error) {
	if outcomeName == "" {
		outcomeName = models.DefaultOutcomeName
	}
	ds := &models.MarketingDataset{
		Periods:     make([]int, len(outcome)),
		Channels:    append([]string(nil), channels...),
		Spend:       copyRows(spend),
		OutcomeName: outcomeName,
		Outcome:     append([]float64(nil), outcome...),
	}
	for i := range ds.Periods {
		ds.Periods[i] = i + 1
	}
	if err := ds.Validate(); err != nil {
		return nil, utils.NewConfigurationError("dataset", err.Error())
	}
	return ds, nil
}
