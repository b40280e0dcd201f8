package services

import (
	"math"
	"testing"

	"github.com/irfndi/mmm-collinearity/internal/models"
	"github.com/irfndi/mmm-collinearity/internal/utils"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestDataGenerator_Deterministic(t *testing.T) {
	gen := NewDataGenerator(testLogger())
	params := DefaultGenerateParams()
	params.Periods = 104
	params.Scenario = models.ScenarioHigh
	params.Seed = 42

	first, err := gen.Generate(params)
	require.NoError(t, err)
	second, err := gen.Generate(params)
	require.NoError(t, err)

	assert.Equal(t, first.Fingerprint(), second.Fingerprint())
	assert.Equal(t, first.Spend, second.Spend)
	assert.Equal(t, first.Outcome, second.Outcome)

	params.Seed = 43
	other, err := gen.Generate(params)
	require.NoError(t, err)
	assert.NotEqual(t, first.Fingerprint(), other.Fingerprint())
}

func TestDataGenerator_Shape(t *testing.T) {
	gen := NewDataGenerator(testLogger())

	for _, scenario := range models.AllScenarios() {
		t.Run(scenario.String(), func(t *testing.T) {
			params := DefaultGenerateParams()
			params.Scenario = scenario
			params.Periods = 208

			ds, err := gen.Generate(params)
			require.NoError(t, err)
			require.NoError(t, ds.Validate())

			assert.Equal(t, 208, ds.NumRows())
			assert.Equal(t, models.DefaultChannels, ds.Channels)
			assert.Equal(t, "Sales", ds.OutcomeName)
			assert.Equal(t, scenario.String(), ds.Scenario)
			assert.Equal(t, 1, ds.Periods[0])
			assert.Equal(t, 208, ds.Periods[207])

			for _, row := range ds.Spend {
				for _, v := range row {
					assert.GreaterOrEqual(t, v, 0.0)
					assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
				}
			}
		})
	}
}

func TestDataGenerator_NoNoiseOutcomeIsLinear(t *testing.T) {
	gen := NewDataGenerator(testLogger())
	params := DefaultGenerateParams()
	params.NoisePct = 0
	params.Options = GenerateOptions{Seasonality: true, Trend: true}

	ds, err := gen.Generate(params)
	require.NoError(t, err)

	for r, row := range ds.Spend {
		expected := params.BaseSales
		for j, v := range row {
			expected += v * models.GroundTruthCoefficients[j]
		}
		assert.InDelta(t, expected, ds.Outcome[r], 1e-9)
	}
}

func TestDataGenerator_OutlierWeeks(t *testing.T) {
	gen := NewDataGenerator(testLogger())
	params := DefaultGenerateParams()
	params.Periods = 160
	params.Options = GenerateOptions{Seasonality: true}

	plain, err := gen.Generate(params)
	require.NoError(t, err)

	params.Options.Outliers = true
	spiked, err := gen.Generate(params)
	require.NoError(t, err)

	spikes := map[int]bool{46: true, 98: true, 150: true}
	for r := range plain.Spend {
		factor := 1.0
		if spikes[r] {
			factor = outlierSpike
		}
		for j := range plain.Spend[r] {
			assert.InDelta(t, plain.Spend[r][j]*factor, spiked.Spend[r][j], 1e-9, "row %d", r)
		}
		assert.InDelta(t, plain.Outcome[r]*factor, spiked.Outcome[r], 1e-9, "row %d", r)
	}
}

func TestDataGenerator_SeasonalityAndTrend(t *testing.T) {
	gen := NewDataGenerator(testLogger())
	params := DefaultGenerateParams()
	params.Options = GenerateOptions{}

	flat, err := gen.Generate(params)
	require.NoError(t, err)

	params.Options = GenerateOptions{Seasonality: true, Trend: true}
	shaped, err := gen.Generate(params)
	require.NoError(t, err)

	for _, r := range []int{0, 13, 39, 60} {
		mult := (1 + 0.3*math.Sin(2*math.Pi*float64(r)/52)) * (1 + 0.002*float64(r))
		for j := range flat.Spend[r] {
			assert.InDelta(t, flat.Spend[r][j]*mult, shaped.Spend[r][j], 1e-9)
		}
	}
}

func TestDataGenerator_ChannelBaseLevels(t *testing.T) {
	gen := NewDataGenerator(testLogger())
	params := DefaultGenerateParams()
	params.Periods = 500
	params.Scenario = models.ScenarioLow
	params.Options = GenerateOptions{}
	params.ChannelBaseLevels = []float64{200, 180, 160, 140, 120, 100}

	ds, err := gen.Generate(params)
	require.NoError(t, err)

	for j, level := range params.ChannelBaseLevels {
		assert.InDelta(t, level, calculateMeanFloat64(ds.Column(j)), 3.0)
	}
}

func TestDataGenerator_ConfigurationErrors(t *testing.T) {
	gen := NewDataGenerator(testLogger())

	tests := []struct {
		name   string
		mutate func(p *GenerateParams)
		field  string
	}{
		{"too few periods", func(p *GenerateParams) { p.Periods = 51 }, "periods"},
		{"too many periods", func(p *GenerateParams) { p.Periods = 501 }, "periods"},
		{"dimension mismatch", func(p *GenerateParams) { p.ChannelBaseLevels = []float64{1, 2, 3} }, "channel_base_levels"},
		{"negative noise", func(p *GenerateParams) { p.NoisePct = -1 }, "noise_pct"},
		{"noise above 100", func(p *GenerateParams) { p.NoisePct = 100.5 }, "noise_pct"},
		{"negative base sales", func(p *GenerateParams) { p.BaseSales = -10 }, "base_sales"},
		{"unknown scenario", func(p *GenerateParams) { p.Scenario = models.Scenario(12) }, "scenario"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := DefaultGenerateParams()
			tt.mutate(&params)

			ds, err := gen.Generate(params)
			require.Error(t, err)
			assert.Nil(t, ds)
			assert.True(t, utils.IsConfigurationError(err))

			var cfgErr *utils.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestNearestPositiveDefinite(t *testing.T) {
	scenario, err := models.LookupScenario(models.ScenarioExtreme)
	require.NoError(t, err)

	p := scenario.Dim()
	sigma := mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			sigma.SetSym(i, j, scenario.Correlation[i][j])
		}
	}

	var chol mat.Cholesky
	assert.False(t, chol.Factorize(sigma), "extreme scenario matrix is expected to be indefinite")

	repaired, err := nearestPositiveDefinite(sigma)
	require.NoError(t, err)
	assert.True(t, chol.Factorize(repaired))

	for i := 0; i < p; i++ {
		for j := 0; j < p; j++ {
			assert.InDelta(t, sigma.At(i, j), repaired.At(i, j), 0.1)
		}
	}
}

func TestGeneratePair(t *testing.T) {
	x, y, err := GeneratePair(2000, 0.9, 10, 3, 2, 1, 42)
	require.NoError(t, err)
	require.Len(t, x, 2000)
	require.Len(t, y, 2000)

	a, b := columnOf(x, 0), columnOf(x, 1)
	assert.InDelta(t, 0.9, calculateCorrelation(a, b), 0.02)

	x2, y2, err := GeneratePair(2000, 0.9, 10, 3, 2, 1, 42)
	require.NoError(t, err)
	assert.Equal(t, x, x2)
	assert.Equal(t, y, y2)

	perfect, _, err := GeneratePair(50, 1, 0, 1, 1, 1, 1)
	require.NoError(t, err)
	for _, row := range perfect {
		assert.Equal(t, row[0], row[1])
	}

	_, _, err = GeneratePair(100, 1.5, 0, 1, 1, 1, 1)
	assert.True(t, utils.IsConfigurationError(err))
	_, _, err = GeneratePair(2, 0.5, 0, 1, 1, 1, 1)
	assert.True(t, utils.IsInsufficientData(err))
}

func TestFromColumns(t *testing.T) {
	ds, err := FromColumns([]string{"A", "B"}, [][]float64{{1, 2}, {3, 4}}, "", []float64{10, 20})
	require.NoError(t, err)
	assert.Equal(t, "Sales", ds.OutcomeName)
	assert.Equal(t, []int{1, 2}, ds.Periods)

	_, err = FromColumns([]string{"A", "A"}, [][]float64{{1, 2}}, "Sales", []float64{10})
	assert.True(t, utils.IsConfigurationError(err))

	_, err = FromColumns([]string{"A"}, [][]float64{{-1}}, "Sales", []float64{10})
	assert.True(t, utils.IsConfigurationError(err))
}
