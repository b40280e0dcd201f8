package services

import (
	"testing"

	"github.com/irfndi/mmm-collinearity/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummaryService_Summarize(t *testing.T) {
	ds, err := FromColumns(
		[]string{"TV", "Radio"},
		[][]float64{{10, 0}, {20, 10}, {30, 10}, {40, 20}},
		"Sales",
		[]float64{100, 200, 300, 400},
	)
	require.NoError(t, err)

	summary, err := NewSummaryService(testLogger()).Summarize(ds, 2)
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Rows)
	assert.Len(t, summary.Fingerprint, 16)
	require.Len(t, summary.Channels, 2)
	assert.Equal(t, "TV", summary.Channels[0].Name)
	assert.InDelta(t, 25.0, summary.Channels[0].Mean, 1e-12)
	assert.InDelta(t, 100.0, summary.Channels[0].Total, 1e-12)
	assert.Equal(t, 10.0, summary.Channels[0].Min)
	assert.Equal(t, 40.0, summary.Channels[0].Max)
	assert.InDelta(t, 250.0, summary.Outcome.Mean, 1e-12)
	assert.Equal(t, "Sales", summary.Outcome.Name)

	// TV spends 100 of 140, Radio 40 of 140.
	assert.InDelta(t, 100.0/140.0, summary.SpendShare["TV"], 1e-12)
	assert.InDelta(t, 40.0/140.0, summary.SpendShare["Radio"], 1e-12)

	assert.InDeltaSlice(t, []float64{150, 250, 350}, summary.MovingAverage, 1e-9)
	assert.Equal(t, 2, summary.Window)
}

func TestSummaryService_WindowValidation(t *testing.T) {
	ds, err := FromColumns([]string{"TV"}, [][]float64{{1}, {2}}, "Sales", []float64{1, 2})
	require.NoError(t, err)
	svc := NewSummaryService(testLogger())

	_, err = svc.Summarize(ds, 0)
	assert.True(t, utils.IsConfigurationError(err))
	_, err = svc.Summarize(ds, 3)
	assert.True(t, utils.IsConfigurationError(err))
	_, err = svc.Summarize(nil, 1)
	assert.True(t, utils.IsConfigurationError(err))

	summary, err := svc.Summarize(ds, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, summary.MovingAverage)
}
