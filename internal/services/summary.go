package services

import (
	"fmt"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
	"github.com/irfndi/mmm-collinearity/internal/models"
	"github.com/irfndi/mmm-collinearity/internal/utils"
	"github.com/sirupsen/logrus"
)

// DefaultMovingAverageWindow smooths weekly outcome over a quarter.
const DefaultMovingAverageWindow = 13

// SummaryService describes datasets without fitting any model.
type SummaryService struct {
	logger *logrus.Logger
}

// NewSummaryService creates a new SummaryService.
func NewSummaryService(logger *logrus.Logger) *SummaryService {
	if logger == nil {
		logger = logrus.New()
	}
	return &SummaryService{logger: logger}
}

func summarizeColumn(name string, values []float64) models.ColumnSummary {
	lo, hi := calculateMinMax(values)
	total := 0.0
	for _, v := range values {
		total += v
	}
	return models.ColumnSummary{
		Name:   name,
		Mean:   calculateMeanFloat64(values),
		StdDev: calculatePopStdDev(values),
		Min:    lo,
		Max:    hi,
		Total:  total,
	}
}

// Summarize returns per-column statistics, each channel's share of total
// spend and a simple moving average of the outcome.
func (s *SummaryService) Summarize(ds *models.MarketingDataset, window int) (*models.DatasetSummary, error) {
	if ds == nil {
		return nil, utils.NewConfigurationError("dataset", "dataset is required")
	}
	if err := ds.Validate(); err != nil {
		return nil, utils.NewConfigurationError("dataset", err.Error())
	}
	if window < 1 || window > ds.NumRows() {
		return nil, utils.NewConfigurationErrorf("window", "must be between 1 and %d, got %d", ds.NumRows(), window)
	}

	summary := &models.DatasetSummary{
		Rows:        ds.NumRows(),
		Fingerprint: fmt.Sprintf("%016x", ds.Fingerprint()),
		Channels:    make([]models.ColumnSummary, ds.NumChannels()),
		Outcome:     summarizeColumn(ds.OutcomeName, ds.Outcome),
		SpendShare:  make(map[string]float64, ds.NumChannels()),
		Window:      window,
	}

	grandTotal := 0.0
	for j, ch := range ds.Channels {
		summary.Channels[j] = summarizeColumn(ch, ds.Column(j))
		grandTotal += summary.Channels[j].Total
	}
	for _, cs := range summary.Channels {
		share := 0.0
		if grandTotal > 0 {
			share = cs.Total / grandTotal
		}
		summary.SpendShare[cs.Name] = share
	}

	sma := trend.NewSmaWithPeriod[float64](window)
	summary.MovingAverage = helper.ChanToSlice(sma.Compute(helper.SliceToChan(ds.Outcome)))

	s.logger.WithFields(logrus.Fields{
		"rows":   summary.Rows,
		"window": window,
	}).Debug("Dataset summarized")

	return summary, nil
}
