package services

import (
	"math"

	"github.com/irfndi/mmm-collinearity/internal/models"
	"github.com/irfndi/mmm-collinearity/internal/utils"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

const (
	// DefaultCorrelationThreshold marks a channel pair as problematic.
	DefaultCorrelationThreshold = 0.8

	// R² at or above 1 - perfectFitTolerance is reported as infinite VIF.
	perfectFitTolerance = 1e-12
)

// ClassifyVIF maps a variance inflation factor to a severity label.
func ClassifyVIF(vif float64) models.Severity {
	switch {
	case vif >= 20:
		return models.SeveritySevere
	case vif >= 10:
		return models.SeverityHigh
	case vif >= 5:
		return models.SeverityModerate
	default:
		return models.SeverityLow
	}
}

// RecommendForVIF returns the remediation advice for the largest VIF.
func RecommendForVIF(maxVIF float64) string {
	switch {
	case maxVIF > 10:
		return "High multicollinearity detected. Use Ridge regression or PCA to stabilize coefficients, or combine highly correlated channels."
	case maxVIF >= 5:
		return "Moderate multicollinearity. Ridge regression with a low alpha is a safe default; monitor coefficient stability."
	default:
		return "Low multicollinearity. Ordinary least squares is appropriate."
	}
}

// DiagnosticsService computes correlation and variance inflation diagnostics.
type DiagnosticsService struct {
	logger    *logrus.Logger
	threshold float64
}

// NewDiagnosticsService creates a new DiagnosticsService. A non-positive
// threshold selects DefaultCorrelationThreshold.
func NewDiagnosticsService(logger *logrus.Logger, threshold float64) *DiagnosticsService {
	if logger == nil {
		logger = logrus.New()
	}
	if threshold <= 0 || threshold > 1 || math.IsNaN(threshold) {
		threshold = DefaultCorrelationThreshold
	}
	return &DiagnosticsService{logger: logger, threshold: threshold}
}

// Threshold returns the absolute correlation above which a pair is flagged.
func (s *DiagnosticsService) Threshold() float64 {
	return s.threshold
}

// Compute derives the diagnostics of a dataset. Perfect collinearity is
// reported as an infinite VIF, never as an error.
func (s *DiagnosticsService) Compute(ds *models.MarketingDataset) (*models.DiagnosticResult, error) {
	if ds == nil {
		return nil, utils.NewConfigurationError("dataset", "dataset is required")
	}
	if err := ds.Validate(); err != nil {
		return nil, utils.NewConfigurationError("dataset", err.Error())
	}
	if ds.NumRows() < 2 {
		return nil, utils.NewInsufficientDataError("correlation", 2, ds.NumRows())
	}

	p := ds.NumChannels()
	columns := make([][]float64, p)
	for j := range columns {
		columns[j] = ds.Column(j)
	}

	corr := make([][]float64, p)
	for i := range corr {
		corr[i] = make([]float64, p)
		corr[i][i] = 1
	}
	var pairs []models.CorrelatedPair
	for i := 0; i < p; i++ {
		for j := i + 1; j < p; j++ {
			r := calculateCorrelation(columns[i], columns[j])
			corr[i][j], corr[j][i] = r, r
			if math.Abs(r) > s.threshold {
				pairs = append(pairs, models.CorrelatedPair{
					ChannelA:    ds.Channels[i],
					ChannelB:    ds.Channels[j],
					Correlation: r,
				})
			}
		}
	}

	result := &models.DiagnosticResult{
		Channels:           append([]string(nil), ds.Channels...),
		Correlation:        corr,
		Threshold:          s.threshold,
		ProblematicPairs:   pairs,
		ChannelDiagnostics: make([]models.ChannelDiagnostic, p),
	}

	varying := make([]int, 0, p)
	for j, col := range columns {
		if calculatePopStdDev(col) > 0 {
			varying = append(varying, j)
		}
	}
	design := selectColumns(ds.Spend, varying)

	maxVIF := 0.0
	next := 0
	for i := 0; i < p; i++ {
		cd := models.ChannelDiagnostic{
			Channel:        ds.Channels[i],
			CorrelationRow: append([]float64(nil), corr[i]...),
		}
		if next < len(varying) && varying[next] == i {
			vif := varianceInflation(design, next)
			next++
			maxVIF = math.Max(maxVIF, vif)
			cd.VIF = models.Metric(vif)
			cd.Severity = ClassifyVIF(vif)
		} else {
			cd.VIF = models.Metric(math.NaN())
			cd.Severity = models.SeverityUndefined
			cd.ZeroVariance = true
		}
		result.ChannelDiagnostics[i] = cd
	}
	result.MaxVIF = models.Metric(maxVIF)
	result.ConditionNumber = models.Metric(math.NaN())
	if len(varying) > 0 {
		result.ConditionNumber = models.Metric(conditionNumber(design))
	}
	result.Recommendation = RecommendForVIF(maxVIF)

	s.logger.WithFields(logrus.Fields{
		"channels":          p,
		"problematic_pairs": len(pairs),
		"max_vif":           maxVIF,
	}).Debug("Collinearity diagnostics computed")

	return result, nil
}

// selectColumns copies the listed columns of rows.
func selectColumns(rows [][]float64, cols []int) [][]float64 {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		sel := make([]float64, len(cols))
		for k, j := range cols {
			sel[k] = row[j]
		}
		out[i] = sel
	}
	return out
}

// varianceInflation regresses column target on every other column with an
// intercept and returns 1/(1-R²). The intercept makes this the centered VIF.
// Tools that regress on the raw spend matrix without a constant column report
// the uncentered VIF instead, which is much larger for spend levels far from
// zero.
func varianceInflation(spend [][]float64, target int) float64 {
	p := len(spend[0])
	if p < 2 {
		return 1
	}
	others := make([][]float64, len(spend))
	y := make([]float64, len(spend))
	for r, row := range spend {
		rest := make([]float64, 0, p-1)
		for j, v := range row {
			if j == target {
				y[r] = v
				continue
			}
			rest = append(rest, v)
		}
		others[r] = rest
	}

	fit, err := fitOLS(others, y)
	if err != nil {
		return math.Inf(1)
	}
	r2 := calculateRSquared(y, fit.predict(others))
	if r2 >= 1-perfectFitTolerance {
		return math.Inf(1)
	}
	return 1 / (1 - r2)
}

// conditionNumber is the ratio of the largest to the smallest singular value
// of the standardized design.
func conditionNumber(spend [][]float64) float64 {
	scaled := ApplyScaler(FitScaler(spend), spend)
	n, p := len(scaled), len(scaled[0])
	if n < p {
		return math.Inf(1)
	}
	design := mat.NewDense(n, p, nil)
	for i, row := range scaled {
		design.SetRow(i, row)
	}

	var svd mat.SVD
	if ok := svd.Factorize(design, mat.SVDNone); !ok {
		return math.Inf(1)
	}
	values := svd.Values(nil)
	largest, smallest := values[0], values[len(values)-1]
	if largest == 0 || smallest <= rankTolerance*largest {
		return math.Inf(1)
	}
	return largest / smallest
}
