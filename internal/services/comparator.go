package services

import (
	"fmt"
	"math"

	"github.com/irfndi/mmm-collinearity/internal/models"
	"github.com/irfndi/mmm-collinearity/internal/utils"
	"github.com/sirupsen/logrus"
)

// FittedModel is one fitted regression variant. Coefficients are indexed like
// Channels; for residualized fits they apply to the residualized design.
type FittedModel struct {
	Spec         models.FitSpec
	Channels     []string
	Intercept    float64
	Coefficients []float64
	Loadings     [][]float64 // PCR only, components x channels
	Explained    []float64   // PCR only, variance ratio per component
	Converged    bool

	design func([][]float64) [][]float64
}

// Design returns the matrix the coefficients apply to for inputs x.
func (m *FittedModel) Design(x [][]float64) [][]float64 {
	if m.design == nil {
		return x
	}
	return m.design(x)
}

// Predict evaluates the model on rows in channel space.
func (m *FittedModel) Predict(x [][]float64) []float64 {
	fit := linearFit{intercept: m.Intercept, coef: m.Coefficients}
	return fit.predict(m.Design(x))
}

// CoefficientMap returns the coefficients keyed by channel.
func (m *FittedModel) CoefficientMap() map[string]float64 {
	out := make(map[string]float64, len(m.Channels))
	for i, ch := range m.Channels {
		out[ch] = m.Coefficients[i]
	}
	return out
}

// NonZero counts coefficients that are not exactly zero.
func (m *FittedModel) NonZero() int {
	count := 0
	for _, c := range m.Coefficients {
		if c != 0 {
			count++
		}
	}
	return count
}

// Fit dispatches on spec.Kind and fits the variant to x (rows x channels) and y.
func Fit(spec models.FitSpec, channels []string, x [][]float64, y []float64) (*FittedModel, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, utils.NewInsufficientDataError("fit "+spec.Kind.String(), 1, len(x))
	}
	if len(x[0]) != len(channels) {
		return nil, utils.NewConfigurationErrorf("channels", "design has %d columns but %d channel names", len(x[0]), len(channels))
	}
	if err := validateFitSpec(spec, channels); err != nil {
		return nil, err
	}

	model := &FittedModel{Spec: spec, Channels: append([]string(nil), channels...), Converged: true}
	var (
		fit linearFit
		err error
	)

	switch spec.Kind {
	case models.MethodOLS:
		fit, err = fitOLS(x, y)
	case models.MethodRidge:
		fit, err = fitRidge(x, y, spec.Alpha)
	case models.MethodLasso, models.MethodElasticNet:
		ratio := spec.L1Ratio
		if spec.Kind == models.MethodLasso {
			ratio = 1
		}
		if spec.Alpha == 0 {
			fit, err = fitOLS(x, y)
		} else {
			fit, model.Converged, err = fitElasticNet(x, y, spec.Alpha, ratio)
		}
	case models.MethodPCR:
		fit, err = fitPCRInto(model, x, y, spec.Components)
	case models.MethodResidualized:
		base := indexOf(channels, spec.BaseChannel)
		model.design = residualizeAgainst(x, base)
		fit, err = fitOLS(model.design(x), y)
	}
	if err != nil {
		return nil, fmt.Errorf("fit %s: %w", spec.Kind, err)
	}

	model.Intercept = fit.intercept
	model.Coefficients = fit.coef
	return model, nil
}

func fitPCRInto(model *FittedModel, x [][]float64, y []float64, k int) (linearFit, error) {
	fit, axes, explained, err := fitPCR(x, y, k)
	if err != nil {
		return linearFit{}, err
	}
	model.Explained = explained
	p, comps := axes.Dims()
	model.Loadings = make([][]float64, comps)
	for c := 0; c < comps; c++ {
		model.Loadings[c] = make([]float64, p)
		for j := 0; j < p; j++ {
			model.Loadings[c][j] = axes.At(j, c)
		}
	}
	return fit, nil
}

func validateFitSpec(spec models.FitSpec, channels []string) error {
	switch spec.Kind {
	case models.MethodOLS:
	case models.MethodRidge, models.MethodLasso:
		if spec.Alpha < 0 || math.IsNaN(spec.Alpha) || math.IsInf(spec.Alpha, 0) {
			return utils.NewConfigurationErrorf("alpha", "must be a finite value >= 0, got %g", spec.Alpha)
		}
	case models.MethodElasticNet:
		if spec.Alpha < 0 || math.IsNaN(spec.Alpha) || math.IsInf(spec.Alpha, 0) {
			return utils.NewConfigurationErrorf("alpha", "must be a finite value >= 0, got %g", spec.Alpha)
		}
		if spec.L1Ratio < 0 || spec.L1Ratio > 1 || math.IsNaN(spec.L1Ratio) {
			return utils.NewConfigurationErrorf("elastic_net_ratio", "must be in [0, 1], got %g", spec.L1Ratio)
		}
	case models.MethodPCR:
		if spec.Components < 1 || spec.Components > len(channels) {
			return utils.NewConfigurationErrorf("pca_components", "must be in [1, %d], got %d", len(channels), spec.Components)
		}
	case models.MethodResidualized:
		if indexOf(channels, spec.BaseChannel) < 0 {
			return utils.NewConfigurationErrorf("residualization_base_channel", "%q is not a dataset channel", spec.BaseChannel)
		}
	default:
		return utils.NewConfigurationErrorf("method", "unknown regression method %d", int(spec.Kind))
	}
	return nil
}

func indexOf(values []string, target string) int {
	for i, v := range values {
		if v == target {
			return i
		}
	}
	return -1
}

// FitScaler learns per-column means and population standard deviations.
// Columns without variance keep a scale of 1.
func FitScaler(x [][]float64) models.Scaler {
	p := 0
	if len(x) > 0 {
		p = len(x[0])
	}
	s := models.Scaler{Mean: make([]float64, p), Scale: make([]float64, p)}
	for j := 0; j < p; j++ {
		col := columnOf(x, j)
		s.Mean[j] = calculateMeanFloat64(col)
		s.Scale[j] = calculatePopStdDev(col)
		if s.Scale[j] == 0 {
			s.Scale[j] = 1
		}
	}
	return s
}

// ApplyScaler centers and scales x with a previously fitted scaler.
func ApplyScaler(s models.Scaler, x [][]float64) [][]float64 {
	out := make([][]float64, len(x))
	for i, row := range x {
		scaled := make([]float64, len(row))
		for j, v := range row {
			scaled[j] = (v - s.Mean[j]) / s.Scale[j]
		}
		out[i] = scaled
	}
	return out
}

// FitComparator fits every regression variant on a temporal train/test split.
type FitComparator struct {
	logger *logrus.Logger
}

// NewFitComparator creates a new FitComparator.
func NewFitComparator(logger *logrus.Logger) *FitComparator {
	if logger == nil {
		logger = logrus.New()
	}
	return &FitComparator{logger: logger}
}

type temporalSplit struct {
	scaler models.Scaler
	xTrain [][]float64
	yTrain []float64
	xTest  [][]float64
	yTest  []float64
}

// split keeps row order: the first floor(trainFraction*n) rows are train.
func (c *FitComparator) split(ds *models.MarketingDataset, trainFraction float64) (*temporalSplit, error) {
	if ds == nil {
		return nil, utils.NewConfigurationError("dataset", "dataset is required")
	}
	if err := ds.Validate(); err != nil {
		return nil, utils.NewConfigurationError("dataset", err.Error())
	}
	if !(trainFraction > 0 && trainFraction < 1) {
		return nil, utils.NewConfigurationErrorf("train_fraction", "must be strictly between 0 and 1, got %g", trainFraction)
	}

	n := ds.NumRows()
	required := ds.NumChannels() + 1
	nTrain := int(math.Floor(trainFraction * float64(n)))
	if nTrain < required {
		return nil, utils.NewInsufficientDataError("training split", required, nTrain)
	}
	if n-nTrain < required {
		return nil, utils.NewInsufficientDataError("test split", required, n-nTrain)
	}

	rawTrain := ds.Spend[:nTrain]
	scaler := FitScaler(rawTrain)
	return &temporalSplit{
		scaler: scaler,
		xTrain: ApplyScaler(scaler, rawTrain),
		yTrain: append([]float64(nil), ds.Outcome[:nTrain]...),
		xTest:  ApplyScaler(scaler, ds.Spend[nTrain:]),
		yTest:  append([]float64(nil), ds.Outcome[nTrain:]...),
	}, nil
}

// resolveBaseChannel defaults an empty name to the first channel and rejects
// names the dataset does not carry.
func resolveBaseChannel(ds *models.MarketingDataset, name string) (string, error) {
	if name == "" {
		return ds.Channels[0], nil
	}
	if ds.ChannelIndex(name) < 0 {
		return "", utils.NewConfigurationErrorf("residualization_base_channel", "%q is not a dataset channel", name)
	}
	return name, nil
}

// Compare fits OLS, ridge, lasso, elastic net, PCR and base-channel
// residualization, in that order, and scores each on both splits.
func (c *FitComparator) Compare(ds *models.MarketingDataset, trainFraction float64, params models.MethodParams) (*models.ComparisonResult, error) {
	sp, err := c.split(ds, trainFraction)
	if err != nil {
		return nil, err
	}
	base, err := resolveBaseChannel(ds, params.ResidualizationBaseChannel)
	if err != nil {
		return nil, err
	}
	specs := params.Specs(base)
	for _, spec := range specs {
		if err := validateFitSpec(spec, ds.Channels); err != nil {
			return nil, err
		}
	}

	result := &models.ComparisonResult{
		Channels:  append([]string(nil), ds.Channels...),
		TrainRows: len(sp.yTrain),
		TestRows:  len(sp.yTest),
		Scaler:    sp.scaler,
		Records:   make([]models.FitComparisonRecord, 0, len(specs)),
	}

	for _, spec := range specs {
		model, err := Fit(spec, ds.Channels, sp.xTrain, sp.yTrain)
		if err != nil {
			return nil, fmt.Errorf("compare: %w", err)
		}
		if !model.Converged {
			c.logger.WithFields(logrus.Fields{
				"method": spec.Kind.String(),
				"alpha":  spec.Alpha,
			}).Warn("Coordinate descent did not converge")
		}

		trainR2 := calculateRSquared(sp.yTrain, model.Predict(sp.xTrain))
		testR2 := calculateRSquared(sp.yTest, model.Predict(sp.xTest))
		result.Records = append(result.Records, models.FitComparisonRecord{
			Method:            spec.Kind,
			Label:             spec.Label(),
			TrainR2:           trainR2,
			TestR2:            testR2,
			OverfitGap:        trainR2 - testR2,
			Coefficients:      model.CoefficientMap(),
			Intercept:         model.Intercept,
			NonZero:           model.NonZero(),
			ComponentLoadings: model.Loadings,
			ExplainedVariance: model.Explained,
		})
	}

	if best, ok := result.Best(); ok {
		result.BestMethod = best.Method
	}

	c.logger.WithFields(logrus.Fields{
		"train_rows":  result.TrainRows,
		"test_rows":   result.TestRows,
		"methods":     len(result.Records),
		"best_method": result.BestMethod.String(),
	}).Debug("Fit comparison completed")

	return result, nil
}

// ResidualizedSplit exposes the standardized and residualized training and
// test designs used by the residualized fit.
type ResidualizedSplit struct {
	BaseChannel       string
	Scaler            models.Scaler
	Train             [][]float64
	TrainResidualized [][]float64
	Test              [][]float64
	TestResidualized  [][]float64
}

// ResidualizedDesign standardizes the temporal split and residualizes every
// non-base channel against the base channel, learning the regressions on train.
func (c *FitComparator) ResidualizedDesign(ds *models.MarketingDataset, trainFraction float64, baseChannel string) (*ResidualizedSplit, error) {
	sp, err := c.split(ds, trainFraction)
	if err != nil {
		return nil, err
	}
	base, err := resolveBaseChannel(ds, baseChannel)
	if err != nil {
		return nil, err
	}
	transform := residualizeAgainst(sp.xTrain, ds.ChannelIndex(base))
	return &ResidualizedSplit{
		BaseChannel:       base,
		Scaler:            sp.scaler,
		Train:             sp.xTrain,
		TrainResidualized: transform(sp.xTrain),
		Test:              sp.xTest,
		TestResidualized:  transform(sp.xTest),
	}, nil
}
