package models

import (
	"fmt"
	"strings"
)

// MethodKind identifies a regression variant.
type MethodKind int

const (
	MethodOLS MethodKind = iota
	MethodRidge
	MethodLasso
	MethodElasticNet
	MethodPCR
	MethodResidualized
)

var methodNames = map[MethodKind]string{
	MethodOLS:          "ols",
	MethodRidge:        "ridge",
	MethodLasso:        "lasso",
	MethodElasticNet:   "elastic_net",
	MethodPCR:          "pcr",
	MethodResidualized: "residualized",
}

var methodFromString = map[string]MethodKind{
	"ols":          MethodOLS,
	"ridge":        MethodRidge,
	"lasso":        MethodLasso,
	"elastic_net":  MethodElasticNet,
	"elasticnet":   MethodElasticNet,
	"pcr":          MethodPCR,
	"pca":          MethodPCR,
	"residualized": MethodResidualized,
}

// String returns the wire name of the method.
func (k MethodKind) String() string {
	if name, ok := methodNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseMethodKind maps a case-insensitive name to a MethodKind.
func ParseMethodKind(name string) (MethodKind, error) {
	if k, ok := methodFromString[strings.ToLower(strings.TrimSpace(name))]; ok {
		return k, nil
	}
	return MethodKind(-1), fmt.Errorf("unknown regression method %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (k MethodKind) MarshalText() ([]byte, error) {
	if _, ok := methodNames[k]; !ok {
		return nil, fmt.Errorf("unknown regression method %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *MethodKind) UnmarshalText(text []byte) error {
	parsed, err := ParseMethodKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// FitSpec is a tagged regression variant. Only the fields relevant to Kind
// are read: Alpha for ridge, lasso and elastic net; L1Ratio for elastic net;
// Components for PCR; BaseChannel for residualization.
type FitSpec struct {
	Kind        MethodKind `json:"kind"`
	Alpha       float64    `json:"alpha,omitempty"`
	L1Ratio     float64    `json:"l1_ratio,omitempty"`
	Components  int        `json:"components,omitempty"`
	BaseChannel string     `json:"base_channel,omitempty"`
}

// Label returns a human readable method name.
func (s FitSpec) Label() string {
	switch s.Kind {
	case MethodOLS:
		return "OLS (No Regularization)"
	case MethodRidge:
		return fmt.Sprintf("Ridge (L2, alpha=%g)", s.Alpha)
	case MethodLasso:
		return fmt.Sprintf("Lasso (L1, alpha=%g)", s.Alpha)
	case MethodElasticNet:
		return fmt.Sprintf("Elastic Net (alpha=%g, l1_ratio=%g)", s.Alpha, s.L1Ratio)
	case MethodPCR:
		return fmt.Sprintf("PCA (%d components)", s.Components)
	case MethodResidualized:
		return fmt.Sprintf("Residualized (base: %s)", s.BaseChannel)
	default:
		return "Unknown"
	}
}

// MethodParams are the tunables of a full method comparison.
// ResidualizationBaseChannel must name one of the dataset's channels; when
// empty the first channel is used as the base.
type MethodParams struct {
	RidgeAlpha                 float64 `json:"ridge_alpha" mapstructure:"ridge_alpha"`
	LassoAlpha                 float64 `json:"lasso_alpha" mapstructure:"lasso_alpha"`
	ElasticNetRatio            float64 `json:"elastic_net_ratio" mapstructure:"elastic_net_ratio"`
	PCAComponents              int     `json:"pca_components" mapstructure:"pca_components"`
	ResidualizationBaseChannel string  `json:"residualization_base_channel" mapstructure:"residualization_base_channel"`
}

// DefaultMethodParams returns the dashboard defaults. The base channel is left
// empty, which selects the first channel of the dataset.
func DefaultMethodParams() MethodParams {
	return MethodParams{
		RidgeAlpha:      1.0,
		LassoAlpha:      0.1,
		ElasticNetRatio: 0.5,
		PCAComponents:   3,
	}
}

// Specs expands the parameters into the ordered list of fits to compare.
// Elastic net shares the lasso alpha.
func (p MethodParams) Specs(baseChannel string) []FitSpec {
	return []FitSpec{
		{Kind: MethodOLS},
		{Kind: MethodRidge, Alpha: p.RidgeAlpha},
		{Kind: MethodLasso, Alpha: p.LassoAlpha},
		{Kind: MethodElasticNet, Alpha: p.LassoAlpha, L1Ratio: p.ElasticNetRatio},
		{Kind: MethodPCR, Components: p.PCAComponents},
		{Kind: MethodResidualized, BaseChannel: baseChannel},
	}
}

// FitComparisonRecord is the uniform output of every regression variant.
// Coefficients are expressed on the standardized channel scale.
type FitComparisonRecord struct {
	Method            MethodKind         `json:"method"`
	Label             string             `json:"label"`
	TrainR2           float64            `json:"train_r2"`
	TestR2            float64            `json:"test_r2"`
	OverfitGap        float64            `json:"overfit_gap"`
	Coefficients      map[string]float64 `json:"coefficients"`
	Intercept         float64            `json:"intercept"`
	NonZero           int                `json:"non_zero"`
	ComponentLoadings [][]float64        `json:"component_loadings,omitempty"` // components x channels
	ExplainedVariance []float64          `json:"explained_variance_ratio,omitempty"`
}

// LowExplainedVariance is the total PCR variance ratio below which the kept
// components are considered to drop too much information.
const LowExplainedVariance = 0.8

// TotalExplainedVariance sums the variance ratios of the kept components.
func (r FitComparisonRecord) TotalExplainedVariance() float64 {
	total := 0.0
	for _, v := range r.ExplainedVariance {
		total += v
	}
	return total
}

// Scaler stores the per-channel centering and scaling learned on a training split.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// ComparisonResult is the ordered comparison table plus the split it was fitted on.
type ComparisonResult struct {
	Channels  []string              `json:"channels"`
	TrainRows int                   `json:"train_rows"`
	TestRows  int                   `json:"test_rows"`
	Scaler    Scaler                `json:"scaler"`
	Records   []FitComparisonRecord `json:"records"`
	// BestMethod is the method with the highest test R².
	BestMethod MethodKind `json:"best_method"`
}

// Best returns the record with the highest test R². Ties keep the earlier
// method in comparison order.
func (r *ComparisonResult) Best() (FitComparisonRecord, bool) {
	if len(r.Records) == 0 {
		return FitComparisonRecord{}, false
	}
	best := r.Records[0]
	for _, rec := range r.Records[1:] {
		if rec.TestR2 > best.TestR2 {
			best = rec
		}
	}
	return best, true
}

// Record returns the record for a method kind.
func (r *ComparisonResult) Record(kind MethodKind) (FitComparisonRecord, bool) {
	for _, rec := range r.Records {
		if rec.Method == kind {
			return rec, true
		}
	}
	return FitComparisonRecord{}, false
}
