package models

// SimulationParams configure the two-channel correlation simulator.
type SimulationParams struct {
	Correlation float64 `json:"correlation"`
	SampleSize  int     `json:"sample_size"`
	NoiseStd    float64 `json:"noise_std"`
	TrueCoef1   float64 `json:"true_coef1"`
	TrueCoef2   float64 `json:"true_coef2"`
	Seed        int64   `json:"seed"`
}

// DefaultSimulationParams returns the dashboard defaults.
func DefaultSimulationParams() SimulationParams {
	return SimulationParams{
		Correlation: 0.8,
		SampleSize:  100,
		NoiseStd:    1.0,
		TrueCoef1:   3.0,
		TrueCoef2:   2.0,
		Seed:        42,
	}
}

// ResidualSummary describes in-sample prediction errors.
type ResidualSummary struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// PairSimulation is the outcome of fitting OLS to two correlated channels.
type PairSimulation struct {
	Params            SimulationParams `json:"params"`
	SampleCorrelation float64          `json:"sample_correlation"`
	TheoreticalVIF    Metric           `json:"theoretical_vif"`
	Intercept         float64          `json:"intercept"`
	EstimatedCoef1    float64          `json:"estimated_coef1"`
	EstimatedCoef2    float64          `json:"estimated_coef2"`
	Coef1ErrorPct     float64          `json:"coef1_error_pct"`
	Coef2ErrorPct     float64          `json:"coef2_error_pct"`
	RSquared          float64          `json:"r_squared"`
	Residuals         ResidualSummary  `json:"residuals"`
	CorrelationLevel  string           `json:"correlation_level"`
	ContributionMeans [2]float64       `json:"contribution_means"`
}
