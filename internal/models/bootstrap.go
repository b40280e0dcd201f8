package models

// Stability labels the coefficient of variation of a bootstrap distribution.
type Stability string

const (
	StabilityStable   Stability = "stable"
	StabilityModerate Stability = "moderate"
	StabilityUnstable Stability = "unstable"
)

// CoefficientSummary describes the spread of one channel's bootstrap coefficients.
// CV is 100*StdDev/|Mean|. When Mean is exactly zero CV is 0 and ZeroMean is set.
type CoefficientSummary struct {
	Mean      float64   `json:"mean"`
	StdDev    float64   `json:"std_dev"`
	Min       float64   `json:"min"`
	Max       float64   `json:"max"`
	CV        float64   `json:"cv"`
	ZeroMean  bool      `json:"zero_mean"`
	Stability Stability `json:"stability"`
}

// CoefficientDistribution is the ordered sequence of fitted coefficients for a
// channel, one value per bootstrap iteration.
type CoefficientDistribution struct {
	Channel string             `json:"channel"`
	Values  []float64          `json:"values"`
	Summary CoefficientSummary `json:"summary"`
}

// SignFlips reports whether the distribution contains both signs.
func (d *CoefficientDistribution) SignFlips() bool {
	return d.Summary.Min < 0 && d.Summary.Max > 0
}

// BootstrapResult holds one distribution per channel, in channel order.
type BootstrapResult struct {
	Iterations    int                       `json:"iterations"`
	Seed          int64                     `json:"seed"`
	Method        FitSpec                   `json:"method"`
	Distributions []CoefficientDistribution `json:"distributions"`
}

// Distribution returns the distribution of a channel.
func (r *BootstrapResult) Distribution(channel string) (*CoefficientDistribution, bool) {
	for i := range r.Distributions {
		if r.Distributions[i].Channel == channel {
			return &r.Distributions[i], true
		}
	}
	return nil, false
}

// MaxCV returns the largest coefficient of variation across channels.
func (r *BootstrapResult) MaxCV() float64 {
	maxCV := 0.0
	for _, d := range r.Distributions {
		if d.Summary.CV > maxCV {
			maxCV = d.Summary.CV
		}
	}
	return maxCV
}
