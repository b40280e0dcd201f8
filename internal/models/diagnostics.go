package models

// Severity classifies a variance inflation factor.
type Severity string

const (
	SeverityLow       Severity = "low"
	SeverityModerate  Severity = "moderate"
	SeverityHigh      Severity = "high"
	SeveritySevere    Severity = "severe"
	// SeverityUndefined marks a channel whose spend never varies.
	SeverityUndefined Severity = "undefined"
)

// CorrelatedPair is a channel pair whose absolute correlation exceeds the
// configured threshold.
type CorrelatedPair struct {
	ChannelA    string  `json:"channel_a"`
	ChannelB    string  `json:"channel_b"`
	Correlation float64 `json:"correlation"`
}

// ChannelDiagnostic holds the per-channel collinearity figures.
type ChannelDiagnostic struct {
	Channel        string    `json:"channel"`
	CorrelationRow []float64 `json:"correlation_row"`
	VIF            Metric    `json:"vif"` // +Inf under perfect collinearity, null for constant spend
	Severity       Severity  `json:"severity"`
	// ZeroVariance is set for constant channels, which carry no information
	// and are left out of the VIF regressions and the condition number.
	ZeroVariance   bool      `json:"zero_variance,omitempty"`
}

// DiagnosticResult is derived entirely from one dataset.
type DiagnosticResult struct {
	Channels           []string            `json:"channels"`
	Correlation        [][]float64         `json:"correlation"`
	Threshold          float64             `json:"threshold"`
	ProblematicPairs   []CorrelatedPair    `json:"problematic_pairs"`
	ChannelDiagnostics []ChannelDiagnostic `json:"channel_diagnostics"`
	MaxVIF             Metric              `json:"max_vif"`
	ConditionNumber    Metric              `json:"condition_number"`
	Recommendation     string              `json:"recommendation"`
}

// ByChannel returns the diagnostics keyed by channel name.
func (r *DiagnosticResult) ByChannel() map[string]ChannelDiagnostic {
	out := make(map[string]ChannelDiagnostic, len(r.ChannelDiagnostics))
	for _, cd := range r.ChannelDiagnostics {
		out[cd.Channel] = cd
	}
	return out
}

// Channel returns the diagnostic for a single channel.
func (r *DiagnosticResult) Channel(name string) (ChannelDiagnostic, bool) {
	for _, cd := range r.ChannelDiagnostics {
		if cd.Channel == name {
			return cd, true
		}
	}
	return ChannelDiagnostic{}, false
}
