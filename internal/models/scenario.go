package models

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Scenario selects one of the built-in channel correlation structures.
type Scenario int

const (
	// ScenarioLow has pairwise correlations between 0.1 and 0.35.
	ScenarioLow Scenario = iota
	// ScenarioMedium has pairwise correlations between 0.3 and 0.65.
	ScenarioMedium
	// ScenarioHigh has pairwise correlations between 0.6 and 0.85.
	ScenarioHigh
	// ScenarioExtreme has pairwise correlations between 0.85 and 0.95.
	// The matrix is not positive definite.
	ScenarioExtreme
)

var scenarioNames = map[Scenario]string{
	ScenarioLow:     "low",
	ScenarioMedium:  "medium",
	ScenarioHigh:    "high",
	ScenarioExtreme: "extreme",
}

var scenarioFromString = map[string]Scenario{
	"low":     ScenarioLow,
	"medium":  ScenarioMedium,
	"high":    ScenarioHigh,
	"extreme": ScenarioExtreme,
}

// String returns the canonical lowercase name of the scenario.
func (s Scenario) String() string {
	if name, ok := scenarioNames[s]; ok {
		return name
	}
	return "unknown"
}

// DisplayName returns the title-cased scenario name.
func (s Scenario) DisplayName() string {
	return cases.Title(language.English).String(s.String())
}

// ParseScenario maps a case-insensitive name to a Scenario.
func ParseScenario(name string) (Scenario, error) {
	if s, ok := scenarioFromString[strings.ToLower(strings.TrimSpace(name))]; ok {
		return s, nil
	}
	return Scenario(-1), fmt.Errorf("unknown correlation scenario %q", name)
}

// AllScenarios returns the scenarios in increasing order of correlation.
func AllScenarios() []Scenario {
	return []Scenario{ScenarioLow, ScenarioMedium, ScenarioHigh, ScenarioExtreme}
}

// DefaultChannels are the channel columns used by the built-in scenarios.
var DefaultChannels = []string{"TV", "Digital", "Social", "Search", "Email", "Radio"}

// DefaultMeanSpend is the average weekly spend per default channel.
var DefaultMeanSpend = []float64{50, 40, 30, 25, 20, 15}

// GroundTruthCoefficients is the sales lift per unit of spend per default channel.
var GroundTruthCoefficients = []float64{2.5, 3.2, 2.8, 4.1, 1.5, 1.8}

// CovarianceScenario is a named correlation matrix with its mean spend vector.
type CovarianceScenario struct {
	Scenario    Scenario    `json:"scenario"`
	Channels    []string    `json:"channels"`
	Correlation [][]float64 `json:"correlation"`
	MeanSpend   []float64   `json:"mean_spend"`
}

// Dim returns the number of channels in the scenario.
func (c CovarianceScenario) Dim() int {
	return len(c.Channels)
}

var scenarioMatrices = map[Scenario][][]float64{
	ScenarioLow: {
		{1.0, 0.3, 0.2, 0.1, 0.15, 0.25},
		{0.3, 1.0, 0.25, 0.2, 0.1, 0.2},
		{0.2, 0.25, 1.0, 0.15, 0.3, 0.1},
		{0.1, 0.2, 0.15, 1.0, 0.35, 0.2},
		{0.15, 0.1, 0.3, 0.35, 1.0, 0.25},
		{0.25, 0.2, 0.1, 0.2, 0.25, 1.0},
	},
	ScenarioMedium: {
		{1.0, 0.6, 0.5, 0.3, 0.4, 0.45},
		{0.6, 1.0, 0.55, 0.4, 0.35, 0.5},
		{0.5, 0.55, 1.0, 0.45, 0.6, 0.4},
		{0.3, 0.4, 0.45, 1.0, 0.65, 0.5},
		{0.4, 0.35, 0.6, 0.65, 1.0, 0.55},
		{0.45, 0.5, 0.4, 0.5, 0.55, 1.0},
	},
	ScenarioHigh: {
		{1.0, 0.85, 0.75, 0.6, 0.7, 0.65},
		{0.85, 1.0, 0.8, 0.65, 0.6, 0.7},
		{0.75, 0.8, 1.0, 0.7, 0.85, 0.65},
		{0.6, 0.65, 0.7, 1.0, 0.82, 0.75},
		{0.7, 0.6, 0.85, 0.82, 1.0, 0.8},
		{0.65, 0.7, 0.65, 0.75, 0.8, 1.0},
	},
	ScenarioExtreme: {
		{1.0, 0.95, 0.92, 0.88, 0.9, 0.85},
		{0.95, 1.0, 0.94, 0.89, 0.87, 0.9},
		{0.92, 0.94, 1.0, 0.91, 0.95, 0.88},
		{0.88, 0.89, 0.91, 1.0, 0.93, 0.92},
		{0.9, 0.87, 0.95, 0.93, 1.0, 0.94},
		{0.85, 0.9, 0.88, 0.92, 0.94, 1.0},
	},
}

// LookupScenario returns a fresh copy of the built-in covariance scenario.
func LookupScenario(s Scenario) (CovarianceScenario, error) {
	matrix, ok := scenarioMatrices[s]
	if !ok {
		return CovarianceScenario{}, fmt.Errorf("unknown correlation scenario %d", int(s))
	}
	corr := make([][]float64, len(matrix))
	for i, row := range matrix {
		corr[i] = append([]float64(nil), row...)
	}
	return CovarianceScenario{
		Scenario:    s,
		Channels:    append([]string(nil), DefaultChannels...),
		Correlation: corr,
		MeanSpend:   append([]float64(nil), DefaultMeanSpend...),
	}, nil
}
