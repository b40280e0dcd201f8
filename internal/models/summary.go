package models

// ColumnSummary holds descriptive statistics for one dataset column.
type ColumnSummary struct {
	Name   string  `json:"name"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Total  float64 `json:"total"`
}

// DatasetSummary describes a dataset without fitting anything.
type DatasetSummary struct {
	Rows          int                `json:"rows"`
	Fingerprint   string             `json:"fingerprint"`
	Channels      []ColumnSummary    `json:"channels"`
	Outcome       ColumnSummary      `json:"outcome"`
	SpendShare    map[string]float64 `json:"spend_share"`
	MovingAverage []float64          `json:"moving_average"` // aligned to the last len() rows
	Window        int                `json:"window"`
}
