package models

import (
	"encoding/json"
	"math"
	"strconv"
)

// Metric is a float64 that survives JSON encoding when it is infinite.
// +Inf and -Inf are written as the strings "Infinity" and "-Infinity";
// NaN is written as null.
type Metric float64

// Float returns the underlying value.
func (m Metric) Float() float64 {
	return float64(m)
}

// IsInf reports whether the metric is positive infinity.
func (m Metric) IsInf() bool {
	return math.IsInf(float64(m), 1)
}

// MarshalJSON implements json.Marshaler.
func (m Metric) MarshalJSON() ([]byte, error) {
	v := float64(m)
	switch {
	case math.IsNaN(v):
		return []byte("null"), nil
	case math.IsInf(v, 1):
		return []byte(`"Infinity"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Infinity"`), nil
	}
	return strconv.AppendFloat(nil, v, 'g', -1, 64), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Metric) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = Metric(math.NaN())
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		switch s {
		case "Infinity", "+Infinity", "Inf", "+Inf":
			*m = Metric(math.Inf(1))
			return nil
		case "-Infinity", "-Inf":
			*m = Metric(math.Inf(-1))
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*m = Metric(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*m = Metric(v)
	return nil
}
