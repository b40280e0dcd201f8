package models

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
)

// DefaultOutcomeName is the outcome column used by generated datasets.
const DefaultOutcomeName = "Sales"

// MarketingDataset is a weekly table of non-negative channel spend and one
// outcome column. Rows are in chronological order. Services treat it as
// read-only; use Clone before modifying a copy.
type MarketingDataset struct {
	Periods     []int       `json:"periods"`  // 1-based week numbers
	Channels    []string    `json:"channels"` // column order of Spend
	Spend       [][]float64 `json:"spend"`    // rows x channels
	OutcomeName string      `json:"outcome_name"`
	Outcome     []float64   `json:"outcome"`
	Scenario    string      `json:"scenario,omitempty"`
	Seed        int64       `json:"seed,omitempty"`
}

// NumRows returns the number of periods in the dataset.
func (d *MarketingDataset) NumRows() int {
	return len(d.Outcome)
}

// NumChannels returns the number of channel columns.
func (d *MarketingDataset) NumChannels() int {
	return len(d.Channels)
}

// ChannelIndex returns the column index of a channel or -1 if unknown.
func (d *MarketingDataset) ChannelIndex(name string) int {
	for i, ch := range d.Channels {
		if ch == name {
			return i
		}
	}
	return -1
}

// Column returns a copy of the spend series for channel column i.
func (d *MarketingDataset) Column(i int) []float64 {
	out := make([]float64, len(d.Spend))
	for r, row := range d.Spend {
		out[r] = row[i]
	}
	return out
}

// Row returns the spend values of row r. The slice is shared with the dataset.
func (d *MarketingDataset) Row(r int) []float64 {
	return d.Spend[r]
}

// Validate checks the structural invariants of the dataset.
func (d *MarketingDataset) Validate() error {
	if len(d.Channels) == 0 {
		return fmt.Errorf("dataset has no channels")
	}
	if len(d.Spend) != len(d.Outcome) {
		return fmt.Errorf("spend has %d rows but outcome has %d", len(d.Spend), len(d.Outcome))
	}
	if len(d.Periods) != 0 && len(d.Periods) != len(d.Outcome) {
		return fmt.Errorf("periods has %d entries but outcome has %d", len(d.Periods), len(d.Outcome))
	}
	seen := make(map[string]struct{}, len(d.Channels))
	for _, ch := range d.Channels {
		if ch == "" {
			return fmt.Errorf("empty channel name")
		}
		if ch == d.OutcomeName {
			return fmt.Errorf("channel %q collides with the outcome column", ch)
		}
		if _, dup := seen[ch]; dup {
			return fmt.Errorf("duplicate channel %q", ch)
		}
		seen[ch] = struct{}{}
	}
	for r, row := range d.Spend {
		if len(row) != len(d.Channels) {
			return fmt.Errorf("row %d has %d values, expected %d", r, len(row), len(d.Channels))
		}
		for c, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("row %d channel %s is not finite", r, d.Channels[c])
			}
			if v < 0 {
				return fmt.Errorf("row %d channel %s has negative spend %f", r, d.Channels[c], v)
			}
		}
		if math.IsNaN(d.Outcome[r]) || math.IsInf(d.Outcome[r], 0) {
			return fmt.Errorf("row %d outcome is not finite", r)
		}
	}
	return nil
}

// Clone returns a deep copy of the dataset.
func (d *MarketingDataset) Clone() *MarketingDataset {
	out := &MarketingDataset{
		Periods:     append([]int(nil), d.Periods...),
		Channels:    append([]string(nil), d.Channels...),
		Spend:       make([][]float64, len(d.Spend)),
		OutcomeName: d.OutcomeName,
		Outcome:     append([]float64(nil), d.Outcome...),
		Scenario:    d.Scenario,
		Seed:        d.Seed,
	}
	for i, row := range d.Spend {
		out.Spend[i] = append([]float64(nil), row...)
	}
	return out
}

// Fingerprint hashes column names and the exact bit patterns of every value.
// Two datasets share a fingerprint only if they are value-for-value identical.
func (d *MarketingDataset) Fingerprint() uint64 {
	h := xxhash.New()
	var buf [8]byte
	for _, ch := range d.Channels {
		_, _ = h.WriteString(ch)
		_, _ = h.Write([]byte{0})
	}
	_, _ = h.WriteString(d.OutcomeName)
	for r, row := range d.Spend {
		for _, v := range row {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
			_, _ = h.Write(buf[:])
		}
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(d.Outcome[r]))
		_, _ = h.Write(buf[:])
	}
	return h.Sum64()
}
