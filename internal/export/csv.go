// Package export writes marketing datasets as CSV and reads them back.
package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/irfndi/mmm-collinearity/internal/models"
	"github.com/irfndi/mmm-collinearity/internal/utils"
	"github.com/klauspost/compress/zstd"
	"github.com/shopspring/decimal"
)

const (
	// SpendPlaces is the number of decimals written for spend columns.
	SpendPlaces = 2
	// OutcomePlaces is the number of decimals written for the outcome column.
	OutcomePlaces = 0

	// ZstdExtension marks compressed exports.
	ZstdExtension = ".zst"
)

var zstdEncoderPool = sync.Pool{
	New: func() any {
		encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			panic(fmt.Sprintf("failed to create zstd encoder for pool: %v", err))
		}
		return encoder
	},
}

var zstdDecoderPool = sync.Pool{
	New: func() any {
		decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			panic(fmt.Sprintf("failed to create zstd decoder for pool: %v", err))
		}
		return decoder
	},
}

func formatValue(v float64, places int32) string {
	return decimal.NewFromFloat(v).Round(places).StringFixed(places)
}

// WriteCSV writes a header of channel names plus the outcome name, then one
// row per period. Spend is rounded to SpendPlaces and the outcome to
// OutcomePlaces; the dataset itself is not modified.
func WriteCSV(w io.Writer, ds *models.MarketingDataset) error {
	if ds == nil {
		return utils.NewConfigurationError("dataset", "dataset is required")
	}
	if err := ds.Validate(); err != nil {
		return utils.NewConfigurationError("dataset", err.Error())
	}

	cw := csv.NewWriter(w)
	header := append(append([]string(nil), ds.Channels...), ds.OutcomeName)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	record := make([]string, len(header))
	for r, row := range ds.Spend {
		for j, v := range row {
			record[j] = formatValue(v, SpendPlaces)
		}
		record[len(row)] = formatValue(ds.Outcome[r], OutcomePlaces)
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row %d: %w", r+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalCSV returns the CSV encoding of a dataset.
func MarshalCSV(ds *models.MarketingDataset) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, ds); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadCSV parses a CSV written by WriteCSV. The last column is the outcome.
func ReadCSV(r io.Reader) (*models.MarketingDataset, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, utils.NewConfigurationError("csv", "empty input")
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	if len(header) < 2 {
		return nil, utils.NewConfigurationErrorf("csv", "need at least one channel and an outcome column, got %d columns", len(header))
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	p := len(header) - 1
	ds := &models.MarketingDataset{
		Channels:    header[:p],
		OutcomeName: header[p],
	}

	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}
		row := make([]float64, p)
		for j := 0; j < p; j++ {
			v, err := parseValue(record[j])
			if err != nil {
				return nil, utils.NewConfigurationErrorf("csv", "line %d column %s: %v", line, header[j], err)
			}
			row[j] = v
		}
		outcome, err := parseValue(record[p])
		if err != nil {
			return nil, utils.NewConfigurationErrorf("csv", "line %d column %s: %v", line, header[p], err)
		}
		ds.Spend = append(ds.Spend, row)
		ds.Outcome = append(ds.Outcome, outcome)
		ds.Periods = append(ds.Periods, line-1)
	}

	if err := ds.Validate(); err != nil {
		return nil, utils.NewConfigurationError("csv", err.Error())
	}
	return ds, nil
}

func parseValue(s string) (float64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}

// Rounded returns the copy of ds that a CSV round trip produces.
func Rounded(ds *models.MarketingDataset) *models.MarketingDataset {
	out := ds.Clone()
	for _, row := range out.Spend {
		for j, v := range row {
			row[j] = decimal.NewFromFloat(v).Round(SpendPlaces).InexactFloat64()
		}
	}
	for i, v := range out.Outcome {
		out.Outcome[i] = decimal.NewFromFloat(v).Round(OutcomePlaces).InexactFloat64()
	}
	return out
}

// Compress frames data with zstd.
func Compress(data []byte) []byte {
	encoder := zstdEncoderPool.Get().(*zstd.Encoder)
	defer zstdEncoderPool.Put(encoder)
	return encoder.EncodeAll(data, nil)
}

// Decompress reverses Compress.
func Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	decoder := zstdDecoderPool.Get().(*zstd.Decoder)
	defer zstdDecoderPool.Put(decoder)

	out, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompression failed: %w", err)
	}
	return out, nil
}

// WriteFile exports ds to path, compressing when path ends in ".zst".
func WriteFile(path string, ds *models.MarketingDataset) error {
	data, err := MarshalCSV(ds)
	if err != nil {
		return err
	}
	if strings.HasSuffix(path, ZstdExtension) {
		data = Compress(data)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ReadFile loads a dataset written by WriteFile.
func ReadFile(path string) (*models.MarketingDataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if strings.HasSuffix(path, ZstdExtension) {
		if data, err = Decompress(data); err != nil {
			return nil, err
		}
	}
	return ReadCSV(bytes.NewReader(data))
}
