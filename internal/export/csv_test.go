package export

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/irfndi/mmm-collinearity/internal/models"
	"github.com/irfndi/mmm-collinearity/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() *models.MarketingDataset {
	return &models.MarketingDataset{
		Periods:     []int{1, 2, 3},
		Channels:    []string{"TV", "Digital"},
		Spend:       [][]float64{{50.12345, 0}, {61.005, 12.994}, {0.004, 7.5}},
		OutcomeName: "Sales",
		Outcome:     []float64{812.4, 950.5, 1001.49},
	}
}

func TestWriteCSV_Format(t *testing.T) {
	data, err := MarshalCSV(sampleDataset())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "TV,Digital,Sales", lines[0])
	assert.Equal(t, "50.12,0.00,812", lines[1])
	assert.Equal(t, "61.01,12.99,951", lines[2])
	assert.Equal(t, "0.00,7.50,1001", lines[3])
}

func TestWriteCSV_DoesNotModifyDataset(t *testing.T) {
	ds := sampleDataset()
	before := ds.Fingerprint()

	_, err := MarshalCSV(ds)
	require.NoError(t, err)
	assert.Equal(t, before, ds.Fingerprint())
}

func TestReadCSV_RoundTrip(t *testing.T) {
	ds := sampleDataset()
	data, err := MarshalCSV(ds)
	require.NoError(t, err)

	decoded, err := ReadCSV(bytes.NewReader(data))
	require.NoError(t, err)

	expected := Rounded(ds)
	assert.Equal(t, expected.Channels, decoded.Channels)
	assert.Equal(t, expected.OutcomeName, decoded.OutcomeName)
	assert.Equal(t, expected.Spend, decoded.Spend)
	assert.Equal(t, expected.Outcome, decoded.Outcome)
	assert.Equal(t, []int{1, 2, 3}, decoded.Periods)

	again, err := MarshalCSV(decoded)
	require.NoError(t, err)
	assert.Equal(t, data, again, "a second round trip must be stable")
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"outcome only", "Sales\n1\n"},
		{"not a number", "TV,Sales\nabc,1\n"},
		{"negative spend", "TV,Sales\n-1,1\n"},
		{"duplicate channel", "TV,TV,Sales\n1,2,3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.True(t, utils.IsConfigurationError(err), err.Error())
		})
	}

	_, err := ReadCSV(strings.NewReader("TV,Sales\n1,2,3\n"))
	assert.Error(t, err, "ragged rows are rejected by the csv reader")
}

func TestCompressRoundTrip(t *testing.T) {
	data, err := MarshalCSV(sampleDataset())
	require.NoError(t, err)

	compressed := Compress(data)
	assert.NotEqual(t, data, compressed)

	decompressed, err := Decompress(compressed)
	require.NoError(t, err)
	assert.Equal(t, data, decompressed)

	empty, err := Decompress(nil)
	require.NoError(t, err)
	assert.Nil(t, empty)

	_, err = Decompress([]byte("not zstd"))
	assert.Error(t, err)
}

func TestWriteFile_ReadFile(t *testing.T) {
	dir := t.TempDir()
	ds := sampleDataset()

	for _, name := range []string{"data.csv", "data.csv.zst"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, WriteFile(path, ds))

			loaded, err := ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, Rounded(ds).Fingerprint(), loaded.Fingerprint())
		})
	}

	_, err := ReadFile(filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
}
