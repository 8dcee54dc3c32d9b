package source

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/land-ingest/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadRows(t *testing.T) {
	rows, label, err := ReadRows(filepath.Join("testdata", "parcels.csv"))
	require.NoError(t, err)
	assert.Equal(t, "csv", label)
	require.Len(t, rows, 2)

	assert.Equal(t, models.Row{
		"APN":          "555-111",
		"Owner Name":   "Harbor Estates",
		"Site Address": "123 Harbor Rd",
		"City":         "Panama City",
		"State":        "FL",
		"Zip":          "32401",
		"County":       "Bay",
		"Phone":        "(555) 222-3333",
		"DNC":          "yes",
	}, rows[0])
	assert.NotContains(t, rows[1], "APN")
	assert.Equal(t, "Lone Buyer", rows[1]["Owner Name"])
}

func TestReadRows_UnsupportedFormat(t *testing.T) {
	testCases := []struct {
		name string
		path string
	}{
		{name: "xlsx", path: "parcels.xlsx"},
		{name: "legacy excel", path: "PARCELS.XLS"},
		{name: "no extension", path: "parcels"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := ReadRows(tc.path)
			assert.ErrorIs(t, err, ErrUnsupportedFormat)
		})
	}
}

func TestReadCSV(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  []models.Row
	}{
		{
			name:  "empty input",
			input: "",
			want:  []models.Row{},
		},
		{
			name:  "header only",
			input: "APN,Owner\n",
			want:  []models.Row{},
		},
		{
			name:  "byte order mark and short rows",
			input: "\ufeffAPN,Owner,City\n12, Jane ,\n34\n",
			want: []models.Row{
				{"APN": "12", "Owner": "Jane"},
				{"APN": "34"},
			},
		},
		{
			name:  "extra cells beyond the header are ignored",
			input: "APN\n12,overflow\n",
			want:  []models.Row{{"APN": "12"}},
		},
		{
			name:  "quoted comma",
			input: "Owner,City\n\"Doe, Jane\",Tampa\n",
			want:  []models.Row{{"Owner": "Doe, Jane", "City": "Tampa"}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rows, err := ReadCSV(strings.NewReader(tc.input))
			require.NoError(t, err)
			assert.Equal(t, tc.want, rows)
		})
	}
}

func TestReadRecords(t *testing.T) {
	records, err := ReadRecords(filepath.Join("testdata", "existing.json"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "555111", records[0].APN)
	assert.Equal(t, []models.Entry{{"type": "Note", "note": "called twice"}}, records[0].Notes)

	records, err = ReadRecords("")
	require.NoError(t, err)
	assert.Nil(t, records)

	_, err = ReadRecords(filepath.Join("testdata", "parcels.csv"))
	assert.Error(t, err)
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, WriteJSON(path, models.BatchSummary{Processed: 2, Merged: 1}))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var got models.BatchSummary
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, models.BatchSummary{Processed: 2, Merged: 1}, got)
}

func TestWriteJSON_Errors(t *testing.T) {
	testCases := []struct {
		name  string
		path  func(t *testing.T) string
		value any
	}{
		{
			name:  "missing directory",
			path:  func(t *testing.T) string { return filepath.Join(t.TempDir(), "missing", "out.json") },
			value: models.BatchSummary{},
		},
		{
			name:  "unencodable value",
			path:  func(t *testing.T) string { return filepath.Join(t.TempDir(), "out.json") },
			value: map[string]any{"bad": make(chan int)},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, WriteJSON(tc.path(t), tc.value))
		})
	}
}

type failingCloser struct {
	bytes.Buffer
	closed bool
}

func (f *failingCloser) Close() error {
	f.closed = true
	return errors.New("disk quota exceeded")
}

func TestWriteJSON_ReportsCloseError(t *testing.T) {
	out := &failingCloser{}
	orig := createFile
	createFile = func(string) (io.WriteCloser, error) { return out, nil }
	t.Cleanup(func() { createFile = orig })

	err := WriteJSON("result.json", models.BatchSummary{Processed: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "close result.json")
	assert.True(t, out.closed)
	assert.Contains(t, out.String(), `"processed": 1`)
}
