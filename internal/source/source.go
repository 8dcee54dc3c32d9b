// Package source reads raw rows and existing canonical records from files
// for the batch worker.
package source

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/land-ingest/app/models"
)

// ErrUnsupportedFormat input file type has no row reader
var ErrUnsupportedFormat = errors.New("unsupported input format")

var createFile = func(path string) (io.WriteCloser, error) { return os.Create(path) }

// ReadRows reads every data row of a CSV file. The label returned is the
// lowercase file extension without the dot, used as the provenance source.
func ReadRows(path string) ([]models.Row, string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch ext {
	case "csv":
	case "xlsx", "xls":
		return nil, ext, fmt.Errorf("%w: %s (export the sheet as CSV)", ErrUnsupportedFormat, path)
	default:
		return nil, ext, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, ext, err
	}
	defer f.Close()

	rows, err := ReadCSV(f)
	if err != nil {
		return nil, ext, fmt.Errorf("read %s: %w", path, err)
	}
	return rows, ext, nil
}

// ReadCSV decodes a header row followed by data rows. Cells are trimmed,
// empty cells are omitted and fully empty lines are skipped. A UTF-8 BOM on
// the header is ignored.
func ReadCSV(r io.Reader) ([]models.Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return []models.Row{}, nil
	}
	if err != nil {
		return nil, err
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	rows := []models.Row{}
	for {
		cells, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		row := models.Row{}
		for i, cell := range cells {
			if i >= len(header) {
				break
			}
			name := strings.TrimSpace(header[i])
			cell = strings.TrimSpace(cell)
			if name == "" || cell == "" {
				continue
			}
			row[name] = cell
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// ReadRecords loads existing canonical records from a JSON array file.
// An empty path yields no records.
func ReadRecords(path string) ([]*models.CanonicalRecord, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []*models.CanonicalRecord
	if err := json.Unmarshal(b, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return records, nil
}

// WriteJSON writes v as indented JSON to path, or to stdout when path is
// empty or "-". A failed close of the output file is reported.
func WriteJSON(path string, v any) (err error) {
	var w io.Writer = os.Stdout
	if path != "" && path != "-" {
		f, openErr := createFile(path)
		if openErr != nil {
			return openErr
		}
		defer func() {
			if cerr := f.Close(); err == nil && cerr != nil {
				err = fmt.Errorf("close %s: %w", path, cerr)
			}
		}()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
