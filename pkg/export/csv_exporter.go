package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Dataset is a column-ordered table handed to the exporters. Rows index
// their cells by header name so both renderers share one shape.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// CSVExporter encodes datasets as CSV.
type CSVExporter struct{}

func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render encodes the dataset with the header row first. Meeting exports put
// RFC3339 instants and meet links in cells; csv quoting handles both as is.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("dataset has no columns")
	}
	records := make([][]string, 0, len(data.Rows)+1)
	records = append(records, data.Headers)
	for _, row := range data.Rows {
		record := make([]string, len(data.Headers))
		for i, header := range data.Headers {
			record[i] = row[header]
		}
		records = append(records, record)
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.WriteAll(records); err != nil {
		return nil, fmt.Errorf("encode csv: %w", err)
	}
	return buf.Bytes(), nil
}
