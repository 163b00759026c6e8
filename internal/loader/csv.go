// Package loader reads tabular source files into rows. The header row
// declares column names; every cell value is text.
package loader

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/kailas-cloud/embedload/internal/domain"
)

// CSV loads local comma-separated files.
type CSV struct{}

// NewCSV creates a CSV loader.
func NewCSV() *CSV {
	return &CSV{}
}

// Load reads the file at path and returns its rows plus the header column
// names in file order.
func (l *CSV) Load(path string) ([]domain.Row, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil, fmt.Errorf("read %s: empty file: %w", path, domain.ErrDataValidation)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read %s header: %w", path, err)
	}

	var rows []domain.Row
	for line := 2; ; line++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read %s line %d: %w", path, line, err)
		}
		row := make(domain.Row, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			} else {
				row[col] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows, header, nil
}
