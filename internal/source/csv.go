package source

import (
	"calheat/internal/models"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParseCSV reads records from CSV. The header row names the fields and cells
// are trimmed. Cells of the listed numeric columns that parse as numbers
// become numeric values; everything else stays a string so dates and IDs are
// never reinterpreted. Malformed rows are skipped and counted.
func ParseCSV(r io.Reader, numericColumns []string) ([]models.Record, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read CSV headers: %w", err)
	}

	numeric := make(map[string]bool, len(numericColumns))
	for _, c := range numericColumns {
		numeric[c] = true
	}
	keys := make([]string, len(headers))
	for i, h := range headers {
		keys[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	var records []models.Record
	skipped := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil || len(row) > len(keys) {
			skipped++
			continue
		}

		rec := make(models.Record, len(row))
		for i, val := range row {
			key := keys[i]
			if key == "" {
				continue
			}
			val = strings.TrimSpace(val)
			if val == "" {
				continue
			}
			if numeric[key] {
				if f, err := strconv.ParseFloat(val, 64); err == nil {
					rec[key] = models.Number(f)
					continue
				}
			}
			rec[key] = models.String(val)
		}
		records = append(records, rec)
	}

	return records, skipped, nil
}
