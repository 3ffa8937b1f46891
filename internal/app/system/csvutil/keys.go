// internal/app/system/csvutil/keys.go
package csvutil

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrTooManyRows is returned when a key file exceeds MaxRows.
var ErrTooManyRows = fmt.Errorf("csv has more than %d rows", MaxRows)

// ReadKeys reads row keys for a batch from r.
//
// Each line holds one value per key field, in keyFields order; the values
// are joined with "|" the same way records build their keys. A first line
// whose cells equal the field names (case-insensitive) is treated as a
// header. Blank lines and duplicate keys are skipped, and a UTF-8 BOM is
// tolerated.
func ReadKeys(r io.Reader, keyFields []string) ([]string, error) {
	if len(keyFields) == 0 {
		return nil, errors.New("no key fields")
	}
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var keys []string
	seen := make(map[string]bool)
	line := 0
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		if line == 1 && len(rec) > 0 {
			rec[0] = strings.TrimPrefix(rec[0], "\ufeff")
			if isHeader(rec, keyFields) {
				continue
			}
		}
		if blank(rec) {
			continue
		}
		if len(rec) < len(keyFields) {
			return nil, fmt.Errorf("line %d: want %d values (%s), got %d",
				line, len(keyFields), strings.Join(keyFields, ", "), len(rec))
		}
		parts := make([]string, len(keyFields))
		for i := range keyFields {
			parts[i] = strings.TrimSpace(rec[i])
		}
		key := strings.Join(parts, "|")
		if seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
		if len(keys) > MaxRows {
			return nil, ErrTooManyRows
		}
	}
	return keys, nil
}

func isHeader(rec, keyFields []string) bool {
	if len(rec) < len(keyFields) {
		return false
	}
	for i, f := range keyFields {
		if !strings.EqualFold(strings.TrimSpace(rec[i]), f) {
			return false
		}
	}
	return true
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
