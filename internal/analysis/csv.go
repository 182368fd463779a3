// Package analysis orchestrates the scoring pipeline: CSV decoding, feature
// extraction, classification, and report assembly.
package analysis

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/fraudshield/fraudshield/internal/domain"
)

// ErrInvalidCSV marks input errors the caller should report as a bad
// request rather than a server failure.
var ErrInvalidCSV = errors.New("invalid CSV input")

// ParseCSV decodes an uploaded CSV into transactions. The first row is the
// header; every later row becomes one transaction with fields keyed by
// header name. Rows shorter than the header keep only the columns they
// have. A file with a header and no rows is a valid empty batch; a file
// with no header at all is an input error.
func ParseCSV(r io.Reader) ([]*domain.Transaction, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: missing header row", ErrInvalidCSV)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCSV, err)
	}

	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var records []*domain.Transaction
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrInvalidCSV, len(records)+2, err)
		}

		fields := make(map[string]string, len(header))
		for i, name := range header {
			if name == "" || i >= len(row) {
				continue
			}
			fields[name] = strings.TrimSpace(row[i])
		}

		tx := &domain.Transaction{Fields: fields}
		if id := tx.Get(domain.ColTransactionID); id != "" {
			tx.ID = id
		} else {
			tx.ID = uuid.NewString()
		}
		records = append(records, tx)
	}

	return records, nil
}
