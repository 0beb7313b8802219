// pkg/intake/intake.go
package intake

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jszwec/csvutil"

	"github.com/tenderops/tender-ingress/pkg/model"
)

// ErrEmptyPayload indicates the uploaded payload had no header row.
var ErrEmptyPayload = errors.New("payload contains no tabular data")

// tenderRow maps one CSV row. All fields decode as strings so that coercion
// failures can be reported per row instead of failing inside the decoder.
type tenderRow struct {
	TenderID      string `csv:"tender_id"`
	Title         string `csv:"title"`
	Description   string `csv:"description"`
	Organization  string `csv:"organization"`
	Category      string `csv:"category"`
	Value         string `csv:"value"`
	Currency      string `csv:"currency"`
	PublishedDate string `csv:"published_date"`
	Deadline      string `csv:"deadline"`
	Location      string `csv:"location"`
	Status        string `csv:"status"`
}

// Decode parses a CSV payload (header plus rows) into raw tender records.
//
// Field defaults: a missing tender_id falls back to the generated internal
// ID, a blank value coerces to 0, a blank status defaults to "Open" and a
// blank currency to "USD". A value that is present but not a non-negative
// number fails the whole decode; a payload that cannot be parsed as CSV does
// too. No partial result is ever returned.
func Decode(payload []byte) ([]model.RawTender, error) {
	reader := csv.NewReader(bytes.NewReader(payload))
	reader.TrimLeadingSpace = true

	decoder, err := csvutil.NewDecoder(reader)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyPayload
		}
		return nil, fmt.Errorf("failed to create CSV decoder: %w", err)
	}

	var records []model.RawTender
	for rowNum := 1; ; rowNum++ {
		var row tenderRow
		if err := decoder.Decode(&row); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to decode CSV row %d: %w", rowNum, err)
		}

		record, err := coerceRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rowNum, err)
		}
		records = append(records, record)
	}

	return records, nil
}

// coerceRow applies field defaults and converts one decoded row into a raw
// tender with a freshly generated internal ID.
func coerceRow(row tenderRow) (model.RawTender, error) {
	id := uuid.NewString()

	tenderID := strings.TrimSpace(row.TenderID)
	if tenderID == "" {
		// Un-keyed rows adopt the internal ID as their business key, so
		// they never collide in the cleaned store.
		tenderID = id
	}

	value, err := parseValue(row.Value)
	if err != nil {
		return model.RawTender{}, err
	}

	status := strings.TrimSpace(row.Status)
	if status == "" {
		status = "Open"
	}

	currency := strings.TrimSpace(row.Currency)
	if currency == "" {
		currency = "USD"
	}

	return model.RawTender{
		ID:            id,
		TenderID:      tenderID,
		Title:         row.Title,
		Description:   row.Description,
		Organization:  row.Organization,
		Category:      row.Category,
		Value:         value,
		Currency:      currency,
		PublishedDate: row.PublishedDate,
		Deadline:      row.Deadline,
		Location:      row.Location,
		Status:        status,
	}, nil
}

func parseValue(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("value %q is not numeric: %w", raw, err)
	}
	if value < 0 {
		return 0, fmt.Errorf("value %q is negative", raw)
	}
	return value, nil
}
