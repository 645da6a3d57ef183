package entity

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format used in storage keys and JSON
const DateLayout = "2006-01-02"

var currencyCodePattern = regexp.MustCompile(`^[A-Z]{3,4}$`)

// RateRecord is the rate of one currency against the base currency on a calendar date
type RateRecord struct {
	CurrencyCode string          `json:"char_code"`
	Name         string          `json:"name"`
	Value        decimal.Decimal `json:"value"`
	Date         time.Time       `json:"date"`
}

// rateRecordJSON mirrors RateRecord with the value as a bare JSON number
// and the date rendered as a calendar date
type rateRecordJSON struct {
	CurrencyCode string      `json:"char_code"`
	Name         string      `json:"name"`
	Value        json.Number `json:"value"`
	Date         string      `json:"date"`
}

// Validate ensures the record can be stored
func (r *RateRecord) Validate() error {
	if !currencyCodePattern.MatchString(r.CurrencyCode) {
		return fmt.Errorf("invalid currency code %q", r.CurrencyCode)
	}

	if !r.Value.IsPositive() {
		return errors.New("rate value must be a positive value")
	}

	if r.Date.IsZero() {
		return errors.New("rate date is required")
	}

	return nil
}

// Key identifies the record for upserts
func (r *RateRecord) Key() string {
	return r.Date.Format(DateLayout) + ":" + r.CurrencyCode
}

// MarshalJSON renders Value as a number and Date without a time component
func (r RateRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(rateRecordJSON{
		CurrencyCode: r.CurrencyCode,
		Name:         r.Name,
		Value:        json.Number(r.Value.String()),
		Date:         r.Date.Format(DateLayout),
	})
}

// UnmarshalJSON accepts the calendar date form written by MarshalJSON
func (r *RateRecord) UnmarshalJSON(data []byte) error {
	var raw rateRecordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	date, err := time.Parse(DateLayout, raw.Date)
	if err != nil {
		return fmt.Errorf("invalid rate date %q: %w", raw.Date, err)
	}

	value := decimal.Zero
	if raw.Value != "" {
		value, err = decimal.NewFromString(raw.Value.String())
		if err != nil {
			return fmt.Errorf("invalid rate value %q: %w", raw.Value, err)
		}
	}

	r.CurrencyCode = raw.CurrencyCode
	r.Name = raw.Name
	r.Value = value
	r.Date = date
	return nil
}

// TruncateToDate drops the time component, keeping the calendar date in UTC
func TruncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
