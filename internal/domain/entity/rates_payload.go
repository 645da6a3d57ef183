package entity

import (
	"encoding/json"
	"errors"
	"strings"
)

// RatesPayload is the envelope cached after a successful refresh and served to clients
type RatesPayload struct {
	Status  bool         `json:"status"`
	Message string       `json:"message"`
	Date    string       `json:"date,omitempty"`
	Data    []RateRecord `json:"data"`
}

// Encode serializes the payload for the cache
func (p *RatesPayload) Encode() ([]byte, error) {
	return json.Marshal(p)
}

// DecodeRatesPayload parses a cached payload, rejecting anything that is not a rates envelope
func DecodeRatesPayload(raw []byte) (*RatesPayload, error) {
	if len(raw) == 0 {
		return nil, errors.New("empty payload")
	}

	var p RatesPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}

	if p.Data == nil {
		return nil, errors.New("payload has no data")
	}

	return &p, nil
}

// Find returns the first record whose code matches, ignoring case
func (p *RatesPayload) Find(code string) (*RateRecord, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for i := range p.Data {
		if p.Data[i].CurrencyCode == code {
			rec := p.Data[i]
			return &rec, true
		}
	}
	return nil, false
}
