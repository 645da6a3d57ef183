package entity

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateRecordValidate(t *testing.T) {
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	valid := RateRecord{CurrencyCode: "USD", Name: "Доллар США", Value: decimal.RequireFromString("90.50"), Date: date}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(r *RateRecord)
	}{
		{"lowercase code", func(r *RateRecord) { r.CurrencyCode = "usd" }},
		{"short code", func(r *RateRecord) { r.CurrencyCode = "US" }},
		{"long code", func(r *RateRecord) { r.CurrencyCode = "USDXX" }},
		{"zero value", func(r *RateRecord) { r.Value = decimal.Zero }},
		{"negative value", func(r *RateRecord) { r.Value = decimal.RequireFromString("-1") }},
		{"missing date", func(r *RateRecord) { r.Date = time.Time{} }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := valid
			tc.mutate(&r)
			assert.Error(t, r.Validate())
		})
	}
}

func TestRateRecordJSON(t *testing.T) {
	r := RateRecord{
		CurrencyCode: "USD",
		Name:         "Доллар США",
		Value:        decimal.RequireFromString("90.50"),
		Date:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"char_code":"USD","name":"Доллар США","value":90.5,"date":"2024-01-01"}`, string(data))
	assert.Contains(t, string(data), `"value":90.5,`)

	var back RateRecord
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, r.Date, back.Date)
	assert.True(t, r.Value.Equal(back.Value))
	assert.Equal(t, "2024-01-01:USD", back.Key())

	assert.Error(t, json.Unmarshal([]byte(`{"char_code":"USD","value":1,"date":"01.01.2024"}`), &back))
}

func TestRateRecordValueForms(t *testing.T) {
	var r RateRecord

	// Entries written before values were numeric still decode
	require.NoError(t, json.Unmarshal([]byte(`{"char_code":"EUR","value":"98.7654","date":"2024-01-01"}`), &r))
	assert.Equal(t, "98.7654", r.Value.String())

	require.NoError(t, json.Unmarshal([]byte(`{"char_code":"EUR","value":98.7654,"date":"2024-01-01"}`), &r))
	assert.Equal(t, "98.7654", r.Value.String())

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"value":98.7654,`)

	assert.Error(t, json.Unmarshal([]byte(`{"char_code":"EUR","value":"abc","date":"2024-01-01"}`), &r))
}

func TestTruncateToDate(t *testing.T) {
	msk := time.FixedZone("MSK", 3*60*60)
	got := TruncateToDate(time.Date(2024, 3, 15, 23, 59, 0, 0, msk))
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), got)
}

func TestDecodeRatesPayload(t *testing.T) {
	raw := []byte(`{"status":true,"message":"rates updated","date":"2024-01-01","data":[
		{"char_code":"USD","name":"Доллар США","value":90.5,"date":"2024-01-01"},
		{"char_code":"EUR","name":"Евро","value":98.1,"date":"2024-01-01"}]}`)

	p, err := DecodeRatesPayload(raw)
	require.NoError(t, err)
	assert.Len(t, p.Data, 2)

	rec, ok := p.Find(" usd ")
	require.True(t, ok)
	assert.Equal(t, "USD", rec.CurrencyCode)
	assert.True(t, decimal.RequireFromString("90.50").Equal(rec.Value))

	_, ok = p.Find("XYZ")
	assert.False(t, ok)

	for _, bad := range []string{``, `{`, `[]`, `{"status":true}`} {
		_, err := DecodeRatesPayload([]byte(bad))
		assert.Error(t, err, bad)
	}
}

func TestJobRunMetadataMergeInfo(t *testing.T) {
	m := &JobRunMetadata{JobName: "fetch-currencies"}
	m.MergeInfo(map[string]interface{}{"records": 2, "attempt": 1})
	m.MergeInfo(map[string]interface{}{"attempt": 3})

	assert.Equal(t, map[string]interface{}{"records": 2, "attempt": 3}, m.AdditionalInfo)
}
