// Package feed fetches and parses the central bank daily rates document.
package feed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/damon-houk/cbr-rates-service/internal/apperrors"
	"github.com/damon-houk/cbr-rates-service/internal/domain/entity"
	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// DefaultEncoding is the charset the central bank publishes the feed in
const DefaultEncoding = "windows-1251"

// feedDateLayout is the day.month.year format of the ValCurs Date attribute
const feedDateLayout = "02.01.2006"

// declEncodingPattern matches the encoding pseudo-attribute of the XML declaration
var declEncodingPattern = regexp.MustCompile(`(?i)^(\s*<\?xml[^>]*?\bencoding\s*=\s*)(["'])[^"']*(["'])`)

type valCurs struct {
	XMLName xml.Name `xml:"ValCurs"`
	Date    string   `xml:"Date,attr"`
	Valutes []valute `xml:"Valute"`
}

type valute struct {
	ID       string `xml:"ID,attr"`
	CharCode string `xml:"CharCode"`
	Name     string `xml:"Name"`
	Value    string `xml:"Value"`
}

// Parser converts the legacy-encoded XML feed into rate records
type Parser struct{}

// NewParser creates a new feed parser
func NewParser() *Parser {
	return &Parser{}
}

// Parse transcodes raw to UTF-8, rewrites the declared encoding, then decodes the
// document. Records keep document order and carry the feed date.
func (p *Parser) Parse(raw []byte, sourceEncoding string) (time.Time, []entity.RateRecord, error) {
	utf8Doc, err := Transcode(raw, sourceEncoding)
	if err != nil {
		return time.Time{}, nil, apperrors.NewJobError(apperrors.ErrParse, "transcode feed", err)
	}

	utf8Doc = RewriteDeclaredEncoding(utf8Doc, "UTF-8")

	var doc valCurs
	if err := xml.Unmarshal(utf8Doc, &doc); err != nil {
		return time.Time{}, nil, apperrors.NewJobError(apperrors.ErrParse, "decode feed", err)
	}

	if strings.TrimSpace(doc.Date) == "" {
		return time.Time{}, nil, apperrors.NewJobError(apperrors.ErrParse, "read feed date",
			fmt.Errorf("ValCurs has no Date attribute"))
	}

	asOf, err := time.Parse(feedDateLayout, strings.TrimSpace(doc.Date))
	if err != nil {
		return time.Time{}, nil, apperrors.NewJobError(apperrors.ErrParse, "read feed date", err)
	}

	records := make([]entity.RateRecord, 0, len(doc.Valutes))
	for i, v := range doc.Valutes {
		value, err := ParseValue(v.Value)
		if err != nil {
			return time.Time{}, nil, apperrors.NewJobError(apperrors.ErrParse,
				fmt.Sprintf("read value of entry %d (%s)", i, strings.TrimSpace(v.CharCode)), err)
		}

		records = append(records, entity.RateRecord{
			CurrencyCode: strings.ToUpper(strings.TrimSpace(v.CharCode)),
			Name:         strings.TrimSpace(v.Name),
			Value:        value,
			Date:         asOf,
		})
	}

	return asOf, records, nil
}

// Transcode converts raw from the named charset into UTF-8
func Transcode(raw []byte, sourceEncoding string) ([]byte, error) {
	enc, err := lookupEncoding(sourceEncoding)
	if err != nil {
		return nil, err
	}

	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to transcode from %s: %w", sourceEncoding, err)
	}

	return out, nil
}

// RewriteDeclaredEncoding replaces the encoding named in the XML declaration.
// Documents without a declared encoding are returned unchanged.
func RewriteDeclaredEncoding(doc []byte, encodingName string) []byte {
	// The declaration must be the first thing in the document, skip a BOM if any
	doc = bytes.TrimPrefix(doc, []byte("\xef\xbb\xbf"))
	return declEncodingPattern.ReplaceAll(doc, []byte("${1}${2}"+encodingName+"${3}"))
}

// ParseValue parses a feed number that may use a comma as the decimal separator
func ParseValue(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return decimal.Decimal{}, fmt.Errorf("empty rate value")
	}

	value, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid rate value %q: %w", s, err)
	}

	if !value.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("rate value must be a positive value, got %s", s)
	}

	return value, nil
}

func lookupEncoding(name string) (encoding.Encoding, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultEncoding
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding %q: %w", name, err)
	}

	return enc, nil
}
