// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// query parameters, as-of dates and transaction bodies sent as JSON or form.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"financas/internal/core"
)

// maxBodyBytes caps request bodies; a transaction is a few hundred bytes and
// an import a few thousand rows.
const maxBodyBytes = 1 << 20

// ErrBadRequest marks malformed input (as opposed to invalid values).
var ErrBadRequest = errors.New("bad request")

// MonthParams holds parsed year/month values from request parameters.
type MonthParams struct {
	Year  int
	Month int
}

// ParseMonthParams extracts year and month from query parameters, using now
// for missing values. Present but malformed values are an error.
func ParseMonthParams(query url.Values, now time.Time) (MonthParams, error) {
	params := MonthParams{Year: now.Year(), Month: int(now.Month())}

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return params, fmt.Errorf("%w: year %q", ErrBadRequest, v)
		}
		params.Year = y
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			return params, fmt.Errorf("%w: month %q", ErrBadRequest, v)
		}
		params.Month = m
	}
	return params, nil
}

// ParseAsOf reads the as_of query parameter as YYYY-MM-DD or YYYY-MM,
// defaulting to now.
func ParseAsOf(query url.Values, now time.Time) (time.Time, error) {
	v := strings.TrimSpace(query.Get("as_of"))
	if v == "" {
		return now, nil
	}
	for _, layout := range []string{"2006-01-02", "2006-01"} {
		if t, err := time.ParseInLocation(layout, v, now.Location()); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: as_of %q, want YYYY-MM-DD", ErrBadRequest, v)
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	trimmed := strings.TrimSpace(string(p.body))
	if trimmed == "" {
		p.formData = url.Values{}
		return nil
	}

	if strings.HasPrefix(p.contentType, "application/json") || trimmed[0] == '{' {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal([]byte(trimmed), &p.jsonData); err != nil {
			p.err = fmt.Errorf("%w: %v", ErrBadRequest, err)
			return p.err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(trimmed)
	if p.err != nil {
		p.err = fmt.Errorf("%w: %v", ErrBadRequest, p.err)
	}
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// Transaction builds a transaction from the parsed body. Month and year
// default to now; amount is a signed decimal ("-49,90" for an expense)
// unless type is given.
// Value errors wrap the core validation errors.
func (p *RequestBodyParser) Transaction(now time.Time) (core.Transaction, error) {
	if err := p.Parse(); err != nil {
		return core.Transaction{}, err
	}

	amount, err := p.amount()
	if err != nil {
		return core.Transaction{}, err
	}

	tx := core.Transaction{
		Description: p.Get("description"),
		Amount:      amount,
		Category:    p.Get("category"),
		Subcategory: p.Get("subcategory"),
		Installment: p.Get("installment"),
		Month:       int(now.Month()),
		Year:        now.Year(),
	}
	if v := p.Get("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			return core.Transaction{}, core.ErrInvalidMonth
		}
		tx.Month = m
	}
	if v := p.Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return core.Transaction{}, core.ErrInvalidYear
		}
		tx.Year = y
	}
	return tx, tx.Validate()
}

// amount reads "amount" as a signed decimal, or as a positive magnitude when
// "type" names the side of the ledger.
func (p *RequestBodyParser) amount() (core.Money, error) {
	kind := strings.ToLower(p.Get("type"))
	switch kind {
	case "":
		return core.ParseAmount(p.Get("amount"))
	case "expense", "despesa":
		cents, err := core.ParseDecimalToCents(p.Get("amount"))
		return core.Money{Cents: -cents}, err
	case "income", "receita":
		cents, err := core.ParseDecimalToCents(p.Get("amount"))
		return core.Money{Cents: cents}, err
	default:
		return core.Money{}, fmt.Errorf("%w: type %q, want expense or income", ErrBadRequest, kind)
	}
}

// stringValue converts a decoded JSON value to string.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
