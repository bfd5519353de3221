// Package http provides the JSON API server and its handlers.
//
// This file implements utilities for parsing and validating HTTP request data.
// Handlers read bodies once through RequestBodyParser and build service
// inputs from it.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"budgetbeacon/internal/core"
	"budgetbeacon/internal/services"
)

// DefaultMaxBodyBytes bounds request bodies, backups included.
const DefaultMaxBodyBytes int64 = 5 << 20

// ErrBodyTooLarge is returned when a body exceeds the parser limit.
var ErrBodyTooLarge = errors.New("request body too large")

// RequestBodyParser handles different content types for request body parsing.
// It supports JSON objects and form-encoded data.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads at most maxBytes of the body once and stores it.
func NewRequestBodyParser(r *http.Request, maxBytes int64) *RequestBodyParser {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}

	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBytes+1))
	if p.err == nil && int64(len(p.body)) > maxBytes {
		p.body = nil
		p.err = ErrBodyTooLarge
	}
	return p
}

// Parse attempts to parse the body as a JSON object or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	trimmed := bytes.TrimSpace(p.body)
	if len(trimmed) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if trimmed[0] == '{' || trimmed[0] == '[' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		var doc any
		if err := dec.Decode(&doc); err != nil {
			p.err = fmt.Errorf("decode json body: %w", err)
			return p.err
		}
		obj, ok := doc.(map[string]any)
		if !ok {
			p.err = core.ErrNotAnObject
			return p.err
		}
		p.jsonData = obj
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(trimmed))
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return strings.TrimSpace(sanitizeInput(stringValue(val)))
		}
	}
	if p.formData != nil {
		return strings.TrimSpace(sanitizeInput(p.formData.Get(key)))
	}
	return ""
}

// Bool returns a boolean value. Form values accept "true", "1" and "on".
func (p *RequestBodyParser) Bool(key string) bool {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key].(bool); ok {
			return val
		}
	}
	switch strings.ToLower(p.Get(key)) {
	case "true", "1", "on", "yes":
		return true
	default:
		return false
	}
}

// Object returns the parsed JSON object, or the form values flattened into
// one. Empty bodies yield an empty object.
func (p *RequestBodyParser) Object() map[string]any {
	if p.jsonData != nil {
		return p.jsonData
	}
	obj := make(map[string]any, len(p.formData))
	for key := range p.formData {
		obj[key] = p.Get(key)
	}
	return obj
}

// GetRaw returns the raw body bytes.
func (p *RequestBodyParser) GetRaw() []byte {
	return p.body
}

// ContentType returns the Content-Type header value.
func (p *RequestBodyParser) ContentType() string {
	return p.contentType
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// EntryInput builds the service input of an entry form.
func (p *RequestBodyParser) EntryInput() services.EntryInput {
	return services.EntryInput{
		Type:      p.Get("type"),
		Category:  p.Get("category"),
		Amount:    p.Get("amount"),
		Note:      p.Get("note"),
		Recurring: p.Bool("recurring"),
		Frequency: p.Get("frequency"),
		StartDate: p.Get("startDate"),
	}
}

// ParseEntryFilter reads the ledger filter from query parameters. An unknown
// type filters nothing.
func ParseEntryFilter(query url.Values) core.EntryFilter {
	f := core.EntryFilter{
		Category: sanitizeInput(query.Get("category")),
		Search:   sanitizeInput(query.Get("q")),
	}
	if t, err := core.ParseEntryType(query.Get("type")); err == nil {
		f.Type = t
	}
	return f
}

// ParseScope reads the summary scope. An absent value means the configured one.
func ParseScope(query url.Values) core.DataScope {
	v := strings.TrimSpace(query.Get("scope"))
	if v == "" {
		return ""
	}
	return core.ParseDataScope(strings.ToLower(v))
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// stringValue converts a decoded JSON value to string.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
