package formfill

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"agri_inspection/internal/domain"
)

// Result is the data object returned by a successful recognize call.
type Result struct {
	values map[string]any
	raw    json.RawMessage
}

// ParseResult decodes a data object. Numbers keep their literal form.
func ParseResult(data []byte) (Result, error) {
	var r Result
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return r, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return r, fmt.Errorf("decode result: %w", err)
	}
	r.values = make(map[string]any, len(fields))
	for k, v := range fields {
		dec := json.NewDecoder(bytes.NewReader(v))
		dec.UseNumber()
		var val any
		if err := dec.Decode(&val); err != nil {
			return r, fmt.Errorf("decode result field %q: %w", k, err)
		}
		if k == domain.OCRRawDataKey {
			if !falsy(val) {
				r.raw = v
			}
			continue
		}
		r.values[k] = val
	}
	return r, nil
}

// NewResult builds a Result from already decoded values, e.g. a server side recognition.
func NewResult(values map[string]any) (Result, error) {
	r := Result{values: make(map[string]any, len(values))}
	for k, v := range values {
		if k == domain.OCRRawDataKey {
			if falsy(v) {
				continue
			}
			raw, err := json.Marshal(v)
			if err != nil {
				return Result{}, fmt.Errorf("encode %s: %w", domain.OCRRawDataKey, err)
			}
			r.raw = raw
			continue
		}
		r.values[k] = v
	}
	return r, nil
}

// Value returns the form text for field, or false when the value is absent or falsy.
// Falsy means empty string, zero, false or null. Objects and arrays are never applied.
func (r Result) Value(field domain.OCRField) (string, bool) {
	v, ok := r.values[string(field)]
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, t != ""
	case json.Number:
		f, err := t.Float64()
		if err != nil || f == 0 {
			return "", false
		}
		return t.String(), true
	case float64:
		if t == 0 {
			return "", false
		}
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), t != 0
	case bool:
		if !t {
			return "", false
		}
		return "true", true
	}
	return "", false
}

// falsy reports whether v is null, false, zero or the empty string.
func falsy(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case json.Number:
		f, err := t.Float64()
		return err == nil && f == 0
	case float64:
		return t == 0
	case int:
		return t == 0
	}
	return false
}

// RawData is the ocr_raw_data object in compact form, nil when absent.
func (r Result) RawData() json.RawMessage {
	if len(r.raw) == 0 {
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, r.raw); err != nil {
		return r.raw
	}
	return buf.Bytes()
}
