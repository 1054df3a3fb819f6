package request

import (
	"fmt"
	"net/url"
	"strings"
)

// Param is one decoded key/value pair.
type Param struct {
	Key   string
	Value string
}

// ParseError reports malformed parameter input. A parser that failed
// mid-input holds a partial result and must not be reused.
type ParseError struct {
	Offset int
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed parameter at offset %d: %v", e.Offset, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// TooManyParamsError is returned when input exceeds the parser limit.
type TooManyParamsError struct {
	Limit int
}

func (e *TooManyParamsError) Error() string {
	return fmt.Sprintf("more than %d parameters", e.Limit)
}

// ParamParser decodes "a=1&b=2&a=3" style parameter strings into an ordered
// multi-map. Parsers are pooled; the parsed slice is reused across requests.
type ParamParser struct {
	params    []Param
	maxParams int
	disposed  bool
}

func newParamParser(maxParams int) *ParamParser {
	return &ParamParser{
		params:    make([]Param, 0, 16),
		maxParams: maxParams,
	}
}

// Parse decodes raw, appending to any parameters already parsed.
// Both '&' and ';' separate pairs. A key without '=' has an empty value.
func (p *ParamParser) Parse(raw string) error {
	offset := 0
	for raw != "" {
		var pair string
		if i := strings.IndexAny(raw, "&;"); i >= 0 {
			pair, raw = raw[:i], raw[i+1:]
		} else {
			pair, raw = raw, ""
		}
		start := offset
		offset += len(pair) + 1
		if pair == "" {
			continue
		}
		if p.maxParams > 0 && len(p.params) >= p.maxParams {
			return &TooManyParamsError{Limit: p.maxParams}
		}

		key, value, _ := strings.Cut(pair, "=")
		k, err := url.QueryUnescape(key)
		if err != nil {
			return &ParseError{Offset: start, Err: err}
		}
		v, err := url.QueryUnescape(value)
		if err != nil {
			return &ParseError{Offset: start + len(key) + 1, Err: err}
		}
		p.params = append(p.params, Param{Key: k, Value: v})
	}
	return nil
}

// Get returns the first value for key.
func (p *ParamParser) Get(key string) (string, bool) {
	for _, param := range p.params {
		if param.Key == key {
			return param.Value, true
		}
	}
	return "", false
}

// All returns every value for key in input order.
func (p *ParamParser) All(key string) []string {
	var out []string
	for _, param := range p.params {
		if param.Key == key {
			out = append(out, param.Value)
		}
	}
	return out
}

// Params returns a copy of the parsed parameters, safe to keep after the
// parser is released.
func (p *ParamParser) Params() []Param {
	out := make([]Param, len(p.params))
	copy(out, p.params)
	return out
}

// Len returns the number of parsed parameters.
func (p *ParamParser) Len() int {
	return len(p.params)
}

func (p *ParamParser) Recycle() {
	clear(p.params)
	p.params = p.params[:0]
}

func (p *ParamParser) Dispose() {
	p.params = nil
	p.disposed = true
}

func (p *ParamParser) IsDisposed() bool {
	return p.disposed
}
