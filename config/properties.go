package config

import (
	"bufio"
	"io"
	"strings"

	services "github.com/centraunit/goallin_lifecycle"
)

// Property is one flat key/value pair. Line is informational.
type Property struct {
	Key   string
	Value string
	Line  int
}

// ParseProperties reads key=value lines. Blank lines and lines starting with
// '#' or '!' are skipped; ':' is accepted as separator too.
func ParseProperties(r io.Reader, source string) ([]Property, error) {
	var props []Property
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || text[0] == '#' || text[0] == '!' {
			continue
		}
		i := strings.IndexAny(text, "=:")
		if i <= 0 {
			return nil, &ParseError{Source: source, Line: line, Msg: "expected key=value"}
		}
		props = append(props, Property{
			Key:   strings.TrimSpace(text[:i]),
			Value: strings.TrimSpace(text[i+1:]),
			Line:  line,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, &ParseError{Source: source, Line: line, Msg: err.Error()}
	}
	return props, nil
}

// FromProperties groups services.<name>.<key> properties into descriptors,
// ordered by each service's first appearance. Keys outside the services
// namespace are ignored.
func FromProperties(props []Property) ([]services.Descriptor, error) {
	prefix := ServicesKey + "."
	builders := make(map[string]*builder)
	var order []*builder

	for _, p := range props {
		rest, ok := strings.CutPrefix(p.Key, prefix)
		if !ok {
			continue
		}
		name, key, ok := strings.Cut(rest, ".")
		if !ok || name == "" || key == "" {
			return nil, &ParseError{Source: "properties", Line: p.Line,
				Msg: "expected " + prefix + "<name>.<key>, got " + p.Key}
		}
		b, exists := builders[name]
		if !exists {
			b = &builder{source: "properties", name: name, line: p.Line}
			builders[name] = b
			order = append(order, b)
		}
		if err := b.set(key, p.Value, p.Line); err != nil {
			return nil, err
		}
	}

	descs := make([]services.Descriptor, 0, len(order))
	for _, b := range order {
		d, err := b.build()
		if err != nil {
			return nil, err
		}
		descs = append(descs, d)
	}
	return descs, nil
}
