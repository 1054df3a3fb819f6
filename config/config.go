// Package config loads service descriptors from a configuration snapshot.
//
// Two forms are understood. The YAML form keeps declaration order:
//
//	services:
//	  db:
//	    classname: sql.postgres
//	    earlyInit: true
//	    dsn: postgres://localhost/app
//	  cache:
//	    classname: cache.memory
//	    size: 512
//
// The flat properties form namespaces every key under services.<name>:
//
//	services.db.classname=sql.postgres
//	services.db.earlyInit=true
//	services.db.dsn=postgres://localhost/app
//
// In both forms classname and earlyInit are control metadata; every other
// key becomes part of that service's settings.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	services "github.com/centraunit/goallin_lifecycle"
)

// ServicesKey is the top-level key (YAML) and key prefix (properties) under
// which services are declared.
const ServicesKey = "services"

// ParseError locates a problem in a configuration source.
type ParseError struct {
	Source string
	Line   int
	Msg    string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Source, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Source, e.Msg)
}

// LoadFile reads descriptors from path. Files ending in .properties use the
// flat form; anything else is parsed as YAML.
func LoadFile(path string) ([]services.Descriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".properties") {
		props, err := ParseProperties(f, path)
		if err != nil {
			return nil, err
		}
		return FromProperties(props)
	}
	return load(f, path)
}

// Load reads YAML descriptors from r in declaration order.
func Load(r io.Reader) ([]services.Descriptor, error) {
	return load(r, "<input>")
}

func load(r io.Reader, source string) ([]services.Descriptor, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, &ParseError{Source: source, Msg: err.Error()}
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, &ParseError{Source: source, Line: root.Line, Msg: "top level must be a mapping"}
	}

	var list *yaml.Node
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == ServicesKey {
			list = root.Content[i+1]
			break
		}
	}
	if list == nil || list.Tag == "!!null" {
		return nil, nil
	}
	if list.Kind != yaml.MappingNode {
		return nil, &ParseError{Source: source, Line: list.Line, Msg: ServicesKey + " must be a mapping of service names"}
	}

	descs := make([]services.Descriptor, 0, len(list.Content)/2)
	for i := 0; i+1 < len(list.Content); i += 2 {
		nameNode, body := list.Content[i], list.Content[i+1]
		desc, err := descriptorFromNode(source, nameNode, body)
		if err != nil {
			return nil, err
		}
		descs = append(descs, desc)
	}
	return descs, nil
}

func descriptorFromNode(source string, nameNode, body *yaml.Node) (services.Descriptor, error) {
	b := builder{source: source, name: nameNode.Value, line: nameNode.Line}
	if body.Kind != yaml.MappingNode {
		return services.Descriptor{}, &ParseError{Source: source, Line: body.Line,
			Msg: fmt.Sprintf("service %s must be a mapping", b.name)}
	}
	for i := 0; i+1 < len(body.Content); i += 2 {
		k, v := body.Content[i], body.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return services.Descriptor{}, &ParseError{Source: source, Line: v.Line,
				Msg: fmt.Sprintf("service %s: value of %s must be a scalar", b.name, k.Value)}
		}
		if err := b.set(k.Value, v.Value, k.Line); err != nil {
			return services.Descriptor{}, err
		}
	}
	return b.build()
}

// builder accumulates one service's keys, splitting off control metadata.
type builder struct {
	source   string
	name     string
	line     int
	impl     string
	early    bool
	settings services.Settings
}

func (b *builder) set(key, value string, line int) error {
	switch key {
	case services.ImplementationKey:
		b.impl = value
	case services.EarlyInitKey:
		early, err := strconv.ParseBool(value)
		if err != nil {
			return &ParseError{Source: b.source, Line: line,
				Msg: fmt.Sprintf("service %s: %s must be a boolean, got %q", b.name, key, value)}
		}
		b.early = early
	default:
		b.settings.Set(key, value)
	}
	return nil
}

func (b *builder) build() (services.Descriptor, error) {
	if b.impl == "" {
		return services.Descriptor{}, &ParseError{Source: b.source, Line: b.line,
			Msg: fmt.Sprintf("service %s: missing %s", b.name, services.ImplementationKey)}
	}
	return services.Descriptor{
		Name:           b.name,
		Implementation: b.impl,
		EarlyInit:      b.early,
		Settings:       b.settings,
	}, nil
}
