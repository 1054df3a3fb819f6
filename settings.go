package services

import (
	"strconv"
	"time"
)

// Reserved configuration keys. They are control metadata for the registry
// and never reach a service's Settings.
const (
	ImplementationKey = "classname"
	EarlyInitKey      = "earlyInit"
)

// Settings is an ordered string-to-string mapping scoped to one service.
// The zero value is an empty, usable Settings.
type Settings struct {
	keys   []string
	values map[string]string
}

// NewSettings builds Settings from alternating key/value arguments.
// A trailing key without a value is ignored.
func NewSettings(kv ...string) Settings {
	var s Settings
	for i := 0; i+1 < len(kv); i += 2 {
		s.Set(kv[i], kv[i+1])
	}
	return s
}

// Set stores value under key. Overwriting keeps the key's original position.
func (s *Settings) Set(key, value string) {
	if s.values == nil {
		s.values = make(map[string]string)
	}
	if _, ok := s.values[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.values[key] = value
}

// Delete removes key.
func (s *Settings) Delete(key string) {
	if _, ok := s.values[key]; !ok {
		return
	}
	delete(s.values, key)
	for i, k := range s.keys {
		if k == key {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			break
		}
	}
}

// Lookup returns the value stored under key.
func (s Settings) Lookup(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Get returns the value stored under key, or "" when absent.
func (s Settings) Get(key string) string {
	return s.values[key]
}

// Keys returns the keys in insertion order.
func (s Settings) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Len returns the number of keys.
func (s Settings) Len() int {
	return len(s.keys)
}

// Clone returns an independent copy.
func (s Settings) Clone() Settings {
	var c Settings
	for _, k := range s.keys {
		c.Set(k, s.values[k])
	}
	return c
}

// Int parses key as an integer, returning def when the key is absent.
func (s Settings) Int(key string, def int) (int, error) {
	raw, ok := s.values[key]
	if !ok {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def, &SettingError{Key: key, Value: raw, Err: err}
	}
	return v, nil
}

// Bool parses key as a boolean, returning def when the key is absent.
func (s Settings) Bool(key string, def bool) (bool, error) {
	raw, ok := s.values[key]
	if !ok {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def, &SettingError{Key: key, Value: raw, Err: err}
	}
	return v, nil
}

// Duration parses key with time.ParseDuration, returning def when the key is
// absent.
func (s Settings) Duration(key string, def time.Duration) (time.Duration, error) {
	raw, ok := s.values[key]
	if !ok {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return def, &SettingError{Key: key, Value: raw, Err: err}
	}
	return v, nil
}

// withoutReserved returns a copy with the registry's control keys removed.
func (s Settings) withoutReserved() Settings {
	c := s.Clone()
	c.Delete(ImplementationKey)
	c.Delete(EarlyInitKey)
	return c
}
