// Package enums holds the closed string vocabularies shared by the database,
// the trigger topic and the HTTP API.
package enums

import (
	"fmt"
	"slices"
)

// closedSet is the full list of accepted values of one string enum.
type closedSet[T ~string] struct {
	kind   string
	values []T
}

func newSet[T ~string](kind string, values ...T) closedSet[T] {
	return closedSet[T]{kind: kind, values: values}
}

func (s closedSet[T]) has(v T) bool {
	return slices.Contains(s.values, v)
}

func (s closedSet[T]) parse(raw string) (T, error) {
	if v := T(raw); s.has(v) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", s.kind, raw)
}
