// CLAUDE:SUMMARY Batch and run identifiers: UUIDv7 generators with type prefixes.
// Package idgen generates identifiers for batches and record runs.
// Components take a Generator so tests can inject deterministic IDs.
package idgen

import (
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator of RFC 9562 UUID v7 strings (time-sortable).
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed prepends prefix to every ID of gen.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Sequence returns a Generator of prefix1, prefix2, ... for tests.
func Sequence(prefix string) Generator {
	var n atomic.Int64
	return func() string {
		return prefix + strconv.FormatInt(n.Add(1), 10)
	}
}

// Batch and Run are the default generators for batch and run IDs.
var (
	Batch Generator = Prefixed("bat_", UUIDv7())
	Run   Generator = Prefixed("run_", UUIDv7())
)

// Parse validates a UUID string (optionally type-prefixed) and returns it.
func Parse(s string) (string, error) {
	raw := s
	for _, p := range []string{"bat_", "run_"} {
		if len(raw) > len(p) && raw[:len(p)] == p {
			raw = raw[len(p):]
			break
		}
	}
	if _, err := uuid.Parse(raw); err != nil {
		return "", fmt.Errorf("idgen: invalid id %q: %w", s, err)
	}
	return s, nil
}
