// Package tracking issues correlation identifiers for inbound events and job runs.
package tracking

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator issues lexicographically sortable ULIDs. It is safe for
// concurrent use.
type Generator struct {
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

// NewGenerator returns a Generator backed by crypto/rand with monotonic
// entropy inside a single millisecond.
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
}

// New returns a fresh tracking id.
func (g *Generator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(g.now()), g.entropy).String()
}

// NewWithPrefix returns a tracking id prefixed with a short source tag,
// e.g. "sync_01J..." for reconciler runs.
func (g *Generator) NewWithPrefix(prefix string) string {
	if prefix == "" {
		return g.New()
	}
	return prefix + "_" + g.New()
}

// Valid reports whether id is a well-formed ULID, with or without a prefix.
func Valid(id string) bool {
	if id == "" {
		return false
	}
	if idx := lastUnderscore(id); idx >= 0 {
		id = id[idx+1:]
	}
	_, err := ulid.ParseStrict(id)
	return err == nil
}

// Time extracts the issue time encoded in id.
func Time(id string) (time.Time, bool) {
	if idx := lastUnderscore(id); idx >= 0 {
		id = id[idx+1:]
	}
	parsed, err := ulid.ParseStrict(id)
	if err != nil {
		return time.Time{}, false
	}
	return ulid.Time(parsed.Time()), true
}

func lastUnderscore(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '_' {
			return i
		}
	}
	return -1
}
