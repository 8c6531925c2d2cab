// Package ids generates correlation ids for sweeps and dispatched events.
package ids

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Generator produces correlation ids.
type Generator interface {
	Generate() string
}

// UUIDv7 generates time-sortable UUIDv7 ids, so log lines sort by the
// moment the sweep or event started.
//
// Thread-safety: UUIDv7 is stateless and safe for concurrent use.
type UUIDv7 struct{}

// Generate returns a new hyphenated UUIDv7.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Sequence returns prefix-1, prefix-2, ... for deterministic traces.
//
// Thread-safety: Sequence is safe for concurrent use via internal mutex.
type Sequence struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequence creates a Sequence with the given prefix.
func NewSequence(prefix string) *Sequence {
	return &Sequence{prefix: prefix}
}

// Generate returns the next id in the sequence.
func (s *Sequence) Generate() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%s-%d", s.prefix, s.n)
}
