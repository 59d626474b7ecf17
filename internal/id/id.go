package id

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultPrefix starts every generated journal reference.
const DefaultPrefix = "J"

// FormatReference returns a journal reference like "J-0001".
func FormatReference(prefix string, seq int) string {
	return fmt.Sprintf("%s-%04d", prefix, seq)
}

// ParseReference parses "J-0001" into its sequence number. References that
// were not generated with prefix return an error.
func ParseReference(prefix, ref string) (int, error) {
	rest, ok := strings.CutPrefix(ref, prefix+"-")
	if !ok {
		return 0, fmt.Errorf("reference %q does not start with %q", ref, prefix+"-")
	}
	seq, err := strconv.Atoi(rest)
	if err != nil {
		return 0, fmt.Errorf("invalid sequence in reference %q: %w", ref, err)
	}
	if seq <= 0 {
		return 0, fmt.Errorf("invalid sequence in reference %q", ref)
	}
	return seq, nil
}

// Sequencer hands out journal reference numbers. It is not safe for
// concurrent use; callers serialize access.
type Sequencer struct {
	prefix string
	last   int
}

// NewSequencer returns a Sequencer for prefix starting after zero.
func NewSequencer(prefix string) *Sequencer {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Sequencer{prefix: prefix}
}

// Observe records an existing reference so Next never reissues it.
func (s *Sequencer) Observe(ref string) {
	seq, err := ParseReference(s.prefix, ref)
	if err != nil {
		return
	}
	if seq > s.last {
		s.last = seq
	}
}

// Next returns the next unused reference.
func (s *Sequencer) Next() string {
	s.last++
	return FormatReference(s.prefix, s.last)
}
