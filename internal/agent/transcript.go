package agent

import (
	"fmt"
	"strings"
)

// Transcript is the ordered record of completed tool cycles in one run.
// Entries are only ever appended.
type Transcript struct {
	entries []string
	// MaxChars bounds what Window returns. Zero means unbounded.
	MaxChars int
}

// NewTranscript creates an empty transcript with the given window budget.
func NewTranscript(maxChars int) *Transcript {
	return &Transcript{MaxChars: maxChars}
}

// FormatEntry renders one completed cycle.
func FormatEntry(log, result string) string {
	return fmt.Sprintf("%s\nObservation: %s\nThought:", log, result)
}

// Append records one completed cycle and returns the stored entry.
func (t *Transcript) Append(log, result string) string {
	entry := FormatEntry(log, result)
	t.entries = append(t.entries, entry)
	return entry
}

// Entries returns a copy of every entry, oldest first.
func (t *Transcript) Entries() []string {
	out := make([]string, len(t.entries))
	copy(out, t.entries)
	return out
}

func (t *Transcript) Len() int {
	return len(t.entries)
}

func (t *Transcript) String() string {
	return strings.Join(t.entries, "\n")
}

// Window returns the entries that go into the next prompt: all of them when
// MaxChars is zero, otherwise the newest suffix whose newline-joined length
// fits MaxChars. The newest entry is always included.
func (t *Transcript) Window() []string {
	if t.MaxChars <= 0 || len(t.entries) == 0 {
		return t.Entries()
	}

	start := len(t.entries) - 1
	size := len(t.entries[start])
	for start > 0 {
		next := size + 1 + len(t.entries[start-1])
		if next > t.MaxChars {
			break
		}
		size = next
		start--
	}

	out := make([]string, len(t.entries)-start)
	copy(out, t.entries[start:])
	return out
}
