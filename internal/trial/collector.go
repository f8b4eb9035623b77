package trial

import (
	"strings"
	"time"

	"fluency/internal/domain"
)

// Input is the participant's text-entry control
type Input interface {
	Clear()
	Disable()
	Enable()
}

// Collector records Enter-key submissions with trial-relative timestamps
type Collector struct {
	input Input
	trim  bool
	start time.Time
	words []domain.Submission
}

// NewCollector creates a collector for a trial that started at start
func NewCollector(input Input, start time.Time, trim bool) *Collector {
	return &Collector{
		input: input,
		trim:  trim,
		start: start,
		words: make([]domain.Submission, 0),
	}
}

// Normalize applies the trim policy and reports whether text counts as a
// submission at all
func (c *Collector) Normalize(text string) (string, bool) {
	if c.trim {
		text = strings.TrimSpace(text)
	}
	return text, text != ""
}

// Submit records text submitted at now. Empty content returns nil and
// leaves the input untouched.
func (c *Collector) Submit(text string, now time.Time) *domain.Submission {
	word, ok := c.Normalize(text)
	if !ok {
		return nil
	}
	sub := c.record(word, now)
	return &sub
}

func (c *Collector) record(word string, now time.Time) domain.Submission {
	sub := domain.NewSubmission(word, c.offset(now))
	c.words = append(c.words, sub)
	c.input.Clear()
	return sub
}

func (c *Collector) offset(now time.Time) int64 {
	return max(now.Sub(c.start).Milliseconds(), 0)
}

// Words returns a copy of the recorded submissions in order
func (c *Collector) Words() []domain.Submission {
	out := make([]domain.Submission, len(c.words))
	copy(out, c.words)
	return out
}

// Count returns the number of recorded submissions
func (c *Collector) Count() int {
	return len(c.words)
}
