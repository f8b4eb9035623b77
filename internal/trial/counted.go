package trial

import (
	"strings"
	"time"

	"fluency/internal/domain"
)

// Rand is the randomness source for thresholds and word picks
type Rand interface {
	Intn(n int) int
}

// CountedScheduler flashes a random pool word after a random number of
// accepted responses, locking input for the exposure window
type CountedScheduler struct {
	pool      []string
	threshold domain.ThresholdRange
	exposure  time.Duration
	rand      Rand
	display   Display
	input     Input

	countdown int
	records   []domain.PrimeDisplayRecord
	exposing  bool
}

// NewCountedScheduler creates a scheduler with a freshly drawn countdown
func NewCountedScheduler(pool []string, threshold domain.ThresholdRange, exposure time.Duration, r Rand, display Display, input Input) *CountedScheduler {
	words := make([]string, len(pool))
	copy(words, pool)

	s := &CountedScheduler{
		pool:      words,
		threshold: threshold,
		exposure:  exposure,
		rand:      r,
		display:   display,
		input:     input,
		records:   make([]domain.PrimeDisplayRecord, 0),
	}
	s.countdown = s.draw()
	return s
}

// draw picks a countdown uniformly from the inclusive threshold range
func (s *CountedScheduler) draw() int {
	return s.threshold.Min + s.rand.Intn(s.threshold.Max-s.threshold.Min+1)
}

// Observe handles one accepted submission made at nowMS. It returns the
// prime word shown, if this submission triggered an exposure.
func (s *CountedScheduler) Observe(word string, nowMS int64) (string, bool) {
	s.countdown--
	s.removeGuess(word)

	if s.countdown > 0 || len(s.pool) == 0 {
		return "", false
	}

	idx := s.rand.Intn(len(s.pool))
	prime := s.pool[idx]
	s.pool = append(s.pool[:idx], s.pool[idx+1:]...)

	s.display.Show(prime)
	s.input.Disable()
	s.records = append(s.records, domain.PrimeDisplayRecord{Word: prime, AppearedAtMS: nowMS})
	s.exposing = true
	s.countdown = s.draw()

	return prime, true
}

// removeGuess drops at most one pool word matching the submission
func (s *CountedScheduler) removeGuess(word string) bool {
	guess := strings.TrimSpace(word)
	for i, w := range s.pool {
		if strings.EqualFold(strings.TrimSpace(w), guess) {
			s.pool = append(s.pool[:i], s.pool[i+1:]...)
			return true
		}
	}
	return false
}

// EndExposure clears the prime word and unlocks input at nowMS
func (s *CountedScheduler) EndExposure(nowMS int64) {
	if !s.exposing {
		return
	}
	s.display.Clear()
	s.input.Enable()
	s.records[len(s.records)-1].DisappearedAtMS = &nowMS
	s.exposing = false
}

// Interrupt releases the display and input when the trial ends mid-exposure.
// The open record keeps no disappearance time.
func (s *CountedScheduler) Interrupt() {
	if !s.exposing {
		return
	}
	s.display.Clear()
	s.input.Enable()
	s.exposing = false
}

// Exposure returns the length of the exposure window
func (s *CountedScheduler) Exposure() time.Duration {
	return s.exposure
}

// Exposing reports whether a prime word is on screen
func (s *CountedScheduler) Exposing() bool {
	return s.exposing
}

// Countdown returns the responses left before the next trigger
func (s *CountedScheduler) Countdown() int {
	return s.countdown
}

// Pool returns a copy of the words still eligible for display
func (s *CountedScheduler) Pool() []string {
	out := make([]string, len(s.pool))
	copy(out, s.pool)
	return out
}

// Records returns a copy of the exposures made so far
func (s *CountedScheduler) Records() []domain.PrimeDisplayRecord {
	out := make([]domain.PrimeDisplayRecord, len(s.records))
	copy(out, s.records)
	return out
}
