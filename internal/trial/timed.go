package trial

import (
	"sort"

	"fluency/internal/domain"
)

// Display is the element prime words are written to
type Display interface {
	Show(word string)
	Clear()
}

// NewPrimeStack returns entries ordered by descending start time so the last
// element is always the next one due
func NewPrimeStack(entries []domain.PrimeWordEntry) []domain.PrimeWordEntry {
	stack := make([]domain.PrimeWordEntry, len(entries))
	copy(stack, entries)
	// Reversed stable sort keeps equal start times in their declared order
	// once popped from the top.
	for i, j := 0, len(stack)-1; i < j; i, j = i+1, j-1 {
		stack[i], stack[j] = stack[j], stack[i]
	}
	sort.SliceStable(stack, func(i, j int) bool {
		return stack[i].StartTimeS > stack[j].StartTimeS
	})
	return stack
}

// TimedScheduler shows schedule entries once the trial clock reaches them
type TimedScheduler struct {
	stack   []domain.PrimeWordEntry
	display Display
	changes []domain.DisplayChange
}

// NewTimedScheduler creates a scheduler over the given entries
func NewTimedScheduler(entries []domain.PrimeWordEntry, display Display) *TimedScheduler {
	return &TimedScheduler{
		stack:   NewPrimeStack(entries),
		display: display,
		changes: make([]domain.DisplayChange, 0, len(entries)),
	}
}

// Poll displays and pops every entry due at elapsedMS. It returns the number
// of entries displayed.
func (s *TimedScheduler) Poll(elapsedMS int64) int {
	shown := 0
	for len(s.stack) > 0 {
		top := s.stack[len(s.stack)-1]
		if elapsedMS < top.StartMS() {
			break
		}
		s.stack = s.stack[:len(s.stack)-1]

		if top.IsBlank() {
			s.display.Clear()
		} else {
			s.display.Show(top.Word)
		}
		s.changes = append(s.changes, domain.DisplayChange{Word: top.Word, ShownAtMS: elapsedMS})
		shown++
	}
	return shown
}

// Remaining returns the number of entries not yet displayed
func (s *TimedScheduler) Remaining() int {
	return len(s.stack)
}

// Changes returns a copy of the display changes made so far
func (s *TimedScheduler) Changes() []domain.DisplayChange {
	out := make([]domain.DisplayChange, len(s.changes))
	copy(out, s.changes)
	return out
}
