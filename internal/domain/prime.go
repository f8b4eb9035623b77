package domain

import (
	"fmt"
	"math"
	"strings"
)

// BlankWord is the schedule entry that empties the prime display
const BlankWord = "-"

// PrimeStrategy selects how prime words are scheduled within a trial
type PrimeStrategy string

const (
	PrimeNone    PrimeStrategy = "none"    // No prime words
	PrimeTimed   PrimeStrategy = "timed"   // Shown at fixed times from a schedule
	PrimeCounted PrimeStrategy = "counted" // Shown after a random number of responses
)

// PrimeWordEntry is a time-indexed schedule entry
type PrimeWordEntry struct {
	Word       string  `json:"word" yaml:"word"`
	StartTimeS float64 `json:"startTimeS" yaml:"at"`
}

// StartMS returns the entry's start time in milliseconds
func (e PrimeWordEntry) StartMS() int64 {
	return int64(math.Round(e.StartTimeS * 1000))
}

// IsBlank reports whether the entry clears the display instead of showing a word
func (e PrimeWordEntry) IsBlank() bool {
	return strings.TrimSpace(e.Word) == BlankWord
}

// PrimeDisplayRecord is one exposure of a count-indexed prime word
type PrimeDisplayRecord struct {
	Word         string `json:"word"`
	AppearedAtMS int64  `json:"appearedAtMs"`
	// DisappearedAtMS is nil when the trial deadline cut the exposure short.
	DisappearedAtMS *int64 `json:"disappearedAtMs,omitempty"`
}

// DisplayChange is one content change made by the time-indexed schedule
type DisplayChange struct {
	Word      string `json:"word"`
	ShownAtMS int64  `json:"shownAtMs"`
}

// ThresholdRange is the inclusive range the response countdown is drawn from
type ThresholdRange struct {
	Min int `json:"min" yaml:"min"`
	Max int `json:"max" yaml:"max"`
}

// Valid reports whether the range is non-empty and positive
func (r ThresholdRange) Valid() bool {
	return r.Min >= 1 && r.Max >= r.Min
}

func (r ThresholdRange) String() string {
	return fmt.Sprintf("[%d,%d]", r.Min, r.Max)
}
