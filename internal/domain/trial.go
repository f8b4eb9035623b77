package domain

import (
	"fmt"
	"strings"
	"time"
)

// Trial defaults
const (
	DefaultTrialDuration = 60 * time.Second
	DefaultExposure      = 500 * time.Millisecond
	DefaultPollInterval  = 100 * time.Millisecond
)

// DefaultThreshold is the countdown range used when a protocol leaves it unset
var DefaultThreshold = ThresholdRange{Min: 3, Max: 6}

// TrialConfig describes one timed category round
type TrialConfig struct {
	Category  string           `json:"category"`
	Duration  time.Duration    `json:"duration"`
	TrimInput bool             `json:"trimInput"`
	Strategy  PrimeStrategy    `json:"strategy"`
	Schedule  []PrimeWordEntry `json:"schedule,omitempty"`  // Timed strategy
	Pool      []string         `json:"pool,omitempty"`      // Counted strategy
	Threshold ThresholdRange   `json:"threshold,omitempty"` // Counted strategy
	Exposure  time.Duration    `json:"exposure,omitempty"`  // Counted strategy
}

// Validate checks the configuration is runnable
func (c TrialConfig) Validate() error {
	if strings.TrimSpace(c.Category) == "" {
		return fmt.Errorf("%w: category is required", ErrInvalidTrial)
	}
	if c.Duration <= 0 {
		return fmt.Errorf("%w: %s: duration must be positive", ErrInvalidTrial, c.Category)
	}

	switch c.Strategy {
	case PrimeNone:
	case PrimeTimed:
		for _, e := range c.Schedule {
			if e.StartTimeS < 0 {
				return fmt.Errorf("%w: %s: prime %q starts before the trial", ErrInvalidTrial, c.Category, e.Word)
			}
		}
	case PrimeCounted:
		if !c.Threshold.Valid() {
			return fmt.Errorf("%w: %s: threshold %s", ErrInvalidTrial, c.Category, c.Threshold)
		}
		if c.Exposure <= 0 {
			return fmt.Errorf("%w: %s: exposure must be positive", ErrInvalidTrial, c.Category)
		}
	default:
		return fmt.Errorf("%w: %s: unknown prime strategy %q", ErrInvalidTrial, c.Category, c.Strategy)
	}

	return nil
}

// TrialResult is the frozen data a trial hands to the results exporter
type TrialResult struct {
	TrialID       string               `json:"trialId"`
	Index         int                  `json:"index"`
	Category      string               `json:"category"`
	Strategy      PrimeStrategy        `json:"strategy"`
	DurationMS    int64                `json:"durationMs"`
	Words         []Submission         `json:"words"`
	NumberOfWords int                  `json:"numberOfWords"`
	Primes        []PrimeDisplayRecord `json:"primes,omitempty"`
	Displays      []DisplayChange      `json:"displays,omitempty"`
	StartedAt     time.Time            `json:"startedAt"`
}
