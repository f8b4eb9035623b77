// Package protocol loads experiment protocols: the welcome notice and the
// ordered list of category trials with their prime-word settings.
package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"fluency/internal/domain"
)

// Protocol is a validated, ready-to-run experiment definition
type Protocol struct {
	Welcome string
	Trials  []domain.TrialConfig
}

// file mirrors the YAML document
type file struct {
	Welcome  string      `yaml:"welcome"`
	Defaults defaults    `yaml:"defaults"`
	Trials   []trialSpec `yaml:"trials"`
}

type defaults struct {
	Duration  time.Duration          `yaml:"duration"`
	TrimInput *bool                  `yaml:"trim_input"`
	Threshold *domain.ThresholdRange `yaml:"threshold"`
	Exposure  time.Duration          `yaml:"exposure"`
}

type trialSpec struct {
	Category  string        `yaml:"category"`
	Duration  time.Duration `yaml:"duration"`
	TrimInput *bool         `yaml:"trim_input"`
	Primes    primeSpec     `yaml:"primes"`
}

type primeSpec struct {
	Strategy  domain.PrimeStrategy    `yaml:"strategy"`
	Schedule  []domain.PrimeWordEntry `yaml:"schedule"`
	Pool      []string                `yaml:"pool"`
	Threshold *domain.ThresholdRange  `yaml:"threshold"`
	Exposure  time.Duration           `yaml:"exposure"`
}

// Load reads and parses a protocol file
func Load(path string) (*Protocol, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read protocol: %w", err)
	}

	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Parse decodes a YAML protocol, fills in defaults and validates every trial
func Parse(data []byte) (*Protocol, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f file
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, domain.ErrNoTrials
		}
		return nil, fmt.Errorf("decode protocol: %w", err)
	}

	p := &Protocol{
		Welcome: f.Welcome,
		Trials:  make([]domain.TrialConfig, 0, len(f.Trials)),
	}
	for _, spec := range f.Trials {
		p.Trials = append(p.Trials, spec.config(f.Defaults))
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks that the protocol has trials and that each one is runnable
func (p *Protocol) Validate() error {
	if len(p.Trials) == 0 {
		return domain.ErrNoTrials
	}
	for i, t := range p.Trials {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("trial %d: %w", i+1, err)
		}
	}
	return nil
}

// config resolves a trial spec against the document defaults
func (s trialSpec) config(d defaults) domain.TrialConfig {
	cfg := domain.TrialConfig{
		Category:  s.Category,
		Duration:  firstDuration(s.Duration, d.Duration, domain.DefaultTrialDuration),
		TrimInput: firstBool(s.TrimInput, d.TrimInput, true),
		Strategy:  s.Primes.Strategy,
	}
	if cfg.Strategy == "" {
		cfg.Strategy = domain.PrimeNone
	}

	switch cfg.Strategy {
	case domain.PrimeTimed:
		cfg.Schedule = s.Primes.Schedule
	case domain.PrimeCounted:
		cfg.Pool = s.Primes.Pool
		cfg.Exposure = firstDuration(s.Primes.Exposure, d.Exposure, domain.DefaultExposure)
		switch {
		case s.Primes.Threshold != nil:
			cfg.Threshold = *s.Primes.Threshold
		case d.Threshold != nil:
			cfg.Threshold = *d.Threshold
		default:
			cfg.Threshold = domain.DefaultThreshold
		}
	}

	return cfg
}

func firstDuration(values ...time.Duration) time.Duration {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}

func firstBool(trial, doc *bool, fallback bool) bool {
	if trial != nil {
		return *trial
	}
	if doc != nil {
		return *doc
	}
	return fallback
}
