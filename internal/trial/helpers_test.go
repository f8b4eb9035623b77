package trial

import (
	"io"
	"log/slog"
	"time"

	"fluency/internal/clock"
	"fluency/internal/domain"
)

var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// fakeInput tracks the text box state the way a browser would
type fakeInput struct {
	clock    clock.Clock
	disabled bool
	clears   int
	locks    []time.Time
	unlocks  []time.Time
}

func (i *fakeInput) Clear() { i.clears++ }

func (i *fakeInput) Disable() {
	i.disabled = true
	i.locks = append(i.locks, i.clock.Now())
}

func (i *fakeInput) Enable() {
	i.disabled = false
	i.unlocks = append(i.unlocks, i.clock.Now())
}

type shown struct {
	word string
	at   time.Duration
}

// fakeDisplay records every content change with its trial-relative time
type fakeDisplay struct {
	clock   clock.Clock
	text    string
	history []shown
}

func (d *fakeDisplay) Show(word string) {
	d.text = word
	d.history = append(d.history, shown{word: word, at: d.clock.Now().Sub(epoch)})
}

func (d *fakeDisplay) Clear() {
	d.text = ""
	d.history = append(d.history, shown{word: "", at: d.clock.Now().Sub(epoch)})
}

// seqRand replays a fixed sequence of draws
type seqRand struct {
	vals []int
	i    int
}

func (r *seqRand) Intn(n int) int {
	v := r.vals[r.i%len(r.vals)] % n
	r.i++
	return v
}

type harness struct {
	clock   *clock.Fake
	input   *fakeInput
	display *fakeDisplay
	expired []*domain.TrialResult
}

func newHarness() *harness {
	c := clock.NewFake(epoch)
	return &harness{
		clock:   c,
		input:   &fakeInput{clock: c},
		display: &fakeDisplay{clock: c},
	}
}

func (h *harness) env(r Rand) Env {
	return Env{
		Clock:   h.clock,
		Rand:    r,
		Input:   h.input,
		Display: h.display,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		OnExpire: func(res *domain.TrialResult) {
			h.expired = append(h.expired, res)
		},
	}
}

func countedConfig(pool []string, threshold domain.ThresholdRange) domain.TrialConfig {
	return domain.TrialConfig{
		Category:  "Animals",
		Duration:  60 * time.Second,
		TrimInput: true,
		Strategy:  domain.PrimeCounted,
		Pool:      pool,
		Threshold: threshold,
		Exposure:  domain.DefaultExposure,
	}
}

func fixedThreshold(n int) domain.ThresholdRange {
	return domain.ThresholdRange{Min: n, Max: n}
}
