package domain

import "time"

// Experiment is one participant's run through a protocol
type Experiment struct {
	ID           string         `json:"id"`
	Welcome      string         `json:"welcome,omitempty"`
	Participant  *Participant   `json:"participant"`
	Trials       []TrialConfig  `json:"trials"`
	Results      []*TrialResult `json:"results"`
	CurrentIndex int            `json:"currentIndex"` // Index of the running trial
	Phase        Phase          `json:"phase"`
	CreatedAt    time.Time      `json:"createdAt"`
	FinishedAt   time.Time      `json:"finishedAt,omitempty"`
	Aborted      bool           `json:"aborted,omitempty"` // Finished before every trial ran
}

// NewExperiment creates an experiment waiting on its welcome notice
func NewExperiment(id, welcome string, trials []TrialConfig, participant *Participant) *Experiment {
	return &Experiment{
		ID:           id,
		Welcome:      welcome,
		Participant:  participant,
		Trials:       trials,
		Results:      make([]*TrialResult, 0, len(trials)),
		CurrentIndex: -1,
		Phase:        PhaseWelcome,
		CreatedAt:    time.Now(),
	}
}

// Begin leaves the welcome notice and moves to the first trial
func (e *Experiment) Begin() (TrialConfig, error) {
	if e.Phase != PhaseWelcome {
		return TrialConfig{}, ErrInvalidPhase
	}
	if len(e.Trials) == 0 {
		return TrialConfig{}, ErrNoTrials
	}

	e.Phase = PhaseTrial
	e.CurrentIndex = 0
	return e.Trials[0], nil
}

// CurrentTrial returns the configuration of the running trial
func (e *Experiment) CurrentTrial() (TrialConfig, bool) {
	if e.Phase != PhaseTrial || e.CurrentIndex < 0 || e.CurrentIndex >= len(e.Trials) {
		return TrialConfig{}, false
	}
	return e.Trials[e.CurrentIndex], true
}

// CompleteTrial stores the running trial's result and advances. It returns
// the next trial's configuration, or false once the protocol is exhausted.
func (e *Experiment) CompleteTrial(result *TrialResult) (TrialConfig, bool, error) {
	if e.Phase != PhaseTrial {
		return TrialConfig{}, false, ErrInvalidPhase
	}

	e.Results = append(e.Results, result)
	e.CurrentIndex++

	if e.CurrentIndex >= len(e.Trials) {
		if !e.Phase.CanTransitionTo(PhaseFinished) {
			return TrialConfig{}, false, ErrInvalidTransition
		}
		e.Phase = PhaseFinished
		e.FinishedAt = time.Now()
		return TrialConfig{}, false, nil
	}

	return e.Trials[e.CurrentIndex], true, nil
}

// Abort finishes the experiment early, keeping the results stored so far
func (e *Experiment) Abort() error {
	if e.Phase == PhaseFinished {
		return ErrInvalidPhase
	}

	e.Phase = PhaseFinished
	e.Aborted = true
	e.FinishedAt = time.Now()
	return nil
}

// IsFinished returns true once every trial has completed
func (e *Experiment) IsFinished() bool {
	return e.Phase == PhaseFinished
}

// TotalWords returns the number of words submitted across completed trials
func (e *Experiment) TotalWords() int {
	total := 0
	for _, r := range e.Results {
		total += r.NumberOfWords
	}
	return total
}
