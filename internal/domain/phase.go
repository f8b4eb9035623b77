package domain

// Phase represents where a participant is in the experiment
type Phase string

const (
	PhaseWelcome  Phase = "WELCOME"  // One-time notice before the first trial
	PhaseTrial    Phase = "TRIAL"    // A category trial is running
	PhaseFinished Phase = "FINISHED" // All trials done, results available
)

// String returns the string representation of the phase
func (p Phase) String() string {
	return string(p)
}

// CanTransitionTo checks if a transition from current phase to target phase is valid
func (p Phase) CanTransitionTo(target Phase) bool {
	validTransitions := map[Phase][]Phase{
		PhaseWelcome: {PhaseTrial},
		PhaseTrial:   {PhaseTrial, PhaseFinished}, // Next trial or done
	}

	allowed, ok := validTransitions[p]
	if !ok {
		return false
	}

	for _, phase := range allowed {
		if phase == target {
			return true
		}
	}
	return false
}
