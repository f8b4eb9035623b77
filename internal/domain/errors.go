package domain

import "errors"

// Domain errors
var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrTooManySessions   = errors.New("too many active sessions")
	ErrSessionClosed     = errors.New("session is closed")
	ErrInvalidPhase      = errors.New("invalid action for current phase")
	ErrInvalidTransition = errors.New("invalid phase transition")
	ErrNoTrials          = errors.New("protocol has no trials")
	ErrInvalidTrial      = errors.New("invalid trial configuration")
	ErrNoInput           = errors.New("trial has no input surface")
	ErrNoDisplay         = errors.New("trial has no display target")
	ErrTrialEnded        = errors.New("trial has ended")
	ErrInputLocked       = errors.New("input is locked while a prime word is shown")
)
