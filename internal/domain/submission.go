package domain

// Submission is one word entered by the participant during a trial
type Submission struct {
	Word         string `json:"word"`
	TimeOffsetMS int64  `json:"timeOffsetMs"` // Relative to the trial's own start
}

// NewSubmission creates a new submission
func NewSubmission(word string, offsetMS int64) Submission {
	return Submission{
		Word:         word,
		TimeOffsetMS: offsetMS,
	}
}
