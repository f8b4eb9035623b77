package app

import (
	"fluency/internal/domain"
	"fluency/internal/protocol"
)

// DefaultWelcome is the one-time notice shown before the first trial
const DefaultWelcome = "Category words will appear at the top of the screen. " +
	"Prime words will flash below them; you will not be able to type while one is on screen. " +
	"Type a word in the box and press ENTER to submit it. " +
	"You will have 60 seconds to submit words for each category. Press ENTER to start."

// DefaultSchedule is the time-indexed prime list for the Animals trial
var DefaultSchedule = []domain.PrimeWordEntry{
	{Word: "Arctic", StartTimeS: 3},
	{Word: "Atlas", StartTimeS: 12},
	{Word: "Vermin", StartTimeS: 37},
	{Word: "Trivial", StartTimeS: 50},
}

// DefaultPrimePools are candidate words for count-indexed trials, keyed by
// the category they are meant to prime
var DefaultPrimePools = map[string][]string{
	// Animals
	"Animals": {
		"DOG", "CAT", "HORSE", "EAGLE", "SALMON",
		"BEAR", "RABBIT", "OWL", "SHARK", "LIZARD",
	},

	// Fruits
	"Fruits": {
		"APPLE", "MANGO", "CHERRY", "LEMON", "GRAPE",
		"PEACH", "PLUM", "KIWI", "BANANA", "FIG",
	},

	// Tools
	"Tools": {
		"HAMMER", "WRENCH", "SAW", "CHISEL", "PLIERS",
		"DRILL", "LEVEL", "RASP", "CLAMP", "AXE",
	},
}

// DefaultProtocol is the protocol served when no protocol file is configured:
// one time-indexed trial followed by count-indexed trials
func DefaultProtocol() *protocol.Protocol {
	return &protocol.Protocol{
		Welcome: DefaultWelcome,
		Trials: []domain.TrialConfig{
			{
				Category:  "Animals",
				Duration:  domain.DefaultTrialDuration,
				TrimInput: true,
				Strategy:  domain.PrimeTimed,
				Schedule:  DefaultSchedule,
			},
			countedTrial("Fruits", domain.DefaultThreshold),
			countedTrial("Tools", domain.ThresholdRange{Min: 3, Max: 7}),
		},
	}
}

func countedTrial(category string, threshold domain.ThresholdRange) domain.TrialConfig {
	return domain.TrialConfig{
		Category:  category,
		Duration:  domain.DefaultTrialDuration,
		TrimInput: true,
		Strategy:  domain.PrimeCounted,
		Pool:      DefaultPrimePools[category],
		Threshold: threshold,
		Exposure:  domain.DefaultExposure,
	}
}
