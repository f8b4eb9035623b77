package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fluency/internal/domain"
	"fluency/internal/protocol"
)

var validateCmd = &cobra.Command{
	Use:   "validate <protocol.yaml>",
	Short: "Check a protocol file and summarize its trials",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := protocol.Load(args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s: %d trials\n", args[0], len(p.Trials))
		for i, t := range p.Trials {
			fmt.Fprintf(out, "  %d. %-12s %-8s %6s  %s\n", i+1, t.Category, t.Strategy, t.Duration, primeSummary(t))
		}
		return nil
	},
}

func primeSummary(t domain.TrialConfig) string {
	switch t.Strategy {
	case domain.PrimeTimed:
		return fmt.Sprintf("%d scheduled primes", len(t.Schedule))
	case domain.PrimeCounted:
		return fmt.Sprintf("%d pool words, every %s responses, %s exposure", len(t.Pool), t.Threshold, t.Exposure)
	default:
		return "no primes"
	}
}
