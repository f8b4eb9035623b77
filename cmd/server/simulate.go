package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"fluency/internal/app"
	"fluency/internal/clock"
	"fluency/internal/domain"
	"fluency/internal/export"
	"fluency/internal/trial"
)

var (
	simSeed  int64
	simEvery time.Duration
	simJSON  bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate [protocol.yaml]",
	Short: "Run a protocol on a virtual clock with a scripted participant",
	Long: `Runs every trial of the protocol on a virtual clock. The scripted
participant submits a numbered word at a fixed interval; submissions that
land while input is locked are dropped. The results are written to stdout.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) == 1 {
			path = args[0]
		}
		p, err := loadProtocol(path)
		if err != nil {
			return err
		}
		if simEvery <= 0 {
			return fmt.Errorf("--every must be positive")
		}

		c := clock.NewFake(time.Now())
		seed := simSeed
		opts := app.SessionOptions{
			Clock: c,
			Rand: func() trial.Rand {
				seed++
				return rand.New(rand.NewSource(seed))
			},
		}

		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		exp := domain.NewExperiment("simulation", p.Welcome, p.Trials, domain.NewParticipant("scripted"))
		session := app.NewExperimentSession(exp, opts, logger)
		defer session.Close()

		results, err := simulate(session, c, simEvery)
		if err != nil {
			return err
		}

		if simJSON {
			return export.WriteJSON(cmd.OutOrStdout(), session.GetID(), results)
		}
		return export.WriteCSV(cmd.OutOrStdout(), session.GetID(), results)
	},
}

func init() {
	simulateCmd.Flags().Int64Var(&simSeed, "seed", 1, "random seed for thresholds and prime picks")
	simulateCmd.Flags().DurationVar(&simEvery, "every", 2*time.Second, "interval between scripted responses")
	simulateCmd.Flags().BoolVar(&simJSON, "json", false, "write JSON instead of CSV")
}

// simulate drives session to completion, submitting a word every interval
func simulate(session *app.ExperimentSession, c *clock.Fake, every time.Duration) ([]*domain.TrialResult, error) {
	if err := session.Begin(); err != nil {
		return nil, err
	}

	for n := 1; !session.IsFinished(); n++ {
		c.Advance(every)
		if session.IsFinished() {
			break
		}

		_, err := session.SubmitResponse(fmt.Sprintf("word%d", n))
		switch {
		case err == nil,
			errors.Is(err, domain.ErrInputLocked),
			errors.Is(err, domain.ErrTrialEnded):
		default:
			return nil, err
		}
	}

	return session.Results(), nil
}
