package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"fluency/internal/domain"
)

// Row kinds in the CSV table
const (
	KindResponse = "response"
	KindPrime    = "prime"
	KindDisplay  = "display"
)

// Header is the CSV column order
var Header = []string{"session_id", "trial_index", "category", "strategy", "kind", "word", "time_ms", "end_ms"}

// Report is the JSON export of a session's results
type Report struct {
	SessionID  string                `json:"sessionId"`
	TotalWords int                   `json:"totalWords"`
	Trials     []*domain.TrialResult `json:"trials"`
}

type row struct {
	kind string
	word string
	at   int64
	end  string
}

// WriteCSV writes one row per response, prime exposure and display change,
// ordered by trial and then by time within the trial
func WriteCSV(w io.Writer, sessionID string, results []*domain.TrialResult) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, r := range results {
		for _, rw := range trialRows(r) {
			record := []string{
				sessionID,
				strconv.Itoa(r.Index),
				r.Category,
				string(r.Strategy),
				rw.kind,
				rw.word,
				strconv.FormatInt(rw.at, 10),
				rw.end,
			}
			if err := cw.Write(record); err != nil {
				return fmt.Errorf("write trial %d: %w", r.Index, err)
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteJSON writes the session's results as an indented Report
func WriteJSON(w io.Writer, sessionID string, results []*domain.TrialResult) error {
	report := Report{
		SessionID: sessionID,
		Trials:    results,
	}
	for _, r := range results {
		report.TotalWords += r.NumberOfWords
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(&report)
}

func trialRows(r *domain.TrialResult) []row {
	rows := make([]row, 0, len(r.Words)+len(r.Primes)+len(r.Displays))

	for _, s := range r.Words {
		rows = append(rows, row{kind: KindResponse, word: s.Word, at: s.TimeOffsetMS})
	}
	for _, p := range r.Primes {
		end := ""
		if p.DisappearedAtMS != nil {
			end = strconv.FormatInt(*p.DisappearedAtMS, 10)
		}
		rows = append(rows, row{kind: KindPrime, word: p.Word, at: p.AppearedAtMS, end: end})
	}
	for _, d := range r.Displays {
		rows = append(rows, row{kind: KindDisplay, word: d.Word, at: d.ShownAtMS})
	}

	// Responses sort ahead of a prime they triggered at the same instant.
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].at < rows[j].at
	})
	return rows
}
