package diagnostic

import (
	"github.com/bussola-digital/bussola-backend/internal/catalog"
)

// ProcessResult is one process's derived maturity. ComputeProcessScores
// always returns exactly one result per catalog process, in catalog order.
type ProcessResult struct {
	ProcessKey   string
	Label        string
	ScoreNumeric int
	Band         catalog.Band
}

// ComputeProcessScores turns the raw answer set into the 4 process scores.
// answers is keyed by process then question; missing answers contribute 0
// (submit refuses incomplete answer sets before this runs).
func ComputeProcessScores(cat *catalog.Catalog, answers map[string]map[string]int) []ProcessResult {
	out := make([]ProcessResult, 0, len(cat.Actions.Processes))
	for _, p := range cat.Actions.Processes {
		score := 0
		for _, q := range p.Questions {
			score += answers[p.Key][q.Key]
		}
		out = append(out, ProcessResult{
			ProcessKey:   p.Key,
			Label:        p.Label,
			ScoreNumeric: score,
			Band:         cat.BandFor(score),
		})
	}
	return out
}

// MissingAnswers returns the first process (in catalog order) with
// unanswered questionnaire questions, plus those question keys.
func MissingAnswers(cat *catalog.Catalog, answers map[string]map[string]int) (string, []string) {
	for _, p := range cat.Actions.Processes {
		var missing []string
		for _, q := range p.Questions {
			if _, ok := answers[p.Key][q.Key]; !ok {
				missing = append(missing, q.Key)
			}
		}
		if len(missing) > 0 {
			return p.Key, missing
		}
	}
	return "", nil
}
