package diagnostic

import (
	"sort"
	"strconv"

	"github.com/bussola-digital/bussola-backend/internal/catalog"
)

// ClassificationEvidence is the audit trail: every cause question of the
// gap with the user's literal answer, whether or not it scored points.
type ClassificationEvidence struct {
	QuestionKey string `json:"question_key"`
	Prompt      string `json:"prompt"`
	Answer      *int   `json:"answer,omitempty"`
}

type Classification struct {
	Scores    map[string]int
	Primary   *string
	Secondary *string
	Evidence  []ClassificationEvidence
}

// Classify resolves a gap's primary (and optional secondary) root cause
// from the answered cause questions. Pure and idempotent: identical
// answers always yield the identical result, and no cause is ever guessed
// when nothing scores.
func Classify(gap *catalog.GapDefinition, answers map[string]int) Classification {
	scores := map[string]int{}
	// causeOrder preserves stable catalog order (first appearance in the
	// weight rules) for deterministic tie handling.
	var causeOrder []string
	orderIdx := map[string]int{}
	for _, w := range gap.Weights {
		if _, seen := orderIdx[w.CauseID]; !seen {
			orderIdx[w.CauseID] = len(causeOrder)
			causeOrder = append(causeOrder, w.CauseID)
		}
		answer, ok := answers[w.QuestionKey]
		if !ok {
			continue
		}
		scores[w.CauseID] += w.Points[strconv.Itoa(answer)]
	}

	evidence := make([]ClassificationEvidence, 0, len(gap.CauseQuestions))
	for _, q := range gap.CauseQuestions {
		ev := ClassificationEvidence{QuestionKey: q.Key, Prompt: q.Prompt}
		if v, ok := answers[q.Key]; ok {
			value := v
			ev.Answer = &value
		}
		evidence = append(evidence, ev)
	}

	var ranked []string
	for _, id := range causeOrder {
		if scores[id] > 0 {
			ranked = append(ranked, id)
		}
	}
	if len(ranked) == 0 {
		return Classification{Scores: scores, Evidence: evidence}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return scores[ranked[i]] > scores[ranked[j]]
	})

	top := scores[ranked[0]]
	var tied []string
	for _, id := range ranked {
		if scores[id] == top {
			tied = append(tied, id)
		}
	}
	primary := resolveTie(tied, gap.TieBreaker)

	var secondary *string
	for _, id := range ranked {
		if id == primary {
			continue
		}
		if top-scores[id] <= 1 {
			value := id
			secondary = &value
		}
		break
	}

	p := primary
	return Classification{Scores: scores, Primary: &p, Secondary: secondary, Evidence: evidence}
}

// resolveTie picks the first tied candidate that appears in the gap's
// tie_breaker list, falling back to the first candidate in stable catalog
// order when none of them is listed.
func resolveTie(tied []string, tieBreaker []string) string {
	for _, preferred := range tieBreaker {
		for _, id := range tied {
			if id == preferred {
				return id
			}
		}
	}
	return tied[0]
}
