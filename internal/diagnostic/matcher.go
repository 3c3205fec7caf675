package diagnostic

import (
	"github.com/bussola-digital/bussola-backend/internal/catalog"
)

type MatchKind string

const (
	MatchKindMatch MatchKind = "match"
	MatchKindNone  MatchKind = "none"
)

// NoMatchReason is the machine-readable "why none" carried by a no-content
// outcome. This is a valid business result, not an error.
type NoMatchReason string

const (
	ReasonNoScore              NoMatchReason = "no_score"
	ReasonNoCatalogItemForBand NoMatchReason = "no_catalog_item_for_band"
	ReasonNoMatchGE2           NoMatchReason = "no_match_ge_2"
	ReasonActionAlreadyUsed    NoMatchReason = "action_already_used"
)

// MatchResult is a tagged union: either a best-fit catalog action or an
// explicit "none" with its reason. There is no default action path.
type MatchResult struct {
	Kind       MatchKind
	Action     *catalog.CatalogAction
	MatchCount int
	Reason     NoMatchReason
}

// FailedSignals builds the failed-signal set for one process: every
// "{process}_{question}" whose answer is at or below the low cutoff.
func FailedSignals(processKey string, answers map[string]int, lowAnswerMax int) map[string]bool {
	failed := map[string]bool{}
	for questionKey, value := range answers {
		if value <= lowAnswerMax {
			failed[catalog.SignalID(processKey, questionKey)] = true
		}
	}
	return failed
}

// MatchAction selects the best-fit catalog action for a process/band, or
// declares no content. Candidates are restricted to the resolved band and
// must match at least 2 failed signals; ties break by catalog order
// (first wins). Excluded keys (already used in history) never qualify.
func MatchAction(cat *catalog.Catalog, processKey string, band catalog.Band, answers map[string]int, exclude map[string]bool) MatchResult {
	candidates := cat.ActionsFor(processKey, band)
	if len(candidates) == 0 {
		return MatchResult{Kind: MatchKindNone, Reason: ReasonNoCatalogItemForBand}
	}

	failed := FailedSignals(processKey, answers, cat.Actions.LowAnswerMax)
	if len(failed) == 0 {
		return MatchResult{Kind: MatchKindNone, Reason: ReasonNoScore}
	}

	var best *catalog.CatalogAction
	bestCount := 0
	excludedQualified := false
	for _, a := range candidates {
		count := 0
		for _, s := range a.RequiredSignals {
			if failed[s] {
				count++
			}
		}
		if count < 2 {
			continue
		}
		if exclude[a.ActionKey] {
			excludedQualified = true
			continue
		}
		if count > bestCount {
			best = a
			bestCount = count
		}
	}
	if best == nil {
		if excludedQualified {
			return MatchResult{Kind: MatchKindNone, Reason: ReasonActionAlreadyUsed}
		}
		return MatchResult{Kind: MatchKindNone, Reason: ReasonNoMatchGE2}
	}
	return MatchResult{Kind: MatchKindMatch, Action: best, MatchCount: bestCount}
}
