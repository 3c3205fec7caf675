package diagnostic

import (
	"github.com/bussola-digital/bussola-backend/internal/catalog"
)

const GapReasonNotClassified = "gap_not_classified"

// DerivedRecommendation is one suggestion row per process. When nothing in
// the catalog fits, IsFallback is true and Title is the catalog's canonical
// fallback string — findings text is never synthesized.
type DerivedRecommendation struct {
	ProcessKey        string
	Band              catalog.Band
	RecommendationKey string
	Title             string
	ActionKeys        []string
	IsFallback        bool
	GapReason         string
}

// Derive combines cause classification and action-fit matching into one
// ranked suggestion per process. gapPrimary maps gap_id to the persisted
// primary cause; exclude holds action keys already used in history.
func Derive(
	cat *catalog.Catalog,
	scores []ProcessResult,
	answers map[string]map[string]int,
	gapPrimary map[string]string,
	exclude map[string]bool,
) []DerivedRecommendation {
	out := make([]DerivedRecommendation, 0, len(scores))
	for _, ps := range scores {
		if gap := cat.GapFor(ps.ProcessKey, ps.Band); gap != nil {
			out = append(out, deriveForGap(cat, ps, gap, gapPrimary))
			continue
		}
		out = append(out, deriveFromMatcher(cat, ps, answers[ps.ProcessKey], exclude))
	}
	return out
}

func deriveForGap(cat *catalog.Catalog, ps ProcessResult, gap *catalog.GapDefinition, gapPrimary map[string]string) DerivedRecommendation {
	causeID, classified := gapPrimary[gap.GapID]
	if !classified {
		return DerivedRecommendation{
			ProcessKey:        ps.ProcessKey,
			Band:              ps.Band,
			RecommendationKey: gap.GapID,
			Title:             cat.Actions.FallbackTitle,
			IsFallback:        true,
			GapReason:         GapReasonNotClassified,
		}
	}
	return DerivedRecommendation{
		ProcessKey:        ps.ProcessKey,
		Band:              ps.Band,
		RecommendationKey: gap.GapID,
		Title:             gap.Title,
		ActionKeys:        cat.MechanismActionKeysFor(gap, causeID),
	}
}

func deriveFromMatcher(cat *catalog.Catalog, ps ProcessResult, answers map[string]int, exclude map[string]bool) DerivedRecommendation {
	m := MatchAction(cat, ps.ProcessKey, ps.Band, answers, exclude)
	if m.Kind == MatchKindMatch {
		return DerivedRecommendation{
			ProcessKey:        ps.ProcessKey,
			Band:              ps.Band,
			RecommendationKey: m.Action.ActionKey,
			Title:             m.Action.Title,
			ActionKeys:        []string{m.Action.ActionKey},
		}
	}
	return DerivedRecommendation{
		ProcessKey:        ps.ProcessKey,
		Band:              ps.Band,
		RecommendationKey: ps.ProcessKey + "_none",
		Title:             cat.Actions.FallbackTitle,
		IsFallback:        true,
		GapReason:         string(m.Reason),
	}
}
