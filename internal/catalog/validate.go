package catalog

import (
	"fmt"
	"strconv"
	"strings"
)

const requiredProcessCount = 4

// Validate checks both documents structurally and referentially before the
// catalog is ever served. Any violation means the deploy ships a broken
// reference dataset, so the caller must treat an error here as fatal.
func Validate(c *Catalog) error {
	if err := validateActions(c); err != nil {
		return fmt.Errorf("action_catalog: %w", err)
	}
	if err := validateCauses(c); err != nil {
		return fmt.Errorf("cause_catalog: %w", err)
	}
	return nil
}

func validateActions(c *Catalog) error {
	ac := c.Actions
	if strings.TrimSpace(ac.Version) == "" {
		return fmt.Errorf("missing version")
	}
	if ac.LowAnswerMax < 1 || ac.LowAnswerMax > 4 {
		return fmt.Errorf("low_answer_max %d out of range [1,4]", ac.LowAnswerMax)
	}
	if strings.TrimSpace(ac.FallbackTitle) == "" {
		return fmt.Errorf("missing fallback_title")
	}
	if len(ac.Bands) != 3 {
		return fmt.Errorf("expected 3 band thresholds, got %d", len(ac.Bands))
	}
	expected := []Band{BandLow, BandMedium, BandHigh}
	prev := 0
	for i, t := range ac.Bands {
		if t.Band != expected[i] {
			return fmt.Errorf("band threshold %d: expected %s, got %s", i, expected[i], t.Band)
		}
		if t.MaxScore <= prev {
			return fmt.Errorf("band thresholds must be strictly ascending")
		}
		prev = t.MaxScore
	}

	if len(ac.Processes) != requiredProcessCount {
		return fmt.Errorf("expected exactly %d processes, got %d", requiredProcessCount, len(ac.Processes))
	}
	seenProcess := map[string]bool{}
	for _, p := range ac.Processes {
		if strings.TrimSpace(p.Key) == "" || strings.TrimSpace(p.Label) == "" {
			return fmt.Errorf("process with empty key or label")
		}
		if seenProcess[p.Key] {
			return fmt.Errorf("duplicate process key %q", p.Key)
		}
		seenProcess[p.Key] = true
		if len(p.Questions) < 3 {
			return fmt.Errorf("process %q has %d questions, need at least 3", p.Key, len(p.Questions))
		}
		seenQ := map[string]bool{}
		for _, q := range p.Questions {
			if strings.TrimSpace(q.Key) == "" || strings.TrimSpace(q.Prompt) == "" {
				return fmt.Errorf("process %q has a question with empty key or prompt", p.Key)
			}
			if seenQ[q.Key] {
				return fmt.Errorf("process %q has duplicate question key %q", p.Key, q.Key)
			}
			seenQ[q.Key] = true
		}
	}

	validSignals := map[string]bool{}
	for _, p := range ac.Processes {
		for _, q := range p.Questions {
			validSignals[SignalID(p.Key, q.Key)] = true
		}
	}

	seenAction := map[string]bool{}
	for _, a := range ac.Actions {
		if strings.TrimSpace(a.ActionKey) == "" || strings.TrimSpace(a.Title) == "" {
			return fmt.Errorf("action with empty key or title")
		}
		if seenAction[a.ActionKey] {
			return fmt.Errorf("duplicate action key %q", a.ActionKey)
		}
		seenAction[a.ActionKey] = true
		if !seenProcess[a.ProcessKey] {
			return fmt.Errorf("action %q references unknown process %q", a.ActionKey, a.ProcessKey)
		}
		if !a.Band.Valid() {
			return fmt.Errorf("action %q has invalid band %q", a.ActionKey, a.Band)
		}
		if len(a.Steps) != 3 {
			return fmt.Errorf("action %q has %d steps, need exactly 3", a.ActionKey, len(a.Steps))
		}
		if len(a.DoneWhen) < 2 || len(a.DoneWhen) > 5 {
			return fmt.Errorf("action %q has %d done_when items, need 2..5", a.ActionKey, len(a.DoneWhen))
		}
		if len(a.RequiredSignals) < 3 || len(a.RequiredSignals) > 5 {
			return fmt.Errorf("action %q has %d required_signals, need 3..5", a.ActionKey, len(a.RequiredSignals))
		}
		for _, s := range a.RequiredSignals {
			if !validSignals[s] {
				return fmt.Errorf("action %q references unknown signal %q", a.ActionKey, s)
			}
			if !strings.HasPrefix(s, a.ProcessKey+"_") {
				return fmt.Errorf("action %q signal %q does not belong to process %q", a.ActionKey, s, a.ProcessKey)
			}
		}
	}
	return nil
}

func validateCauses(c *Catalog) error {
	cc := c.Causes
	if strings.TrimSpace(cc.Version) == "" {
		return fmt.Errorf("missing version")
	}
	if len(cc.Causes) == 0 {
		return fmt.Errorf("no cause classes")
	}
	seenCause := map[string]bool{}
	for _, cause := range cc.Causes {
		if strings.TrimSpace(cause.ID) == "" || strings.TrimSpace(cause.Label) == "" {
			return fmt.Errorf("cause with empty id or label")
		}
		if seenCause[cause.ID] {
			return fmt.Errorf("duplicate cause id %q", cause.ID)
		}
		seenCause[cause.ID] = true
	}

	seenGap := map[string]bool{}
	seenGapBinding := map[string]bool{}
	for _, g := range cc.Gaps {
		if strings.TrimSpace(g.GapID) == "" || strings.TrimSpace(g.Title) == "" {
			return fmt.Errorf("gap with empty id or title")
		}
		if seenGap[g.GapID] {
			return fmt.Errorf("duplicate gap id %q", g.GapID)
		}
		seenGap[g.GapID] = true
		if c.ProcessByKey(g.ProcessKey) == nil {
			return fmt.Errorf("gap %q references unknown process %q", g.GapID, g.ProcessKey)
		}
		if !g.Band.Valid() {
			return fmt.Errorf("gap %q has invalid band %q", g.GapID, g.Band)
		}
		binding := g.ProcessKey + "/" + string(g.Band)
		if seenGapBinding[binding] {
			return fmt.Errorf("gap %q duplicates process/band binding %s", g.GapID, binding)
		}
		seenGapBinding[binding] = true

		if len(g.CauseQuestions) == 0 {
			return fmt.Errorf("gap %q has no cause questions", g.GapID)
		}
		seenQ := map[string]bool{}
		for _, q := range g.CauseQuestions {
			if strings.TrimSpace(q.Key) == "" || strings.TrimSpace(q.Prompt) == "" {
				return fmt.Errorf("gap %q has a cause question with empty key or prompt", g.GapID)
			}
			if seenQ[q.Key] {
				return fmt.Errorf("gap %q has duplicate cause question %q", g.GapID, q.Key)
			}
			seenQ[q.Key] = true
		}

		for _, w := range g.Weights {
			if !seenCause[w.CauseID] {
				return fmt.Errorf("gap %q weight references unknown cause %q", g.GapID, w.CauseID)
			}
			if !seenQ[w.QuestionKey] {
				return fmt.Errorf("gap %q weight references unknown question %q", g.GapID, w.QuestionKey)
			}
			if len(w.Points) == 0 {
				return fmt.Errorf("gap %q weight for %q/%q has no points", g.GapID, w.CauseID, w.QuestionKey)
			}
			for k := range w.Points {
				v, err := strconv.Atoi(k)
				if err != nil || v < 1 || v > 5 {
					return fmt.Errorf("gap %q weight has invalid answer key %q", g.GapID, k)
				}
			}
		}

		seenTB := map[string]bool{}
		for _, id := range g.TieBreaker {
			if !seenCause[id] {
				return fmt.Errorf("gap %q tie_breaker references unknown cause %q", g.GapID, id)
			}
			if seenTB[id] {
				return fmt.Errorf("gap %q tie_breaker lists cause %q twice", g.GapID, id)
			}
			seenTB[id] = true
		}

		perCause := map[string]map[int]bool{}
		for _, ma := range g.MechanismActions {
			if !seenCause[ma.CauseID] {
				return fmt.Errorf("gap %q mechanism action references unknown cause %q", g.GapID, ma.CauseID)
			}
			if c.ActionByKey(ma.ActionKey) == nil {
				return fmt.Errorf("gap %q mechanism action references unknown action %q", g.GapID, ma.ActionKey)
			}
			orders := perCause[ma.CauseID]
			if orders == nil {
				orders = map[int]bool{}
				perCause[ma.CauseID] = orders
			}
			if orders[ma.SortOrder] {
				return fmt.Errorf("gap %q cause %q has duplicate sort_order %d", g.GapID, ma.CauseID, ma.SortOrder)
			}
			orders[ma.SortOrder] = true
			if len(orders) > 3 {
				return fmt.Errorf("gap %q cause %q has more than 3 mechanism actions", g.GapID, ma.CauseID)
			}
		}
	}
	return nil
}
