package diagnostic

import (
	"reflect"
	"testing"

	"github.com/bussola-digital/bussola-backend/internal/catalog"
)

func testGap() *catalog.GapDefinition {
	return &catalog.GapDefinition{
		GapID:      "gap_test_low",
		ProcessKey: "adm_fin",
		Band:       catalog.BandLow,
		Title:      "Caixa sem controle",
		CauseQuestions: []catalog.CauseQuestion{
			{Key: "q_controle", Prompt: "Registros diários?"},
			{Key: "q_separacao", Prompt: "Contas separadas?"},
			{Key: "q_rotina", Prompt: "Rotina semanal?"},
		},
		Weights: []catalog.WeightRule{
			{CauseID: "causa_a", QuestionKey: "q_controle", Points: map[string]int{"1": 2, "2": 1}},
			{CauseID: "causa_b", QuestionKey: "q_separacao", Points: map[string]int{"1": 2, "2": 1}},
			{CauseID: "causa_c", QuestionKey: "q_rotina", Points: map[string]int{"1": 2, "2": 1}},
		},
		TieBreaker: []string{"causa_b", "causa_a"},
	}
}

func TestClassifyTieBreakPrefersListedCause(t *testing.T) {
	gap := testGap()
	// causa_a and causa_b both score 2; causa_a appears first in scan
	// order but the tie_breaker lists causa_b first.
	got := Classify(gap, map[string]int{"q_controle": 1, "q_separacao": 1, "q_rotina": 5})
	if got.Primary == nil || *got.Primary != "causa_b" {
		t.Fatalf("primary = %v, want causa_b", got.Primary)
	}
	if got.Secondary == nil || *got.Secondary != "causa_a" {
		t.Fatalf("secondary = %v, want causa_a (tied at top)", got.Secondary)
	}
}

func TestClassifyTieBreakFallsBackToCatalogOrder(t *testing.T) {
	gap := testGap()
	gap.TieBreaker = []string{"causa_c"} // not among the tied candidates
	got := Classify(gap, map[string]int{"q_controle": 1, "q_separacao": 1, "q_rotina": 5})
	if got.Primary == nil || *got.Primary != "causa_a" {
		t.Fatalf("primary = %v, want causa_a (first in catalog order)", got.Primary)
	}
}

func TestClassifySecondaryBoundary(t *testing.T) {
	gap := &catalog.GapDefinition{
		GapID: "gap_boundary",
		CauseQuestions: []catalog.CauseQuestion{
			{Key: "qa", Prompt: "a"},
			{Key: "qb", Prompt: "b"},
		},
		Weights: []catalog.WeightRule{
			{CauseID: "A", QuestionKey: "qa", Points: map[string]int{"1": 5}},
			{CauseID: "B", QuestionKey: "qb", Points: map[string]int{"1": 4, "2": 3}},
		},
	}

	// {A:5, B:4}: gap of 1 point, B qualifies as secondary.
	got := Classify(gap, map[string]int{"qa": 1, "qb": 1})
	if got.Primary == nil || *got.Primary != "A" {
		t.Fatalf("primary = %v, want A", got.Primary)
	}
	if got.Secondary == nil || *got.Secondary != "B" {
		t.Fatalf("secondary = %v, want B at gap 1", got.Secondary)
	}

	// {A:5, B:3}: gap of 2 points, no secondary.
	got = Classify(gap, map[string]int{"qa": 1, "qb": 2})
	if got.Secondary != nil {
		t.Fatalf("secondary = %q, want nil at gap 2", *got.Secondary)
	}
}

func TestClassifyNothingScoresMeansNoPrimary(t *testing.T) {
	gap := testGap()
	// All high answers: every weight rule maps to 0 points.
	got := Classify(gap, map[string]int{"q_controle": 5, "q_separacao": 4, "q_rotina": 5})
	if got.Primary != nil {
		t.Fatalf("primary = %q, want nil (never guessed)", *got.Primary)
	}
	if got.Secondary != nil {
		t.Fatalf("secondary = %q, want nil", *got.Secondary)
	}
	if len(got.Evidence) != 3 {
		t.Fatalf("evidence entries = %d, want all 3 questions", len(got.Evidence))
	}
}

func TestClassifyEvidenceListsUnansweredQuestions(t *testing.T) {
	gap := testGap()
	got := Classify(gap, map[string]int{"q_controle": 1})
	if len(got.Evidence) != 3 {
		t.Fatalf("evidence entries = %d, want 3", len(got.Evidence))
	}
	byKey := map[string]ClassificationEvidence{}
	for _, ev := range got.Evidence {
		byKey[ev.QuestionKey] = ev
	}
	if ev := byKey["q_controle"]; ev.Answer == nil || *ev.Answer != 1 {
		t.Fatalf("q_controle answer = %v, want 1", ev.Answer)
	}
	if ev := byKey["q_rotina"]; ev.Answer != nil {
		t.Fatalf("q_rotina answer = %v, want nil for unanswered", *ev.Answer)
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	gap := testGap()
	answers := map[string]int{"q_controle": 1, "q_separacao": 1, "q_rotina": 2}
	first := Classify(gap, answers)
	for i := 0; i < 50; i++ {
		again := Classify(gap, answers)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs: %+v vs %+v", i, first, again)
		}
	}
}
