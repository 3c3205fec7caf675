package catalog

import (
	"strings"
	"testing"
)

func validDocs() (*ActionCatalog, *CauseCatalog) {
	questions := func() []Question {
		return []Question{
			{Key: "q1", Prompt: "p1"},
			{Key: "q2", Prompt: "p2"},
			{Key: "q3", Prompt: "p3"},
		}
	}
	actions := &ActionCatalog{
		Version:       "test",
		LowAnswerMax:  2,
		FallbackTitle: "Em definição",
		Bands: []BandThreshold{
			{Band: BandLow, MaxScore: 11},
			{Band: BandMedium, MaxScore: 18},
			{Band: BandHigh, MaxScore: 25},
		},
		Processes: []Process{
			{Key: "comercial", Label: "Comercial", Questions: questions()},
			{Key: "operacoes", Label: "Operações", Questions: questions()},
			{Key: "adm_fin", Label: "Administrativo-financeiro", Questions: questions()},
			{Key: "gestao", Label: "Gestão", Questions: questions()},
		},
		Actions: []CatalogAction{
			{
				ProcessKey:      "comercial",
				Band:            BandLow,
				ActionKey:       "com_a",
				Title:           "Organizar o funil",
				Steps:           []string{"1", "2", "3"},
				DoneWhen:        []string{"a", "b"},
				RequiredSignals: []string{"comercial_q1", "comercial_q2", "comercial_q3"},
			},
		},
	}
	causes := &CauseCatalog{
		Version: "test",
		Causes: []CauseClass{
			{ID: "causa_processo", Label: "Processo"},
			{ID: "causa_rotina", Label: "Rotina"},
		},
		Gaps: []GapDefinition{
			{
				GapID:      "gap_comercial_low",
				ProcessKey: "comercial",
				Band:       BandLow,
				Title:      "Comercial sem funil",
				CauseQuestions: []CauseQuestion{
					{Key: "cq1", Prompt: "p"},
					{Key: "cq2", Prompt: "p"},
				},
				Weights: []WeightRule{
					{CauseID: "causa_processo", QuestionKey: "cq1", Points: map[string]int{"1": 3, "2": 2}},
					{CauseID: "causa_rotina", QuestionKey: "cq2", Points: map[string]int{"1": 3}},
				},
				TieBreaker: []string{"causa_processo"},
				MechanismActions: []MechanismAction{
					{CauseID: "causa_processo", ActionKey: "com_a", SortOrder: 1},
				},
			},
		},
	}
	return actions, causes
}

func TestValidateAcceptsWellFormedDocs(t *testing.T) {
	if err := Validate(New(validDocs())); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejectsMalformedDocs(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(a *ActionCatalog, c *CauseCatalog)
		wantSub string
	}{
		{
			"missing version",
			func(a *ActionCatalog, c *CauseCatalog) { a.Version = " " },
			"missing version",
		},
		{
			"low_answer_max out of range",
			func(a *ActionCatalog, c *CauseCatalog) { a.LowAnswerMax = 5 },
			"low_answer_max",
		},
		{
			"non-ascending bands",
			func(a *ActionCatalog, c *CauseCatalog) { a.Bands[1].MaxScore = 11 },
			"ascending",
		},
		{
			"wrong band order",
			func(a *ActionCatalog, c *CauseCatalog) {
				a.Bands[0].Band, a.Bands[1].Band = BandMedium, BandLow
			},
			"expected LOW",
		},
		{
			"wrong process count",
			func(a *ActionCatalog, c *CauseCatalog) { a.Processes = a.Processes[:3] },
			"exactly 4 processes",
		},
		{
			"duplicate question key",
			func(a *ActionCatalog, c *CauseCatalog) { a.Processes[0].Questions[1].Key = "q1" },
			"duplicate question key",
		},
		{
			"action with wrong step count",
			func(a *ActionCatalog, c *CauseCatalog) { a.Actions[0].Steps = []string{"1"} },
			"steps",
		},
		{
			"action signal from another process",
			func(a *ActionCatalog, c *CauseCatalog) {
				a.Actions[0].RequiredSignals[0] = "operacoes_q1"
			},
			"does not belong",
		},
		{
			"action signal that does not exist",
			func(a *ActionCatalog, c *CauseCatalog) {
				a.Actions[0].RequiredSignals[0] = "comercial_nope"
			},
			"unknown signal",
		},
		{
			"cause catalog without causes",
			func(a *ActionCatalog, c *CauseCatalog) { c.Causes = nil },
			"no cause classes",
		},
		{
			"two gaps on one process/band",
			func(a *ActionCatalog, c *CauseCatalog) {
				dup := c.Gaps[0]
				dup.GapID = "gap_dup"
				c.Gaps = append(c.Gaps, dup)
			},
			"process/band binding",
		},
		{
			"weight with unknown cause",
			func(a *ActionCatalog, c *CauseCatalog) { c.Gaps[0].Weights[0].CauseID = "causa_nope" },
			"unknown cause",
		},
		{
			"weight with answer key outside 1..5",
			func(a *ActionCatalog, c *CauseCatalog) {
				c.Gaps[0].Weights[0].Points = map[string]int{"6": 1}
			},
			"invalid answer key",
		},
		{
			"tie_breaker with unknown cause",
			func(a *ActionCatalog, c *CauseCatalog) {
				c.Gaps[0].TieBreaker = []string{"causa_nope"}
			},
			"unknown cause",
		},
		{
			"mechanism action with unknown action key",
			func(a *ActionCatalog, c *CauseCatalog) {
				c.Gaps[0].MechanismActions[0].ActionKey = "nope"
			},
			"unknown action",
		},
		{
			"mechanism actions over the cap",
			func(a *ActionCatalog, c *CauseCatalog) {
				c.Gaps[0].MechanismActions = []MechanismAction{
					{CauseID: "causa_processo", ActionKey: "com_a", SortOrder: 1},
					{CauseID: "causa_processo", ActionKey: "com_a", SortOrder: 2},
					{CauseID: "causa_processo", ActionKey: "com_a", SortOrder: 3},
					{CauseID: "causa_processo", ActionKey: "com_a", SortOrder: 4},
				}
			},
			"more than 3",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a, c := validDocs()
			tc.mutate(a, c)
			err := Validate(New(a, c))
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantSub) {
				t.Fatalf("error %q does not mention %q", err, tc.wantSub)
			}
		})
	}
}
