package diagnostic

import (
	"reflect"
	"testing"

	"github.com/bussola-digital/bussola-backend/internal/catalog"
)

func TestComputeProcessScoresSumsAndBands(t *testing.T) {
	cat := testCatalog()
	cases := []struct {
		name    string
		answers map[string]int
		score   int
		band    catalog.Band
	}{
		{"all ones is the floor", map[string]int{"padrao": 1, "prazo": 1, "qualidade": 1, "estoque": 1, "indicadores": 1}, 5, catalog.BandLow},
		{"upper edge of LOW", map[string]int{"padrao": 3, "prazo": 2, "qualidade": 2, "estoque": 2, "indicadores": 2}, 11, catalog.BandLow},
		{"lower edge of MEDIUM", map[string]int{"padrao": 4, "prazo": 2, "qualidade": 2, "estoque": 2, "indicadores": 2}, 12, catalog.BandMedium},
		{"upper edge of MEDIUM", map[string]int{"padrao": 4, "prazo": 4, "qualidade": 4, "estoque": 3, "indicadores": 3}, 18, catalog.BandMedium},
		{"lower edge of HIGH", map[string]int{"padrao": 4, "prazo": 4, "qualidade": 4, "estoque": 4, "indicadores": 3}, 19, catalog.BandHigh},
		{"all fives is the ceiling", map[string]int{"padrao": 5, "prazo": 5, "qualidade": 5, "estoque": 5, "indicadores": 5}, 25, catalog.BandHigh},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeProcessScores(cat, map[string]map[string]int{"operacoes": tc.answers})
			if len(got) != 1 {
				t.Fatalf("got %d results, want 1", len(got))
			}
			if got[0].ProcessKey != "operacoes" || got[0].Label != "Operações" {
				t.Fatalf("result identifies %s/%s", got[0].ProcessKey, got[0].Label)
			}
			if got[0].ScoreNumeric != tc.score || got[0].Band != tc.band {
				t.Fatalf("got %d/%s, want %d/%s", got[0].ScoreNumeric, got[0].Band, tc.score, tc.band)
			}
		})
	}
}

func TestMissingAnswersReportsFirstIncompleteProcess(t *testing.T) {
	cat := testCatalog()

	process, missing := MissingAnswers(cat, map[string]map[string]int{
		"operacoes": {"padrao": 3, "qualidade": 2},
	})
	if process != "operacoes" {
		t.Fatalf("process = %q, want operacoes", process)
	}
	want := []string{"prazo", "estoque", "indicadores"}
	if !reflect.DeepEqual(missing, want) {
		t.Fatalf("missing = %v, want catalog question order %v", missing, want)
	}
}

func TestMissingAnswersCompleteSet(t *testing.T) {
	cat := testCatalog()
	process, missing := MissingAnswers(cat, map[string]map[string]int{
		"operacoes": {"padrao": 3, "prazo": 3, "qualidade": 3, "estoque": 3, "indicadores": 3},
	})
	if process != "" || missing != nil {
		t.Fatalf("got %q/%v for a complete answer set", process, missing)
	}
}
