package plan

import (
	"context"
	"testing"

	"github.com/bussola-digital/bussola-backend/internal/data/pgerr"
	"github.com/bussola-digital/bussola-backend/internal/data/repos/testutil"
	types "github.com/bussola-digital/bussola-backend/internal/domain"
	"github.com/google/uuid"
)

func TestEvidenceRepoWriteOnce(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	repo := NewEvidenceRepo(db, testutil.Logger(t))
	ctx := context.Background()
	company := testutil.SeedCompany(t, tx)
	assessment := testutil.SeedAssessment(t, tx, company.ID, 1)

	first := &types.Evidence{
		ID:             uuid.New(),
		AssessmentID:   assessment.ID,
		Cycle:          1,
		ActionKey:      "com_funil_simples",
		BeforeBaseline: "5 orçamentos por semana",
		AfterResult:    "9 orçamentos por semana",
	}
	if err := repo.Insert(ctx, tx, first); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	dup := &types.Evidence{
		ID:             uuid.New(),
		AssessmentID:   assessment.ID,
		Cycle:          1,
		ActionKey:      "com_funil_simples",
		BeforeBaseline: "other",
		AfterResult:    "other",
	}
	err := repo.Insert(ctx, tx, dup)
	if !pgerr.IsUniqueViolation(err) {
		t.Fatalf("expected unique violation on second write, got %v", err)
	}

	got, err := repo.GetByAction(ctx, tx, assessment.ID, 1, "com_funil_simples")
	if err != nil {
		t.Fatalf("GetByAction: %v", err)
	}
	if got == nil || got.ID != first.ID || got.BeforeBaseline != first.BeforeBaseline {
		t.Fatalf("stored row must stay the first write: %+v", got)
	}

	missing, err := repo.GetByAction(ctx, tx, assessment.ID, 2, "com_funil_simples")
	if err != nil {
		t.Fatalf("GetByAction (missing): %v", err)
	}
	if missing != nil {
		t.Fatalf("evidence is cycle-scoped, cycle 2 must be empty")
	}
}

func TestPlanSlotRepoReplaceForCycle(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	repo := NewPlanSlotRepo(db, testutil.Logger(t))
	ctx := context.Background()
	company := testutil.SeedCompany(t, tx)
	assessment := testutil.SeedAssessment(t, tx, company.ID, 1)

	slot := func(key string, position int) *types.PlanSlot {
		return &types.PlanSlot{
			ID:           uuid.New(),
			AssessmentID: assessment.ID,
			Cycle:        1,
			ActionKey:    key,
			Position:     position,
			OwnerName:    "Dona Maria",
			MetricText:   "orçamentos por semana",
			Status:       types.SlotNotStarted,
		}
	}

	if err := repo.ReplaceForCycle(ctx, tx, assessment.ID, 1, []*types.PlanSlot{
		slot("com_funil_simples", 1),
		slot("fin_fluxo_diario", 2),
		slot("ges_reuniao_semanal", 3),
	}); err != nil {
		t.Fatalf("ReplaceForCycle: %v", err)
	}

	if err := repo.ReplaceForCycle(ctx, tx, assessment.ID, 1, []*types.PlanSlot{
		slot("com_funil_simples", 1),
		slot("ope_checklist_entrega", 2),
		slot("ges_reuniao_semanal", 3),
	}); err != nil {
		t.Fatalf("ReplaceForCycle (again): %v", err)
	}

	slots, err := repo.ListByCycle(ctx, tx, assessment.ID, 1)
	if err != nil {
		t.Fatalf("ListByCycle: %v", err)
	}
	if len(slots) != 3 {
		t.Fatalf("expected 3 slots after replace, got %d", len(slots))
	}
	if slots[1].ActionKey != "ope_checklist_entrega" {
		t.Fatalf("replace did not take: %+v", slots[1])
	}

	keys, err := repo.UsedActionKeys(ctx, tx, assessment.ID)
	if err != nil {
		t.Fatalf("UsedActionKeys: %v", err)
	}
	if len(keys) != 3 {
		t.Fatalf("UsedActionKeys: expected 3 distinct keys, got %v", keys)
	}
}
