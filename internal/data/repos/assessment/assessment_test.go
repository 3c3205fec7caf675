package assessment

import (
	"context"
	"testing"
	"time"

	"github.com/bussola-digital/bussola-backend/internal/data/pgerr"
	"github.com/bussola-digital/bussola-backend/internal/data/repos/testutil"
	types "github.com/bussola-digital/bussola-backend/internal/domain"
	"github.com/google/uuid"
)

func TestAssessmentRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	repo := NewAssessmentRepo(db, testutil.Logger(t))
	ctx := context.Background()
	company := testutil.SeedCompany(t, tx)

	current, err := repo.GetCurrent(ctx, tx, company.ID)
	if err != nil {
		t.Fatalf("GetCurrent (empty): %v", err)
	}
	if current != nil {
		t.Fatalf("GetCurrent (empty): expected nil, got %+v", current)
	}

	v1 := testutil.SeedAssessment(t, tx, company.ID, 1)
	v2 := testutil.SeedAssessment(t, tx, company.ID, 2)

	current, err = repo.GetCurrent(ctx, tx, company.ID)
	if err != nil {
		t.Fatalf("GetCurrent: %v", err)
	}
	if current.ID != v2.ID {
		t.Fatalf("GetCurrent: expected full_version 2, got %d", current.FullVersion)
	}

	max, err := repo.MaxFullVersion(ctx, tx, company.ID)
	if err != nil {
		t.Fatalf("MaxFullVersion: %v", err)
	}
	if max != 2 {
		t.Fatalf("MaxFullVersion: expected 2, got %d", max)
	}

	now := time.Now()
	if err := repo.SetSubmitted(ctx, tx, v1.ID, now); err != nil {
		t.Fatalf("SetSubmitted: %v", err)
	}
	got, err := repo.GetByID(ctx, tx, v1.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != types.AssessmentSubmitted || got.SubmittedAt == nil {
		t.Fatalf("SetSubmitted: status=%s submitted_at=%v", got.Status, got.SubmittedAt)
	}

	if err := repo.SetClosed(ctx, tx, v1.ID, now); err != nil {
		t.Fatalf("SetClosed: %v", err)
	}
	if err := repo.ReopenForCycle(ctx, tx, v1.ID, 2); err != nil {
		t.Fatalf("ReopenForCycle: %v", err)
	}
	got, err = repo.GetByID(ctx, tx, v1.ID)
	if err != nil {
		t.Fatalf("GetByID after reopen: %v", err)
	}
	if got.Status != types.AssessmentSubmitted || got.Cycle != 2 || got.ClosedAt != nil {
		t.Fatalf("ReopenForCycle: status=%s cycle=%d closed_at=%v", got.Status, got.Cycle, got.ClosedAt)
	}
}

func TestAssessmentRepoVersionUnique(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	repo := NewAssessmentRepo(db, testutil.Logger(t))
	ctx := context.Background()
	company := testutil.SeedCompany(t, tx)
	testutil.SeedAssessment(t, tx, company.ID, 1)

	_, err := repo.Create(ctx, tx, &types.Assessment{
		ID:          uuid.New(),
		CompanyID:   company.ID,
		Segment:     "servicos",
		FullVersion: 1,
		Cycle:       1,
		Status:      types.AssessmentDraft,
	})
	if !pgerr.IsUniqueViolation(err) {
		t.Fatalf("expected unique violation for duplicate (company, full_version), got %v", err)
	}
}
