package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/bussola-digital/bussola-backend/internal/audit"
	"github.com/bussola-digital/bussola-backend/internal/catalog"
	"github.com/bussola-digital/bussola-backend/internal/data/pgerr"
	"github.com/bussola-digital/bussola-backend/internal/data/repos"
	types "github.com/bussola-digital/bussola-backend/internal/domain"
	"github.com/bussola-digital/bussola-backend/internal/observability"
	"github.com/bussola-digital/bussola-backend/internal/platform/apierr"
	"github.com/bussola-digital/bussola-backend/internal/platform/ctxutil"
	"github.com/bussola-digital/bussola-backend/internal/platform/logger"
)

// planSlotCount is the fixed size of an improvement cycle. Three actions,
// no more, no fewer.
const planSlotCount = 3

type PlanSlotInput struct {
	ActionKey      string    `json:"action_key"`
	Position       int       `json:"position"`
	OwnerName      string    `json:"owner_name"`
	MetricText     string    `json:"metric_text"`
	CheckpointDate time.Time `json:"checkpoint_date"`
}

type EvidenceInput struct {
	ActionKey      string  `json:"action_key"`
	BeforeBaseline string  `json:"before_baseline"`
	AfterResult    string  `json:"after_result"`
	DeclaredGain   *string `json:"declared_gain,omitempty"`
}

// PlanView is the current cycle's plan with per-slot DoD and evidence
// state attached.
type PlanView struct {
	Assessment *types.Assessment `json:"assessment"`
	Slots      []*PlanSlotView   `json:"slots"`
}

type PlanSlotView struct {
	Slot     *types.PlanSlot        `json:"slot"`
	Action   *catalog.CatalogAction `json:"action,omitempty"`
	Dod      *types.DodConfirmation `json:"dod,omitempty"`
	Evidence *types.Evidence        `json:"evidence,omitempty"`
}

type PlanService interface {
	// SelectPlan replaces the current cycle's plan with exactly 3 slots.
	// Once any slot reaches a terminal status the plan is locked.
	SelectPlan(ctx context.Context, assessmentID uuid.UUID, slots []PlanSlotInput) ([]*types.PlanSlot, error)
	GetPlan(ctx context.Context, assessmentID uuid.UUID) (*PlanView, error)
	// ConfirmDod records which done-when items the owner checked off for
	// an action. One confirmation per action per cycle.
	ConfirmDod(ctx context.Context, assessmentID uuid.UUID, actionKey string, items []string) (*types.DodConfirmation, error)
	// RecordEvidence stores the before/after record for an action.
	// Write-once: a repeat call returns the stored row untouched.
	RecordEvidence(ctx context.Context, assessmentID uuid.UUID, input EvidenceInput) (*types.Evidence, error)
	// SetActionStatus moves a slot through its lifecycle. DONE requires a
	// complete DoD confirmation and recorded evidence; DROPPED requires a
	// reason.
	SetActionStatus(ctx context.Context, assessmentID uuid.UUID, actionKey string, status types.SlotStatus, droppedReason string) (*types.PlanSlot, error)
	// CloseCycle freezes the cycle snapshot and moves the assessment to
	// CLOSED. Every slot must be terminal.
	CloseCycle(ctx context.Context, assessmentID uuid.UUID) (*types.Assessment, error)
	// StartNewCycle reopens a CLOSED assessment as SUBMITTED with
	// cycle+1. Scores and recommendations carry over; the plan does not.
	StartNewCycle(ctx context.Context, assessmentID uuid.UUID) (*types.Assessment, error)
}

type planService struct {
	db              *gorm.DB
	log             *logger.Logger
	cat             *catalog.Catalog
	assessmentRepo  repos.AssessmentRepo
	slotRepo        repos.PlanSlotRepo
	dodRepo         repos.DodConfirmationRepo
	evidenceRepo    repos.EvidenceRepo
	snapshotService SnapshotService
	publisher       audit.Publisher
}

func NewPlanService(
	db *gorm.DB,
	log *logger.Logger,
	cat *catalog.Catalog,
	assessmentRepo repos.AssessmentRepo,
	slotRepo repos.PlanSlotRepo,
	dodRepo repos.DodConfirmationRepo,
	evidenceRepo repos.EvidenceRepo,
	snapshotService SnapshotService,
	publisher audit.Publisher,
) PlanService {
	serviceLog := log.With("service", "PlanService")
	return &planService{
		db:              db,
		log:             serviceLog,
		cat:             cat,
		assessmentRepo:  assessmentRepo,
		slotRepo:        slotRepo,
		dodRepo:         dodRepo,
		evidenceRepo:    evidenceRepo,
		snapshotService: snapshotService,
		publisher:       publisher,
	}
}

// ownedAssessment mirrors the assessment service's ownership rule: other
// companies' assessments look like they do not exist.
func (s *planService) ownedAssessment(ctx context.Context, tx *gorm.DB, rd *ctxutil.RequestData, assessmentID uuid.UUID) (*types.Assessment, error) {
	assessment, err := s.assessmentRepo.GetByID(ctx, tx, assessmentID)
	if err != nil || assessment.CompanyID != rd.CompanyID {
		return nil, apierr.NotFound("assessment_not_found", fmt.Errorf("assessment %s not found", assessmentID))
	}
	return assessment, nil
}

func (s *planService) activeAssessment(ctx context.Context, tx *gorm.DB, rd *ctxutil.RequestData, assessmentID uuid.UUID) (*types.Assessment, error) {
	assessment, err := s.ownedAssessment(ctx, tx, rd, assessmentID)
	if err != nil {
		return nil, err
	}
	switch assessment.Status {
	case types.AssessmentSubmitted:
		return assessment, nil
	case types.AssessmentClosed:
		return nil, apierr.Conflict("cycle_closed", fmt.Errorf("cycle closed, read-only"))
	default:
		return nil, apierr.Conflict("not_submitted", fmt.Errorf("plan operations require a submitted diagnosis"))
	}
}

func (s *planService) SelectPlan(ctx context.Context, assessmentID uuid.UUID, inputs []PlanSlotInput) ([]*types.PlanSlot, error) {
	rd, err := requestData(ctx)
	if err != nil {
		return nil, err
	}
	if len(inputs) != planSlotCount {
		return nil, apierr.Validation("invalid_slot_count", fmt.Errorf("a plan has exactly %d actions, got %d", planSlotCount, len(inputs)))
	}

	var created []*types.PlanSlot
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		assessment, err := s.activeAssessment(ctx, tx, rd, assessmentID)
		if err != nil {
			return err
		}

		existing, err := s.slotRepo.ListByCycle(ctx, tx, assessment.ID, assessment.Cycle)
		if err != nil {
			return fmt.Errorf("load current plan: %w", err)
		}
		for _, slot := range existing {
			if slot.Status.Terminal() || slot.Status == types.SlotInProgress {
				return apierr.Conflict("plan_locked", fmt.Errorf("action %s is already %s; the plan can no longer be replaced", slot.ActionKey, slot.Status))
			}
		}

		rows, err := s.validateSlots(assessment, inputs)
		if err != nil {
			return err
		}
		if err := s.slotRepo.ReplaceForCycle(ctx, tx, assessment.ID, assessment.Cycle, rows); err != nil {
			if pgerr.IsUniqueViolation(err) {
				return apierr.Conflict("plan_conflict", err)
			}
			return fmt.Errorf("store plan: %w", err)
		}
		created = rows
		return nil
	}); err != nil {
		return nil, err
	}

	observability.Current().IncPlanSelected()
	s.publisher.Publish(ctx, audit.Event{
		Name:         "plan.selected",
		CompanyID:    rd.CompanyID,
		AssessmentID: assessmentID,
		ActorID:      rd.UserID,
		Detail:       slotKeys(created),
	})
	return created, nil
}

func (s *planService) validateSlots(assessment *types.Assessment, inputs []PlanSlotInput) ([]*types.PlanSlot, error) {
	seenKeys := map[string]bool{}
	seenPositions := map[int]bool{}
	rows := make([]*types.PlanSlot, 0, len(inputs))
	for _, in := range inputs {
		if in.Position < 1 || in.Position > planSlotCount {
			return nil, apierr.Validation("invalid_position", fmt.Errorf("position %d outside 1..%d", in.Position, planSlotCount))
		}
		if seenPositions[in.Position] {
			return nil, apierr.Validation("duplicate_position", fmt.Errorf("position %d appears twice", in.Position))
		}
		seenPositions[in.Position] = true
		if seenKeys[in.ActionKey] {
			return nil, apierr.Validation("duplicate_action", fmt.Errorf("action %s appears twice", in.ActionKey))
		}
		seenKeys[in.ActionKey] = true
		if s.cat.ActionByKey(in.ActionKey) == nil {
			return nil, apierr.Validation("unknown_action", fmt.Errorf("action %s is not in the catalog", in.ActionKey))
		}
		if in.OwnerName == "" {
			return nil, apierr.Validation("owner_required", fmt.Errorf("action %s needs an owner", in.ActionKey))
		}
		if in.MetricText == "" {
			return nil, apierr.Validation("metric_required", fmt.Errorf("action %s needs a tracking metric", in.ActionKey))
		}
		if in.CheckpointDate.IsZero() {
			return nil, apierr.Validation("checkpoint_required", fmt.Errorf("action %s needs a checkpoint date", in.ActionKey))
		}
		rows = append(rows, &types.PlanSlot{
			ID:             uuid.New(),
			AssessmentID:   assessment.ID,
			Cycle:          assessment.Cycle,
			ActionKey:      in.ActionKey,
			Position:       in.Position,
			OwnerName:      in.OwnerName,
			MetricText:     in.MetricText,
			CheckpointDate: in.CheckpointDate,
			Status:         types.SlotNotStarted,
		})
	}
	return rows, nil
}

func (s *planService) GetPlan(ctx context.Context, assessmentID uuid.UUID) (*PlanView, error) {
	rd, err := requestData(ctx)
	if err != nil {
		return nil, err
	}
	assessment, err := s.ownedAssessment(ctx, nil, rd, assessmentID)
	if err != nil {
		return nil, err
	}
	slots, err := s.slotRepo.ListByCycle(ctx, nil, assessment.ID, assessment.Cycle)
	if err != nil {
		return nil, fmt.Errorf("load plan: %w", err)
	}
	dods, err := s.dodRepo.ListByCycle(ctx, nil, assessment.ID, assessment.Cycle)
	if err != nil {
		return nil, fmt.Errorf("load dod confirmations: %w", err)
	}
	evidences, err := s.evidenceRepo.ListByCycle(ctx, nil, assessment.ID, assessment.Cycle)
	if err != nil {
		return nil, fmt.Errorf("load evidence: %w", err)
	}

	dodByAction := map[string]*types.DodConfirmation{}
	for _, d := range dods {
		dodByAction[d.ActionKey] = d
	}
	evidenceByAction := map[string]*types.Evidence{}
	for _, e := range evidences {
		evidenceByAction[e.ActionKey] = e
	}

	view := &PlanView{Assessment: assessment, Slots: make([]*PlanSlotView, 0, len(slots))}
	for _, slot := range slots {
		view.Slots = append(view.Slots, &PlanSlotView{
			Slot:     slot,
			Action:   s.cat.ActionByKey(slot.ActionKey),
			Dod:      dodByAction[slot.ActionKey],
			Evidence: evidenceByAction[slot.ActionKey],
		})
	}
	return view, nil
}

func (s *planService) ConfirmDod(ctx context.Context, assessmentID uuid.UUID, actionKey string, items []string) (*types.DodConfirmation, error) {
	rd, err := requestData(ctx)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, apierr.Validation("no_items", fmt.Errorf("at least one done-when item is required"))
	}

	var confirmation *types.DodConfirmation
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		assessment, err := s.activeAssessment(ctx, tx, rd, assessmentID)
		if err != nil {
			return err
		}
		slot, err := s.slotRepo.GetByAction(ctx, tx, assessment.ID, assessment.Cycle, actionKey)
		if err != nil {
			return fmt.Errorf("load slot: %w", err)
		}
		if slot == nil {
			return apierr.NotFound("slot_not_found", fmt.Errorf("action %s is not in the current plan", actionKey))
		}

		action := s.cat.ActionByKey(actionKey)
		if action == nil {
			return apierr.CatalogIntegrity("action_missing", fmt.Errorf("planned action %s is gone from the catalog", actionKey))
		}
		known := map[string]bool{}
		for _, item := range action.DoneWhen {
			known[item] = true
		}
		seen := map[string]bool{}
		for _, item := range items {
			if !known[item] {
				return apierr.Validation("unknown_dod_item", fmt.Errorf("%q is not a done-when item of %s", item, actionKey))
			}
			if seen[item] {
				return apierr.Validation("duplicate_dod_item", fmt.Errorf("%q appears twice", item))
			}
			seen[item] = true
		}

		raw, err := json.Marshal(items)
		if err != nil {
			return fmt.Errorf("marshal items: %w", err)
		}
		confirmation = &types.DodConfirmation{
			ID:             uuid.New(),
			AssessmentID:   assessment.ID,
			Cycle:          assessment.Cycle,
			ActionKey:      actionKey,
			ConfirmedItems: datatypes.JSON(raw),
			ConfirmedAt:    time.Now().UTC(),
		}
		if err := s.dodRepo.Insert(ctx, tx, confirmation); err != nil {
			if pgerr.IsUniqueViolation(err) {
				stored, getErr := s.dodRepo.GetByAction(ctx, tx, assessment.ID, assessment.Cycle, actionKey)
				if getErr != nil || stored == nil {
					return fmt.Errorf("load stored confirmation: %w", getErr)
				}
				confirmation = stored
				return nil
			}
			return fmt.Errorf("store confirmation: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return confirmation, nil
}

func (s *planService) RecordEvidence(ctx context.Context, assessmentID uuid.UUID, input EvidenceInput) (*types.Evidence, error) {
	rd, err := requestData(ctx)
	if err != nil {
		return nil, err
	}
	if input.BeforeBaseline == "" || input.AfterResult == "" {
		return nil, apierr.Validation("evidence_incomplete", fmt.Errorf("before and after are both required"))
	}

	recorded := false
	var evidence *types.Evidence
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		assessment, err := s.activeAssessment(ctx, tx, rd, assessmentID)
		if err != nil {
			return err
		}
		slot, err := s.slotRepo.GetByAction(ctx, tx, assessment.ID, assessment.Cycle, input.ActionKey)
		if err != nil {
			return fmt.Errorf("load slot: %w", err)
		}
		if slot == nil {
			return apierr.NotFound("slot_not_found", fmt.Errorf("action %s is not in the current plan", input.ActionKey))
		}

		evidence = &types.Evidence{
			ID:             uuid.New(),
			AssessmentID:   assessment.ID,
			Cycle:          assessment.Cycle,
			ActionKey:      input.ActionKey,
			BeforeBaseline: input.BeforeBaseline,
			AfterResult:    input.AfterResult,
			DeclaredGain:   input.DeclaredGain,
		}
		if err := s.evidenceRepo.Insert(ctx, tx, evidence); err != nil {
			if pgerr.IsUniqueViolation(err) {
				stored, getErr := s.evidenceRepo.GetByAction(ctx, tx, assessment.ID, assessment.Cycle, input.ActionKey)
				if getErr != nil || stored == nil {
					return fmt.Errorf("load stored evidence: %w", getErr)
				}
				evidence = stored
				return nil
			}
			return fmt.Errorf("store evidence: %w", err)
		}
		recorded = true
		return nil
	}); err != nil {
		return nil, err
	}

	if recorded {
		observability.Current().IncEvidenceRecorded()
		s.publisher.Publish(ctx, audit.Event{
			Name:         "evidence.recorded",
			CompanyID:    rd.CompanyID,
			AssessmentID: assessmentID,
			ActorID:      rd.UserID,
			Detail:       map[string]string{"action_key": input.ActionKey},
		})
	}
	return evidence, nil
}

func (s *planService) SetActionStatus(ctx context.Context, assessmentID uuid.UUID, actionKey string, status types.SlotStatus, droppedReason string) (*types.PlanSlot, error) {
	rd, err := requestData(ctx)
	if err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, apierr.Validation("invalid_status", fmt.Errorf("%q is not a slot status", status))
	}

	var updated *types.PlanSlot
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		assessment, err := s.activeAssessment(ctx, tx, rd, assessmentID)
		if err != nil {
			return err
		}
		slot, err := s.slotRepo.GetByAction(ctx, tx, assessment.ID, assessment.Cycle, actionKey)
		if err != nil {
			return fmt.Errorf("load slot: %w", err)
		}
		if slot == nil {
			return apierr.NotFound("slot_not_found", fmt.Errorf("action %s is not in the current plan", actionKey))
		}
		if !slot.Status.CanTransition(status) {
			return apierr.Conflict("invalid_status_transition", fmt.Errorf("cannot move %s from %s to %s", actionKey, slot.Status, status))
		}

		var reason *string
		switch status {
		case types.SlotDone:
			if err := s.checkDoneGates(ctx, tx, assessment, actionKey); err != nil {
				return err
			}
		case types.SlotDropped:
			if droppedReason == "" {
				return apierr.Validation("dropped_reason_required", fmt.Errorf("dropping %s needs a reason", actionKey))
			}
			reason = &droppedReason
		}

		if err := s.slotRepo.UpdateStatus(ctx, tx, slot.ID, status, reason); err != nil {
			return fmt.Errorf("update slot: %w", err)
		}
		slot.Status = status
		slot.DroppedReason = reason
		updated = slot
		return nil
	}); err != nil {
		return nil, err
	}

	observability.Current().IncSlotStatus(string(status))
	s.publisher.Publish(ctx, audit.Event{
		Name:         "plan.slot_status",
		CompanyID:    rd.CompanyID,
		AssessmentID: assessmentID,
		ActorID:      rd.UserID,
		Detail:       map[string]string{"action_key": actionKey, "status": string(status)},
	})
	return updated, nil
}

// checkDoneGates enforces the two independent DONE prerequisites: every
// done-when item confirmed, and evidence on record.
func (s *planService) checkDoneGates(ctx context.Context, tx *gorm.DB, assessment *types.Assessment, actionKey string) error {
	confirmation, err := s.dodRepo.GetByAction(ctx, tx, assessment.ID, assessment.Cycle, actionKey)
	if err != nil {
		return fmt.Errorf("load dod confirmation: %w", err)
	}
	action := s.cat.ActionByKey(actionKey)
	if action == nil {
		return apierr.CatalogIntegrity("action_missing", fmt.Errorf("planned action %s is gone from the catalog", actionKey))
	}
	if confirmation == nil {
		return apierr.Conflict("dod_incomplete", fmt.Errorf("action %s has no done-when confirmation", actionKey))
	}
	var confirmed []string
	if err := json.Unmarshal(confirmation.ConfirmedItems, &confirmed); err != nil {
		return fmt.Errorf("decode confirmed items: %w", err)
	}
	confirmedSet := map[string]bool{}
	for _, item := range confirmed {
		confirmedSet[item] = true
	}
	for _, item := range action.DoneWhen {
		if !confirmedSet[item] {
			return apierr.Conflict("dod_incomplete", fmt.Errorf("action %s is missing %q", actionKey, item))
		}
	}

	evidence, err := s.evidenceRepo.GetByAction(ctx, tx, assessment.ID, assessment.Cycle, actionKey)
	if err != nil {
		return fmt.Errorf("load evidence: %w", err)
	}
	if evidence == nil {
		return apierr.Conflict("evidence_missing", fmt.Errorf("action %s has no evidence on record", actionKey))
	}
	return nil
}

func (s *planService) CloseCycle(ctx context.Context, assessmentID uuid.UUID) (*types.Assessment, error) {
	rd, err := requestData(ctx)
	if err != nil {
		return nil, err
	}

	var closed *types.Assessment
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		assessment, err := s.activeAssessment(ctx, tx, rd, assessmentID)
		if err != nil {
			return err
		}
		slots, err := s.slotRepo.ListByCycle(ctx, tx, assessment.ID, assessment.Cycle)
		if err != nil {
			return fmt.Errorf("load plan: %w", err)
		}
		if len(slots) != planSlotCount {
			return apierr.Conflict("plan_missing", fmt.Errorf("cycle %d has no complete plan", assessment.Cycle))
		}
		for _, slot := range slots {
			if !slot.Status.Terminal() {
				return apierr.Conflict("cycle_open", fmt.Errorf("action %s is still %s", slot.ActionKey, slot.Status))
			}
		}

		now := time.Now().UTC()
		if err := s.assessmentRepo.SetClosed(ctx, tx, assessment.ID, now); err != nil {
			return fmt.Errorf("mark closed: %w", err)
		}
		assessment.Status = types.AssessmentClosed
		assessment.ClosedAt = &now

		if err := s.snapshotService.Build(ctx, tx, assessment, SnapshotTriggerClose); err != nil {
			return err
		}
		closed = assessment
		return nil
	}); err != nil {
		return nil, err
	}

	observability.Current().IncCycleClosed()
	s.publisher.Publish(ctx, audit.Event{
		Name:         "cycle.closed",
		CompanyID:    rd.CompanyID,
		AssessmentID: assessmentID,
		ActorID:      rd.UserID,
		Detail:       map[string]int{"cycle": closed.Cycle},
	})
	return closed, nil
}

func (s *planService) StartNewCycle(ctx context.Context, assessmentID uuid.UUID) (*types.Assessment, error) {
	rd, err := requestData(ctx)
	if err != nil {
		return nil, err
	}

	var reopened *types.Assessment
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		assessment, err := s.ownedAssessment(ctx, tx, rd, assessmentID)
		if err != nil {
			return err
		}
		if !assessment.Status.CanTransition(types.AssessmentSubmitted) || assessment.Status != types.AssessmentClosed {
			return apierr.Conflict("invalid_status_transition", fmt.Errorf("a new cycle requires a closed cycle, got %s", assessment.Status))
		}
		nextCycle := assessment.Cycle + 1
		if err := s.assessmentRepo.ReopenForCycle(ctx, tx, assessment.ID, nextCycle); err != nil {
			return fmt.Errorf("reopen assessment: %w", err)
		}
		assessment.Status = types.AssessmentSubmitted
		assessment.Cycle = nextCycle
		assessment.ClosedAt = nil
		reopened = assessment
		return nil
	}); err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, audit.Event{
		Name:         "cycle.started",
		CompanyID:    rd.CompanyID,
		AssessmentID: assessmentID,
		ActorID:      rd.UserID,
		Detail:       map[string]int{"cycle": reopened.Cycle},
	})
	return reopened, nil
}

func slotKeys(slots []*types.PlanSlot) []string {
	keys := make([]string, 0, len(slots))
	for _, slot := range slots {
		keys = append(keys, slot.ActionKey)
	}
	return keys
}
