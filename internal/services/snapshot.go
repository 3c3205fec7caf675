package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/bussola-digital/bussola-backend/internal/catalog"
	"github.com/bussola-digital/bussola-backend/internal/data/repos"
	types "github.com/bussola-digital/bussola-backend/internal/domain"
	"github.com/bussola-digital/bussola-backend/internal/observability"
	"github.com/bussola-digital/bussola-backend/internal/platform/apierr"
	"github.com/bussola-digital/bussola-backend/internal/platform/ctxutil"
	"github.com/bussola-digital/bussola-backend/internal/platform/logger"
)

const (
	SnapshotTriggerSubmit = "submit"
	SnapshotTriggerClose  = "close"
)

// ProcessDelta compares one process across two diagnostic versions.
type ProcessDelta struct {
	ProcessKey string `json:"process_key"`
	Label      string `json:"label"`
	FromBand   string `json:"from_band"`
	ToBand     string `json:"to_band"`
	FromScore  int    `json:"from_score"`
	ToScore    int    `json:"to_score"`
	Delta      int    `json:"delta"`
}

type PlanOutcomeSummary struct {
	Done    int `json:"done"`
	Dropped int `json:"dropped"`
	Open    int `json:"open"`
}

type VersionComparison struct {
	FromVersion int                `json:"from_version"`
	ToVersion   int                `json:"to_version"`
	Processes   []ProcessDelta     `json:"processes"`
	FromPlan    PlanOutcomeSummary `json:"from_plan"`
	ToPlan      PlanOutcomeSummary `json:"to_plan"`
}

type SnapshotService interface {
	// Build rewrites the assessment's snapshot in full. Callers hand in the
	// transaction of the lifecycle step (submit, close) so the snapshot is
	// atomic with the status change.
	Build(ctx context.Context, tx *gorm.DB, assessment *types.Assessment, trigger string) error
	Get(ctx context.Context, assessmentID uuid.UUID) (*types.Snapshot, error)
	// CompareVersions reads two frozen versions of the company's diagnosis
	// and reports per-process band/score movement plus plan outcomes.
	CompareVersions(ctx context.Context, fromVersion, toVersion int) (*VersionComparison, error)
}

type snapshotService struct {
	db             *gorm.DB
	log            *logger.Logger
	cat            *catalog.Catalog
	assessmentRepo repos.AssessmentRepo
	scoreRepo      repos.ProcessScoreRepo
	recRepo        repos.RecommendationRepo
	slotRepo       repos.PlanSlotRepo
	evidenceRepo   repos.EvidenceRepo
	snapshotRepo   repos.SnapshotRepo
}

func NewSnapshotService(
	db *gorm.DB,
	log *logger.Logger,
	cat *catalog.Catalog,
	assessmentRepo repos.AssessmentRepo,
	scoreRepo repos.ProcessScoreRepo,
	recRepo repos.RecommendationRepo,
	slotRepo repos.PlanSlotRepo,
	evidenceRepo repos.EvidenceRepo,
	snapshotRepo repos.SnapshotRepo,
) SnapshotService {
	serviceLog := log.With("service", "SnapshotService")
	return &snapshotService{
		db:             db,
		log:            serviceLog,
		cat:            cat,
		assessmentRepo: assessmentRepo,
		scoreRepo:      scoreRepo,
		recRepo:        recRepo,
		slotRepo:       slotRepo,
		evidenceRepo:   evidenceRepo,
		snapshotRepo:   snapshotRepo,
	}
}

func (ss *snapshotService) Build(ctx context.Context, tx *gorm.DB, assessment *types.Assessment, trigger string) error {
	scores, err := ss.scoreRepo.ListByAssessment(ctx, tx, assessment.ID)
	if err != nil {
		return fmt.Errorf("load scores: %w", err)
	}
	recommendations, err := ss.recRepo.ListByAssessment(ctx, tx, assessment.ID)
	if err != nil {
		return fmt.Errorf("load recommendations: %w", err)
	}
	slots, err := ss.slotRepo.ListByCycle(ctx, tx, assessment.ID, assessment.Cycle)
	if err != nil {
		return fmt.Errorf("load plan slots: %w", err)
	}
	evidences, err := ss.evidenceRepo.ListByCycle(ctx, tx, assessment.ID, assessment.Cycle)
	if err != nil {
		return fmt.Errorf("load evidence: %w", err)
	}

	payload := ss.assemblePayload(scores, recommendations, slots, evidences)
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal snapshot payload: %w", err)
	}

	if err := ss.snapshotRepo.Upsert(ctx, tx, &types.Snapshot{
		ID:           uuid.New(),
		AssessmentID: assessment.ID,
		FullVersion:  assessment.FullVersion,
		Payload:      datatypes.JSON(raw),
	}); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	observability.Current().IncSnapshotWrite(trigger)
	return nil
}

func (ss *snapshotService) assemblePayload(
	scores []*types.ProcessScore,
	recommendations []*types.Recommendation,
	slots []*types.PlanSlot,
	evidences []*types.Evidence,
) types.SnapshotPayload {
	byProcess := map[string]*types.ProcessScore{}
	for _, s := range scores {
		byProcess[s.ProcessKey] = s
	}

	payload := types.SnapshotPayload{
		Processes:       []types.SnapshotProcess{},
		Recommendations: []types.SnapshotRecommendation{},
		Plan:            []types.SnapshotPlanEntry{},
		EvidenceSummary: []types.SnapshotEvidenceEntry{},
		Findings: types.SnapshotFindings{
			Vazamentos: []types.SnapshotFinding{},
			Alavancas:  []types.SnapshotFinding{},
		},
	}

	// Catalog order keeps snapshots byte-stable across rebuilds.
	for _, p := range ss.cat.Actions.Processes {
		s := byProcess[p.Key]
		if s == nil {
			continue
		}
		payload.Processes = append(payload.Processes, types.SnapshotProcess{
			ProcessKey:   p.Key,
			Label:        p.Label,
			Band:         s.Band,
			ScoreNumeric: s.ScoreNumeric,
		})
		switch catalog.Band(s.Band) {
		case catalog.BandLow:
			title := p.Label
			if gap := ss.cat.GapFor(p.Key, catalog.BandLow); gap != nil {
				title = gap.Title
			}
			payload.Findings.Vazamentos = append(payload.Findings.Vazamentos, types.SnapshotFinding{
				ProcessKey: p.Key,
				Title:      title,
			})
		case catalog.BandHigh:
			payload.Findings.Alavancas = append(payload.Findings.Alavancas, types.SnapshotFinding{
				ProcessKey: p.Key,
				Title:      p.Label,
			})
		}
	}

	for _, r := range recommendations {
		var actionKeys []string
		if len(r.ActionKeys) > 0 {
			_ = json.Unmarshal(r.ActionKeys, &actionKeys)
		}
		payload.Recommendations = append(payload.Recommendations, types.SnapshotRecommendation{
			ProcessKey:        r.ProcessKey,
			Band:              r.Band,
			RecommendationKey: r.RecommendationKey,
			Title:             r.Title,
			ActionKeys:        actionKeys,
			IsFallback:        r.IsFallback,
			GapReason:         r.GapReason,
		})
	}

	for _, slot := range slots {
		title := slot.ActionKey
		if action := ss.cat.ActionByKey(slot.ActionKey); action != nil {
			title = action.Title
		}
		entry := types.SnapshotPlanEntry{
			Position:       slot.Position,
			ActionKey:      slot.ActionKey,
			Title:          title,
			OwnerName:      slot.OwnerName,
			MetricText:     slot.MetricText,
			CheckpointDate: slot.CheckpointDate.Format("2006-01-02"),
			Status:         string(slot.Status),
		}
		if slot.DroppedReason != nil {
			entry.DroppedReason = *slot.DroppedReason
		}
		payload.Plan = append(payload.Plan, entry)
	}

	for _, e := range evidences {
		entry := types.SnapshotEvidenceEntry{
			ActionKey:      e.ActionKey,
			BeforeBaseline: e.BeforeBaseline,
			AfterResult:    e.AfterResult,
		}
		if e.DeclaredGain != nil {
			entry.DeclaredGain = *e.DeclaredGain
		}
		payload.EvidenceSummary = append(payload.EvidenceSummary, entry)
	}

	return payload
}

func (ss *snapshotService) Get(ctx context.Context, assessmentID uuid.UUID) (*types.Snapshot, error) {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil {
		return nil, fmt.Errorf("request data not set in context")
	}
	assessment, err := ss.assessmentRepo.GetByID(ctx, nil, assessmentID)
	if err != nil || assessment.CompanyID != rd.CompanyID {
		return nil, apierr.NotFound("assessment_not_found", fmt.Errorf("assessment %s not found", assessmentID))
	}
	snap, err := ss.snapshotRepo.GetByAssessment(ctx, nil, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if snap == nil {
		return nil, apierr.NotFound("snapshot_not_found", fmt.Errorf("assessment %s has no snapshot yet", assessmentID))
	}
	return snap, nil
}

func (ss *snapshotService) CompareVersions(ctx context.Context, fromVersion, toVersion int) (*VersionComparison, error) {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil {
		return nil, fmt.Errorf("request data not set in context")
	}
	if fromVersion <= 0 || toVersion <= 0 || fromVersion == toVersion {
		return nil, apierr.Validation("invalid_versions", fmt.Errorf("need two distinct positive versions"))
	}

	var fromPayload, toPayload types.SnapshotPayload
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := ss.loadVersionPayload(gctx, rd.CompanyID, fromVersion)
		if err != nil {
			return err
		}
		fromPayload = p
		return nil
	})
	g.Go(func() error {
		p, err := ss.loadVersionPayload(gctx, rd.CompanyID, toVersion)
		if err != nil {
			return err
		}
		toPayload = p
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	comparison := &VersionComparison{
		FromVersion: fromVersion,
		ToVersion:   toVersion,
		FromPlan:    summarizePlan(fromPayload.Plan),
		ToPlan:      summarizePlan(toPayload.Plan),
	}

	toByProcess := map[string]types.SnapshotProcess{}
	for _, p := range toPayload.Processes {
		toByProcess[p.ProcessKey] = p
	}
	for _, from := range fromPayload.Processes {
		to, ok := toByProcess[from.ProcessKey]
		if !ok {
			continue
		}
		comparison.Processes = append(comparison.Processes, ProcessDelta{
			ProcessKey: from.ProcessKey,
			Label:      from.Label,
			FromBand:   from.Band,
			ToBand:     to.Band,
			FromScore:  from.ScoreNumeric,
			ToScore:    to.ScoreNumeric,
			Delta:      to.ScoreNumeric - from.ScoreNumeric,
		})
	}
	return comparison, nil
}

func (ss *snapshotService) loadVersionPayload(ctx context.Context, companyID uuid.UUID, version int) (types.SnapshotPayload, error) {
	var payload types.SnapshotPayload
	assessment, err := ss.assessmentRepo.GetByVersion(ctx, nil, companyID, version)
	if err != nil {
		return payload, apierr.NotFound("version_not_found", fmt.Errorf("diagnostic version %d not found", version))
	}
	snap, err := ss.snapshotRepo.GetByAssessment(ctx, nil, assessment.ID)
	if err != nil {
		return payload, fmt.Errorf("load snapshot v%d: %w", version, err)
	}
	if snap == nil {
		return payload, apierr.NotFound("snapshot_not_found", fmt.Errorf("diagnostic version %d has no snapshot", version))
	}
	if err := json.Unmarshal(snap.Payload, &payload); err != nil {
		return payload, fmt.Errorf("decode snapshot v%d: %w", version, err)
	}
	return payload, nil
}

func summarizePlan(entries []types.SnapshotPlanEntry) PlanOutcomeSummary {
	var s PlanOutcomeSummary
	for _, e := range entries {
		switch types.SlotStatus(e.Status) {
		case types.SlotDone:
			s.Done++
		case types.SlotDropped:
			s.Dropped++
		default:
			s.Open++
		}
	}
	return s
}
