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
	"github.com/bussola-digital/bussola-backend/internal/diagnostic"
	types "github.com/bussola-digital/bussola-backend/internal/domain"
	"github.com/bussola-digital/bussola-backend/internal/observability"
	"github.com/bussola-digital/bussola-backend/internal/platform/apierr"
	"github.com/bussola-digital/bussola-backend/internal/platform/ctxutil"
	"github.com/bussola-digital/bussola-backend/internal/platform/logger"
)

type AnswerInput struct {
	ProcessKey  string `json:"process_key"`
	QuestionKey string `json:"question_key"`
	Value       int    `json:"value"`
}

// AssessmentResults is the live (non-frozen) view of a submitted diagnosis.
type AssessmentResults struct {
	Assessment      *types.Assessment       `json:"assessment"`
	Scores          []*types.ProcessScore   `json:"scores"`
	Recommendations []*types.Recommendation `json:"recommendations"`
}

// ClassifyResult reports a root-cause classification. AlreadyClassified is
// set when a concurrent or earlier call won the insert; Record then holds
// the stored row, not this call's computation.
type ClassifyResult struct {
	Record            *types.GapCauseRecord     `json:"record,omitempty"`
	Classification    diagnostic.Classification `json:"classification"`
	AlreadyClassified bool                      `json:"already_classified"`
}

// SuggestedAction pairs a derived recommendation with the full catalog
// actions it points at.
type SuggestedAction struct {
	Recommendation diagnostic.DerivedRecommendation `json:"recommendation"`
	Actions        []*catalog.CatalogAction         `json:"actions"`
}

type AssessmentService interface {
	// Start returns the company's open DRAFT, creating version 1 when the
	// company has never run a diagnosis.
	Start(ctx context.Context) (*types.Assessment, error)
	GetCurrent(ctx context.Context) (*types.Assessment, error)
	GetResults(ctx context.Context, assessmentID uuid.UUID) (*AssessmentResults, error)
	UpsertAnswers(ctx context.Context, assessmentID uuid.UUID, answers []AnswerInput) error
	// Submit atomically derives scores and recommendations, freezes the
	// first snapshot and moves the assessment to SUBMITTED.
	Submit(ctx context.Context, assessmentID uuid.UUID) (*AssessmentResults, error)
	// ClassifyCause runs the deterministic root-cause classifier for one
	// gap. First writer wins; later calls get the stored record back.
	ClassifyCause(ctx context.Context, assessmentID uuid.UUID, gapID string, causeAnswers map[string]int) (*ClassifyResult, error)
	// GetSuggestedActions derives suggestions live, excluding every action
	// key the company already planned in any cycle or version.
	GetSuggestedActions(ctx context.Context, assessmentID uuid.UUID) ([]SuggestedAction, error)
	// StartNewVersion opens a fresh DRAFT with full_version+1; the previous
	// assessment and its snapshot stay frozen.
	StartNewVersion(ctx context.Context) (*types.Assessment, error)
}

type assessmentService struct {
	db              *gorm.DB
	log             *logger.Logger
	cat             *catalog.Catalog
	companyRepo     repos.CompanyRepo
	assessmentRepo  repos.AssessmentRepo
	answerRepo      repos.AnswerRepo
	scoreRepo       repos.ProcessScoreRepo
	gapCauseRepo    repos.GapCauseRepo
	recRepo         repos.RecommendationRepo
	slotRepo        repos.PlanSlotRepo
	snapshotService SnapshotService
	publisher       audit.Publisher
}

func NewAssessmentService(
	db *gorm.DB,
	log *logger.Logger,
	cat *catalog.Catalog,
	companyRepo repos.CompanyRepo,
	assessmentRepo repos.AssessmentRepo,
	answerRepo repos.AnswerRepo,
	scoreRepo repos.ProcessScoreRepo,
	gapCauseRepo repos.GapCauseRepo,
	recRepo repos.RecommendationRepo,
	slotRepo repos.PlanSlotRepo,
	snapshotService SnapshotService,
	publisher audit.Publisher,
) AssessmentService {
	serviceLog := log.With("service", "AssessmentService")
	return &assessmentService{
		db:              db,
		log:             serviceLog,
		cat:             cat,
		companyRepo:     companyRepo,
		assessmentRepo:  assessmentRepo,
		answerRepo:      answerRepo,
		scoreRepo:       scoreRepo,
		gapCauseRepo:    gapCauseRepo,
		recRepo:         recRepo,
		slotRepo:        slotRepo,
		snapshotService: snapshotService,
		publisher:       publisher,
	}
}

func requestData(ctx context.Context) (*ctxutil.RequestData, error) {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.CompanyID == uuid.Nil {
		return nil, fmt.Errorf("request data not set in context")
	}
	return rd, nil
}

// ownedAssessment loads the assessment and hides other companies' rows
// behind NOT_FOUND.
func (s *assessmentService) ownedAssessment(ctx context.Context, tx *gorm.DB, rd *ctxutil.RequestData, assessmentID uuid.UUID) (*types.Assessment, error) {
	assessment, err := s.assessmentRepo.GetByID(ctx, tx, assessmentID)
	if err != nil || assessment.CompanyID != rd.CompanyID {
		return nil, apierr.NotFound("assessment_not_found", fmt.Errorf("assessment %s not found", assessmentID))
	}
	return assessment, nil
}

func (s *assessmentService) Start(ctx context.Context) (*types.Assessment, error) {
	rd, err := requestData(ctx)
	if err != nil {
		return nil, err
	}

	current, err := s.assessmentRepo.GetCurrent(ctx, nil, rd.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("load current assessment: %w", err)
	}
	if current != nil {
		if current.Status == types.AssessmentDraft {
			return current, nil
		}
		return nil, apierr.Conflict("assessment_active", fmt.Errorf("version %d is %s; redo the diagnosis to start over", current.FullVersion, current.Status))
	}

	company, err := s.companyRepo.GetByID(ctx, nil, rd.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("load company: %w", err)
	}

	assessment, err := s.assessmentRepo.Create(ctx, nil, &types.Assessment{
		ID:          uuid.New(),
		CompanyID:   rd.CompanyID,
		Segment:     company.Segment,
		FullVersion: 1,
		Cycle:       1,
		Status:      types.AssessmentDraft,
	})
	if err != nil {
		if pgerr.IsUniqueViolation(err) {
			return nil, apierr.Conflict("assessment_exists", err)
		}
		return nil, fmt.Errorf("create assessment: %w", err)
	}

	s.publisher.Publish(ctx, audit.Event{
		Name:         "assessment.started",
		CompanyID:    rd.CompanyID,
		AssessmentID: assessment.ID,
		ActorID:      rd.UserID,
	})
	return assessment, nil
}

func (s *assessmentService) GetCurrent(ctx context.Context) (*types.Assessment, error) {
	rd, err := requestData(ctx)
	if err != nil {
		return nil, err
	}
	current, err := s.assessmentRepo.GetCurrent(ctx, nil, rd.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("load current assessment: %w", err)
	}
	if current == nil {
		return nil, apierr.NotFound("assessment_not_found", fmt.Errorf("company has no diagnosis yet"))
	}
	return current, nil
}

func (s *assessmentService) GetResults(ctx context.Context, assessmentID uuid.UUID) (*AssessmentResults, error) {
	rd, err := requestData(ctx)
	if err != nil {
		return nil, err
	}
	assessment, err := s.ownedAssessment(ctx, nil, rd, assessmentID)
	if err != nil {
		return nil, err
	}
	scores, err := s.scoreRepo.ListByAssessment(ctx, nil, assessment.ID)
	if err != nil {
		return nil, fmt.Errorf("load scores: %w", err)
	}
	recommendations, err := s.recRepo.ListByAssessment(ctx, nil, assessment.ID)
	if err != nil {
		return nil, fmt.Errorf("load recommendations: %w", err)
	}
	return &AssessmentResults{
		Assessment:      assessment,
		Scores:          scores,
		Recommendations: recommendations,
	}, nil
}

func (s *assessmentService) UpsertAnswers(ctx context.Context, assessmentID uuid.UUID, answers []AnswerInput) error {
	rd, err := requestData(ctx)
	if err != nil {
		return err
	}
	if len(answers) == 0 {
		return apierr.Validation("no_answers", fmt.Errorf("at least one answer is required"))
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		assessment, err := s.ownedAssessment(ctx, tx, rd, assessmentID)
		if err != nil {
			return err
		}
		if assessment.Status == types.AssessmentClosed {
			return apierr.Conflict("cycle_closed", fmt.Errorf("cycle closed, read-only"))
		}

		rows := make([]*types.Answer, 0, len(answers))
		for _, in := range answers {
			if in.Value < 1 || in.Value > 5 {
				return apierr.Validation("answer_out_of_range", fmt.Errorf("%s/%s: value %d outside 1..5", in.ProcessKey, in.QuestionKey, in.Value))
			}
			kind, gap := s.classifyQuestionKey(in.ProcessKey, in.QuestionKey)
			switch kind {
			case questionKindUnknown:
				return apierr.Validation("unknown_question", fmt.Errorf("%s/%s is not a catalog question", in.ProcessKey, in.QuestionKey))
			case questionKindQuestionnaire:
				if assessment.Status != types.AssessmentDraft {
					return apierr.Conflict("answers_frozen", fmt.Errorf("questionnaire answers are frozen after submit"))
				}
			case questionKindCause:
				record, err := s.gapCauseRepo.GetByGap(ctx, tx, assessment.ID, gap.GapID)
				if err != nil {
					return fmt.Errorf("check gap classification: %w", err)
				}
				if record != nil {
					return apierr.Conflict("cause_answers_frozen", fmt.Errorf("gap %s is classified; its answers are frozen", gap.GapID))
				}
			}
			rows = append(rows, &types.Answer{
				ID:           uuid.New(),
				AssessmentID: assessment.ID,
				ProcessKey:   in.ProcessKey,
				QuestionKey:  in.QuestionKey,
				Value:        in.Value,
			})
		}
		return s.answerRepo.Upsert(ctx, tx, rows)
	})
}

type questionKind int

const (
	questionKindUnknown questionKind = iota
	questionKindQuestionnaire
	questionKindCause
)

func (s *assessmentService) classifyQuestionKey(processKey, questionKey string) (questionKind, *catalog.GapDefinition) {
	if p := s.cat.ProcessByKey(processKey); p != nil {
		for _, q := range p.Questions {
			if q.Key == questionKey {
				return questionKindQuestionnaire, nil
			}
		}
	}
	for _, band := range []catalog.Band{catalog.BandLow, catalog.BandMedium, catalog.BandHigh} {
		gap := s.cat.GapFor(processKey, band)
		if gap == nil {
			continue
		}
		for _, q := range gap.CauseQuestions {
			if q.Key == questionKey {
				return questionKindCause, gap
			}
		}
	}
	return questionKindUnknown, nil
}

func (s *assessmentService) Submit(ctx context.Context, assessmentID uuid.UUID) (*AssessmentResults, error) {
	rd, err := requestData(ctx)
	if err != nil {
		return nil, err
	}

	var results *AssessmentResults
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		assessment, err := s.ownedAssessment(ctx, tx, rd, assessmentID)
		if err != nil {
			return err
		}
		if !assessment.Status.CanTransition(types.AssessmentSubmitted) || assessment.Status != types.AssessmentDraft {
			return apierr.Conflict("invalid_status_transition", fmt.Errorf("cannot submit a %s assessment", assessment.Status))
		}

		answerRows, err := s.answerRepo.ListByAssessment(ctx, tx, assessment.ID)
		if err != nil {
			return fmt.Errorf("load answers: %w", err)
		}
		answers := s.questionnaireAnswerMap(answerRows)

		if process, missing := diagnostic.MissingAnswers(s.cat, answers); process != "" {
			return apierr.Validation("incomplete_answers", fmt.Errorf("process %s is missing answers for %v", process, missing))
		}

		scores := diagnostic.ComputeProcessScores(s.cat, answers)
		scoreRows := make([]*types.ProcessScore, 0, len(scores))
		for _, sc := range scores {
			scoreRows = append(scoreRows, &types.ProcessScore{
				ID:           uuid.New(),
				AssessmentID: assessment.ID,
				ProcessKey:   sc.ProcessKey,
				Band:         string(sc.Band),
				ScoreNumeric: sc.ScoreNumeric,
			})
		}
		if err := s.scoreRepo.Upsert(ctx, tx, scoreRows); err != nil {
			return fmt.Errorf("write scores: %w", err)
		}

		if err := s.deriveAndStoreRecommendations(ctx, tx, assessment, scores, answers); err != nil {
			return err
		}

		now := time.Now().UTC()
		if err := s.assessmentRepo.SetSubmitted(ctx, tx, assessment.ID, now); err != nil {
			return fmt.Errorf("mark submitted: %w", err)
		}
		assessment.Status = types.AssessmentSubmitted
		assessment.SubmittedAt = &now

		if err := s.snapshotService.Build(ctx, tx, assessment, SnapshotTriggerSubmit); err != nil {
			return err
		}

		storedScores, err := s.scoreRepo.ListByAssessment(ctx, tx, assessment.ID)
		if err != nil {
			return fmt.Errorf("reload scores: %w", err)
		}
		recommendations, err := s.recRepo.ListByAssessment(ctx, tx, assessment.ID)
		if err != nil {
			return fmt.Errorf("reload recommendations: %w", err)
		}
		results = &AssessmentResults{
			Assessment:      assessment,
			Scores:          storedScores,
			Recommendations: recommendations,
		}
		return nil
	}); err != nil {
		return nil, err
	}

	observability.Current().IncDiagnosticSubmitted()
	s.publisher.Publish(ctx, audit.Event{
		Name:         "assessment.submitted",
		CompanyID:    rd.CompanyID,
		AssessmentID: assessmentID,
		ActorID:      rd.UserID,
	})
	return results, nil
}

// questionnaireAnswerMap keeps only questionnaire answers; stored cause
// answers never feed scoring.
func (s *assessmentService) questionnaireAnswerMap(rows []*types.Answer) map[string]map[string]int {
	out := map[string]map[string]int{}
	for _, row := range rows {
		p := s.cat.ProcessByKey(row.ProcessKey)
		if p == nil {
			continue
		}
		known := false
		for _, q := range p.Questions {
			if q.Key == row.QuestionKey {
				known = true
				break
			}
		}
		if !known {
			continue
		}
		if out[row.ProcessKey] == nil {
			out[row.ProcessKey] = map[string]int{}
		}
		out[row.ProcessKey][row.QuestionKey] = row.Value
	}
	return out
}

func (s *assessmentService) deriveAndStoreRecommendations(
	ctx context.Context,
	tx *gorm.DB,
	assessment *types.Assessment,
	scores []diagnostic.ProcessResult,
	answers map[string]map[string]int,
) error {
	gapPrimary, err := s.gapPrimaryMap(ctx, tx, assessment.ID)
	if err != nil {
		return err
	}
	exclude, err := s.usedActionKeys(ctx, tx, assessment.CompanyID)
	if err != nil {
		return err
	}

	derived := diagnostic.Derive(s.cat, scores, answers, gapPrimary, exclude)
	rows := make([]*types.Recommendation, 0, len(derived))
	keepKeys := make([]string, 0, len(derived))
	for _, d := range derived {
		var actionKeys datatypes.JSON
		if len(d.ActionKeys) > 0 {
			raw, err := json.Marshal(d.ActionKeys)
			if err != nil {
				return fmt.Errorf("marshal action keys: %w", err)
			}
			actionKeys = datatypes.JSON(raw)
		}
		rows = append(rows, &types.Recommendation{
			ID:                uuid.New(),
			AssessmentID:      assessment.ID,
			ProcessKey:        d.ProcessKey,
			RecommendationKey: d.RecommendationKey,
			Band:              string(d.Band),
			Title:             d.Title,
			ActionKeys:        actionKeys,
			IsFallback:        d.IsFallback,
			GapReason:         d.GapReason,
		})
		keepKeys = append(keepKeys, d.RecommendationKey)
		outcome := "matched"
		if d.IsFallback {
			outcome = d.GapReason
		} else if len(d.ActionKeys) > 1 {
			outcome = "classified"
		}
		observability.Current().IncRecommendationOutcome(outcome)
	}
	if err := s.recRepo.Upsert(ctx, tx, rows); err != nil {
		return fmt.Errorf("write recommendations: %w", err)
	}
	// A re-derive can change a process's recommendation key (a planned
	// action falls out of the candidate set); the old row must not linger
	// next to the new one.
	if err := s.recRepo.DeleteStale(ctx, tx, assessment.ID, keepKeys); err != nil {
		return fmt.Errorf("prune recommendations: %w", err)
	}
	return nil
}

func (s *assessmentService) gapPrimaryMap(ctx context.Context, tx *gorm.DB, assessmentID uuid.UUID) (map[string]string, error) {
	records, err := s.gapCauseRepo.ListByAssessment(ctx, tx, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("load gap classifications: %w", err)
	}
	out := map[string]string{}
	for _, r := range records {
		out[r.GapID] = r.CausePrimary
	}
	return out, nil
}

// usedActionKeys unions every action key the company ever planned, across
// all diagnostic versions and cycles.
func (s *assessmentService) usedActionKeys(ctx context.Context, tx *gorm.DB, companyID uuid.UUID) (map[string]bool, error) {
	assessments, err := s.assessmentRepo.ListByCompany(ctx, tx, companyID)
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	used := map[string]bool{}
	for _, a := range assessments {
		keys, err := s.slotRepo.UsedActionKeys(ctx, tx, a.ID)
		if err != nil {
			return nil, fmt.Errorf("list used actions: %w", err)
		}
		for _, k := range keys {
			used[k] = true
		}
	}
	return used, nil
}

func (s *assessmentService) ClassifyCause(ctx context.Context, assessmentID uuid.UUID, gapID string, causeAnswers map[string]int) (*ClassifyResult, error) {
	rd, err := requestData(ctx)
	if err != nil {
		return nil, err
	}
	gap := s.cat.GapByID(gapID)
	if gap == nil {
		return nil, apierr.NotFound("gap_not_found", fmt.Errorf("gap %s not found", gapID))
	}

	var result *ClassifyResult
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		assessment, err := s.ownedAssessment(ctx, tx, rd, assessmentID)
		if err != nil {
			return err
		}
		if assessment.Status == types.AssessmentClosed {
			return apierr.Conflict("cycle_closed", fmt.Errorf("cycle closed, read-only"))
		}
		if assessment.Status != types.AssessmentSubmitted {
			return apierr.Conflict("not_submitted", fmt.Errorf("classify requires a submitted diagnosis"))
		}

		if err := s.gapApplies(ctx, tx, assessment.ID, gap); err != nil {
			return err
		}

		existing, err := s.gapCauseRepo.GetByGap(ctx, tx, assessment.ID, gapID)
		if err != nil {
			return fmt.Errorf("check existing classification: %w", err)
		}
		if existing != nil {
			result = &ClassifyResult{Record: existing, AlreadyClassified: true}
			return nil
		}

		answers, err := s.persistCauseAnswers(ctx, tx, assessment.ID, gap, causeAnswers)
		if err != nil {
			return err
		}

		classification := diagnostic.Classify(gap, answers)
		result = &ClassifyResult{Classification: classification}
		if classification.Primary == nil {
			// A classification where nothing scores is a valid outcome; it
			// is never persisted so the gap stays open for a retry.
			return nil
		}

		record, err := s.buildGapCauseRecord(assessment.ID, gap, classification)
		if err != nil {
			return err
		}
		if err := s.gapCauseRepo.Insert(ctx, tx, record); err != nil {
			if pgerr.IsUniqueViolation(err) {
				stored, getErr := s.gapCauseRepo.GetByGap(ctx, tx, assessment.ID, gapID)
				if getErr != nil || stored == nil {
					return fmt.Errorf("load winning classification: %w", getErr)
				}
				result = &ClassifyResult{Record: stored, AlreadyClassified: true}
				return nil
			}
			return fmt.Errorf("store classification: %w", err)
		}
		result.Record = record

		// The gap's recommendation flips from fallback to classified under
		// the same recommendation key.
		return s.refreshRecommendations(ctx, tx, assessment)
	}); err != nil {
		return nil, err
	}

	if result.Record != nil && !result.AlreadyClassified {
		observability.Current().IncGapClassified(result.Record.CausePrimary)
		s.publisher.Publish(ctx, audit.Event{
			Name:         "gap.classified",
			CompanyID:    rd.CompanyID,
			AssessmentID: assessmentID,
			ActorID:      rd.UserID,
			Detail:       map[string]string{"gap_id": gapID, "cause": result.Record.CausePrimary},
		})
	}
	return result, nil
}

// gapApplies checks that the assessment actually resolved this gap's
// process into the gap's band.
func (s *assessmentService) gapApplies(ctx context.Context, tx *gorm.DB, assessmentID uuid.UUID, gap *catalog.GapDefinition) error {
	scores, err := s.scoreRepo.ListByAssessment(ctx, tx, assessmentID)
	if err != nil {
		return fmt.Errorf("load scores: %w", err)
	}
	for _, score := range scores {
		if score.ProcessKey == gap.ProcessKey {
			if score.Band != string(gap.Band) {
				return apierr.Validation("gap_not_applicable", fmt.Errorf("process %s resolved to %s, gap %s needs %s", gap.ProcessKey, score.Band, gap.GapID, gap.Band))
			}
			return nil
		}
	}
	return apierr.Validation("gap_not_applicable", fmt.Errorf("process %s has no score", gap.ProcessKey))
}

// persistCauseAnswers stores the provided cause answers and returns the
// merged set (stored earlier + provided now) keyed by question.
func (s *assessmentService) persistCauseAnswers(ctx context.Context, tx *gorm.DB, assessmentID uuid.UUID, gap *catalog.GapDefinition, provided map[string]int) (map[string]int, error) {
	valid := map[string]bool{}
	for _, q := range gap.CauseQuestions {
		valid[q.Key] = true
	}

	rows := make([]*types.Answer, 0, len(provided))
	for key, value := range provided {
		if !valid[key] {
			return nil, apierr.Validation("unknown_question", fmt.Errorf("%s is not a cause question of gap %s", key, gap.GapID))
		}
		if value < 1 || value > 5 {
			return nil, apierr.Validation("answer_out_of_range", fmt.Errorf("%s: value %d outside 1..5", key, value))
		}
		rows = append(rows, &types.Answer{
			ID:           uuid.New(),
			AssessmentID: assessmentID,
			ProcessKey:   gap.ProcessKey,
			QuestionKey:  key,
			Value:        value,
		})
	}
	if err := s.answerRepo.Upsert(ctx, tx, rows); err != nil {
		return nil, fmt.Errorf("store cause answers: %w", err)
	}

	stored, err := s.answerRepo.GetByKeys(ctx, tx, assessmentID, gap.ProcessKey, gap.CauseQuestionKeys())
	if err != nil {
		return nil, fmt.Errorf("load cause answers: %w", err)
	}
	merged := map[string]int{}
	for _, row := range stored {
		merged[row.QuestionKey] = row.Value
	}
	return merged, nil
}

func (s *assessmentService) buildGapCauseRecord(assessmentID uuid.UUID, gap *catalog.GapDefinition, classification diagnostic.Classification) (*types.GapCauseRecord, error) {
	evidence, err := json.Marshal(classification.Evidence)
	if err != nil {
		return nil, fmt.Errorf("marshal evidence: %w", err)
	}
	scoreMap, err := json.Marshal(classification.Scores)
	if err != nil {
		return nil, fmt.Errorf("marshal score map: %w", err)
	}
	return &types.GapCauseRecord{
		ID:             uuid.New(),
		AssessmentID:   assessmentID,
		GapID:          gap.GapID,
		CausePrimary:   *classification.Primary,
		CauseSecondary: classification.Secondary,
		Evidence:       datatypes.JSON(evidence),
		ScoreMap:       datatypes.JSON(scoreMap),
	}, nil
}

// refreshRecommendations re-derives the recommendation rows from the
// stored answers and the latest classifications.
func (s *assessmentService) refreshRecommendations(ctx context.Context, tx *gorm.DB, assessment *types.Assessment) error {
	answerRows, err := s.answerRepo.ListByAssessment(ctx, tx, assessment.ID)
	if err != nil {
		return fmt.Errorf("load answers: %w", err)
	}
	answers := s.questionnaireAnswerMap(answerRows)
	scores := diagnostic.ComputeProcessScores(s.cat, answers)
	return s.deriveAndStoreRecommendations(ctx, tx, assessment, scores, answers)
}

func (s *assessmentService) GetSuggestedActions(ctx context.Context, assessmentID uuid.UUID) ([]SuggestedAction, error) {
	rd, err := requestData(ctx)
	if err != nil {
		return nil, err
	}
	assessment, err := s.ownedAssessment(ctx, nil, rd, assessmentID)
	if err != nil {
		return nil, err
	}
	if assessment.Status == types.AssessmentDraft {
		return nil, apierr.Conflict("not_submitted", fmt.Errorf("suggestions require a submitted diagnosis"))
	}

	answerRows, err := s.answerRepo.ListByAssessment(ctx, nil, assessment.ID)
	if err != nil {
		return nil, fmt.Errorf("load answers: %w", err)
	}
	answers := s.questionnaireAnswerMap(answerRows)
	scores := diagnostic.ComputeProcessScores(s.cat, answers)

	gapPrimary, err := s.gapPrimaryMap(ctx, nil, assessment.ID)
	if err != nil {
		return nil, err
	}
	exclude, err := s.usedActionKeys(ctx, nil, assessment.CompanyID)
	if err != nil {
		return nil, err
	}

	derived := diagnostic.Derive(s.cat, scores, answers, gapPrimary, exclude)
	out := make([]SuggestedAction, 0, len(derived))
	for _, d := range derived {
		suggestion := SuggestedAction{Recommendation: d}
		for _, key := range d.ActionKeys {
			if exclude[key] {
				continue
			}
			if action := s.cat.ActionByKey(key); action != nil {
				suggestion.Actions = append(suggestion.Actions, action)
			}
		}
		out = append(out, suggestion)
	}
	return out, nil
}

func (s *assessmentService) StartNewVersion(ctx context.Context) (*types.Assessment, error) {
	rd, err := requestData(ctx)
	if err != nil {
		return nil, err
	}

	var assessment *types.Assessment
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.assessmentRepo.GetCurrent(ctx, tx, rd.CompanyID)
		if err != nil {
			return fmt.Errorf("load current assessment: %w", err)
		}
		if current == nil {
			return apierr.NotFound("assessment_not_found", fmt.Errorf("company has no diagnosis to redo"))
		}
		if current.Status == types.AssessmentDraft {
			return apierr.Conflict("draft_open", fmt.Errorf("version %d is still a draft", current.FullVersion))
		}

		assessment, err = s.assessmentRepo.Create(ctx, tx, &types.Assessment{
			ID:          uuid.New(),
			CompanyID:   rd.CompanyID,
			Segment:     current.Segment,
			FullVersion: current.FullVersion + 1,
			Cycle:       1,
			Status:      types.AssessmentDraft,
		})
		if err != nil {
			if pgerr.IsUniqueViolation(err) {
				return apierr.Conflict("version_conflict", err)
			}
			return fmt.Errorf("create new version: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, audit.Event{
		Name:         "assessment.new_version",
		CompanyID:    rd.CompanyID,
		AssessmentID: assessment.ID,
		ActorID:      rd.UserID,
		Detail:       map[string]int{"full_version": assessment.FullVersion},
	})
	return assessment, nil
}
