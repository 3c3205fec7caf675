package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/bussola-digital/bussola-backend/internal/audit"
	"github.com/bussola-digital/bussola-backend/internal/catalog"
	"github.com/bussola-digital/bussola-backend/internal/data/repos"
	"github.com/bussola-digital/bussola-backend/internal/data/repos/testutil"
	types "github.com/bussola-digital/bussola-backend/internal/domain"
	"github.com/bussola-digital/bussola-backend/internal/platform/apierr"
	"github.com/bussola-digital/bussola-backend/internal/platform/ctxutil"
)

type fixture struct {
	ctx         context.Context
	tx          *gorm.DB
	cat         *catalog.Catalog
	company     *types.Company
	assessments AssessmentService
	plans       PlanService
	snapshots   SnapshotService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := testutil.Logger(t)

	cat, err := catalog.Load()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}

	companyRepo := repos.NewCompanyRepo(tx, log)
	assessmentRepo := repos.NewAssessmentRepo(tx, log)
	answerRepo := repos.NewAnswerRepo(tx, log)
	scoreRepo := repos.NewProcessScoreRepo(tx, log)
	gapCauseRepo := repos.NewGapCauseRepo(tx, log)
	recRepo := repos.NewRecommendationRepo(tx, log)
	slotRepo := repos.NewPlanSlotRepo(tx, log)
	dodRepo := repos.NewDodConfirmationRepo(tx, log)
	evidenceRepo := repos.NewEvidenceRepo(tx, log)
	snapshotRepo := repos.NewSnapshotRepo(tx, log)

	publisher := audit.NewNoopPublisher()
	snapshots := NewSnapshotService(tx, log, cat, assessmentRepo, scoreRepo, recRepo, slotRepo, evidenceRepo, snapshotRepo)
	assessments := NewAssessmentService(tx, log, cat, companyRepo, assessmentRepo, answerRepo, scoreRepo, gapCauseRepo, recRepo, slotRepo, snapshots, publisher)
	plans := NewPlanService(tx, log, cat, assessmentRepo, slotRepo, dodRepo, evidenceRepo, snapshots, publisher)

	company := testutil.SeedCompany(t, tx)
	user := testutil.SeedUser(t, tx, company.ID)
	ctx := ctxutil.WithRequestData(context.Background(), &ctxutil.RequestData{
		UserID:    user.ID,
		CompanyID: company.ID,
		Role:      user.Role,
	})

	return &fixture{
		ctx:         ctx,
		tx:          tx,
		cat:         cat,
		company:     company,
		assessments: assessments,
		plans:       plans,
		snapshots:   snapshots,
	}
}

// answerEverything answers every questionnaire question with value.
func answerEverything(t *testing.T, f *fixture, assessment *types.Assessment, value int) {
	t.Helper()
	var answers []AnswerInput
	for _, p := range f.cat.Actions.Processes {
		for _, q := range p.Questions {
			answers = append(answers, AnswerInput{ProcessKey: p.Key, QuestionKey: q.Key, Value: value})
		}
	}
	if err := f.assessments.UpsertAnswers(f.ctx, assessment.ID, answers); err != nil {
		t.Fatalf("UpsertAnswers: %v", err)
	}
}

func apiCode(t *testing.T, err error) string {
	t.Helper()
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected an api error, got %v", err)
	}
	return apiErr.Code
}

func TestStartIsIdempotentWhileDraft(t *testing.T) {
	f := newFixture(t)

	first, err := f.assessments.Start(f.ctx)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if first.FullVersion != 1 || first.Cycle != 1 || first.Status != types.AssessmentDraft {
		t.Fatalf("unexpected first assessment: %+v", first)
	}
	if first.Segment != f.company.Segment {
		t.Fatalf("segment not copied from company: %q", first.Segment)
	}

	second, err := f.assessments.Start(f.ctx)
	if err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("second Start created a new assessment")
	}
}

func TestSubmitRequiresCompleteAnswers(t *testing.T) {
	f := newFixture(t)
	assessment, err := f.assessments.Start(f.ctx)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	p := f.cat.Actions.Processes[0]
	err = f.assessments.UpsertAnswers(f.ctx, assessment.ID, []AnswerInput{
		{ProcessKey: p.Key, QuestionKey: p.Questions[0].Key, Value: 3},
	})
	if err != nil {
		t.Fatalf("UpsertAnswers: %v", err)
	}

	if _, err := f.assessments.Submit(f.ctx, assessment.ID); apiCode(t, err) != "incomplete_answers" {
		t.Fatalf("expected incomplete_answers, got %v", err)
	}
}

func TestSubmitDerivesScoresAndRecommendations(t *testing.T) {
	f := newFixture(t)
	assessment, err := f.assessments.Start(f.ctx)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	answerEverything(t, f, assessment, 1)

	results, err := f.assessments.Submit(f.ctx, assessment.ID)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if results.Assessment.Status != types.AssessmentSubmitted {
		t.Fatalf("status = %s", results.Assessment.Status)
	}
	if len(results.Scores) != 4 {
		t.Fatalf("scores = %d, want 4", len(results.Scores))
	}
	for _, score := range results.Scores {
		if score.Band != string(catalog.BandLow) {
			t.Fatalf("process %s: band %s, want LOW for all-1 answers", score.ProcessKey, score.Band)
		}
		if score.ScoreNumeric != 5 {
			t.Fatalf("process %s: score %d, want 5", score.ProcessKey, score.ScoreNumeric)
		}
	}
	if len(results.Recommendations) != 4 {
		t.Fatalf("recommendations = %d, want one per process", len(results.Recommendations))
	}

	// Processes with a LOW gap surface the gap as an unclassified fallback
	// until root causes are answered.
	byProcess := map[string]*types.Recommendation{}
	for _, rec := range results.Recommendations {
		byProcess[rec.ProcessKey] = rec
	}
	comercial := byProcess["comercial"]
	if comercial == nil || !comercial.IsFallback || comercial.GapReason != "gap_not_classified" {
		t.Fatalf("comercial recommendation: %+v", comercial)
	}
	if comercial.RecommendationKey != "gap_comercial_low" {
		t.Fatalf("comercial key = %s", comercial.RecommendationKey)
	}

	snapshot, err := f.snapshots.Get(f.ctx, assessment.ID)
	if err != nil {
		t.Fatalf("snapshot after submit: %v", err)
	}
	var payload types.SnapshotPayload
	if err := json.Unmarshal(snapshot.Payload, &payload); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(payload.Processes) != 4 {
		t.Fatalf("snapshot processes = %d", len(payload.Processes))
	}
	if len(payload.Findings.Vazamentos) != 4 {
		t.Fatalf("all-LOW diagnosis should list 4 leaks, got %d", len(payload.Findings.Vazamentos))
	}
}

func TestSubmitTwiceConflicts(t *testing.T) {
	f := newFixture(t)
	assessment, _ := f.assessments.Start(f.ctx)
	answerEverything(t, f, assessment, 1)
	if _, err := f.assessments.Submit(f.ctx, assessment.ID); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := f.assessments.Submit(f.ctx, assessment.ID); apiCode(t, err) != "invalid_status_transition" {
		t.Fatalf("expected invalid_status_transition, got %v", err)
	}
}

func TestQuestionnaireAnswersFreezeAfterSubmit(t *testing.T) {
	f := newFixture(t)
	assessment, _ := f.assessments.Start(f.ctx)
	answerEverything(t, f, assessment, 1)
	if _, err := f.assessments.Submit(f.ctx, assessment.ID); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	p := f.cat.Actions.Processes[0]
	err := f.assessments.UpsertAnswers(f.ctx, assessment.ID, []AnswerInput{
		{ProcessKey: p.Key, QuestionKey: p.Questions[0].Key, Value: 5},
	})
	if apiCode(t, err) != "answers_frozen" {
		t.Fatalf("expected answers_frozen, got %v", err)
	}
}

func TestClassifyCauseFirstWriterWins(t *testing.T) {
	f := newFixture(t)
	assessment, _ := f.assessments.Start(f.ctx)
	answerEverything(t, f, assessment, 1)
	if _, err := f.assessments.Submit(f.ctx, assessment.ID); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	gap := f.cat.GapByID("gap_comercial_low")
	if gap == nil {
		t.Fatal("gap_comercial_low missing from catalog")
	}
	causeAnswers := map[string]int{}
	for _, q := range gap.CauseQuestions {
		causeAnswers[q.Key] = 1
	}

	result, err := f.assessments.ClassifyCause(f.ctx, assessment.ID, gap.GapID, causeAnswers)
	if err != nil {
		t.Fatalf("ClassifyCause: %v", err)
	}
	if result.AlreadyClassified || result.Record == nil {
		t.Fatalf("first classification: %+v", result)
	}
	// All answers 1 score processo, pessoas and dados at 2; the gap's
	// tie-breaker ranks causa_processo first.
	if result.Record.CausePrimary != "causa_processo" {
		t.Fatalf("primary = %s", result.Record.CausePrimary)
	}

	// A second call with different answers must not overwrite.
	for key := range causeAnswers {
		causeAnswers[key] = 5
	}
	again, err := f.assessments.ClassifyCause(f.ctx, assessment.ID, gap.GapID, causeAnswers)
	if err != nil {
		t.Fatalf("second ClassifyCause: %v", err)
	}
	if !again.AlreadyClassified || again.Record.CausePrimary != "causa_processo" {
		t.Fatalf("second classification: %+v", again)
	}

	// The comercial recommendation flips from fallback to the cause's
	// mechanism actions in sort order.
	results, err := f.assessments.GetResults(f.ctx, assessment.ID)
	if err != nil {
		t.Fatalf("GetResults: %v", err)
	}
	for _, rec := range results.Recommendations {
		if rec.ProcessKey != "comercial" {
			continue
		}
		if rec.IsFallback {
			t.Fatalf("comercial still fallback after classification: %+v", rec)
		}
		var keys []string
		if err := json.Unmarshal(rec.ActionKeys, &keys); err != nil {
			t.Fatalf("decode action keys: %v", err)
		}
		want := []string{"com_funil_simples", "com_proposta_padrao"}
		if len(keys) != len(want) || keys[0] != want[0] || keys[1] != want[1] {
			t.Fatalf("action keys = %v, want %v", keys, want)
		}
	}
}

func TestClassifyCauseRejectsInapplicableGap(t *testing.T) {
	f := newFixture(t)
	assessment, _ := f.assessments.Start(f.ctx)
	// All 4s score 20 per process, HIGH across the board. LOW gaps do not
	// apply.
	answerEverything(t, f, assessment, 4)
	if _, err := f.assessments.Submit(f.ctx, assessment.ID); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	gap := f.cat.GapByID("gap_comercial_low")
	causeAnswers := map[string]int{gap.CauseQuestions[0].Key: 1}
	_, err := f.assessments.ClassifyCause(f.ctx, assessment.ID, gap.GapID, causeAnswers)
	if apiCode(t, err) != "gap_not_applicable" {
		t.Fatalf("expected gap_not_applicable, got %v", err)
	}
}

func planInputs(keys [3]string) []PlanSlotInput {
	checkpoint := time.Now().UTC().AddDate(0, 0, 30)
	inputs := make([]PlanSlotInput, 0, 3)
	for i, key := range keys {
		inputs = append(inputs, PlanSlotInput{
			ActionKey:      key,
			Position:       i + 1,
			OwnerName:      "Dona Maria",
			MetricText:     "Registro semanal no caderno",
			CheckpointDate: checkpoint,
		})
	}
	return inputs
}

func submittedAssessment(t *testing.T, f *fixture) *types.Assessment {
	t.Helper()
	assessment, err := f.assessments.Start(f.ctx)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	answerEverything(t, f, assessment, 1)
	results, err := f.assessments.Submit(f.ctx, assessment.ID)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return results.Assessment
}

func TestClassifyRefreshReplacesSupersededRecommendations(t *testing.T) {
	f := newFixture(t)
	assessment := submittedAssessment(t, f)

	// Plan the matched actions for the two non-gap processes, then
	// classify. The refresh excludes planned actions, so both processes
	// get a new recommendation key and the old rows must be gone.
	if _, err := f.plans.SelectPlan(f.ctx, assessment.ID, planInputs([3]string{"ope_padrao_servico", "ges_metas_simples", "fin_fluxo_diario"})); err != nil {
		t.Fatalf("SelectPlan: %v", err)
	}

	gap := f.cat.GapByID("gap_comercial_low")
	causeAnswers := map[string]int{}
	for _, q := range gap.CauseQuestions {
		causeAnswers[q.Key] = 1
	}
	if _, err := f.assessments.ClassifyCause(f.ctx, assessment.ID, gap.GapID, causeAnswers); err != nil {
		t.Fatalf("ClassifyCause: %v", err)
	}

	results, err := f.assessments.GetResults(f.ctx, assessment.ID)
	if err != nil {
		t.Fatalf("GetResults: %v", err)
	}
	if len(results.Recommendations) != 4 {
		t.Fatalf("got %d recommendations, want one per process", len(results.Recommendations))
	}
	byProcess := map[string]string{}
	for _, rec := range results.Recommendations {
		if prev, dup := byProcess[rec.ProcessKey]; dup {
			t.Fatalf("process %s has rows %s and %s", rec.ProcessKey, prev, rec.RecommendationKey)
		}
		byProcess[rec.ProcessKey] = rec.RecommendationKey
	}
	if byProcess["operacoes"] != "ope_controle_prazo" {
		t.Fatalf("operacoes key = %s", byProcess["operacoes"])
	}
	if byProcess["gestao"] != "ges_reuniao_semanal" {
		t.Fatalf("gestao key = %s", byProcess["gestao"])
	}
}

func TestSelectPlanValidation(t *testing.T) {
	f := newFixture(t)
	assessment := submittedAssessment(t, f)

	if _, err := f.plans.SelectPlan(f.ctx, assessment.ID, planInputs([3]string{"com_funil_simples", "ope_padrao_servico"})[:2]); apiCode(t, err) != "invalid_slot_count" {
		t.Fatal("two slots must be rejected")
	}

	dup := planInputs([3]string{"com_funil_simples", "com_funil_simples", "fin_fluxo_diario"})
	if _, err := f.plans.SelectPlan(f.ctx, assessment.ID, dup); apiCode(t, err) != "duplicate_action" {
		t.Fatal("duplicate action must be rejected")
	}

	unknown := planInputs([3]string{"com_funil_simples", "ope_padrao_servico", "nao_existe"})
	if _, err := f.plans.SelectPlan(f.ctx, assessment.ID, unknown); apiCode(t, err) != "unknown_action" {
		t.Fatal("unknown action must be rejected")
	}

	dupPos := planInputs([3]string{"com_funil_simples", "ope_padrao_servico", "fin_fluxo_diario"})
	dupPos[0].Position, dupPos[1].Position, dupPos[2].Position = 1, 1, 2
	if _, err := f.plans.SelectPlan(f.ctx, assessment.ID, dupPos); apiCode(t, err) != "duplicate_position" {
		t.Fatal("positions [1,1,2] must be rejected")
	}

	outOfRange := planInputs([3]string{"com_funil_simples", "ope_padrao_servico", "fin_fluxo_diario"})
	outOfRange[2].Position = 4
	if _, err := f.plans.SelectPlan(f.ctx, assessment.ID, outOfRange); apiCode(t, err) != "invalid_position" {
		t.Fatal("position 4 must be rejected")
	}

	noOwner := planInputs([3]string{"com_funil_simples", "ope_padrao_servico", "fin_fluxo_diario"})
	noOwner[1].OwnerName = ""
	if _, err := f.plans.SelectPlan(f.ctx, assessment.ID, noOwner); apiCode(t, err) != "owner_required" {
		t.Fatal("missing owner must be rejected")
	}

	noMetric := planInputs([3]string{"com_funil_simples", "ope_padrao_servico", "fin_fluxo_diario"})
	noMetric[0].MetricText = ""
	if _, err := f.plans.SelectPlan(f.ctx, assessment.ID, noMetric); apiCode(t, err) != "metric_required" {
		t.Fatal("missing metric must be rejected")
	}

	noCheckpoint := planInputs([3]string{"com_funil_simples", "ope_padrao_servico", "fin_fluxo_diario"})
	noCheckpoint[2].CheckpointDate = time.Time{}
	if _, err := f.plans.SelectPlan(f.ctx, assessment.ID, noCheckpoint); apiCode(t, err) != "checkpoint_required" {
		t.Fatal("missing checkpoint date must be rejected")
	}
}

func TestPlanReplaceableUntilWorkStarts(t *testing.T) {
	f := newFixture(t)
	assessment := submittedAssessment(t, f)

	first := planInputs([3]string{"com_funil_simples", "ope_padrao_servico", "fin_fluxo_diario"})
	if _, err := f.plans.SelectPlan(f.ctx, assessment.ID, first); err != nil {
		t.Fatalf("SelectPlan: %v", err)
	}

	second := planInputs([3]string{"com_rotina_prospeccao", "ope_controle_prazo", "ges_metas_simples"})
	slots, err := f.plans.SelectPlan(f.ctx, assessment.ID, second)
	if err != nil {
		t.Fatalf("replace plan: %v", err)
	}
	if len(slots) != 3 || slots[0].ActionKey != "com_rotina_prospeccao" {
		t.Fatalf("replaced slots: %+v", slots)
	}

	if _, err := f.plans.SetActionStatus(f.ctx, assessment.ID, "ope_controle_prazo", types.SlotInProgress, ""); err != nil {
		t.Fatalf("SetActionStatus: %v", err)
	}
	if _, err := f.plans.SelectPlan(f.ctx, assessment.ID, first); apiCode(t, err) != "plan_locked" {
		t.Fatal("plan must lock once work starts")
	}
}

func TestDoneRequiresDodAndEvidence(t *testing.T) {
	f := newFixture(t)
	assessment := submittedAssessment(t, f)
	actionKey := "com_funil_simples"
	if _, err := f.plans.SelectPlan(f.ctx, assessment.ID, planInputs([3]string{actionKey, "ope_padrao_servico", "fin_fluxo_diario"})); err != nil {
		t.Fatalf("SelectPlan: %v", err)
	}
	if _, err := f.plans.SetActionStatus(f.ctx, assessment.ID, actionKey, types.SlotInProgress, ""); err != nil {
		t.Fatalf("to IN_PROGRESS: %v", err)
	}

	if _, err := f.plans.SetActionStatus(f.ctx, assessment.ID, actionKey, types.SlotDone, ""); apiCode(t, err) != "dod_incomplete" {
		t.Fatal("DONE without any DoD confirmation must fail")
	}

	action := f.cat.ActionByKey(actionKey)
	partial := action.DoneWhen[:1]
	if _, err := f.plans.ConfirmDod(f.ctx, assessment.ID, actionKey, partial); err != nil {
		t.Fatalf("ConfirmDod: %v", err)
	}
	if _, err := f.plans.SetActionStatus(f.ctx, assessment.ID, actionKey, types.SlotDone, ""); apiCode(t, err) != "dod_incomplete" {
		t.Fatal("DONE with a partial DoD must fail")
	}

	// The confirmation is one-shot; a repeat returns the stored partial
	// row, so the action can only be dropped, not completed.
	again, err := f.plans.ConfirmDod(f.ctx, assessment.ID, actionKey, action.DoneWhen)
	if err != nil {
		t.Fatalf("repeat ConfirmDod: %v", err)
	}
	var stored []string
	if err := json.Unmarshal(again.ConfirmedItems, &stored); err != nil {
		t.Fatalf("decode items: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("repeat confirmation overwrote the stored items: %v", stored)
	}
}

func TestDoneHappyPathAndEvidenceWriteOnce(t *testing.T) {
	f := newFixture(t)
	assessment := submittedAssessment(t, f)
	actionKey := "ope_padrao_servico"
	if _, err := f.plans.SelectPlan(f.ctx, assessment.ID, planInputs([3]string{actionKey, "com_funil_simples", "fin_fluxo_diario"})); err != nil {
		t.Fatalf("SelectPlan: %v", err)
	}
	if _, err := f.plans.SetActionStatus(f.ctx, assessment.ID, actionKey, types.SlotInProgress, ""); err != nil {
		t.Fatalf("to IN_PROGRESS: %v", err)
	}

	action := f.cat.ActionByKey(actionKey)
	if _, err := f.plans.ConfirmDod(f.ctx, assessment.ID, actionKey, action.DoneWhen); err != nil {
		t.Fatalf("ConfirmDod: %v", err)
	}
	if _, err := f.plans.SetActionStatus(f.ctx, assessment.ID, actionKey, types.SlotDone, ""); apiCode(t, err) != "evidence_missing" {
		t.Fatal("DONE without evidence must fail")
	}

	first, err := f.plans.RecordEvidence(f.ctx, assessment.ID, EvidenceInput{
		ActionKey:      actionKey,
		BeforeBaseline: "Sem padrão de serviço",
		AfterResult:    "Checklist em uso nas entregas",
	})
	if err != nil {
		t.Fatalf("RecordEvidence: %v", err)
	}
	repeat, err := f.plans.RecordEvidence(f.ctx, assessment.ID, EvidenceInput{
		ActionKey:      actionKey,
		BeforeBaseline: "outro",
		AfterResult:    "outro",
	})
	if err != nil {
		t.Fatalf("repeat RecordEvidence: %v", err)
	}
	if repeat.ID != first.ID || repeat.BeforeBaseline != first.BeforeBaseline {
		t.Fatalf("evidence was overwritten: %+v", repeat)
	}

	slot, err := f.plans.SetActionStatus(f.ctx, assessment.ID, actionKey, types.SlotDone, "")
	if err != nil {
		t.Fatalf("to DONE: %v", err)
	}
	if slot.Status != types.SlotDone {
		t.Fatalf("status = %s", slot.Status)
	}
	if _, err := f.plans.SetActionStatus(f.ctx, assessment.ID, actionKey, types.SlotInProgress, ""); apiCode(t, err) != "invalid_status_transition" {
		t.Fatal("DONE is terminal")
	}
}

func TestDroppedRequiresReason(t *testing.T) {
	f := newFixture(t)
	assessment := submittedAssessment(t, f)
	if _, err := f.plans.SelectPlan(f.ctx, assessment.ID, planInputs([3]string{"com_funil_simples", "ope_padrao_servico", "fin_fluxo_diario"})); err != nil {
		t.Fatalf("SelectPlan: %v", err)
	}
	if _, err := f.plans.SetActionStatus(f.ctx, assessment.ID, "com_funil_simples", types.SlotDropped, ""); apiCode(t, err) != "dropped_reason_required" {
		t.Fatal("DROPPED without a reason must fail")
	}
	slot, err := f.plans.SetActionStatus(f.ctx, assessment.ID, "com_funil_simples", types.SlotDropped, "Dono sem tempo neste mês")
	if err != nil {
		t.Fatalf("drop: %v", err)
	}
	if slot.DroppedReason == nil || *slot.DroppedReason == "" {
		t.Fatal("dropped reason not stored")
	}
}

func dropAll(t *testing.T, f *fixture, assessment *types.Assessment, keys []string) {
	t.Helper()
	for _, key := range keys {
		if _, err := f.plans.SetActionStatus(f.ctx, assessment.ID, key, types.SlotDropped, "encerrando o ciclo"); err != nil {
			t.Fatalf("drop %s: %v", key, err)
		}
	}
}

func TestCloseCycleAndStartNext(t *testing.T) {
	f := newFixture(t)
	assessment := submittedAssessment(t, f)
	keys := [3]string{"com_funil_simples", "ope_padrao_servico", "fin_fluxo_diario"}
	if _, err := f.plans.SelectPlan(f.ctx, assessment.ID, planInputs(keys)); err != nil {
		t.Fatalf("SelectPlan: %v", err)
	}

	if _, err := f.plans.CloseCycle(f.ctx, assessment.ID); apiCode(t, err) != "cycle_open" {
		t.Fatal("close with open slots must fail")
	}

	// Complete one slot for real, drop the other two.
	doneKey := keys[0]
	action := f.cat.ActionByKey(doneKey)
	if _, err := f.plans.ConfirmDod(f.ctx, assessment.ID, doneKey, action.DoneWhen); err != nil {
		t.Fatalf("ConfirmDod: %v", err)
	}
	if _, err := f.plans.RecordEvidence(f.ctx, assessment.ID, EvidenceInput{
		ActionKey:      doneKey,
		BeforeBaseline: "Sem funil definido",
		AfterResult:    "Funil de 4 etapas em uso",
	}); err != nil {
		t.Fatalf("RecordEvidence: %v", err)
	}
	if _, err := f.plans.SetActionStatus(f.ctx, assessment.ID, doneKey, types.SlotDone, ""); err != nil {
		t.Fatalf("to DONE: %v", err)
	}
	dropAll(t, f, assessment, keys[1:])
	closed, err := f.plans.CloseCycle(f.ctx, assessment.ID)
	if err != nil {
		t.Fatalf("CloseCycle: %v", err)
	}
	if closed.Status != types.AssessmentClosed || closed.ClosedAt == nil {
		t.Fatalf("closed assessment: %+v", closed)
	}

	// The close rewrites the snapshot with the resolved plan and the
	// recorded evidence, frozen for reporting.
	snapshot, err := f.snapshots.Get(f.ctx, assessment.ID)
	if err != nil {
		t.Fatalf("Get snapshot: %v", err)
	}
	var payload types.SnapshotPayload
	if err := json.Unmarshal(snapshot.Payload, &payload); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(payload.Plan) != 3 {
		t.Fatalf("closed snapshot plan has %d entries", len(payload.Plan))
	}
	statusByKey := map[string]string{}
	for _, entry := range payload.Plan {
		statusByKey[entry.ActionKey] = entry.Status
	}
	if statusByKey[doneKey] != string(types.SlotDone) {
		t.Fatalf("snapshot status for %s = %s", doneKey, statusByKey[doneKey])
	}
	for _, key := range keys[1:] {
		if statusByKey[key] != string(types.SlotDropped) {
			t.Fatalf("snapshot status for %s = %s", key, statusByKey[key])
		}
	}
	if len(payload.EvidenceSummary) != 1 {
		t.Fatalf("evidence summary has %d entries", len(payload.EvidenceSummary))
	}
	ev := payload.EvidenceSummary[0]
	if ev.ActionKey != doneKey || ev.BeforeBaseline != "Sem funil definido" || ev.AfterResult != "Funil de 4 etapas em uso" {
		t.Fatalf("evidence summary: %+v", ev)
	}

	// Closed means read-only.
	if _, err := f.plans.SelectPlan(f.ctx, assessment.ID, planInputs(keys)); apiCode(t, err) != "cycle_closed" {
		t.Fatal("closed cycle must reject plan changes")
	}

	reopened, err := f.plans.StartNewCycle(f.ctx, assessment.ID)
	if err != nil {
		t.Fatalf("StartNewCycle: %v", err)
	}
	if reopened.Status != types.AssessmentSubmitted || reopened.Cycle != 2 {
		t.Fatalf("reopened assessment: %+v", reopened)
	}

	// The new cycle starts with an empty plan and must not reuse actions
	// already planned in cycle 1.
	view, err := f.plans.GetPlan(f.ctx, assessment.ID)
	if err != nil {
		t.Fatalf("GetPlan: %v", err)
	}
	if len(view.Slots) != 0 {
		t.Fatalf("new cycle inherited %d slots", len(view.Slots))
	}
	suggestions, err := f.assessments.GetSuggestedActions(f.ctx, assessment.ID)
	if err != nil {
		t.Fatalf("GetSuggestedActions: %v", err)
	}
	for _, s := range suggestions {
		for _, action := range s.Actions {
			for _, used := range keys {
				if action.ActionKey == used {
					t.Fatalf("suggestion repeats used action %s", used)
				}
			}
		}
	}
}

func TestStartNewVersionSequencesAndGuards(t *testing.T) {
	f := newFixture(t)
	assessment := submittedAssessment(t, f)

	next, err := f.assessments.StartNewVersion(f.ctx)
	if err != nil {
		t.Fatalf("StartNewVersion: %v", err)
	}
	if next.FullVersion != 2 || next.Cycle != 1 || next.Status != types.AssessmentDraft {
		t.Fatalf("new version: %+v", next)
	}
	if next.ID == assessment.ID {
		t.Fatal("new version reused the old row")
	}

	if _, err := f.assessments.StartNewVersion(f.ctx); apiCode(t, err) != "draft_open" {
		t.Fatal("a second redo with an open draft must fail")
	}

	current, err := f.assessments.GetCurrent(f.ctx)
	if err != nil {
		t.Fatalf("GetCurrent: %v", err)
	}
	if current.ID != next.ID {
		t.Fatal("current must be the newest version")
	}
}

func TestCompareVersionsAfterRedo(t *testing.T) {
	f := newFixture(t)
	v1 := submittedAssessment(t, f)

	v2draft, err := f.assessments.StartNewVersion(f.ctx)
	if err != nil {
		t.Fatalf("StartNewVersion: %v", err)
	}
	answerEverything(t, f, v2draft, 4)
	if _, err := f.assessments.Submit(f.ctx, v2draft.ID); err != nil {
		t.Fatalf("submit v2: %v", err)
	}

	comparison, err := f.snapshots.CompareVersions(f.ctx, 1, 2)
	if err != nil {
		t.Fatalf("CompareVersions: %v", err)
	}
	if comparison.FromVersion != 1 || comparison.ToVersion != 2 {
		t.Fatalf("versions: %+v", comparison)
	}
	if len(comparison.Processes) != 4 {
		t.Fatalf("process deltas = %d", len(comparison.Processes))
	}
	for _, delta := range comparison.Processes {
		if delta.FromBand != string(catalog.BandLow) || delta.ToBand != string(catalog.BandHigh) {
			t.Fatalf("delta %s: %s -> %s", delta.ProcessKey, delta.FromBand, delta.ToBand)
		}
	}

	if _, err := f.snapshots.CompareVersions(f.ctx, 1, 1); apiCode(t, err) != "invalid_versions" {
		t.Fatal("identical versions must be rejected")
	}
	if _, err := f.snapshots.CompareVersions(f.ctx, 1, 9); apiCode(t, err) != "version_not_found" {
		t.Fatal("unknown version must be rejected")
	}
	_ = v1
}
