package domain

import "testing"

func TestAssessmentTransitions(t *testing.T) {
	allowed := map[[2]AssessmentStatus]bool{
		{AssessmentDraft, AssessmentSubmitted}:  true,
		{AssessmentSubmitted, AssessmentClosed}: true,
		{AssessmentClosed, AssessmentSubmitted}: true,
	}
	statuses := []AssessmentStatus{AssessmentDraft, AssessmentSubmitted, AssessmentClosed}
	for _, from := range statuses {
		for _, to := range statuses {
			want := allowed[[2]AssessmentStatus{from, to}]
			if got := from.CanTransition(to); got != want {
				t.Fatalf("%s -> %s = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestAssessmentStatusValid(t *testing.T) {
	if !AssessmentDraft.Valid() || !AssessmentSubmitted.Valid() || !AssessmentClosed.Valid() {
		t.Fatalf("known statuses must be valid")
	}
	if AssessmentStatus("ARCHIVED").Valid() {
		t.Fatalf("unknown status must be invalid")
	}
}

func TestSlotTransitions(t *testing.T) {
	if !SlotNotStarted.CanTransition(SlotDone) {
		t.Fatalf("NOT_STARTED may jump straight to DONE")
	}
	if !SlotInProgress.CanTransition(SlotDropped) {
		t.Fatalf("IN_PROGRESS may be dropped")
	}
	for _, from := range []SlotStatus{SlotDone, SlotDropped} {
		for _, to := range []SlotStatus{SlotNotStarted, SlotInProgress, SlotDone, SlotDropped} {
			if from.CanTransition(to) {
				t.Fatalf("terminal status %s must not transition to %s", from, to)
			}
		}
	}
}

func TestSlotTerminal(t *testing.T) {
	if SlotNotStarted.Terminal() || SlotInProgress.Terminal() {
		t.Fatalf("open statuses are not terminal")
	}
	if !SlotDone.Terminal() || !SlotDropped.Terminal() {
		t.Fatalf("DONE and DROPPED are terminal")
	}
}
