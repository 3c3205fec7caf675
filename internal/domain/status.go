package domain

type AssessmentStatus string

const (
	AssessmentDraft     AssessmentStatus = "DRAFT"
	AssessmentSubmitted AssessmentStatus = "SUBMITTED"
	AssessmentClosed    AssessmentStatus = "CLOSED"
)

// assessmentTransitions is the closed transition table for the lifecycle.
// CLOSED -> SUBMITTED is the "new cycle" re-entry; "new version" never
// transitions an existing row, it spawns a fresh DRAFT assessment.
var assessmentTransitions = map[AssessmentStatus][]AssessmentStatus{
	AssessmentDraft:     {AssessmentSubmitted},
	AssessmentSubmitted: {AssessmentClosed},
	AssessmentClosed:    {AssessmentSubmitted},
}

func (s AssessmentStatus) Valid() bool {
	switch s {
	case AssessmentDraft, AssessmentSubmitted, AssessmentClosed:
		return true
	}
	return false
}

func (s AssessmentStatus) CanTransition(to AssessmentStatus) bool {
	for _, next := range assessmentTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

type SlotStatus string

const (
	SlotNotStarted SlotStatus = "NOT_STARTED"
	SlotInProgress SlotStatus = "IN_PROGRESS"
	SlotDone       SlotStatus = "DONE"
	SlotDropped    SlotStatus = "DROPPED"
)

var slotTransitions = map[SlotStatus][]SlotStatus{
	SlotNotStarted: {SlotInProgress, SlotDone, SlotDropped},
	SlotInProgress: {SlotDone, SlotDropped},
	SlotDone:       {},
	SlotDropped:    {},
}

func (s SlotStatus) Valid() bool {
	switch s {
	case SlotNotStarted, SlotInProgress, SlotDone, SlotDropped:
		return true
	}
	return false
}

func (s SlotStatus) Terminal() bool {
	return s == SlotDone || s == SlotDropped
}

func (s SlotStatus) CanTransition(to SlotStatus) bool {
	for _, next := range slotTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}
