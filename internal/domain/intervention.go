package domain

import "time"

// CaseStatus represents the current status of an intervention case.
type CaseStatus string

const (
	CaseStatusPending    CaseStatus = "pending"
	CaseStatusInProgress CaseStatus = "in_progress"
	CaseStatusResolved   CaseStatus = "resolved"
	CaseStatusCancelled  CaseStatus = "cancelled"
)

// CasePriority orders intervention cases for operators.
type CasePriority string

const (
	CasePriorityLow    CasePriority = "low"
	CasePriorityNormal CasePriority = "normal"
	CasePriorityHigh   CasePriority = "high"
)

// Escalation reasons recorded on intervention cases.
const (
	ReasonLeg1Exhausted       = "leg1_exhausted"
	ReasonLeg2FailedAfterLeg1 = "leg2_failed_after_leg1_succeeded"
)

// ResolutionAction is the closed set of operator decisions for a case.
type ResolutionAction string

const (
	ResolutionRetry         ResolutionAction = "retry"
	ResolutionForceComplete ResolutionAction = "forceComplete"
	ResolutionForceFail     ResolutionAction = "forceFail"
	ResolutionRefund        ResolutionAction = "refund"
	ResolutionCancel        ResolutionAction = "cancel"
)

// ValidResolution reports whether action is a known resolution action.
func ValidResolution(action ResolutionAction) bool {
	switch action {
	case ResolutionRetry, ResolutionForceComplete, ResolutionForceFail, ResolutionRefund, ResolutionCancel:
		return true
	}
	return false
}

// ManualInterventionCase is an escalation record for an order the
// orchestrator cannot progress automatically.
type ManualInterventionCase struct {
	ID              string
	OrderID         string
	Reason          string
	Detail          string
	AssignedTo      string
	Priority        CasePriority
	Status          CaseStatus
	ResolutionNotes string
	DueBy           time.Time
	CreatedAt       time.Time
	ResolvedAt      time.Time
}
