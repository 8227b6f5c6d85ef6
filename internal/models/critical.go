package models

// CriticalKind discriminates the user-notification-worthy events derived
// from row diffs.
type CriticalKind string

const (
	// KindStatusEscalation fires when a request transitions into the
	// on-site status.
	KindStatusEscalation CriticalKind = "status_escalation"

	// KindSLABreach fires when a request becomes newly overdue.
	KindSLABreach CriticalKind = "sla_breach"
)

// CriticalEvent is a derived domain event that warrants a user-facing
// alert. OldStatus and NewStatus are populated for status escalations.
type CriticalEvent struct {
	Kind      CriticalKind
	RequestID string
	OldStatus RequestStatus
	NewStatus RequestStatus
}
