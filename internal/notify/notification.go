// Package notify composes and dispatches user-facing alerts for critical
// request events, throttled per entity and kind.
package notify

import "time"

// Priority is the alert tier. It controls styling and display duration at
// the presentation layer.
type Priority string

const (
	PriorityInfo     Priority = "info"
	PriorityWarning  Priority = "warning"
	PriorityCritical Priority = "critical"
	PrioritySuccess  Priority = "success"
)

// Display durations by tier. Critical alerts stay up longer.
const (
	defaultDuration  = 4 * time.Second
	criticalDuration = 6 * time.Second
)

// DefaultDuration returns how long an alert of the given tier is shown.
func DefaultDuration(p Priority) time.Duration {
	if p == PriorityCritical {
		return criticalDuration
	}
	return defaultDuration
}

// Notification is a user-facing alert. Action, when set, navigates to the
// entity's detail view; TargetID carries the entity id for sinks that
// serialize the alert instead of invoking the callback.
type Notification struct {
	ID          string
	Message     string
	Priority    Priority
	ActionLabel string
	Action      func()
	TargetID    string
	Duration    time.Duration
}

// Sink is the presentation-layer alert channel. Show must be safe to call
// with no UI surface attached.
type Sink interface {
	Show(n Notification)
}

// NavigateFunc opens the detail view for an entity. Supplied by the
// presentation layer; opaque to this package.
type NavigateFunc func(entityID string)
