package models

import (
	"errors"
	"strings"
	"time"
)

// RequestStatus is the lifecycle status of a maintenance request.
type RequestStatus string

const (
	StatusNew       RequestStatus = "new"
	StatusAssigned  RequestStatus = "assigned"
	StatusEnRoute   RequestStatus = "en_route"
	StatusOnSite    RequestStatus = "on_site"
	StatusCompleted RequestStatus = "completed"
	StatusClosed    RequestStatus = "closed"
	StatusCancelled RequestStatus = "cancelled"

	// StatusUnknown covers statuses added server-side that this build does
	// not know yet. They classify as refresh-worthy, never critical.
	StatusUnknown RequestStatus = "unknown"
)

// ParseRequestStatus maps a raw status string onto the closed enumeration.
// Unrecognized values map to StatusUnknown rather than failing, so that a
// new server-side status never stalls event processing.
func ParseRequestStatus(s string) RequestStatus {
	status := RequestStatus(strings.ToLower(strings.TrimSpace(s)))
	switch status {
	case StatusNew, StatusAssigned, StatusEnRoute, StatusOnSite,
		StatusCompleted, StatusClosed, StatusCancelled:
		return status
	}
	return StatusUnknown
}

// IsTerminal reports whether the status ends the request lifecycle. SLA
// breach alerts are suppressed for terminal requests.
func (s RequestStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusClosed, StatusCancelled:
		return true
	}
	return false
}

// SLAPriority is the contractual priority of a request. Only critical
// requests carry an SLA window.
type SLAPriority string

const (
	PriorityCritical SLAPriority = "critical"
	PriorityStandard SLAPriority = "standard"
)

// ParseSLAPriority maps a raw priority string onto the enumeration,
// defaulting to standard for unrecognized values.
func ParseSLAPriority(s string) SLAPriority {
	if strings.ToLower(strings.TrimSpace(s)) == string(PriorityCritical) {
		return PriorityCritical
	}
	return PriorityStandard
}

// HasSLA reports whether the priority carries an SLA deadline.
func (p SLAPriority) HasSLA() bool {
	return p == PriorityCritical
}

// RequestSnapshot is the subset of a requests row that classification
// diffs. All other column changes are refresh-worthy but never critical.
type RequestSnapshot struct {
	ID               string
	Status           RequestStatus
	AssignedEngineer string
	SLADueAt         *time.Time
}

var errNoRow = errors.New("no row data")

// SnapshotFromRow extracts the classification-relevant fields from a raw
// row mapping. A missing id or an unparseable sla_due_at makes the row
// malformed; a missing sla_due_at is valid (no SLA).
func SnapshotFromRow(row map[string]interface{}) (RequestSnapshot, error) {
	if row == nil {
		return RequestSnapshot{}, errNoRow
	}
	id, ok := stringField(row, "id")
	if !ok || id == "" {
		return RequestSnapshot{}, ErrMissingIdentity
	}
	dueAt, err := timeField(row, "sla_due_at")
	if err != nil {
		return RequestSnapshot{}, err
	}
	snap := RequestSnapshot{ID: id, SLADueAt: dueAt}
	if status, ok := stringField(row, "status"); ok {
		snap.Status = ParseRequestStatus(status)
	} else {
		snap.Status = StatusUnknown
	}
	if engineer, ok := stringField(row, "assigned_engineer"); ok {
		snap.AssignedEngineer = engineer
	}
	return snap, nil
}

// ShortID returns the abbreviated request identifier used in user-facing
// messages.
func (s RequestSnapshot) ShortID() string {
	return ShortID(s.ID)
}

// ShortID abbreviates an entity id for display.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
