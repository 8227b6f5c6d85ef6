// Package sla computes service-level deadlines for maintenance requests
// and derives breach status from the current time. All functions are pure;
// "now" comes from an injected clock so the arithmetic is testable.
package sla

import (
	"time"

	"github.com/juju/clock"

	"github.com/chetansierra/saan-mobile-app-sub001/internal/models"
)

const (
	// CriticalWindow is how long a critical-priority request has from
	// creation until its SLA deadline.
	CriticalWindow = 6 * time.Hour

	// WarningThreshold is the remaining time at or below which a request
	// counts as approaching breach. The boundary is inclusive.
	WarningThreshold = 2 * time.Hour
)

// Status is the urgency bucket of a request relative to its SLA deadline.
type Status string

const (
	StatusNone     Status = "none"
	StatusGood     Status = "good"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
)

// DueAt returns the SLA deadline for a request, or false when the priority
// carries no SLA.
func DueAt(priority models.SLAPriority, createdAt time.Time) (time.Time, bool) {
	if !priority.HasSLA() {
		return time.Time{}, false
	}
	return createdAt.Add(CriticalWindow), true
}

// Calculator answers now-dependent SLA questions against an injected clock.
type Calculator struct {
	clock clock.Clock
}

// NewCalculator returns a calculator reading time from clk.
func NewCalculator(clk clock.Clock) *Calculator {
	return &Calculator{clock: clk}
}

// TimeUntilBreach returns the remaining time before the deadline, or false
// when there is no deadline. An already-breached deadline yields zero.
func (c *Calculator) TimeUntilBreach(dueAt *time.Time) (time.Duration, bool) {
	if dueAt == nil {
		return 0, false
	}
	now := c.clock.Now()
	if !now.Before(*dueAt) {
		return 0, true
	}
	return dueAt.Sub(now), true
}

// IsOverdue reports whether the deadline has passed. A nil deadline is
// never overdue.
func (c *Calculator) IsOverdue(dueAt *time.Time) bool {
	if dueAt == nil {
		return false
	}
	return c.clock.Now().After(*dueAt)
}

// Status buckets the request by remaining SLA time: none without a
// deadline, critical at or past it, warning within WarningThreshold of it,
// good otherwise.
func (c *Calculator) Status(dueAt *time.Time) Status {
	remaining, ok := c.TimeUntilBreach(dueAt)
	if !ok {
		return StatusNone
	}
	switch {
	case remaining <= 0:
		return StatusCritical
	case remaining <= WarningThreshold:
		return StatusWarning
	default:
		return StatusGood
	}
}
