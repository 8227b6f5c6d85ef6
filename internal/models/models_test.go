package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentity(t *testing.T) {
	ev := RawEvent{
		Table: "requests",
		Type:  EventUpdate,
		NewRow: map[string]interface{}{
			"id":         "req-1",
			"updated_at": "2025-01-26T10:00:00Z",
		},
	}
	identity, err := ev.Identity()
	require.NoError(t, err)
	assert.Equal(t, "requests_UPDATE_req-1_2025-01-26T10:00:00Z", identity)

	// Without updated_at the identity falls back to the row id.
	delete(ev.NewRow, "updated_at")
	identity, err = ev.Identity()
	require.NoError(t, err)
	assert.Equal(t, "requests_UPDATE_req-1", identity)

	// Without an id the event is malformed.
	ev.NewRow = map[string]interface{}{"status": "assigned"}
	_, err = ev.Identity()
	assert.ErrorIs(t, err, ErrMissingIdentity)

	ev.NewRow = nil
	_, err = ev.Identity()
	assert.ErrorIs(t, err, ErrMissingIdentity)
}

func TestParseEventType(t *testing.T) {
	et, err := ParseEventType("insert")
	require.NoError(t, err)
	assert.Equal(t, EventInsert, et)

	et, err = ParseEventType("UPDATE")
	require.NoError(t, err)
	assert.Equal(t, EventUpdate, et)

	_, err = ParseEventType("DELETE")
	assert.Error(t, err)
}

func TestParseRequestStatus(t *testing.T) {
	assert.Equal(t, StatusOnSite, ParseRequestStatus("on_site"))
	assert.Equal(t, StatusOnSite, ParseRequestStatus("ON_SITE"))
	assert.Equal(t, StatusAssigned, ParseRequestStatus(" assigned "))
	assert.Equal(t, StatusUnknown, ParseRequestStatus("teleported"))
}

func TestParseSLAPriority(t *testing.T) {
	assert.Equal(t, PriorityCritical, ParseSLAPriority("critical"))
	assert.Equal(t, PriorityCritical, ParseSLAPriority("CRITICAL"))
	assert.Equal(t, PriorityStandard, ParseSLAPriority("standard"))
	assert.Equal(t, PriorityStandard, ParseSLAPriority("whatever"))
	assert.True(t, PriorityCritical.HasSLA())
	assert.False(t, PriorityStandard.HasSLA())
}

func TestRequestStatusIsTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusClosed.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.False(t, StatusOnSite.IsTerminal())
	assert.False(t, StatusUnknown.IsTerminal())
}

func TestSnapshotFromRow(t *testing.T) {
	snap, err := SnapshotFromRow(map[string]interface{}{
		"id":                "req-1",
		"status":            "assigned",
		"assigned_engineer": "eng-7",
		"sla_due_at":        "2025-01-26T16:00:00Z",
	})
	require.NoError(t, err)
	assert.Equal(t, "req-1", snap.ID)
	assert.Equal(t, StatusAssigned, snap.Status)
	assert.Equal(t, "eng-7", snap.AssignedEngineer)
	require.NotNil(t, snap.SLADueAt)
	assert.Equal(t, time.Date(2025, 1, 26, 16, 0, 0, 0, time.UTC), *snap.SLADueAt)

	// No SLA deadline is valid.
	snap, err = SnapshotFromRow(map[string]interface{}{"id": "req-2", "status": "new"})
	require.NoError(t, err)
	assert.Nil(t, snap.SLADueAt)

	// Unparseable deadline is malformed.
	_, err = SnapshotFromRow(map[string]interface{}{"id": "req-3", "sla_due_at": "yesterday"})
	assert.Error(t, err)

	// Missing id is malformed.
	_, err = SnapshotFromRow(map[string]interface{}{"status": "new"})
	assert.ErrorIs(t, err, ErrMissingIdentity)
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "0ab1c2d3", ShortID("0ab1c2d3-4567-89ab"))
	assert.Equal(t, "short", ShortID("short"))
}
