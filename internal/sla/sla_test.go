package sla

import (
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chetansierra/saan-mobile-app-sub001/internal/models"
)

func TestDueAt(t *testing.T) {
	createdAt := time.Date(2025, 1, 26, 10, 0, 0, 0, time.UTC)

	dueAt, ok := DueAt(models.PriorityCritical, createdAt)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 1, 26, 16, 0, 0, 0, time.UTC), dueAt)

	_, ok = DueAt(models.PriorityStandard, createdAt)
	assert.False(t, ok)
}

func TestTimeUntilBreach(t *testing.T) {
	now := time.Date(2025, 1, 26, 14, 30, 0, 0, time.UTC)
	calc := NewCalculator(testclock.NewClock(now))

	_, ok := calc.TimeUntilBreach(nil)
	assert.False(t, ok)

	future := now.Add(90 * time.Minute)
	remaining, ok := calc.TimeUntilBreach(&future)
	require.True(t, ok)
	assert.Equal(t, 90*time.Minute, remaining)

	past := now.Add(-time.Hour)
	remaining, ok = calc.TimeUntilBreach(&past)
	require.True(t, ok)
	assert.Equal(t, time.Duration(0), remaining)

	// Exactly at the deadline counts as breached.
	remaining, ok = calc.TimeUntilBreach(&now)
	require.True(t, ok)
	assert.Equal(t, time.Duration(0), remaining)
}

func TestIsOverdue(t *testing.T) {
	now := time.Date(2025, 1, 26, 16, 0, 0, 0, time.UTC)
	calc := NewCalculator(testclock.NewClock(now))

	assert.False(t, calc.IsOverdue(nil))

	past := now.Add(-time.Minute)
	assert.True(t, calc.IsOverdue(&past))

	future := now.Add(time.Minute)
	assert.False(t, calc.IsOverdue(&future))

	// now > dueAt is strict; the exact deadline is not yet overdue.
	assert.False(t, calc.IsOverdue(&now))
}

func TestStatus(t *testing.T) {
	dueAt := time.Date(2025, 1, 26, 16, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		now  time.Time
		want Status
	}{
		{"well before deadline", dueAt.Add(-4 * time.Hour), StatusGood},
		{"ninety minutes remaining", dueAt.Add(-90 * time.Minute), StatusWarning},
		{"exactly two hours remaining", dueAt.Add(-2 * time.Hour), StatusWarning},
		{"just over two hours remaining", dueAt.Add(-2*time.Hour - time.Second), StatusGood},
		{"at the deadline", dueAt, StatusCritical},
		{"past the deadline", dueAt.Add(30 * time.Minute), StatusCritical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calc := NewCalculator(testclock.NewClock(tt.now))
			assert.Equal(t, tt.want, calc.Status(&dueAt))
		})
	}

	calc := NewCalculator(testclock.NewClock(dueAt))
	assert.Equal(t, StatusNone, calc.Status(nil))
}
