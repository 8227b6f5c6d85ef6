package notify

import (
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chetansierra/saan-mobile-app-sub001/internal/models"
)

type recordingSink struct {
	shown []Notification
}

func (s *recordingSink) Show(n Notification) {
	s.shown = append(s.shown, n)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func escalation(id string) models.CriticalEvent {
	return models.CriticalEvent{
		Kind:      models.KindStatusEscalation,
		RequestID: id,
		OldStatus: models.StatusAssigned,
		NewStatus: models.StatusOnSite,
	}
}

func breach(id string) models.CriticalEvent {
	return models.CriticalEvent{
		Kind:      models.KindSLABreach,
		RequestID: id,
		OldStatus: models.StatusAssigned,
		NewStatus: models.StatusAssigned,
	}
}

func TestDispatchComposesEscalation(t *testing.T) {
	sink := &recordingSink{}
	var navigated []string
	navigate := func(id string) { navigated = append(navigated, id) }
	d := NewDispatcher(sink, navigate, 10*time.Second, testclock.NewClock(time.Now()), testLogger())

	d.Dispatch(escalation("0ab1c2d3-4567"))

	require.Len(t, sink.shown, 1)
	n := sink.shown[0]
	assert.NotEmpty(t, n.ID)
	assert.Contains(t, n.Message, "#0ab1c2d3")
	assert.Contains(t, n.Message, "on_site")
	assert.Equal(t, PriorityCritical, n.Priority)
	assert.Equal(t, "View", n.ActionLabel)
	assert.Equal(t, "0ab1c2d3-4567", n.TargetID)
	assert.Equal(t, 6*time.Second, n.Duration)

	require.NotNil(t, n.Action)
	n.Action()
	assert.Equal(t, []string{"0ab1c2d3-4567"}, navigated)
}

func TestDispatchComposesBreach(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, nil, 10*time.Second, testclock.NewClock(time.Now()), testLogger())

	d.Dispatch(breach("req-9"))

	require.Len(t, sink.shown, 1)
	assert.Contains(t, sink.shown[0].Message, "SLA BREACH")
	assert.Contains(t, sink.shown[0].Message, "#req-9")
	assert.Equal(t, PriorityCritical, sink.shown[0].Priority)
}

func TestDispatchThrottlesSameEntityAndKind(t *testing.T) {
	sink := &recordingSink{}
	clk := testclock.NewClock(time.Now())
	d := NewDispatcher(sink, nil, 10*time.Second, clk, testLogger())

	d.Dispatch(breach("r1"))
	d.Dispatch(breach("r1"))
	assert.Len(t, sink.shown, 1)

	// Still inside the cooldown window.
	clk.Advance(9 * time.Second)
	d.Dispatch(breach("r1"))
	assert.Len(t, sink.shown, 1)

	// Past the window the next alert fires.
	clk.Advance(time.Second)
	d.Dispatch(breach("r1"))
	assert.Len(t, sink.shown, 2)
}

func TestDispatchDoesNotThrottleAcrossEntities(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, nil, 10*time.Second, testclock.NewClock(time.Now()), testLogger())

	d.Dispatch(breach("rA"))
	d.Dispatch(breach("rB"))
	assert.Len(t, sink.shown, 2)
}

func TestDispatchDoesNotThrottleAcrossKinds(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, nil, 10*time.Second, testclock.NewClock(time.Now()), testLogger())

	d.Dispatch(breach("r1"))
	d.Dispatch(escalation("r1"))
	assert.Len(t, sink.shown, 2)
}

func TestDispatchWithoutSink(t *testing.T) {
	d := NewDispatcher(nil, nil, 10*time.Second, testclock.NewClock(time.Now()), testLogger())

	// Best-effort: no sink means silent suppression, never an error.
	assert.NotPanics(t, func() { d.Dispatch(breach("r1")) })
}

func TestDispatcherReset(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, nil, 10*time.Second, testclock.NewClock(time.Now()), testLogger())

	d.Dispatch(breach("r1"))
	d.Reset()
	d.Dispatch(breach("r1"))
	assert.Len(t, sink.shown, 2)
}

func TestDefaultDuration(t *testing.T) {
	assert.Equal(t, 6*time.Second, DefaultDuration(PriorityCritical))
	assert.Equal(t, 4*time.Second, DefaultDuration(PriorityInfo))
	assert.Equal(t, 4*time.Second, DefaultDuration(PriorityWarning))
}
