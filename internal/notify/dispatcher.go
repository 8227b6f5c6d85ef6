package notify

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/sirupsen/logrus"

	"github.com/chetansierra/saan-mobile-app-sub001/internal/models"
)

// DefaultCooldown is the minimum gap between two alerts of the same kind
// for the same entity.
const DefaultCooldown = 10 * time.Second

// Dispatcher turns critical events into notifications and hands them to
// the sink, suppressing repeats within the cooldown window. Throttling is
// per entity per kind: a breach on one request never suppresses a breach
// on another.
//
// Not safe for concurrent use; the subscription manager serializes
// dispatch with batch processing.
type Dispatcher struct {
	sink      Sink
	navigate  NavigateFunc
	cooldown  time.Duration
	clock     clock.Clock
	logger    *logrus.Logger
	lastFired map[string]time.Time
}

// NewDispatcher wires a dispatcher. sink may be nil, in which case alerts
// are dropped silently; critical alerts are best-effort, the domain cache
// stays authoritative. A non-positive cooldown falls back to
// DefaultCooldown.
func NewDispatcher(sink Sink, navigate NavigateFunc, cooldown time.Duration, clk clock.Clock, logger *logrus.Logger) *Dispatcher {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Dispatcher{
		sink:      sink,
		navigate:  navigate,
		cooldown:  cooldown,
		clock:     clk,
		logger:    logger,
		lastFired: make(map[string]time.Time),
	}
}

// Dispatch composes and shows the alert for a critical event, unless an
// alert with the same (kind, entity) key fired within the cooldown window.
func (d *Dispatcher) Dispatch(ev models.CriticalEvent) {
	key := fmt.Sprintf("%s_%s", ev.Kind, ev.RequestID)
	now := d.clock.Now()
	if last, ok := d.lastFired[key]; ok && now.Sub(last) < d.cooldown {
		d.logger.Debugf("Suppressed %s alert for request %s (cooldown)", ev.Kind, models.ShortID(ev.RequestID))
		return
	}
	if d.sink == nil {
		d.logger.Debugf("No alert sink attached, dropping %s alert for request %s", ev.Kind, models.ShortID(ev.RequestID))
		return
	}

	n, ok := d.compose(ev)
	if !ok {
		d.logger.Warnf("No alert composition for critical kind %q", ev.Kind)
		return
	}
	d.sink.Show(n)
	d.lastFired[key] = now
	d.logger.Infof("Dispatched %s alert for request %s", ev.Kind, models.ShortID(ev.RequestID))
}

// Reset discards throttle state. Called when the subscription is torn down.
func (d *Dispatcher) Reset() {
	d.lastFired = make(map[string]time.Time)
}

func (d *Dispatcher) compose(ev models.CriticalEvent) (Notification, bool) {
	shortID := models.ShortID(ev.RequestID)
	n := Notification{
		ID:          uuid.NewString(),
		Priority:    PriorityCritical,
		ActionLabel: "View",
		TargetID:    ev.RequestID,
	}
	if d.navigate != nil {
		requestID := ev.RequestID
		n.Action = func() { d.navigate(requestID) }
	}

	switch ev.Kind {
	case models.KindStatusEscalation:
		n.Message = fmt.Sprintf("Engineer on site: request #%s is now %s (was %s)", shortID, ev.NewStatus, ev.OldStatus)
	case models.KindSLABreach:
		n.Message = fmt.Sprintf("SLA BREACH: request #%s is overdue", shortID)
	default:
		return Notification{}, false
	}
	n.Duration = DefaultDuration(n.Priority)
	return n, true
}
