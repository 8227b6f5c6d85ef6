package realtime

import (
	"reflect"

	"github.com/juju/clock"
	"github.com/sirupsen/logrus"

	"github.com/chetansierra/saan-mobile-app-sub001/internal/models"
	"github.com/chetansierra/saan-mobile-app-sub001/internal/sla"
)

// Classification is the per-event verdict. Verdicts combine across a batch
// by logical OR per field.
type Classification struct {
	ShouldRefresh bool
	IsCritical    bool
}

// BatchResult aggregates a batch of classifications: one refresh decision
// plus the critical events to dispatch, in classification order.
type BatchResult struct {
	ShouldRefresh bool
	Critical      []models.CriticalEvent
}

// Classifier turns raw event batches into batch-level verdicts. Reset
// discards accumulated dedup state when a subscription ends.
type Classifier interface {
	ClassifyBatch(batch models.EventBatch) BatchResult
	Reset()
}

// RequestClassifier deduplicates and classifies change events for the
// requests table. It drops already-seen events via a bounded identity set,
// diffs old/new row snapshots per event, and derives status-escalation and
// SLA-breach critical events.
//
// Not safe for concurrent use; the subscription manager feeds it one batch
// at a time.
type RequestClassifier struct {
	table  string
	seen   *IdentitySet
	calc   *sla.Calculator
	logger *logrus.Logger
}

// NewRequestClassifier creates a classifier for the given table with a
// dedup cap of dedupCap identities.
func NewRequestClassifier(table string, dedupCap int, clk clock.Clock, logger *logrus.Logger) *RequestClassifier {
	return &RequestClassifier{
		table:  table,
		seen:   NewIdentitySet(dedupCap),
		calc:   sla.NewCalculator(clk),
		logger: logger,
	}
}

// ClassifyBatch processes a batch in arrival order. Duplicate events are
// skipped, malformed events are logged and ignored, and the identity set
// is compacted once afterwards.
func (c *RequestClassifier) ClassifyBatch(batch models.EventBatch) BatchResult {
	var result BatchResult
	for _, ev := range batch {
		identity, err := ev.Identity()
		if err != nil {
			c.logger.Debugf("Skipping event without identity on %s: %v", ev.Table, err)
			continue
		}
		if c.seen.Has(identity) {
			c.logger.Debugf("Skipping duplicate event %s", identity)
			continue
		}
		c.seen.Add(identity)

		cls, critical := c.classify(ev)
		result.ShouldRefresh = result.ShouldRefresh || cls.ShouldRefresh
		if cls.IsCritical {
			result.Critical = append(result.Critical, critical...)
		}
	}
	c.seen.Compact()
	return result
}

// Reset clears dedup state. Called when the subscription is torn down.
func (c *RequestClassifier) Reset() {
	c.seen.Clear()
}

func (c *RequestClassifier) classify(ev models.RawEvent) (Classification, []models.CriticalEvent) {
	switch ev.Type {
	case models.EventInsert:
		// New entities always warrant a refresh but have no prior state
		// to escalate from.
		return Classification{ShouldRefresh: true}, nil
	case models.EventUpdate:
		return c.classifyUpdate(ev)
	}
	c.logger.Debugf("Ignoring event of unhandled type %q on %s", ev.Type, ev.Table)
	return Classification{}, nil
}

func (c *RequestClassifier) classifyUpdate(ev models.RawEvent) (Classification, []models.CriticalEvent) {
	if ev.OldRow == nil {
		// Without old state nothing can be diffed. The update itself
		// still signals a mutation worth a cache refresh.
		c.logger.Debugf("Update without old row on %s, refresh only", ev.Table)
		return Classification{ShouldRefresh: true}, nil
	}

	newSnap, err := models.SnapshotFromRow(ev.NewRow)
	if err != nil {
		c.logger.Warnf("Malformed new row on %s: %v", ev.Table, err)
		return Classification{}, nil
	}
	oldSnap, err := models.SnapshotFromRow(ev.OldRow)
	if err != nil {
		c.logger.Warnf("Malformed old row on %s: %v", ev.Table, err)
		return Classification{}, nil
	}

	var cls Classification
	var critical []models.CriticalEvent

	if newSnap.Status != oldSnap.Status {
		cls.ShouldRefresh = true
		if newSnap.Status == models.StatusOnSite {
			cls.IsCritical = true
			critical = append(critical, models.CriticalEvent{
				Kind:      models.KindStatusEscalation,
				RequestID: newSnap.ID,
				OldStatus: oldSnap.Status,
				NewStatus: newSnap.Status,
			})
		}
	}

	if newSnap.AssignedEngineer != oldSnap.AssignedEngineer {
		cls.ShouldRefresh = true
	}

	// Edge-triggered breach check: only the transition into breach fires,
	// not every update while still overdue. A missing old deadline (for
	// example a priority change that just introduced the SLA) degrades to
	// "no breach detected".
	wasOverdue := c.calc.IsOverdue(oldSnap.SLADueAt)
	isOverdue := c.calc.IsOverdue(newSnap.SLADueAt)
	if isOverdue && !wasOverdue && oldSnap.SLADueAt != nil && !newSnap.Status.IsTerminal() {
		cls.IsCritical = true
		cls.ShouldRefresh = true
		critical = append(critical, models.CriticalEvent{
			Kind:      models.KindSLABreach,
			RequestID: newSnap.ID,
			OldStatus: oldSnap.Status,
			NewStatus: newSnap.Status,
		})
	}

	if !cls.ShouldRefresh && rowChanged(ev.OldRow, ev.NewRow) {
		cls.ShouldRefresh = true
	}

	return cls, critical
}

// rowChanged reports whether any column differs between the two rows.
func rowChanged(oldRow, newRow map[string]interface{}) bool {
	if len(oldRow) != len(newRow) {
		return true
	}
	for key, oldVal := range oldRow {
		newVal, ok := newRow[key]
		if !ok || !reflect.DeepEqual(oldVal, newVal) {
			return true
		}
	}
	return false
}
