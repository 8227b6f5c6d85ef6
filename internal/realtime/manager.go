package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/sirupsen/logrus"

	"github.com/chetansierra/saan-mobile-app-sub001/internal/feed"
	"github.com/chetansierra/saan-mobile-app-sub001/internal/models"
)

// State is the subscription lifecycle state.
type State string

const (
	StateUnsubscribed State = "unsubscribed"
	StateSubscribing  State = "subscribing"
	StateSubscribed   State = "subscribed"
)

// Dispatcher receives critical events for user-facing alerting. Reset
// discards throttle state when the subscription ends.
type Dispatcher interface {
	Dispatch(ev models.CriticalEvent)
	Reset()
}

// RefreshFunc asks the owning domain service to re-fetch request state.
// Invoked fire-and-forget after a batch with material changes.
type RefreshFunc func()

// DefaultRefreshDebounce coalesces refresh triggers from rapid batches.
const DefaultRefreshDebounce = 300 * time.Millisecond

// Manager owns one table subscription: it opens the change feed stream,
// consumes batches serially through the classifier, debounces cache
// refreshes and hands critical events to the dispatcher. Each watched
// table gets its own Manager with its own dedup and throttle state.
type Manager struct {
	table      string
	feed       feed.Feed
	classifier Classifier
	dispatcher Dispatcher
	refresh    RefreshFunc
	debounce   time.Duration
	clock      clock.Clock
	logger     *logrus.Logger

	mu           sync.Mutex
	state        State
	cancel       context.CancelFunc
	done         chan struct{}
	refreshTimer clock.Timer
}

// NewManager wires a subscription manager. dispatcher and refresh may be
// nil, in which case critical events and refresh triggers are dropped.
func NewManager(table string, f feed.Feed, classifier Classifier, dispatcher Dispatcher, refresh RefreshFunc, debounce time.Duration, clk clock.Clock, logger *logrus.Logger) *Manager {
	if debounce < 0 {
		debounce = DefaultRefreshDebounce
	}
	return &Manager{
		table:      table,
		feed:       f,
		classifier: classifier,
		dispatcher: dispatcher,
		refresh:    refresh,
		debounce:   debounce,
		clock:      clk,
		logger:     logger,
		state:      StateUnsubscribed,
	}
}

// State returns the current subscription state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe opens the change feed stream for the table and starts
// consuming batches. A no-op when already subscribed.
func (m *Manager) Subscribe(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateUnsubscribed {
		m.mu.Unlock()
		return nil
	}
	m.state = StateSubscribing
	m.mu.Unlock()

	streamCtx, cancel := context.WithCancel(ctx)
	batches, err := m.feed.Subscribe(streamCtx, m.table, []models.EventType{models.EventInsert, models.EventUpdate})
	if err != nil {
		cancel()
		m.mu.Lock()
		m.state = StateUnsubscribed
		m.mu.Unlock()
		return fmt.Errorf("failed to subscribe to %s: %w", m.table, err)
	}

	done := make(chan struct{})
	m.mu.Lock()
	m.state = StateSubscribed
	m.cancel = cancel
	m.done = done
	m.mu.Unlock()

	m.logger.Infof("Subscribed to %s change feed", m.table)
	go m.consume(streamCtx, batches, done)
	return nil
}

// Unsubscribe stops the stream, waits for the in-flight batch to finish,
// clears dedup and throttle state, and releases the table subscription.
// A no-op when already unsubscribed.
func (m *Manager) Unsubscribe() error {
	m.mu.Lock()
	if m.state == StateUnsubscribed {
		m.mu.Unlock()
		return nil
	}
	cancel := m.cancel
	done := m.done
	if m.refreshTimer != nil {
		m.refreshTimer.Stop()
		m.refreshTimer = nil
	}
	m.state = StateUnsubscribed
	m.cancel = nil
	m.done = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	m.classifier.Reset()
	if m.dispatcher != nil {
		m.dispatcher.Reset()
	}

	m.logger.Infof("Unsubscribed from %s change feed", m.table)
	if err := m.feed.Unsubscribe(m.table); err != nil {
		return fmt.Errorf("failed to release %s subscription: %w", m.table, err)
	}
	return nil
}

// consume processes batches one at a time, to completion, before the next
// is considered. A batch, once started, always runs to completion; the
// only cancellable unit is the subscription itself.
func (m *Manager) consume(ctx context.Context, batches <-chan models.EventBatch, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			m.logger.Debugf("Stopped consuming %s change feed", m.table)
			return
		case batch, ok := <-batches:
			if !ok {
				// Transport gave up; reconnection policy belongs to the
				// change feed client, not here.
				m.logger.Warnf("Change feed stream for %s closed", m.table)
				return
			}
			if len(batch) == 0 {
				continue
			}
			m.handleBatch(batch)
		}
	}
}

func (m *Manager) handleBatch(batch models.EventBatch) {
	result := m.classifier.ClassifyBatch(batch)
	m.logger.Debugf("Processed batch of %d events on %s (refresh=%t, critical=%d)",
		len(batch), m.table, result.ShouldRefresh, len(result.Critical))

	if result.ShouldRefresh {
		m.scheduleRefresh()
	}
	if m.dispatcher != nil {
		for _, ev := range result.Critical {
			m.dispatcher.Dispatch(ev)
		}
	}
}

// scheduleRefresh coalesces refresh triggers: rapid batches reset a single
// debounce timer so the domain cache re-fetches once.
func (m *Manager) scheduleRefresh() {
	if m.refresh == nil {
		return
	}
	if m.debounce == 0 {
		m.refresh()
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateSubscribed {
		return
	}
	if m.refreshTimer != nil {
		m.refreshTimer.Reset(m.debounce)
		return
	}
	m.refreshTimer = m.clock.AfterFunc(m.debounce, m.fireRefresh)
}

func (m *Manager) fireRefresh() {
	m.mu.Lock()
	m.refreshTimer = nil
	fire := m.state == StateSubscribed
	m.mu.Unlock()
	if fire {
		m.refresh()
	}
}
