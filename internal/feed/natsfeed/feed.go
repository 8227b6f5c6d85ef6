// Package natsfeed adapts a NATS change-event stream to the feed contract.
// Each table maps to one subject ({prefix}.{table}) carrying JSON change
// messages; one message becomes one event batch.
package natsfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/chetansierra/saan-mobile-app-sub001/internal/feed"
	"github.com/chetansierra/saan-mobile-app-sub001/internal/models"
)

// changeMessage is the wire form of a change notification: the event type,
// the table, the affected rows and, for updates, the matching old rows by
// index.
type changeMessage struct {
	Type      string                   `json:"type"`
	Table     string                   `json:"table"`
	Timestamp int64                    `json:"timestamp"`
	Rows      []map[string]interface{} `json:"rows"`
	OldRows   []map[string]interface{} `json:"old_rows,omitempty"`
}

// Feed subscribes to per-table change subjects on NATS.
type Feed struct {
	conn          *nats.Conn
	subjectPrefix string
	logger        *logrus.Logger

	mu   sync.Mutex
	subs map[string]*subscription
}

type subscription struct {
	sub *nats.Subscription

	mu     sync.Mutex
	out    chan models.EventBatch
	closed bool
}

// deliver hands a batch to the consumer without blocking the NATS delivery
// goroutine. Returns false when the buffer is full or the stream is closed.
func (s *subscription) deliver(batch models.EventBatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.out <- batch:
		return true
	default:
		return false
	}
}

func (s *subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.out)
	}
}

// New connects to NATS. subjectPrefix is prepended to table names to form
// subjects, e.g. "changes" and "requests" give "changes.requests".
func New(url, subjectPrefix string, maxReconnect int, reconnectWait time.Duration, logger *logrus.Logger) (*Feed, error) {
	opts := []nats.Option{
		nats.MaxReconnects(maxReconnect),
		nats.ReconnectWait(reconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Warnf("NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Infof("NATS reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Warn("NATS connection closed")
		}),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	logger.Infof("Change feed connected to NATS at %s", url)

	return &Feed{
		conn:          conn,
		subjectPrefix: subjectPrefix,
		logger:        logger,
		subs:          make(map[string]*subscription),
	}, nil
}

// Subscribe opens the change stream for a table. Only one subscription per
// table is held at a time.
func (f *Feed) Subscribe(ctx context.Context, table string, types []models.EventType) (<-chan models.EventBatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subs[table]; ok {
		return nil, fmt.Errorf("already subscribed to table %s", table)
	}

	wanted := make(map[models.EventType]bool, len(types))
	for _, t := range types {
		wanted[t] = true
	}

	subject := fmt.Sprintf("%s.%s", f.subjectPrefix, table)
	entry := &subscription{out: make(chan models.EventBatch, 64)}
	sub, err := f.conn.Subscribe(subject, func(msg *nats.Msg) {
		batch, ok := f.decode(table, wanted, msg.Data)
		if !ok || len(batch) == 0 {
			return
		}
		if !entry.deliver(batch) {
			// The consumer is the bottleneck; dropping here beats
			// blocking the NATS delivery goroutine. The at-least-once
			// transport will redeliver on reconnect.
			f.logger.Warnf("Change feed buffer full for %s, dropping batch of %d events", table, len(batch))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	entry.sub = sub

	f.subs[table] = entry
	f.logger.Infof("Subscribed to %s", subject)

	go func() {
		<-ctx.Done()
		if err := f.Unsubscribe(table); err != nil {
			f.logger.Debugf("Unsubscribe after context done: %v", err)
		}
	}()

	return entry.out, nil
}

// decode turns one wire message into an event batch, filtering by event
// type. Malformed messages are logged and skipped.
func (f *Feed) decode(table string, wanted map[models.EventType]bool, data []byte) (models.EventBatch, bool) {
	var msg changeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		f.logger.Warnf("Malformed change message on %s: %v", table, err)
		return nil, false
	}
	eventType, err := models.ParseEventType(msg.Type)
	if err != nil {
		f.logger.Debugf("Ignoring change message on %s: %v", table, err)
		return nil, false
	}
	if !wanted[eventType] {
		return nil, false
	}

	batch := make(models.EventBatch, 0, len(msg.Rows))
	for i, row := range msg.Rows {
		ev := models.RawEvent{Table: table, Type: eventType, NewRow: row}
		if eventType == models.EventUpdate && i < len(msg.OldRows) {
			ev.OldRow = msg.OldRows[i]
		}
		batch = append(batch, ev)
	}
	return batch, true
}

// Unsubscribe drains the NATS subscription and closes the batch channel.
func (f *Feed) Unsubscribe(table string) error {
	f.mu.Lock()
	entry, ok := f.subs[table]
	if ok {
		delete(f.subs, table)
	}
	f.mu.Unlock()
	if !ok {
		return nil
	}
	err := entry.sub.Unsubscribe()
	entry.close()
	if err != nil {
		return fmt.Errorf("failed to unsubscribe from %s: %w", table, err)
	}
	return nil
}

// Close releases all subscriptions and the connection.
func (f *Feed) Close() {
	f.mu.Lock()
	tables := make([]string, 0, len(f.subs))
	for table := range f.subs {
		tables = append(tables, table)
	}
	f.mu.Unlock()
	for _, table := range tables {
		if err := f.Unsubscribe(table); err != nil {
			f.logger.Warnf("Failed to unsubscribe from %s on close: %v", table, err)
		}
	}
	if f.conn != nil {
		f.conn.Close()
	}
}

// Conn exposes the underlying connection so the process can reuse it, for
// example for the alert sink.
func (f *Feed) Conn() *nats.Conn {
	return f.conn
}

var _ feed.Feed = (*Feed)(nil)
