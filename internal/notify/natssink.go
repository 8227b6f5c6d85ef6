package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// NATSSink publishes alerts to a NATS subject for presentation surfaces
// subscribed elsewhere. Show is best-effort: publish failures are logged,
// never propagated.
type NATSSink struct {
	conn    *nats.Conn
	subject string
	owned   bool
	logger  *logrus.Logger
}

// alertMessage is the wire form of a Notification. The Action callback is
// in-process only; subscribers navigate via TargetID.
type alertMessage struct {
	ID          string `json:"id"`
	Message     string `json:"message"`
	Priority    string `json:"priority"`
	ActionLabel string `json:"action_label,omitempty"`
	TargetID    string `json:"target_id,omitempty"`
	DurationMS  int64  `json:"duration_ms,omitempty"`
}

// NewNATSSink connects to NATS and returns a sink publishing to subject.
func NewNATSSink(url, subject string, maxReconnect int, reconnectWait time.Duration, logger *logrus.Logger) (*NATSSink, error) {
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
	logger.Infof("Alert sink connected to NATS at %s", url)

	return &NATSSink{conn: conn, subject: subject, owned: true, logger: logger}, nil
}

// NewNATSSinkWithConn returns a sink reusing an existing connection, for
// processes that already hold one for the change feed. Close leaves the
// connection open.
func NewNATSSinkWithConn(conn *nats.Conn, subject string, logger *logrus.Logger) *NATSSink {
	return &NATSSink{conn: conn, subject: subject, logger: logger}
}

// Show publishes the alert. Safe to call with the connection down; NATS
// buffers or drops and the failure is logged.
func (s *NATSSink) Show(n Notification) {
	msg := alertMessage{
		ID:          n.ID,
		Message:     n.Message,
		Priority:    string(n.Priority),
		ActionLabel: n.ActionLabel,
		TargetID:    n.TargetID,
		DurationMS:  n.Duration.Milliseconds(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Errorf("Failed to marshal alert: %v", err)
		return
	}
	if err := s.conn.Publish(s.subject, data); err != nil {
		s.logger.Errorf("Failed to publish alert: %v", err)
		return
	}
	s.logger.Debugf("Published %s alert %s", msg.Priority, msg.ID)
}

// Close closes the NATS connection if this sink owns it.
func (s *NATSSink) Close() {
	if s.owned && s.conn != nil {
		s.conn.Close()
	}
}

var _ Sink = (*NATSSink)(nil)
