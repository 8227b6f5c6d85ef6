package notify

import "github.com/sirupsen/logrus"

// LogSink writes alerts to the log. Used when no presentation surface is
// wired, so that critical events remain visible in a headless deployment.
type LogSink struct {
	logger *logrus.Logger
}

// NewLogSink returns a sink logging through logger.
func NewLogSink(logger *logrus.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Show logs the alert at a level matching its tier.
func (s *LogSink) Show(n Notification) {
	entry := s.logger.WithFields(logrus.Fields{
		"alert_id": n.ID,
		"priority": n.Priority,
		"target":   n.TargetID,
	})
	switch n.Priority {
	case PriorityCritical:
		entry.Error(n.Message)
	case PriorityWarning:
		entry.Warn(n.Message)
	default:
		entry.Info(n.Message)
	}
}

var _ Sink = (*LogSink)(nil)
