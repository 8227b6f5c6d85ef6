package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// EventType is the kind of row change delivered by the change feed.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
)

// ParseEventType maps a raw event-type string onto the closed enumeration.
func ParseEventType(s string) (EventType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "INSERT":
		return EventInsert, nil
	case "UPDATE":
		return EventUpdate, nil
	}
	return "", fmt.Errorf("unknown event type %q", s)
}

// RawEvent is a single row-change notification. Rows are opaque mappings
// keyed by column name; the wire format belongs to the change feed.
// OldRow is present only for UPDATE events.
type RawEvent struct {
	Table  string
	Type   EventType
	NewRow map[string]interface{}
	OldRow map[string]interface{}
}

// EventBatch is an ordered group of raw events delivered together. Batch
// boundaries are an artifact of the transport's flush cadence, not a domain
// concept.
type EventBatch []RawEvent

// ErrMissingIdentity indicates an event whose row carries no usable id.
var ErrMissingIdentity = errors.New("event row has no id field")

// Identity derives the deduplication key for an event:
// {table}_{type}_{id}_{updatedAt}. The key is stable across redelivery of
// the same underlying change and distinct for any two changes to the same
// row, relying on the row's updated_at stamp. Rows without updated_at fall
// back to {table}_{type}_{id}; rows without an id are malformed.
func (e RawEvent) Identity() (string, error) {
	id, ok := stringField(e.NewRow, "id")
	if !ok || id == "" {
		return "", ErrMissingIdentity
	}
	if updatedAt, ok := stringField(e.NewRow, "updated_at"); ok && updatedAt != "" {
		return fmt.Sprintf("%s_%s_%s_%s", e.Table, e.Type, id, updatedAt), nil
	}
	return fmt.Sprintf("%s_%s_%s", e.Table, e.Type, id), nil
}

// EntityID returns the row id carried by the event, if any.
func (e RawEvent) EntityID() (string, bool) {
	return stringField(e.NewRow, "id")
}

func stringField(row map[string]interface{}, key string) (string, bool) {
	if row == nil {
		return "", false
	}
	v, ok := row[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func timeField(row map[string]interface{}, key string) (*time.Time, error) {
	s, ok := stringField(row, key)
	if !ok || s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s %q: %w", key, s, err)
	}
	return &t, nil
}
