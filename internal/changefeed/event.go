// Package changefeed delivers store change events to in-process consumers.
package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
)

// Op names the kind of row change, matching PostgreSQL TG_OP values.
type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
	// OpRefresh asks consumers to refetch because changes may have been missed.
	OpRefresh Op = "REFRESH"
)

// AllTables addresses every table, used by OpRefresh.
const AllTables = "*"

// Event is a single row change emitted by the store.
type Event struct {
	Table string          `json:"table"`
	Op    Op              `json:"op"`
	ID    string          `json:"id"`
	Row   json.RawMessage `json:"row,omitempty"`
}

// Sink receives events in emission order. It must not block.
type Sink func(Event)

// Listener streams events into a sink until ctx is cancelled.
type Listener interface {
	Listen(ctx context.Context, sink Sink) error
}

// Publisher emits events for stores that cannot notify on their own.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// RefreshEvent builds the resync marker sent after (re)subscribing.
func RefreshEvent() Event {
	return Event{Table: AllTables, Op: OpRefresh}
}

// Decode parses a JSON payload into an Event.
func Decode(payload []byte) (Event, error) {
	var evt Event
	if err := json.Unmarshal(payload, &evt); err != nil {
		return Event{}, fmt.Errorf("changefeed: decode: %w", err)
	}
	switch evt.Op {
	case OpInsert, OpUpdate, OpDelete, OpRefresh:
	default:
		return Event{}, fmt.Errorf("changefeed: unknown op %q", evt.Op)
	}
	if evt.Table == "" {
		return Event{}, fmt.Errorf("changefeed: table missing")
	}
	return evt, nil
}

// NewEvent marshals row into an Event.
func NewEvent(table string, op Op, id string, row any) (Event, error) {
	evt := Event{Table: table, Op: op, ID: id}
	if row != nil {
		raw, err := json.Marshal(row)
		if err != nil {
			return Event{}, fmt.Errorf("changefeed: encode row: %w", err)
		}
		evt.Row = raw
	}
	return evt, nil
}
