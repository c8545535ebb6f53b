// Package stream defines the durable, ordered event stream the saga runs on:
// append-only topics read through consumer groups with per-message
// acknowledgement.
package stream

import (
	"context"
	"errors"
	"time"
)

// ErrNoGroup is returned by Read when the consumer group was never created
// (or vanished with its backend). Callers re-run EnsureGroup.
var ErrNoGroup = errors.New("stream: consumer group does not exist")

// Message is one entry of a topic. Fields are immutable after append.
type Message struct {
	ID     string
	Topic  string
	Fields map[string]string
}

// Publisher appends events to a topic.
type Publisher interface {
	// Append stores fields at the end of topic, creating the topic if needed,
	// and returns the assigned id. Ids increase strictly within a topic.
	Append(ctx context.Context, topic string, fields map[string]string) (string, error)
}

// Stream is a topic log consumed through consumer groups.
type Stream interface {
	Publisher

	// EnsureGroup creates group on topic if it does not exist. A new group
	// starts after the last entry present at creation time.
	EnsureGroup(ctx context.Context, topic, group string) error

	// Read returns up to count entries for consumer. Entries delivered to the
	// consumer earlier and not yet acknowledged come first; otherwise new
	// entries are claimed, waiting up to block for one to arrive. block <= 0
	// does not wait. A timeout yields an empty slice and a nil error.
	Read(ctx context.Context, topic, group, consumer string, count int, block time.Duration) ([]Message, error)

	// Ack removes id from the group's pending set. Unknown or already
	// acknowledged ids are ignored.
	Ack(ctx context.Context, topic, group, id string) error
}

// Reclaimer is implemented by streams that can hand entries left pending by
// a dead consumer to another one.
type Reclaimer interface {
	Reclaim(ctx context.Context, topic, group, consumer string, minIdle time.Duration, count int) ([]Message, error)
}
