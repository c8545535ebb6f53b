// Package redis adapts Redis Streams to the stream.Stream interface.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/platform/stream"

	goredis "github.com/redis/go-redis/v9"
)

// Stream implements stream.Stream and stream.Reclaimer on Redis Streams:
// XADD, XGROUP CREATE, XREADGROUP, XACK and XAUTOCLAIM.
type Stream struct {
	client goredis.UniversalClient
}

// NewStream wraps an existing client. The caller owns the client.
func NewStream(client goredis.UniversalClient) *Stream {
	return &Stream{client: client}
}

func (s *Stream) Append(ctx context.Context, topic string, fields map[string]string) (string, error) {
	values := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		values[k] = v
	}
	id, err := s.client.XAdd(ctx, &goredis.XAddArgs{Stream: topic, Values: values}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", topic, err)
	}
	return id, nil
}

func (s *Stream) EnsureGroup(ctx context.Context, topic, group string) error {
	err := s.client.XGroupCreateMkStream(ctx, topic, group, "$").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create group %s on %s: %w", group, topic, err)
	}
	return nil
}

func (s *Stream) Read(ctx context.Context, topic, group, consumer string, count int, block time.Duration) ([]stream.Message, error) {
	if count <= 0 {
		count = 1
	}

	// Own pending entries first; id 0 never blocks.
	msgs, err := s.readGroup(ctx, topic, group, consumer, "0", count, -1)
	if err != nil || len(msgs) > 0 {
		return msgs, err
	}

	if block <= 0 {
		block = -1
	} else if block < time.Millisecond {
		// BLOCK 0 waits forever.
		block = time.Millisecond
	}
	return s.readGroup(ctx, topic, group, consumer, ">", count, block)
}

func (s *Stream) readGroup(ctx context.Context, topic, group, consumer, start string, count int, block time.Duration) ([]stream.Message, error) {
	res, err := s.client.XReadGroup(ctx, &goredis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{topic, start},
		Count:    int64(count),
		Block:    block,
	}).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if strings.HasPrefix(err.Error(), "NOGROUP") {
			return nil, fmt.Errorf("%w: %s/%s", stream.ErrNoGroup, topic, group)
		}
		return nil, fmt.Errorf("xreadgroup %s: %w", topic, err)
	}

	var out []stream.Message
	for _, xs := range res {
		for _, xm := range xs.Messages {
			out = append(out, toMessage(xs.Stream, xm))
		}
	}
	return out, nil
}

func (s *Stream) Ack(ctx context.Context, topic, group, id string) error {
	if err := s.client.XAck(ctx, topic, group, id).Err(); err != nil {
		return fmt.Errorf("xack %s %s: %w", topic, id, err)
	}
	return nil
}

func (s *Stream) Reclaim(ctx context.Context, topic, group, consumer string, minIdle time.Duration, count int) ([]stream.Message, error) {
	if count <= 0 {
		count = 1
	}
	xms, _, err := s.client.XAutoClaim(ctx, &goredis.XAutoClaimArgs{
		Stream:   topic,
		Group:    group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Start:    "0-0",
		Count:    int64(count),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("xautoclaim %s: %w", topic, err)
	}
	out := make([]stream.Message, 0, len(xms))
	for _, xm := range xms {
		out = append(out, toMessage(topic, xm))
	}
	return out, nil
}

func toMessage(topic string, xm goredis.XMessage) stream.Message {
	fields := make(map[string]string, len(xm.Values))
	for k, v := range xm.Values {
		switch val := v.(type) {
		case string:
			fields[k] = val
		case nil:
			fields[k] = ""
		default:
			fields[k] = fmt.Sprint(val)
		}
	}
	return stream.Message{ID: xm.ID, Topic: topic, Fields: fields}
}

var (
	_ stream.Stream    = (*Stream)(nil)
	_ stream.Reclaimer = (*Stream)(nil)
)
