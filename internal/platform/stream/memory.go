package stream

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"
)

type memPending struct {
	index       int
	consumer    string
	deliveredAt time.Time
}

type memGroup struct {
	next    int
	pending map[string]*memPending
}

type memTopic struct {
	entries []Message
	groups  map[string]*memGroup
	notify  chan struct{}
}

// Memory is an in-process Stream. It keeps every topic for the lifetime of
// the value and is safe for concurrent use.
type Memory struct {
	mu     sync.Mutex
	topics map[string]*memTopic
	now    func() time.Time
}

// NewMemory returns an empty in-memory stream.
func NewMemory() *Memory {
	return &Memory{
		topics: make(map[string]*memTopic),
		now:    time.Now,
	}
}

func (m *Memory) topic(name string) *memTopic {
	t, ok := m.topics[name]
	if !ok {
		t = &memTopic{
			groups: make(map[string]*memGroup),
			notify: make(chan struct{}),
		}
		m.topics[name] = t
	}
	return t
}

func (m *Memory) Append(ctx context.Context, topic string, fields map[string]string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.topic(topic)
	id := fmt.Sprintf("%d-0", len(t.entries)+1)
	t.entries = append(t.entries, Message{ID: id, Topic: topic, Fields: maps.Clone(fields)})

	close(t.notify)
	t.notify = make(chan struct{})
	return id, nil
}

func (m *Memory) EnsureGroup(ctx context.Context, topic, group string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.topic(topic)
	if _, ok := t.groups[group]; !ok {
		t.groups[group] = &memGroup{next: len(t.entries), pending: make(map[string]*memPending)}
	}
	return nil
}

func (m *Memory) Read(ctx context.Context, topic, group, consumer string, count int, block time.Duration) ([]Message, error) {
	if count <= 0 {
		count = 1
	}
	var deadline <-chan time.Time
	if block > 0 {
		timer := time.NewTimer(block)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		msgs, wait, err := m.claim(topic, group, consumer, count)
		if err != nil || len(msgs) > 0 || deadline == nil {
			return msgs, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline:
			return nil, nil
		case <-wait:
		}
	}
}

// claim returns the consumer's pending entries, or else new ones. When there
// is nothing to deliver it returns the channel closed by the next append.
func (m *Memory) claim(topic, group, consumer string, count int) ([]Message, <-chan struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.topic(topic)
	g, ok := t.groups[group]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s/%s", ErrNoGroup, topic, group)
	}
	now := m.now()

	var own []*memPending
	for _, p := range g.pending {
		if p.consumer == consumer {
			own = append(own, p)
		}
	}
	if len(own) > 0 {
		sort.Slice(own, func(i, j int) bool { return own[i].index < own[j].index })
		if len(own) > count {
			own = own[:count]
		}
		msgs := make([]Message, 0, len(own))
		for _, p := range own {
			p.deliveredAt = now
			msgs = append(msgs, copyMessage(t.entries[p.index]))
		}
		return msgs, nil, nil
	}

	var msgs []Message
	for g.next < len(t.entries) && len(msgs) < count {
		entry := t.entries[g.next]
		g.pending[entry.ID] = &memPending{index: g.next, consumer: consumer, deliveredAt: now}
		msgs = append(msgs, copyMessage(entry))
		g.next++
	}
	if len(msgs) > 0 {
		return msgs, nil, nil
	}
	return nil, t.notify, nil
}

func (m *Memory) Ack(ctx context.Context, topic, group, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if t, ok := m.topics[topic]; ok {
		if g, ok := t.groups[group]; ok {
			delete(g.pending, id)
		}
	}
	return nil
}

// Reclaim transfers entries pending for at least minIdle, whoever owns them,
// to consumer and returns them.
func (m *Memory) Reclaim(ctx context.Context, topic, group, consumer string, minIdle time.Duration, count int) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if count <= 0 {
		count = 1
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.topic(topic)
	g, ok := t.groups[group]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrNoGroup, topic, group)
	}
	now := m.now()

	var idle []*memPending
	for _, p := range g.pending {
		if now.Sub(p.deliveredAt) >= minIdle {
			idle = append(idle, p)
		}
	}
	sort.Slice(idle, func(i, j int) bool { return idle[i].index < idle[j].index })
	if len(idle) > count {
		idle = idle[:count]
	}
	msgs := make([]Message, 0, len(idle))
	for _, p := range idle {
		p.consumer = consumer
		p.deliveredAt = now
		msgs = append(msgs, copyMessage(t.entries[p.index]))
	}
	return msgs, nil
}

// Messages returns a snapshot of every entry of topic.
func (m *Memory) Messages(topic string) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.topics[topic]
	if !ok {
		return nil
	}
	out := make([]Message, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, copyMessage(e))
	}
	return out
}

// PendingCount reports how many entries of group are delivered but not
// acknowledged.
func (m *Memory) PendingCount(topic, group string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t, ok := m.topics[topic]; ok {
		if g, ok := t.groups[group]; ok {
			return len(g.pending)
		}
	}
	return 0
}

func copyMessage(msg Message) Message {
	msg.Fields = maps.Clone(msg.Fields)
	return msg
}
