// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ManuGH/sigcapt/internal/log"
	"github.com/ManuGH/sigcapt/internal/metrics"
)

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 64

// MemoryBus is an in-process pub/sub. Publish never waits on a subscriber:
// a message that does not fit a subscriber's buffer is dropped for that
// subscriber only, and delivery continues with the next one.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[string][]chan Message
	buffer int
}

const dropLogEvery = 100

var dropCount atomic.Uint64

// NewMemoryBus returns a bus with DefaultBuffer sized subscriber channels.
func NewMemoryBus() *MemoryBus {
	return NewMemoryBusSize(DefaultBuffer)
}

// NewMemoryBusSize returns a bus whose subscriber channels hold n messages.
func NewMemoryBusSize(n int) *MemoryBus {
	if n < 0 {
		n = 0
	}
	return &MemoryBus{subs: make(map[string][]chan Message), buffer: n}
}

// Publish hands msg to every subscriber of topic and of AllTopics. It fails
// only for an invalid topic or a publish context that is already done.
func (b *MemoryBus) Publish(ctx context.Context, topic string, msg Message) error {
	if ctx == nil {
		return fmt.Errorf("publish context is nil")
	}
	if topic == "" || topic == AllTopics {
		return fmt.Errorf("publish topic %q is not a concrete topic", topic)
	}
	if err := ctx.Err(); err != nil {
		metrics.IncBusDropReason(topic, publishDropReason(err))
		return fmt.Errorf("publish topic %q: %w", topic, err)
	}
	b.mu.RLock()
	chs := make([]chan Message, 0, len(b.subs[topic])+len(b.subs[AllTopics]))
	chs = append(chs, b.subs[topic]...)
	chs = append(chs, b.subs[AllTopics]...)
	b.mu.RUnlock()

	metrics.IncBusPublished(topic)
	for _, ch := range chs {
		b.deliver(topic, ch, msg)
	}
	return nil
}

func publishDropReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "context_done"
	}
}

func (b *MemoryBus) deliver(topic string, ch chan Message, msg Message) {
	// A subscriber may close between snapshot and send.
	defer func() {
		if recover() != nil {
			metrics.IncBusDropReason(topic, "closed")
		}
	}()
	select {
	case ch <- msg:
	default:
		metrics.IncBusDrop(topic)
		count := dropCount.Add(1)
		if count%dropLogEvery == 1 {
			log.L().Warn().
				Str(log.FieldEvent, topic).
				Str("reason", "full").
				Uint64("dropped", count).
				Msg("memory bus dropped notification for slow subscriber")
		}
	}
}

// Subscribe registers a subscriber for topic, or for every topic when topic
// is AllTopics. The subscription ends when Close is called or ctx is done.
func (b *MemoryBus) Subscribe(ctx context.Context, topic string) (Subscriber, error) {
	if ctx == nil {
		return nil, fmt.Errorf("subscribe context is nil")
	}
	if topic == "" {
		return nil, fmt.Errorf("subscribe topic is empty")
	}
	ch := make(chan Message, b.buffer)

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], ch)
	b.mu.Unlock()

	s := &memSub{b: b, topic: topic, ch: ch, done: make(chan struct{})}
	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				_ = s.Close()
			case <-s.done:
			}
		}()
	}
	return s, nil
}

type memSub struct {
	b      *MemoryBus
	topic  string
	ch     chan Message
	done   chan struct{}
	closed sync.Once
}

func (s *memSub) C() <-chan Message {
	return s.ch
}

func (s *memSub) Close() error {
	s.closed.Do(func() {
		s.b.mu.Lock()
		defer s.b.mu.Unlock()

		lst := s.b.subs[s.topic]
		out := lst[:0]
		for _, c := range lst {
			if c != s.ch {
				out = append(out, c)
			}
		}
		if len(out) == 0 {
			delete(s.b.subs, s.topic)
		} else {
			s.b.subs[s.topic] = out
		}
		close(s.ch)
		close(s.done)
	})
	return nil
}

var _ Bus = (*MemoryBus)(nil)
