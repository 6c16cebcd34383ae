package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aetherisstack/aetheris-engine/internal/metrics"
	"github.com/aetherisstack/aetheris-engine/internal/utils"
)

// ErrQueueClosed is returned by Push after Close.
var ErrQueueClosed = errors.New("event queue closed")

// ErrQueueFull is returned by Push when the event was dropped.
var ErrQueueFull = errors.New("event queue full")

// OverflowPolicy decides what Push does when the queue is at capacity.
type OverflowPolicy string

const (
	// PolicyDrop discards the new event immediately.
	PolicyDrop OverflowPolicy = "drop"
	// PolicyBlock waits for room up to the block timeout, then drops.
	PolicyBlock OverflowPolicy = "block"
)

// ParsePolicy validates a configured overflow policy name.
func ParsePolicy(name string) (OverflowPolicy, error) {
	switch OverflowPolicy(name) {
	case PolicyDrop, "":
		return PolicyDrop, nil
	case PolicyBlock:
		return PolicyBlock, nil
	default:
		return "", fmt.Errorf("unknown overflow policy %q", name)
	}
}

const DefaultQueueCapacity = 100

// EventQueue is a bounded FIFO with many producers and one consumer.
type EventQueue struct {
	ch           chan Event
	policy       OverflowPolicy
	blockTimeout time.Duration
	logger       *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewEventQueue builds a queue. Capacity <= 0 uses DefaultQueueCapacity.
func NewEventQueue(capacity int, policy OverflowPolicy, blockTimeout time.Duration, logger *slog.Logger) *EventQueue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	if policy == "" {
		policy = PolicyDrop
	}
	if blockTimeout <= 0 {
		blockTimeout = time.Second
	}
	return &EventQueue{
		ch:           make(chan Event, capacity),
		policy:       policy,
		blockTimeout: blockTimeout,
		logger:       utils.Component(logger, "event-queue"),
	}
}

// Push enqueues ev according to the overflow policy. It never blocks longer
// than the block timeout or the lifetime of ctx.
func (q *EventQueue) Push(ctx context.Context, ev Event) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.ch <- ev:
		return nil
	default:
	}

	if q.policy == PolicyBlock {
		timer := time.NewTimer(q.blockTimeout)
		defer timer.Stop()
		select {
		case q.ch <- ev:
			return nil
		case <-ctx.Done():
		case <-timer.C:
		}
	}

	metrics.EventDropped(string(ev.Kind()))
	q.logger.Warn("event queue full, dropping event",
		slog.String("kind", string(ev.Kind())),
		slog.Int("capacity", cap(q.ch)),
		slog.String("policy", string(q.policy)),
	)
	return ErrQueueFull
}

// Events exposes the consumer side. The channel is closed by Close.
func (q *EventQueue) Events() <-chan Event {
	return q.ch
}

// Len reports buffered events.
func (q *EventQueue) Len() int {
	return len(q.ch)
}

// Close stops accepting events and closes the consumer channel once.
func (q *EventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}
