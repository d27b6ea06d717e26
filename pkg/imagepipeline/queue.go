package imagepipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

const defaultQueueDepth = 1024

// QueuePolicy mirrors the provisioning knobs of a hosted queue.
type QueuePolicy struct {
	// MaxReceiveCount is how many deliveries a message gets before it is
	// moved to the dead-letter queue. Zero means one delivery.
	MaxReceiveCount int

	// DeadLetter receives messages that exhausted their delivery budget.
	// When nil, exhausted messages are dropped with a log record.
	DeadLetter *Queue
}

func (p QueuePolicy) maxReceiveCount() int {
	if p.MaxReceiveCount <= 0 {
		return 1
	}
	return p.MaxReceiveCount
}

// Queue is a buffered message queue with at-least-once delivery. A failed
// message is redelivered until it exceeds the policy's receive budget, then
// moved to the dead-letter queue.
type Queue struct {
	name   string
	policy QueuePolicy

	mu       sync.Mutex
	messages chan Message
	done     chan struct{}
	closed   bool
}

// NewQueue creates a queue with the given redelivery policy.
func NewQueue(name string, policy QueuePolicy) *Queue {
	return &Queue{
		name:     name,
		policy:   policy,
		messages: make(chan Message, defaultQueueDepth),
		done:     make(chan struct{}),
	}
}

// Name returns the queue name.
func (q *Queue) Name() string {
	return q.name
}

// Send enqueues a message as-is.
func (q *Queue) Send(ctx context.Context, msg Message) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.mu.Unlock()

	select {
	case q.messages <- msg:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Deliver implements the topic-facing delivery contract: the message body is
// wrapped in a Notification envelope before it is enqueued, matching what
// queue consumers of a topic observe on the wire.
func (q *Queue) Deliver(ctx context.Context, msg Message) error {
	wrapped, err := json.Marshal(Notification{
		MessageID: msg.ID,
		Message:   string(msg.Body),
	})
	if err != nil {
		return fmt.Errorf("failed to wrap message %s: %w", msg.ID, err)
	}
	msg.Body = wrapped
	return q.Send(ctx, msg)
}

// Receive blocks until at least one message is available, then returns up to
// max messages without further blocking. Each returned message has its
// receive count already incremented.
func (q *Queue) Receive(ctx context.Context, max int) ([]Message, error) {
	if max <= 0 {
		max = 1
	}

	var batch []Message
	select {
	case msg := <-q.messages:
		msg.ReceiveCount++
		batch = append(batch, msg)
	case <-q.done:
		return nil, ErrQueueClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	for len(batch) < max {
		select {
		case msg := <-q.messages:
			msg.ReceiveCount++
			batch = append(batch, msg)
		default:
			return batch, nil
		}
	}
	return batch, nil
}

// Fail records a failed delivery. The message is redelivered while it has
// receive budget left, otherwise moved to the dead-letter queue with a fresh
// receive count.
func (q *Queue) Fail(ctx context.Context, msg Message) error {
	if msg.ReceiveCount < q.policy.maxReceiveCount() {
		return q.Send(ctx, msg)
	}
	if q.policy.DeadLetter == nil {
		slog.Warn("Dropping message with exhausted receive budget",
			"queue", q.name, "message_id", msg.ID, "receive_count", msg.ReceiveCount)
		return nil
	}
	msg.ReceiveCount = 0
	return q.policy.DeadLetter.Send(ctx, msg)
}

// Len returns the number of messages currently waiting.
func (q *Queue) Len() int {
	return len(q.messages)
}

// Close stops the queue. Pending messages are discarded; blocked senders and
// receivers are released with ErrQueueClosed.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}
