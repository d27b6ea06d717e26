package imagepipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

const (
	// DefaultBatchSize is how many messages a queue event source hands to its
	// handler per drain.
	DefaultBatchSize = 5

	// DefaultInvocationTimeout bounds one handler invocation.
	DefaultInvocationTimeout = 15 * time.Second
)

// EventSource drains a queue in fixed-size batches and invokes a handler once
// per message. Invocations are bounded by a wall-clock budget; exceeding it
// aborts the in-flight message, which counts as a failure and makes the
// message a redelivery candidate under the queue's policy.
type EventSource struct {
	queue     *Queue
	handler   Handler
	batchSize int
	timeout   time.Duration
}

// NewEventSource binds a handler to a queue.
func NewEventSource(queue *Queue, handler Handler, batchSize int, timeout time.Duration) *EventSource {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if timeout <= 0 {
		timeout = DefaultInvocationTimeout
	}
	return &EventSource{
		queue:     queue,
		handler:   handler,
		batchSize: batchSize,
		timeout:   timeout,
	}
}

// Run consumes the queue until the context is canceled or the queue closes.
func (s *EventSource) Run(ctx context.Context) {
	for {
		batch, err := s.queue.Receive(ctx, s.batchSize)
		if err != nil {
			if !errors.Is(err, context.Canceled) && !errors.Is(err, ErrQueueClosed) {
				slog.Error("Failed to receive batch", "queue", s.queue.Name(), "error", err)
			}
			return
		}
		for _, msg := range batch {
			s.dispatch(ctx, msg)
		}
	}
}

func (s *EventSource) dispatch(parent context.Context, msg Message) {
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	err := s.handler.Handle(ctx, msg)
	if err == nil {
		return
	}
	slog.Error("Message handling failed",
		"queue", s.queue.Name(), "message_id", msg.ID, "receive_count", msg.ReceiveCount, "error", err)
	if failErr := s.queue.Fail(parent, msg); failErr != nil {
		slog.Error("Failed to record message failure",
			"queue", s.queue.Name(), "message_id", msg.ID, "error", failErr)
	}
}

// FeedSource consumes a table change feed and invokes a change handler per
// event, in feed order. Handler errors are logged; the feed never replays.
type FeedSource struct {
	feed    ChangeFeed
	handler ChangeHandler
	timeout time.Duration
}

// NewFeedSource binds a change handler to a change feed.
func NewFeedSource(feed ChangeFeed, handler ChangeHandler, timeout time.Duration) *FeedSource {
	if timeout <= 0 {
		timeout = DefaultInvocationTimeout
	}
	return &FeedSource{feed: feed, handler: handler, timeout: timeout}
}

// Run consumes the feed until the context is canceled or the feed closes.
func (s *FeedSource) Run(ctx context.Context) {
	changes := s.feed.Changes()
	for {
		select {
		case event, ok := <-changes:
			if !ok {
				return
			}
			s.dispatch(ctx, event)
		case <-ctx.Done():
			return
		}
	}
}

func (s *FeedSource) dispatch(parent context.Context, event ChangeEvent) {
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	if err := s.handler.HandleChange(ctx, event); err != nil {
		slog.Error("Change handling failed", "event", event.EventName, "error", err)
	}
}
