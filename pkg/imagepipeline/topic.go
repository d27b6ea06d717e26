package imagepipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// FilterPolicy is an allow-list membership test over a single named message
// attribute. The zero policy matches every message. A message lacking the
// attribute, or whose value is not in the allow list, is silently filtered
// for that subscription; it is not an error.
type FilterPolicy struct {
	Attribute string
	AllowList []string
}

// Matches reports whether a message with the given attributes passes the filter.
func (p FilterPolicy) Matches(attributes map[string]string) bool {
	if p.Attribute == "" {
		return true
	}
	value, ok := attributes[p.Attribute]
	if !ok {
		return false
	}
	return slices.Contains(p.AllowList, value)
}

// Deliverer receives messages on behalf of a subscription.
type Deliverer interface {
	Deliver(ctx context.Context, msg Message) error
}

// DelivererFunc adapts a function to the Deliverer interface.
type DelivererFunc func(ctx context.Context, msg Message) error

func (f DelivererFunc) Deliver(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// Subscription binds a filter policy to a delivery target.
type Subscription struct {
	Name   string
	Filter FilterPolicy
	Target Deliverer
}

// Topic fans out every published message to the subscriptions whose filter
// matches the message attributes. Delivery is at-least-once per matching
// subscription, with no ordering guarantee across subscriptions.
type Topic struct {
	name string

	mu   sync.RWMutex
	subs []Subscription
}

// NewTopic creates an empty topic.
func NewTopic(name string) *Topic {
	return &Topic{name: name}
}

// Name returns the topic name.
func (t *Topic) Name() string {
	return t.name
}

// Subscribe registers a subscription. The filter table is data-driven so new
// filtered consumers can be added without touching routing logic.
func (t *Topic) Subscribe(sub Subscription) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subs = append(t.subs, sub)
}

// Publish delivers the message to every matching subscription. A failed
// delivery does not stop fan-out to the remaining subscriptions; all delivery
// errors are joined into the returned error.
func (t *Topic) Publish(ctx context.Context, msg Message) error {
	t.mu.RLock()
	subs := slices.Clone(t.subs)
	t.mu.RUnlock()

	var errs []error
	for _, sub := range subs {
		if !sub.Filter.Matches(msg.Attributes) {
			continue
		}
		if err := sub.Target.Deliver(ctx, msg); err != nil {
			slog.Error("Failed to deliver message to subscription",
				"topic", t.name, "subscription", sub.Name, "message_id", msg.ID, "error", err)
			errs = append(errs, fmt.Errorf("subscription %s: %w", sub.Name, err))
		}
	}
	return errors.Join(errs...)
}
