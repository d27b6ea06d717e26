package imagepipeline

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// statusDeliveryBudget is how many deliveries a status update gets before it
// is dropped.
const statusDeliveryBudget = 3

// Pipeline wires the topic, queues, handlers, and change feed into one
// runnable unit. Construct it with New and the With* options, then call Run
// to start the consumers.
type Pipeline struct {
	repo   Repository
	store  ObjectStore
	mailer Mailer
	feed   ChangeFeed

	topic       *Topic
	ingestQueue *Queue
	deadLetter  *Queue
	notifyQueue *Queue

	metadataQueue *Queue
	statusQueue   *Queue

	notifier *Notifier

	batchSize       int
	maxReceiveCount int
	timeout         time.Duration
	notifyTimeout   time.Duration
	emailFrom       string
	emailTo         string
}

// Option represents a functional option for configuring the pipeline.
type Option func(*Pipeline)

// WithRepository sets the durable table backend.
func WithRepository(repo Repository) Option {
	return func(p *Pipeline) {
		p.repo = repo
	}
}

// WithObjectStore sets the object store backend.
func WithObjectStore(store ObjectStore) Option {
	return func(p *Pipeline) {
		p.store = store
	}
}

// WithMailer sets the notification email gateway and addresses.
func WithMailer(mailer Mailer, from, to string) Option {
	return func(p *Pipeline) {
		p.mailer = mailer
		p.emailFrom = from
		p.emailTo = to
	}
}

// WithChangeFeed sets the table change feed consumed by the notifier. The
// memory and Postgres repositories expose their own feed; a DynamoDB table's
// stream is consumed externally and bridged in through this option.
func WithChangeFeed(feed ChangeFeed) Option {
	return func(p *Pipeline) {
		p.feed = feed
	}
}

// WithBatchSize sets how many messages each queue consumer drains per batch.
func WithBatchSize(n int) Option {
	return func(p *Pipeline) {
		p.batchSize = n
	}
}

// WithMaxReceiveCount sets the ingest queue's delivery budget before a
// message is dead-lettered.
func WithMaxReceiveCount(n int) Option {
	return func(p *Pipeline) {
		p.maxReceiveCount = n
	}
}

// WithInvocationTimeout bounds each handler invocation.
func WithInvocationTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		p.timeout = d
	}
}

// WithNotifyTimeout bounds each notifier invocation.
func WithNotifyTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		p.notifyTimeout = d
	}
}

// New creates a fully wired pipeline. The repository and object store are
// required. When a mailer is configured, both email addresses are required
// and a change feed must be present for notifications to flow.
func New(options ...Option) (*Pipeline, error) {
	p := &Pipeline{
		batchSize:       DefaultBatchSize,
		maxReceiveCount: 1,
		timeout:         DefaultInvocationTimeout,
		notifyTimeout:   3 * time.Second,
	}
	for _, option := range options {
		option(p)
	}

	if p.repo == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if p.store == nil {
		return nil, fmt.Errorf("object store is required")
	}

	if p.mailer != nil {
		notifier, err := NewNotifier(p.mailer, p.emailFrom, p.emailTo)
		if err != nil {
			return nil, err
		}
		p.notifier = notifier
	}

	p.deadLetter = NewQueue("image-dead-letter", QueuePolicy{})
	p.ingestQueue = NewQueue("image-process", QueuePolicy{
		MaxReceiveCount: p.maxReceiveCount,
		DeadLetter:      p.deadLetter,
	})
	p.notifyQueue = NewQueue("image-notify", QueuePolicy{})
	p.metadataQueue = NewQueue("metadata-update", QueuePolicy{})
	// Status updates are correctness-critical and get their own retry budget,
	// independent of the ingest queue's single-delivery policy.
	p.statusQueue = NewQueue("status-update", QueuePolicy{MaxReceiveCount: statusDeliveryBudget})

	p.topic = NewTopic("image-events")
	p.topic.Subscribe(Subscription{
		Name:   "ingest",
		Target: p.ingestQueue,
	})
	p.topic.Subscribe(Subscription{
		Name:   "notify",
		Target: p.notifyQueue,
	})
	p.topic.Subscribe(Subscription{
		Name:   "metadata",
		Filter: FilterPolicy{Attribute: AttrMetadataType, AllowList: []string{MetadataCaption, MetadataDate, MetadataPhotographer}},
		Target: DelivererFunc(p.metadataQueue.Send),
	})
	p.topic.Subscribe(Subscription{
		Name:   "status",
		Filter: FilterPolicy{Attribute: AttrStatusType, AllowList: []string{StatusUpdateType}},
		Target: DelivererFunc(p.statusQueue.Send),
	})

	return p, nil
}

// Topic returns the event topic so external producers can publish directly.
func (p *Pipeline) Topic() *Topic {
	return p.topic
}

// DeadLetterQueue returns the quarantine queue.
func (p *Pipeline) DeadLetterQueue() *Queue {
	return p.deadLetter
}

// NotificationQueue returns the unfiltered subscription queue. The pipeline
// does not consume it; it is available to external consumers that want the
// raw event stream.
func (p *Pipeline) NotificationQueue() *Queue {
	return p.notifyQueue
}

// Repository returns the durable table backend.
func (p *Pipeline) Repository() Repository {
	return p.repo
}

// ObjectStore returns the object store backend.
func (p *Pipeline) ObjectStore() ObjectStore {
	return p.store
}

// PublishObjectCreated publishes a creation notification for the keys, as
// the object event source would after an upload.
func (p *Pipeline) PublishObjectCreated(ctx context.Context, keys ...string) error {
	msg, err := NewMessage(NewObjectCreatedEvent(keys...), nil)
	if err != nil {
		return err
	}
	return p.topic.Publish(ctx, msg)
}

// PublishObjectRemoved publishes a removal notification for the keys.
func (p *Pipeline) PublishObjectRemoved(ctx context.Context, keys ...string) error {
	msg, err := NewMessage(NewObjectRemovedEvent(keys...), nil)
	if err != nil {
		return err
	}
	return p.topic.Publish(ctx, msg)
}

// PublishMetadataUpdate publishes a single-attribute metadata update routed
// by the metadataType attribute.
func (p *Pipeline) PublishMetadataUpdate(ctx context.Context, metadataType string, update MetadataUpdate) error {
	msg, err := NewMessage(update, map[string]string{AttrMetadataType: metadataType})
	if err != nil {
		return err
	}
	return p.topic.Publish(ctx, msg)
}

// PublishStatusUpdate publishes a joint status+reason update routed by the
// statusType attribute.
func (p *Pipeline) PublishStatusUpdate(ctx context.Context, update StatusUpdate) error {
	msg, err := NewMessage(update, map[string]string{AttrStatusType: StatusUpdateType})
	if err != nil {
		return err
	}
	return p.topic.Publish(ctx, msg)
}

// Run starts all consumers and blocks until the context is canceled and the
// consumers drain out.
func (p *Pipeline) Run(ctx context.Context) {
	var wg sync.WaitGroup

	run := func(source *EventSource) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			source.Run(ctx)
		}()
	}

	run(NewEventSource(p.ingestQueue, NewIngestor(p.repo), p.batchSize, p.timeout))
	run(NewEventSource(p.deadLetter, NewReaper(p.store), p.batchSize, p.timeout))
	run(NewEventSource(p.metadataQueue, NewMetadataUpdater(p.repo), p.batchSize, p.timeout))
	run(NewEventSource(p.statusQueue, NewStatusUpdater(p.repo), p.batchSize, p.timeout))

	if p.notifier != nil && p.feed != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			NewFeedSource(p.feed, p.notifier, p.notifyTimeout).Run(ctx)
		}()
	}

	wg.Wait()
}
