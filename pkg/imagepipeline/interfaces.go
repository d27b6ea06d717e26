package imagepipeline

import (
	"context"
	"io"
)

// Repository defines the contract the pipeline requires from the durable
// table. All mutations are targeted, attribute-scoped updates: concurrent
// mutators touching different attributes of the same record must not clobber
// each other. Metadata and status updates fail with ErrImageNotFound when no
// record exists for the key; they never upsert.
type Repository interface {
	// CreateImage records a new image by key. Re-applying the create for an
	// existing key is a no-op, so redelivered creation events are idempotent.
	CreateImage(ctx context.Context, imageName string) error

	// UpdateImageAttribute sets a single metadata attribute on the record,
	// leaving every other attribute untouched.
	UpdateImageAttribute(ctx context.Context, imageName, attribute, value string) error

	// UpdateImageStatus sets status and reason jointly on the record.
	UpdateImageStatus(ctx context.Context, imageName, status, reason string) error

	// GetImage returns the record for the key, or ErrImageNotFound.
	GetImage(ctx context.Context, imageName string) (*ImageRecord, error)
}

// ChangeFeed exposes the table's ordered-per-key mutation stream. Events for
// the same key are observed in commit order; no ordering holds across keys.
type ChangeFeed interface {
	Changes() <-chan ChangeEvent
}

// ObjectStore defines the contract the pipeline requires from the object
// store. Delete of a missing key succeeds, so quarantine cleanup is
// idempotent under redelivery.
type ObjectStore interface {
	Upload(ctx context.Context, key string, reader io.Reader) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// Email is a composed notification message.
type Email struct {
	From     string
	To       string
	Subject  string
	HTMLBody string
}

// Mailer defines the contract for the notification email gateway.
type Mailer interface {
	Send(ctx context.Context, email Email) error
}

// Handler processes one delivered message. A returned error marks the message
// failed; the hosting queue decides between redelivery and dead-lettering.
type Handler interface {
	Handle(ctx context.Context, msg Message) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, msg Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// ChangeHandler processes one record change-feed event.
type ChangeHandler interface {
	HandleChange(ctx context.Context, event ChangeEvent) error
}
