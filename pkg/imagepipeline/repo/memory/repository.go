package memory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tendant/image-pipeline/pkg/imagepipeline"
)

const feedDepth = 1024

// Repository implements imagepipeline.Repository using in-memory storage and
// exposes the table's change feed. Events are emitted in commit order, which
// for a single mutex-guarded map is also per-key commit order.
type Repository struct {
	mu     sync.Mutex
	images map[string]*imagepipeline.ImageRecord
	feed   chan imagepipeline.ChangeEvent
}

// New creates a new in-memory repository.
func New() *Repository {
	return &Repository{
		images: make(map[string]*imagepipeline.ImageRecord),
		feed:   make(chan imagepipeline.ChangeEvent, feedDepth),
	}
}

// CreateImage records a new image by key. Creating an existing key is a
// no-op so redelivered creation events leave exactly one record.
func (r *Repository) CreateImage(ctx context.Context, imageName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.images[imageName]; exists {
		return nil
	}
	record := &imagepipeline.ImageRecord{ImageName: imageName}
	r.images[imageName] = record
	r.emit(imagepipeline.ChangeEvent{
		EventName: imagepipeline.ChangeInsert,
		Change: imagepipeline.StreamImages{
			NewImage: record.Attributes(),
		},
	})
	return nil
}

// UpdateImageAttribute sets a single metadata attribute on an existing record.
func (r *Repository) UpdateImageAttribute(ctx context.Context, imageName, attribute, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, exists := r.images[imageName]
	if !exists {
		return imagepipeline.ErrImageNotFound
	}
	old := *record

	switch attribute {
	case imagepipeline.CaptionAttribute:
		record.Caption = value
	case imagepipeline.DateAttribute:
		record.CapturedDate = value
	case imagepipeline.PhotographerAttribute:
		record.Photographer = value
	default:
		return imagepipeline.ErrUnknownAttribute
	}

	r.emit(imagepipeline.ChangeEvent{
		EventName: imagepipeline.ChangeModify,
		Change: imagepipeline.StreamImages{
			OldImage: old.Attributes(),
			NewImage: record.Attributes(),
		},
	})
	return nil
}

// UpdateImageStatus sets status and reason jointly on an existing record.
func (r *Repository) UpdateImageStatus(ctx context.Context, imageName, status, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, exists := r.images[imageName]
	if !exists {
		return imagepipeline.ErrImageNotFound
	}
	old := *record
	record.Status = status
	record.Reason = reason

	r.emit(imagepipeline.ChangeEvent{
		EventName: imagepipeline.ChangeModify,
		Change: imagepipeline.StreamImages{
			OldImage: old.Attributes(),
			NewImage: record.Attributes(),
		},
	})
	return nil
}

// GetImage returns a copy of the record for the key.
func (r *Repository) GetImage(ctx context.Context, imageName string) (*imagepipeline.ImageRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, exists := r.images[imageName]
	if !exists {
		return nil, imagepipeline.ErrImageNotFound
	}
	recordCopy := *record
	return &recordCopy, nil
}

// Changes returns the table's change feed.
func (r *Repository) Changes() <-chan imagepipeline.ChangeEvent {
	return r.feed
}

// emit is called with the lock held so feed order matches commit order. When
// no consumer keeps up the oldest guarantee we can give is to drop the event
// rather than block every mutator.
func (r *Repository) emit(event imagepipeline.ChangeEvent) {
	select {
	case r.feed <- event:
	default:
		slog.Warn("Change feed full, dropping event", "event", event.EventName)
	}
}
