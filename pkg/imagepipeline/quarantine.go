package imagepipeline

import (
	"context"
	"log/slog"
)

// Reaper consumes the dead-letter queue and deletes invalid objects from the
// store. The validation error is re-raised after cleanup so the message is
// still recorded as failed: cleanup success must not mask that the original
// object was invalid.
type Reaper struct {
	store ObjectStore
}

// NewReaper creates the quarantine reaper.
func NewReaper(store ObjectStore) *Reaper {
	return &Reaper{store: store}
}

// Handle re-extracts each object key and deletes objects whose extension is
// not allowed. A failed deletion is logged and does not stop the re-raise.
func (r *Reaper) Handle(ctx context.Context, msg Message) error {
	event, err := UnwrapStorageEvent(msg.Body)
	if err != nil {
		return &EnvelopeError{MessageID: msg.ID, Err: err}
	}

	for _, record := range event.Records {
		key, err := record.ObjectKey()
		if err != nil {
			return &EnvelopeError{MessageID: msg.ID, Err: err}
		}
		ext := FileExtension(key)
		if AllowedExtension(ext) {
			continue
		}
		slog.Warn("Invalid file type", "object", key)
		if err := r.store.Delete(ctx, key); err != nil {
			slog.Error("Failed to remove invalid object", "object", key, "error", err)
		} else {
			slog.Info("Removed invalid object", "object", key)
		}
		return &ValidationError{Key: key, Extension: ext}
	}
	return nil
}
