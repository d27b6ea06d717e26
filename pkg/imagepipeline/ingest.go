package imagepipeline

import (
	"context"
	"log/slog"
)

// Ingestor validates newly created objects and records them in the table.
// One invalid object fails the whole message, which the hosting queue
// redelivers until its receive budget runs out and the message lands on the
// dead-letter queue for the Reaper.
type Ingestor struct {
	repo Repository
}

// NewIngestor creates the ingestion validator.
func NewIngestor(repo Repository) *Ingestor {
	return &Ingestor{repo: repo}
}

// Handle unwraps the queued object-store notification and records each
// created object. Removal records are ignored; creation does not cascade
// from removal, and removal does not cascade to record deletion.
func (g *Ingestor) Handle(ctx context.Context, msg Message) error {
	event, err := UnwrapStorageEvent(msg.Body)
	if err != nil {
		return &EnvelopeError{MessageID: msg.ID, Err: err}
	}

	for _, record := range event.Records {
		if record.Removed() {
			slog.Info("Ignoring object removal", "key", record.S3.Object.Key)
			continue
		}
		key, err := record.ObjectKey()
		if err != nil {
			return &EnvelopeError{MessageID: msg.ID, Err: err}
		}
		if ext := FileExtension(key); !AllowedExtension(ext) {
			return &ValidationError{Key: key, Extension: ext}
		}
		if err := g.repo.CreateImage(ctx, key); err != nil {
			slog.Error("Failed to save image record", "image", key, "error", err)
			return &RecordError{ImageName: key, Op: "create", Err: err}
		}
		slog.Info("Image saved", "image", key)
	}
	return nil
}
