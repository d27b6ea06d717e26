package imagepipeline

import (
	"context"
	"encoding/json"
	"log/slog"
)

// MetadataUpdater applies single-attribute metadata updates routed by the
// metadataType attribute. Failures are absorbed with a log record: metadata
// updates are best-effort and never retried, unlike status updates.
type MetadataUpdater struct {
	repo Repository
}

// NewMetadataUpdater creates the metadata mutator.
func NewMetadataUpdater(repo Repository) *MetadataUpdater {
	return &MetadataUpdater{repo: repo}
}

// Handle sets the table attribute named by the message's metadataType
// attribute on the record identified by the payload id. A metadata type
// outside the allow list is logged and dropped without error; filtering
// upstream should already have kept it out.
func (u *MetadataUpdater) Handle(ctx context.Context, msg Message) error {
	var update MetadataUpdate
	if err := json.Unmarshal(msg.Body, &update); err != nil {
		slog.Error("Dropping undecodable metadata update", "message_id", msg.ID, "error", err)
		return nil
	}

	metadataType := msg.Attribute(AttrMetadataType)
	attribute, ok := MetadataAttributes[metadataType]
	if !ok {
		slog.Warn("Dropping message with unknown metadata type",
			"metadata_type", metadataType, "image", update.ID)
		return nil
	}

	if err := u.repo.UpdateImageAttribute(ctx, update.ID, attribute, update.Value); err != nil {
		slog.Error("Failed to update metadata",
			"image", update.ID, "attribute", attribute, "error", err)
		return nil
	}
	slog.Info("Updated metadata", "image", update.ID, "attribute", attribute)
	return nil
}
