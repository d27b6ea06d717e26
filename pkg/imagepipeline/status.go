package imagepipeline

import (
	"context"
	"encoding/json"
	"log/slog"
)

// StatusUpdater applies joint status+reason updates. Status updates are
// correctness-critical: any failure is returned to the caller so the hosting
// queue redelivers the message, unlike metadata updates.
type StatusUpdater struct {
	repo Repository
}

// NewStatusUpdater creates the status mutator.
func NewStatusUpdater(repo Repository) *StatusUpdater {
	return &StatusUpdater{repo: repo}
}

// Handle sets status and reason together on the record identified by the
// payload id.
func (u *StatusUpdater) Handle(ctx context.Context, msg Message) error {
	var update StatusUpdate
	if err := json.Unmarshal(msg.Body, &update); err != nil {
		return &EnvelopeError{MessageID: msg.ID, Err: err}
	}

	slog.Info("Updating status", "image", update.ID, "status", update.Update.Status)
	if err := u.repo.UpdateImageStatus(ctx, update.ID, update.Update.Status, update.Update.Reason); err != nil {
		slog.Error("Failed to update status", "image", update.ID, "error", err)
		return &RecordError{ImageName: update.ID, Op: "status", Err: err}
	}
	slog.Info("Status updated", "image", update.ID, "status", update.Update.Status)
	return nil
}
