package imagepipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Notifier watches the record change feed and emails the owner when an
// image's review status changes. Notifications are best-effort: a gateway
// failure is logged and swallowed, never retried.
type Notifier struct {
	mailer Mailer
	from   string
	to     string
}

// NewNotifier creates the change notifier. The sender and recipient
// addresses are required; a missing address is a startup error.
func NewNotifier(mailer Mailer, from, to string) (*Notifier, error) {
	if from == "" || to == "" {
		return nil, errors.New("notifier requires both a from and a to email address")
	}
	return &Notifier{mailer: mailer, from: from, to: to}, nil
}

// HandleChange fires a notification when a MODIFY event carries a new status
// that differs from the old one, including the case where no old status was
// set. Creations and removals never notify, nor does a modification that
// leaves the status untouched.
func (n *Notifier) HandleChange(ctx context.Context, event ChangeEvent) error {
	if event.EventName != ChangeModify {
		return nil
	}
	oldStatus := event.Change.OldImage[StatusAttribute].S
	newStatus := event.Change.NewImage[StatusAttribute].S
	if newStatus == "" || newStatus == oldStatus {
		return nil
	}

	imageID := event.Change.NewImage[KeyAttribute].S
	reason := event.Change.NewImage[ReasonAttribute].S
	if reason == "" {
		reason = DefaultReason
	}

	email := Email{
		From:     n.from,
		To:       n.to,
		Subject:  fmt.Sprintf("Image Status Update: %s", newStatus),
		HTMLBody: statusEmailHTML(n.from, statusEmailMessage(imageID, newStatus, reason)),
	}
	if err := n.mailer.Send(ctx, email); err != nil {
		slog.Error("Failed to send status notification",
			"image", imageID, "status", newStatus, "error", err)
		return nil
	}
	slog.Info("Status notification sent", "image", imageID, "status", newStatus)
	return nil
}

func statusEmailMessage(imageID, status, reason string) string {
	return fmt.Sprintf("Image %s has been reviewed.<br/>Status: <b>%s</b>Reason: %s",
		imageID, status, reason)
}

func statusEmailHTML(from, message string) string {
	return fmt.Sprintf(`
    <html>
      <body>
        <h2>Status Update Notification</h2>
        <p><b>From:</b> %s</p>
        <hr />
        <div>%s</div>
      </body>
    </html>
  `, from, message)
}
