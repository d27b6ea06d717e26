package memory

import (
	"context"
	"sync"

	"github.com/tendant/image-pipeline/pkg/imagepipeline"
)

// Mailer is an in-memory implementation of the imagepipeline.Mailer
// interface that records every sent email. Intended for tests.
type Mailer struct {
	mu   sync.Mutex
	sent []imagepipeline.Email

	// FailWith, when set, is returned by Send instead of recording.
	FailWith error
}

// New creates a new capturing mailer.
func New() *Mailer {
	return &Mailer{}
}

// Send records the email.
func (m *Mailer) Send(ctx context.Context, email imagepipeline.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	m.sent = append(m.sent, email)
	return nil
}

// Sent returns a copy of every recorded email.
func (m *Mailer) Sent() []imagepipeline.Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]imagepipeline.Email, len(m.sent))
	copy(out, m.sent)
	return out
}
