package imagepipeline

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrImageNotFound indicates a mutation targeted a record that does not exist
	ErrImageNotFound = errors.New("image record not found")

	// ErrObjectNotFound indicates an object was not found in the store
	ErrObjectNotFound = errors.New("object not found")

	// ErrUnknownAttribute indicates an update named an attribute outside the schema
	ErrUnknownAttribute = errors.New("unknown record attribute")

	// ErrQueueClosed indicates a send or receive on a closed queue
	ErrQueueClosed = errors.New("queue closed")
)

// ValidationError indicates an object failed ingestion validation. It is
// fatal to the current message and drives the redelivery-then-quarantine path.
type ValidationError struct {
	Key       string
	Extension string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid file extension %q for object %s", e.Extension, e.Key)
}

// RecordError represents a failed table operation for a record.
type RecordError struct {
	ImageName string
	Op        string
	Err       error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record operation %s failed for image %s: %v", e.Op, e.ImageName, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// EnvelopeError represents a message body that could not be decoded.
type EnvelopeError struct {
	MessageID string
	Err       error
}

func (e *EnvelopeError) Error() string {
	return fmt.Sprintf("failed to decode envelope for message %s: %v", e.MessageID, e.Err)
}

func (e *EnvelopeError) Unwrap() error {
	return e.Err
}
