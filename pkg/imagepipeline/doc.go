// Package imagepipeline provides an event-driven pipeline for ingesting,
// validating, and tracking uploaded image objects.
//
// Object-store notifications are published to a Topic that fans them out to
// subscribers, each optionally filtered by message attributes. An Ingestor
// validates new objects and records them; invalid objects are retried up to a
// bounded receive count, quarantined on a dead-letter queue, and deleted from
// the store by a Reaper. Metadata and status mutations arrive as filtered
// topic messages, and a Notifier watches the record change feed and emails the
// owner when an image's review status changes.
//
// Implementations of the durable table (memory, Postgres, DynamoDB), the
// object store (memory, S3), and the mail gateway (memory, SES) are provided
// under subpackages. Components receive their collaborators at construction,
// so any of them can be substituted in tests.
package imagepipeline
