package imagepipeline

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// Message is a routed notification envelope: a payload plus named attributes
// used for subscription filtering. Messages are ephemeral; they exist only in
// transit between the topic and a consumer. ReceiveCount is maintained by the
// hosting queue and drives the redelivery-then-dead-letter policy.
type Message struct {
	ID           string
	Body         []byte
	Attributes   map[string]string
	ReceiveCount int
}

// NewMessage marshals body as JSON and wraps it with the given attributes.
func NewMessage(body interface{}, attributes map[string]string) (Message, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return Message{}, fmt.Errorf("failed to marshal message body: %w", err)
	}
	return Message{
		ID:         uuid.NewString(),
		Body:       data,
		Attributes: attributes,
	}, nil
}

// Attribute returns the named attribute value, or "" when absent.
func (m Message) Attribute(name string) string {
	return m.Attributes[name]
}

// Notification is the outer envelope a topic wraps around a message body when
// delivering to a queue subscription. Queue consumers see this layer first
// and must decode Message again to recover the inner event.
type Notification struct {
	MessageID string `json:"MessageId"`
	Message   string `json:"Message"`
}

// Object store event names carried on storage event records.
const (
	objectCreatedPrefix = "ObjectCreated"
	objectRemovedPrefix = "ObjectRemoved"
)

// StorageEvent is the object-store notification payload: a batch of creation
// or removal records.
type StorageEvent struct {
	Records []StorageEventRecord `json:"Records"`
}

// StorageEventRecord is one object creation or removal notification.
type StorageEventRecord struct {
	EventName string `json:"eventName"`
	S3        struct {
		Object struct {
			Key string `json:"key"`
		} `json:"object"`
	} `json:"s3"`
}

// Removed reports whether the record notifies an object removal.
func (r StorageEventRecord) Removed() bool {
	return strings.HasPrefix(r.EventName, objectRemovedPrefix)
}

// ObjectKey returns the record's object key, percent-decoded and with "+"
// translated to space, as the store encodes keys in notifications.
func (r StorageEventRecord) ObjectKey() (string, error) {
	key, err := url.QueryUnescape(r.S3.Object.Key)
	if err != nil {
		return "", fmt.Errorf("failed to decode object key %q: %w", r.S3.Object.Key, err)
	}
	return key, nil
}

// NewStorageEventRecord builds a creation or removal record for the key,
// encoded the way the store encodes keys in notifications.
func NewStorageEventRecord(eventName, key string) StorageEventRecord {
	var rec StorageEventRecord
	rec.EventName = eventName
	rec.S3.Object.Key = url.QueryEscape(key)
	return rec
}

// NewObjectCreatedEvent builds the storage event published when objects are
// added to the store.
func NewObjectCreatedEvent(keys ...string) StorageEvent {
	var ev StorageEvent
	for _, key := range keys {
		ev.Records = append(ev.Records, NewStorageEventRecord(objectCreatedPrefix+":Put", key))
	}
	return ev
}

// NewObjectRemovedEvent builds the storage event published when objects are
// removed from the store.
func NewObjectRemovedEvent(keys ...string) StorageEvent {
	var ev StorageEvent
	for _, key := range keys {
		ev.Records = append(ev.Records, NewStorageEventRecord(objectRemovedPrefix+":Delete", key))
	}
	return ev
}

// UnwrapStorageEvent decodes the two envelope layers of a queued object-store
// notification: the outer topic Notification, then the inner StorageEvent
// carried in its Message field. A notification whose inner message is not a
// storage event yields an event with no records, not an error; unfiltered
// queue subscriptions receive every topic message and must skip the ones that
// are not theirs.
func UnwrapStorageEvent(body []byte) (*StorageEvent, error) {
	var outer Notification
	if err := json.Unmarshal(body, &outer); err != nil {
		return nil, fmt.Errorf("failed to decode notification envelope: %w", err)
	}
	var ev StorageEvent
	if err := json.Unmarshal([]byte(outer.Message), &ev); err != nil {
		return nil, fmt.Errorf("failed to decode storage event: %w", err)
	}
	return &ev, nil
}

// FileExtension returns the lowercased text after the last "." in the key,
// or "" when the key has no extension.
func FileExtension(key string) string {
	idx := strings.LastIndex(key, ".")
	if idx < 0 || idx == len(key)-1 {
		return ""
	}
	return strings.ToLower(key[idx+1:])
}

// MetadataUpdate is the payload routed to the MetadataUpdater, carried with a
// metadataType attribute naming which metadata field to set.
type MetadataUpdate struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

// StatusChange is the joint status+reason value of a status update.
type StatusChange struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// StatusUpdate is the payload routed to the StatusUpdater, carried with the
// statusType attribute.
type StatusUpdate struct {
	ID     string       `json:"id"`
	Update StatusChange `json:"update"`
}
