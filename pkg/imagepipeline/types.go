package imagepipeline

// ImageStatus is the domain type for image review states.
type ImageStatus string

// Image status constants (typed).
const (
	StatusPending  ImageStatus = "PENDING"
	StatusApproved ImageStatus = "APPROVED"
	StatusRejected ImageStatus = "REJECTED"
)

// Message attribute names used for subscription filtering.
const (
	AttrMetadataType = "metadataType"
	AttrStatusType   = "statusType"
)

// Metadata type values accepted on the metadataType attribute.
const (
	MetadataCaption      = "Caption"
	MetadataDate         = "Date"
	MetadataPhotographer = "Photographer"
)

// StatusUpdateType is the only value accepted on the statusType attribute.
const StatusUpdateType = "StatusUpdate"

// Table attribute names. KeyAttribute is the record's primary key.
const (
	KeyAttribute          = "imageName"
	CaptionAttribute      = "caption"
	DateAttribute         = "capturedDate"
	PhotographerAttribute = "photographer"
	StatusAttribute       = "status"
	ReasonAttribute       = "reason"
)

// MetadataAttributes maps routed metadata types to table attribute names.
// A metadata type outside this map is dropped by the MetadataUpdater.
var MetadataAttributes = map[string]string{
	MetadataCaption:      CaptionAttribute,
	MetadataDate:         DateAttribute,
	MetadataPhotographer: PhotographerAttribute,
}

// allowedExtensions are the object file extensions accepted by ingestion.
var allowedExtensions = map[string]bool{
	"jpeg": true,
	"png":  true,
}

// AllowedExtension reports whether ext (lowercase, without the dot) is a
// valid image extension.
func AllowedExtension(ext string) bool {
	return allowedExtensions[ext]
}

// DefaultReason is used in notifications when a status update carries no reason.
const DefaultReason = "No reason provided"

// ImageRecord is the durable table record for one uploaded object. ImageName
// is the object key and is immutable once the record is created; all other
// attributes are optional and independently settable, except Status and
// Reason which are always written together.
type ImageRecord struct {
	ImageName    string `json:"imageName"`
	Caption      string `json:"caption,omitempty"`
	CapturedDate string `json:"capturedDate,omitempty"`
	Photographer string `json:"photographer,omitempty"`
	Status       string `json:"status,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

// AttrValue is a string attribute value in the change-feed wire shape.
type AttrValue struct {
	S string `json:"S"`
}

// Change event names observed on the record change feed.
const (
	ChangeInsert = "INSERT"
	ChangeModify = "MODIFY"
	ChangeRemove = "REMOVE"
)

// StreamImages carries the before and after images of a changed record,
// attribute values wrapped as {S: string}.
type StreamImages struct {
	NewImage map[string]AttrValue `json:"NewImage,omitempty"`
	OldImage map[string]AttrValue `json:"OldImage,omitempty"`
}

// ChangeEvent is one ordered-per-key mutation observed on the record change
// feed. Ephemeral; it exists only in transit to the Notifier.
type ChangeEvent struct {
	EventName string       `json:"eventName"`
	Change    StreamImages `json:"dynamodb"`
}

// Attributes returns the record in change-feed image form. Unset fields are
// absent from the map, not present as empty strings.
func (r *ImageRecord) Attributes() map[string]AttrValue {
	img := map[string]AttrValue{
		KeyAttribute: {S: r.ImageName},
	}
	set := func(name, value string) {
		if value != "" {
			img[name] = AttrValue{S: value}
		}
	}
	set(CaptionAttribute, r.Caption)
	set(DateAttribute, r.CapturedDate)
	set(PhotographerAttribute, r.Photographer)
	set(StatusAttribute, r.Status)
	set(ReasonAttribute, r.Reason)
	return img
}
