package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/image-pipeline/pkg/imagepipeline"
)

// UploadRequest is the request body for announcing an uploaded object.
type UploadRequest struct {
	Key string `json:"key"`
}

// MetadataRequest is the request body for a metadata update.
type MetadataRequest struct {
	MetadataType string `json:"metadataType"`
	Value        string `json:"value"`
}

// StatusRequest is the request body for a status update.
type StatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// PublishResponse acknowledges a message handed to the topic. Processing is
// asynchronous; the record mutates once consumers drain the message.
type PublishResponse struct {
	Published bool   `json:"published"`
	Key       string `json:"key"`
}

// ImageHandler exposes the pipeline over HTTP: it publishes events to the
// topic and reads records back from the table.
type ImageHandler struct {
	pipeline *imagepipeline.Pipeline
}

// NewImageHandler creates a new image handler.
func NewImageHandler(pipeline *imagepipeline.Pipeline) *ImageHandler {
	return &ImageHandler{pipeline: pipeline}
}

// Routes returns the routes for images and object events.
func (h *ImageHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/events/object-created", h.ObjectCreated)
	r.Post("/events/object-removed", h.ObjectRemoved)

	r.Get("/images/{imageName}", h.GetImage)
	r.Post("/images/{imageName}/metadata", h.UpdateMetadata)
	r.Post("/images/{imageName}/status", h.UpdateStatus)

	return r
}

// ObjectCreated publishes an object-creation notification, as the object
// event source would after an upload.
func (h *ImageHandler) ObjectCreated(w http.ResponseWriter, r *http.Request) {
	var req UploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Key == "" {
		http.Error(w, "Object key is required", http.StatusBadRequest)
		return
	}

	if err := h.pipeline.PublishObjectCreated(r.Context(), req.Key); err != nil {
		slog.Error("Failed to publish object creation", "key", req.Key, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, PublishResponse{Published: true, Key: req.Key})
}

// ObjectRemoved publishes an object-removal notification.
func (h *ImageHandler) ObjectRemoved(w http.ResponseWriter, r *http.Request) {
	var req UploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Key == "" {
		http.Error(w, "Object key is required", http.StatusBadRequest)
		return
	}

	if err := h.pipeline.PublishObjectRemoved(r.Context(), req.Key); err != nil {
		slog.Error("Failed to publish object removal", "key", req.Key, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, PublishResponse{Published: true, Key: req.Key})
}

// GetImage retrieves an image record by name.
func (h *ImageHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	imageName := chi.URLParam(r, "imageName")

	record, err := h.pipeline.Repository().GetImage(r.Context(), imageName)
	if err != nil {
		if errors.Is(err, imagepipeline.ErrImageNotFound) {
			http.Error(w, "Image not found", http.StatusNotFound)
			return
		}
		slog.Error("Failed to get image record", "image", imageName, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	render.JSON(w, r, record)
}

// UpdateMetadata publishes a single-attribute metadata update.
func (h *ImageHandler) UpdateMetadata(w http.ResponseWriter, r *http.Request) {
	imageName := chi.URLParam(r, "imageName")

	var req MetadataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if _, ok := imagepipeline.MetadataAttributes[req.MetadataType]; !ok {
		http.Error(w, "Unknown metadata type", http.StatusBadRequest)
		return
	}

	err := h.pipeline.PublishMetadataUpdate(r.Context(), req.MetadataType, imagepipeline.MetadataUpdate{
		ID:    imageName,
		Value: req.Value,
	})
	if err != nil {
		slog.Error("Failed to publish metadata update", "image", imageName, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, PublishResponse{Published: true, Key: imageName})
}

// UpdateStatus publishes a joint status+reason update.
func (h *ImageHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	imageName := chi.URLParam(r, "imageName")

	var req StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Status == "" {
		http.Error(w, "Status is required", http.StatusBadRequest)
		return
	}

	err := h.pipeline.PublishStatusUpdate(r.Context(), imagepipeline.StatusUpdate{
		ID: imageName,
		Update: imagepipeline.StatusChange{
			Status: req.Status,
			Reason: req.Reason,
		},
	})
	if err != nil {
		slog.Error("Failed to publish status update", "image", imageName, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, PublishResponse{Published: true, Key: imageName})
}
