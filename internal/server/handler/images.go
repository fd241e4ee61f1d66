package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/junkhq/whalebot/internal/images"
)

// maxImageUpload bounds uploaded image size (Telegram caps photos at 10 MB).
const maxImageUpload = 10 << 20

// ImagesHandler manages the alert image library over HTTP.
type ImagesHandler struct {
	library *images.Library
	logger  *slog.Logger
}

// NewImagesHandler creates an ImagesHandler. library may be nil when the
// image library is disabled; the endpoints then return 503.
func NewImagesHandler(library *images.Library, logger *slog.Logger) *ImagesHandler {
	return &ImagesHandler{library: library, logger: logger}
}

// List returns the filenames in the image library.
// GET /api/images
func (h *ImagesHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.library == nil {
		writeError(w, http.StatusServiceUnavailable, "image library is not enabled")
		return
	}

	names, err := h.library.List(r.Context())
	if err != nil {
		h.logger.Error("list images failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list images")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"images": names,
		"count":  len(names),
	})
}

// Upload adds an image to the library from a multipart form field "image".
// POST /api/images
func (h *ImagesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.library == nil {
		writeError(w, http.StatusServiceUnavailable, "image library is not enabled")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImageUpload)
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "expected multipart field \"image\": "+err.Error())
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload: "+err.Error())
		return
	}

	if err := h.library.Add(r.Context(), header.Filename, data); err != nil {
		h.logger.Error("image upload failed",
			slog.String("filename", header.Filename),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"uploaded": header.Filename})
}

// Delete removes an image from the library.
// DELETE /api/images/{name}
func (h *ImagesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h.library == nil {
		writeError(w, http.StatusServiceUnavailable, "image library is not enabled")
		return
	}

	name := r.PathValue("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "image name is required")
		return
	}

	if err := h.library.Remove(r.Context(), name); err != nil {
		h.logger.Error("image delete failed",
			slog.String("filename", name),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to delete image")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"deleted": name})
}
