package api

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/starford/mldataset/internal/checksum"
	"github.com/starford/mldataset/internal/models"
	"github.com/starford/mldataset/internal/thumbnail"
)

type uploadResponse struct {
	Category string `json:"category"`
	Name     string `json:"name"`
	Size     int    `json:"size"`
	Checksum string `json:"checksum"`
}

// UploadItem handles POST /api/categories/{name}/items.
//
// Two body forms are accepted:
//   - multipart/form-data with the payload in field "file" (its filename is the item name);
//   - a raw image body, named by the "name" query parameter or, when absent,
//     stored as a capture with a generated name.
//
// The category is created when missing and an item with the same name is
// replaced.
func (h *Handler) UploadItem(w http.ResponseWriter, r *http.Request) {
	category := pathParam(r, "name")
	r.Body = http.MaxBytesReader(w, r.Body, models.MaxItemSize)

	var item models.ImageFile
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(models.MaxItemSize); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
			return
		}
		item = models.ImageFile{FileName: header.Filename, Content: data}
	} else {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("file too large or unreadable body"))
			return
		}
		if len(data) == 0 {
			writeJSON(w, http.StatusBadRequest, errorBody("empty body"))
			return
		}
		if name := r.URL.Query().Get("name"); name != "" {
			item = models.ImageFile{FileName: name, Content: data}
		} else {
			item = models.NewCapture(data, extensionFor(mediaType, data))
		}
	}

	if err := h.store.AddItem(item, category); err != nil {
		storeError(w, "upload item failed", err,
			slog.String("category", category),
			slog.String("item", item.Name()))
		return
	}

	writeJSON(w, http.StatusCreated, uploadResponse{
		Category: category,
		Name:     item.Name(),
		Size:     len(item.Content),
		Checksum: checksum.Sum(item.Content),
	})
}

// ServeItem handles GET /api/categories/{name}/items/{item}.
func (h *Handler) ServeItem(w http.ResponseWriter, r *http.Request) {
	category := pathParam(r, "name")
	name := pathParam(r, "item")

	data, err := h.store.ReadItem(category, name)
	if err != nil {
		storeError(w, "read item failed", err,
			slog.String("category", category),
			slog.String("item", name))
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("ETag", checksum.ETag(data))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ServeThumbnail handles GET /api/categories/{name}/items/{item}/thumbnail.
// The optional "size" query parameter bounds the longest edge in pixels.
func (h *Handler) ServeThumbnail(w http.ResponseWriter, r *http.Request) {
	category := pathParam(r, "name")
	name := pathParam(r, "item")

	size := thumbnail.DefaultSize
	if v := r.URL.Query().Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > thumbnail.MaxSize {
			writeJSON(w, http.StatusBadRequest, errorBody("size must be between 1 and "+strconv.Itoa(thumbnail.MaxSize)))
			return
		}
		size = n
	}

	data, err := h.store.ReadItem(category, name)
	if err != nil {
		storeError(w, "read item failed", err,
			slog.String("category", category),
			slog.String("item", name))
		return
	}

	out, err := thumbnail.Render(data, size)
	if err != nil {
		switch {
		case errors.Is(err, thumbnail.ErrUnsupported):
			writeJSON(w, http.StatusUnsupportedMediaType, errorBody("item is not a decodable image"))
			return
		case errors.Is(err, thumbnail.ErrTooLarge):
			writeJSON(w, http.StatusUnprocessableEntity, errorBody("image dimensions too large for a thumbnail"))
			return
		}
		storeError(w, "render thumbnail failed", err,
			slog.String("category", category),
			slog.String("item", name))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(out)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

// extensionFor picks a file extension from the declared type, falling back to
// content sniffing.
func extensionFor(mediaType string, data []byte) string {
	if ext := models.CaptureExtension(mediaType); ext != "" {
		return ext
	}
	sniffed, _, err := mime.ParseMediaType(http.DetectContentType(data))
	if err != nil {
		return ""
	}
	return models.CaptureExtension(sniffed)
}
