package api

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/siteguide/siteguide/internal/log"
)

// maxUploadBytes bounds an uploaded document.
const maxUploadBytes = 20 << 20 // 20 MiB

// UploadHandler receives documents into the documents directory, where the
// ingest command picks them up. It never writes to the index itself.
type UploadHandler struct {
	dir    string
	logger log.Logger
}

// NewUploadHandler creates a new upload handler storing files under dir.
func NewUploadHandler(dir string, logger log.Logger) *UploadHandler {
	return &UploadHandler{dir: dir, logger: logger}
}

// RegisterRoutes registers upload routes on the given mux.
func (h *UploadHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /upload", h.handleUpload)
}

// UploadResponse is the /upload response body.
type UploadResponse struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// handleUpload stores one PDF from a multipart form's "file" field.
func (h *UploadHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "multipart form with a file field is required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing_file", "file field is required")
		return
	}
	defer func() {
		_ = file.Close()
	}()

	// Base strips any client-supplied directory components.
	name := filepath.Base(header.Filename)
	if name == "." || name == string(filepath.Separator) ||
		strings.ToLower(filepath.Ext(name)) != ".pdf" {
		writeError(w, http.StatusBadRequest, "invalid_file", "a single PDF file is required")
		return
	}

	if err := os.MkdirAll(h.dir, 0o750); err != nil {
		h.logger.Error("creating documents directory", "dir", h.dir, "error", err)
		writeError(w, http.StatusInternalServerError, "upload_failed", "failed to store the file")
		return
	}

	size, err := h.save(name, file)
	if err != nil {
		h.logger.Error("storing upload", "filename", name, "error", err)
		writeError(w, http.StatusInternalServerError, "upload_failed", "failed to store the file")
		return
	}

	h.logger.Info("document uploaded", "filename", name, "size", size,
		"request_id", RequestID(r.Context()))
	writeJSON(w, http.StatusCreated, UploadResponse{Filename: name, Size: size})
}

// save writes the upload under the documents directory through os.Root, so
// even a hostile filename cannot escape it.
func (h *UploadHandler) save(name string, src io.Reader) (int64, error) {
	root, err := os.OpenRoot(h.dir)
	if err != nil {
		return 0, fmt.Errorf("opening documents directory: %w", err)
	}
	defer func() {
		_ = root.Close()
	}()

	dst, err := root.Create(name)
	if err != nil {
		return 0, fmt.Errorf("creating file: %w", err)
	}
	size, err := io.Copy(dst, src)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, fmt.Errorf("writing file: %w", err)
	}
	return size, nil
}
