package handler

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/api/response"
	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/service"
)

// UploadHandler handles file upload endpoints
type UploadHandler struct {
	uploadService *service.UploadService
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(uploadService *service.UploadService) *UploadHandler {
	return &UploadHandler{uploadService: uploadService}
}

// UploadSQLite stores an uploaded SQLite file and registers it as a
// connection, so the file is immediately queryable like any other source
func (h *UploadHandler) UploadSQLite(w http.ResponseWriter, r *http.Request) {
	// Limit upload to 100MB
	r.ParseMultipartForm(100 << 20)

	file, header, err := r.FormFile("file")
	if err != nil {
		response.BadRequest(w, "no file uploaded")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	allowedExts := map[string]bool{".db": true, ".sqlite": true, ".sqlite3": true, ".db3": true}
	if !allowedExts[ext] {
		response.BadRequest(w, "invalid file type. Allowed: .db, .sqlite, .sqlite3, .db3")
		return
	}

	info, err := h.uploadService.SaveSQLite(r.Context(), header.Filename, file)
	if err != nil {
		if errors.Is(err, service.ErrNotSQLite) {
			response.BadRequest(w, err.Error())
			return
		}
		response.InternalError(w, "failed to save file")
		return
	}

	response.Created(w, info)
}
