package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/fileharbor/apiserver/internal/services"
	"github.com/fileharbor/apiserver/types"
)

const (
	maxUploadBytes     = 10 << 20
	maxMultipartMemory = 32 << 20
	formFieldFile      = "file"
)

var allowedDocumentTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	"application/vnd.ms-powerpoint":                                     true,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": true,
	"text/plain": true,
	"text/rtf":   true,
}

// FileHandler provides upload and listing endpoints.
type FileHandler struct {
	fileService *services.FileService
	logger      zerolog.Logger
}

// NewFileHandler constructs a FileHandler with the provided dependencies.
func NewFileHandler(fileService *services.FileService, logger zerolog.Logger) *FileHandler {
	return &FileHandler{
		fileService: fileService,
		logger:      logger,
	}
}

// FileRouter registers file routes on the given router. Every route
// requires authentication; /all additionally requires the ADMIN role.
func FileRouter(r chi.Router, handler *FileHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Use(authMiddleware)
	r.Post("/upload", handler.Upload)
	r.Get("/me", handler.ListMine)
	r.With(RequireRole(types.RoleAdmin)).Get("/all", handler.ListAll)
}

// Upload accepts a multipart upload, validates type and size, and
// records it. Validation failures return 400 before any store or
// object-storage call is made.
func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile(formFieldFile)
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	mimeType := strings.TrimSpace(header.Header.Get("Content-Type"))
	if !isAllowedFileType(mimeType) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("file type %s is not allowed", mimeType))
		return
	}

	data, err := readFileLimited(file, maxUploadBytes)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.fileService.Upload(r.Context(), types.File{
		UserID:       claims.Subject,
		OriginalName: header.Filename,
		MimeType:     mimeType,
		Size:         int64(len(data)),
	}, bytes.NewReader(data))
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", claims.Subject).Msg("failed to upload file")
		writeError(w, http.StatusInternalServerError, "failed to upload file")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// ListMine returns the caller's files, newest upload first.
func (h *FileHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	files, err := h.fileService.ListByUser(r.Context(), claims.Subject)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", claims.Subject).Msg("failed to list files")
		writeError(w, http.StatusInternalServerError, "failed to list files")
		return
	}

	writeJSON(w, http.StatusOK, files)
}

// ListAll returns every file, newest upload first. ADMIN only.
func (h *FileHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	files, err := h.fileService.ListAll(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list files")
		writeError(w, http.StatusInternalServerError, "failed to list files")
		return
	}

	writeJSON(w, http.StatusOK, files)
}

// isAllowedFileType admits image, audio, and video content plus a fixed
// set of document types.
func isAllowedFileType(mimeType string) bool {
	if strings.HasPrefix(mimeType, "image/") ||
		strings.HasPrefix(mimeType, "audio/") ||
		strings.HasPrefix(mimeType, "video/") {
		return true
	}
	return allowedDocumentTypes[mimeType]
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errors.New("uploaded file too large")
	}
	return data, nil
}
