package http

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/fabworks/lasercut/internal/adapter/logger"
	"github.com/fabworks/lasercut/internal/interfaces"
)

// FileHandler serves blob downloads. Access control lives entirely in the
// signed token, so the endpoint itself is unauthenticated.
type FileHandler struct {
	store  interfaces.FileStore
	logger logger.Logger
}

func NewFileHandler(store interfaces.FileStore, logger logger.Logger) *FileHandler {
	return &FileHandler{
		store:  store,
		logger: logger,
	}
}

func (h *FileHandler) Download(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		respondError(w, "Missing download token", http.StatusBadRequest, nil)
		return
	}

	rc, name, err := h.store.OpenSigned(r.Context(), token)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)

	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Error("file_stream_failed", "Failed to stream file", RequestIDFromContext(r.Context()), map[string]interface{}{
			"file": name,
		}, err)
	}
}
