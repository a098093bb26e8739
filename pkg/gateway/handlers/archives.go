package handlers

import (
	"net/http"

	"github.com/restockai/voiceline/pkg/agent"
	"github.com/restockai/voiceline/pkg/agent/archive"
	"github.com/restockai/voiceline/pkg/gateway/mw"
)

// ArchivesHandler lists stored call artifacts.
type ArchivesHandler struct {
	Archive *archive.Writer
}

func (h ArchivesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	if r.Method != http.MethodGet {
		methodNotAllowed(w, reqID)
		return
	}
	files, err := h.Archive.List()
	if err != nil {
		writeErrorJSON(w, reqID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(files),
		"files": files,
	})
}

// ArchiveFileHandler serves one stored artifact as plain text.
type ArchiveFileHandler struct {
	Archive *archive.Writer
}

func (h ArchiveFileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	if r.Method != http.MethodGet {
		methodNotAllowed(w, reqID)
		return
	}
	name := r.PathValue("name")
	path, ok := h.Archive.Open(name)
	if !ok {
		writeErrorJSON(w, reqID, agent.NewNotFoundError(name))
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	http.ServeFile(w, r, path)
}
