package server

import (
	"encoding/json"
	"net/http"

	"Cadenza/core/library"
	"Cadenza/core/queue"
	"Cadenza/logger"
	"Cadenza/model"
	"Cadenza/repository"
	"Cadenza/storage"
)

// APIHandler bundles the application services the HTTP layer needs.
type APIHandler struct {
	queueManager *queue.Manager
	scanner      *library.Scanner
	playlistRepo repository.PlaylistRepository
	mediaIndex   repository.MediaIndexRepository
	artwork      *storage.ArtworkStore
}

func NewAPIHandler(manager *queue.Manager, scanner *library.Scanner, playlists repository.PlaylistRepository, index repository.MediaIndexRepository, artwork *storage.ArtworkStore) *APIHandler {
	return &APIHandler{
		queueManager: manager,
		scanner:      scanner,
		playlistRepo: playlists,
		mediaIndex:   index,
		artwork:      artwork,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", logger.ErrorField(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// resolveTracks maps media IDs to tracks via the current library
// snapshot. IDs not present in the library are dropped with a warning.
func (h *APIHandler) resolveTracks(mediaIDs []string) []model.Track {
	tracks := make([]model.Track, 0, len(mediaIDs))
	for _, id := range mediaIDs {
		track, ok := h.scanner.TrackByMediaID(id)
		if !ok {
			logger.Warn("unknown media id, skipping", logger.String("mediaId", id))
			continue
		}
		tracks = append(tracks, track)
	}
	return tracks
}
