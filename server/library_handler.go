package server

import (
	"io"
	"net/http"
	"strings"

	"Cadenza/core/library"
	"Cadenza/core/utils"
	"Cadenza/logger"

	"github.com/gorilla/mux"
)

func (h *APIHandler) GetTracksHandler(w http.ResponseWriter, r *http.Request) {
	snapshot := h.scanner.Current()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tracks":    snapshot.Tracks,
		"version":   snapshot.Version,
		"updatedAt": snapshot.UpdatedAt,
	})
}

func (h *APIHandler) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	var outcome library.RefreshOutcome
	if r.URL.Query().Get("force") == "true" {
		outcome = h.scanner.ForceRefresh(r.Context())
	} else {
		outcome = h.scanner.LoadOrRefresh(r.Context())
	}
	resp := map[string]interface{}{
		"status":     string(outcome.Status),
		"trackCount": outcome.TrackCount,
		"durationMs": outcome.Duration.Milliseconds(),
	}
	if outcome.Err != nil {
		resp["error"] = outcome.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *APIHandler) OpenFileHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URI string `json:"uri"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.URI == "" {
		writeError(w, http.StatusBadRequest, "uri is required")
		return
	}
	track, err := h.scanner.OpenFile(r.Context(), req.URI)
	if err != nil {
		logger.Error("failed to open file", logger.String("uri", req.URI), logger.ErrorField(err))
		writeError(w, http.StatusUnprocessableEntity, "could not read audio file")
		return
	}
	writeJSON(w, http.StatusOK, track)
}

// SaveArtworkHandler stores a new custom artwork for a track, either
// uploaded as multipart form data or fetched from a URL given in a
// JSON body. The image goes to object storage; the override mapping
// makes it stick across rescans.
func (h *APIHandler) SaveArtworkHandler(w http.ResponseWriter, r *http.Request) {
	mediaID := mux.Vars(r)["media_id"]
	if _, ok := h.scanner.TrackByMediaID(mediaID); !ok {
		writeError(w, http.StatusNotFound, "unknown track")
		return
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		h.saveArtworkFromURL(w, r, mediaID)
		return
	}

	if err := r.ParseMultipartForm(16 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("artwork")
	if err != nil {
		writeError(w, http.StatusBadRequest, "artwork file is required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		writeError(w, http.StatusUnsupportedMediaType, "artwork must be an image")
		return
	}

	ref, err := h.artwork.SaveArtwork(r.Context(), mediaID, file, header.Size, contentType)
	if err != nil {
		logger.Error("failed to store artwork", logger.String("mediaId", mediaID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "failed to store artwork")
		return
	}
	if err := h.scanner.SaveCustomArtwork(r.Context(), mediaID, ref); err != nil {
		logger.Error("failed to record artwork override", logger.String("mediaId", mediaID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "failed to save artwork override")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"artworkRef": ref})
}

func (h *APIHandler) saveArtworkFromURL(w http.ResponseWriter, r *http.Request, mediaID string) {
	var req struct {
		URL string `json:"url"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	body, size, contentType, err := utils.FetchURL(r.Context(), req.URL)
	if err != nil {
		logger.Error("failed to fetch artwork", logger.String("url", req.URL), logger.ErrorField(err))
		writeError(w, http.StatusBadGateway, "failed to fetch artwork from url")
		return
	}
	defer body.Close()
	if !strings.HasPrefix(contentType, "image/") {
		writeError(w, http.StatusUnsupportedMediaType, "artwork must be an image")
		return
	}
	ref, err := h.artwork.SaveArtwork(r.Context(), mediaID, body, size, contentType)
	if err != nil {
		logger.Error("failed to store artwork", logger.String("mediaId", mediaID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "failed to store artwork")
		return
	}
	if err := h.scanner.SaveCustomArtwork(r.Context(), mediaID, ref); err != nil {
		logger.Error("failed to record artwork override", logger.String("mediaId", mediaID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "failed to save artwork override")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"artworkRef": ref})
}

func (h *APIHandler) ServeArtworkHandler(w http.ResponseWriter, r *http.Request) {
	ref := r.URL.Path
	obj, err := h.artwork.OpenArtwork(r.Context(), ref)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer obj.Close()

	w.Header().Set("Cache-Control", "public, max-age=86400")
	if _, err := io.Copy(w, obj); err != nil {
		logger.Warn("artwork stream interrupted", logger.String("ref", ref), logger.ErrorField(err))
	}
}

// MediaChangedHandler lets an external indexer signal that the media
// index changed; the scanner picks it up through its subscription.
func (h *APIHandler) MediaChangedHandler(w http.ResponseWriter, r *http.Request) {
	h.mediaIndex.NotifyChanged()
	w.WriteHeader(http.StatusAccepted)
}
