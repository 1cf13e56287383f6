package server

import (
	"errors"
	"net/http"

	"Cadenza/logger"
	"Cadenza/repository"

	"github.com/gorilla/mux"
)

func (h *APIHandler) ListPlaylistsHandler(w http.ResponseWriter, r *http.Request) {
	playlists, err := h.playlistRepo.ListPlaylists()
	if err != nil {
		logger.Error("failed to list playlists", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "failed to list playlists")
		return
	}
	writeJSON(w, http.StatusOK, playlists)
}

func (h *APIHandler) CreatePlaylistHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	playlist, err := h.playlistRepo.CreatePlaylist(req.Name)
	if err != nil {
		logger.Error("failed to create playlist", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "failed to create playlist")
		return
	}
	writeJSON(w, http.StatusCreated, playlist)
}

func (h *APIHandler) GetPlaylistHandler(w http.ResponseWriter, r *http.Request) {
	playlist, err := h.playlistRepo.GetPlaylist(mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, repository.ErrPlaylistNotFound) {
			writeError(w, http.StatusNotFound, "playlist not found")
			return
		}
		logger.Error("failed to load playlist", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "failed to load playlist")
		return
	}
	writeJSON(w, http.StatusOK, playlist)
}

func (h *APIHandler) DeletePlaylistHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.playlistRepo.DeletePlaylist(id); err != nil {
		logger.Error("failed to delete playlist", logger.String("id", id), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "failed to delete playlist")
		return
	}
	// Queued items that came from this playlist lose their source.
	h.queueManager.RemoveItemsFromSource(id)
	w.WriteHeader(http.StatusNoContent)
}

// ReplacePlaylistTracksHandler rewrites a playlist's contents and
// reconciles any queue items that came from it.
func (h *APIHandler) ReplacePlaylistTracksHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req struct {
		MediaIDs []string `json:"mediaIds"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.playlistRepo.ReplaceTracks(id, req.MediaIDs); err != nil {
		if errors.Is(err, repository.ErrPlaylistNotFound) {
			writeError(w, http.StatusNotFound, "playlist not found")
			return
		}
		logger.Error("failed to replace playlist tracks", logger.String("id", id), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "failed to update playlist")
		return
	}
	h.queueManager.UpdateSourcePlaylist(h.resolveTracks(req.MediaIDs), id, true)
	writeJSON(w, http.StatusOK, h.queueManager.Snapshot())
}

func (h *APIHandler) PlayPlaylistHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req struct {
		StartIndex int  `json:"startIndex"`
		Play       bool `json:"play"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	playlist, err := h.playlistRepo.GetPlaylist(id)
	if err != nil {
		if errors.Is(err, repository.ErrPlaylistNotFound) {
			writeError(w, http.StatusNotFound, "playlist not found")
			return
		}
		logger.Error("failed to load playlist", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "failed to load playlist")
		return
	}

	mediaIDs := make([]string, 0, len(playlist.Tracks))
	for _, t := range playlist.Tracks {
		mediaIDs = append(mediaIDs, t.MediaID)
	}
	tracks := h.resolveTracks(mediaIDs)
	if len(tracks) == 0 {
		writeError(w, http.StatusConflict, "playlist has no playable tracks")
		return
	}
	if err := h.queueManager.SetQueue(r.Context(), tracks, req.StartIndex, req.Play, 0, id); err != nil {
		logger.Error("failed to start playlist", logger.String("id", id), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "failed to load queue into player")
		return
	}
	writeJSON(w, http.StatusOK, h.queueManager.Snapshot())
}
