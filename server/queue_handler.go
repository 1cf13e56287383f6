package server

import (
	"net/http"
	"strconv"

	"Cadenza/logger"
	"Cadenza/model"

	"github.com/gorilla/mux"
)

type setQueueRequest struct {
	MediaIDs        []string `json:"mediaIds"`
	StartIndex      int      `json:"startIndex"`
	Play            bool     `json:"play"`
	StartPositionMs int64    `json:"startPositionMs"`
	SourceID        string   `json:"sourceId"`
}

type enqueueRequest struct {
	MediaIDs        []string `json:"mediaIds"`
	SourceID        string   `json:"sourceId"`
	AllowDuplicates bool     `json:"allowDuplicates"`
}

type moveRequest struct {
	FromIndex int `json:"fromIndex"`
	ToIndex   int `json:"toIndex"`
}

type positionRequest struct {
	PositionMs int64 `json:"positionMs"`
	Playing    bool  `json:"playing"`
}

func (h *APIHandler) GetQueueHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.queueManager.Snapshot())
}

func (h *APIHandler) GetVisibleQueueHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.queueManager.VisibleQueue())
}

func (h *APIHandler) GetQueueStatsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.queueManager.Stats())
}

func (h *APIHandler) SetQueueHandler(w http.ResponseWriter, r *http.Request) {
	var req setQueueRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	tracks := h.resolveTracks(req.MediaIDs)
	if err := h.queueManager.SetQueue(r.Context(), tracks, req.StartIndex, req.Play, req.StartPositionMs, req.SourceID); err != nil {
		logger.Error("failed to set queue", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "failed to load queue into player")
		return
	}
	writeJSON(w, http.StatusOK, h.queueManager.Snapshot())
}

func (h *APIHandler) PlayNextHandler(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.queueManager.PlayNext(h.resolveTracks(req.MediaIDs), req.SourceID)
	writeJSON(w, http.StatusOK, h.queueManager.Snapshot())
}

func (h *APIHandler) AddToUserQueueHandler(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.queueManager.AddToUserQueue(h.resolveTracks(req.MediaIDs), req.SourceID, req.AllowDuplicates)
	writeJSON(w, http.StatusOK, h.queueManager.Snapshot())
}

func (h *APIHandler) MoveHandler(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.queueManager.Move(req.FromIndex, req.ToIndex); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.queueManager.Snapshot())
}

func (h *APIHandler) RemoveByUIDHandler(w http.ResponseWriter, r *http.Request) {
	uid := mux.Vars(r)["uid"]
	h.queueManager.RemoveByUID(uid)
	writeJSON(w, http.StatusOK, h.queueManager.Snapshot())
}

func (h *APIHandler) RemoveAtHandler(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid index")
		return
	}
	h.queueManager.RemoveAt(index)
	writeJSON(w, http.StatusOK, h.queueManager.Snapshot())
}

func (h *APIHandler) ClearTransientHandler(w http.ResponseWriter, r *http.Request) {
	keepCurrent := r.URL.Query().Get("keepCurrent") != "false"
	h.queueManager.ClearTransientQueues(keepCurrent)
	writeJSON(w, http.StatusOK, h.queueManager.Snapshot())
}

func (h *APIHandler) ClearQueueHandler(w http.ResponseWriter, r *http.Request) {
	keepCurrent := r.URL.Query().Get("keepCurrent") == "true"
	h.queueManager.ClearQueue(keepCurrent)
	writeJSON(w, http.StatusOK, h.queueManager.Snapshot())
}

func (h *APIHandler) SetShuffleHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	h.queueManager.SetShuffle(req.Enabled)
	writeJSON(w, http.StatusOK, h.queueManager.Snapshot())
}

func (h *APIHandler) SetRepeatHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	mode := model.RepeatMode(req.Mode)
	switch mode {
	case model.RepeatOff, model.RepeatOne, model.RepeatAll:
	default:
		writeError(w, http.StatusBadRequest, "invalid repeat mode")
		return
	}
	h.queueManager.SetRepeat(mode)
	writeJSON(w, http.StatusOK, h.queueManager.Snapshot())
}

func (h *APIHandler) NextHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.queueManager.Next(r.Context()); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.queueManager.Snapshot())
}

func (h *APIHandler) PreviousHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.queueManager.Previous(r.Context()); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.queueManager.Snapshot())
}

// TrackChangedHandler is the player's report that it advanced on its
// own (gapless transition, remote control). The queue re-syncs to it.
func (h *APIHandler) TrackChangedHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MediaID string `json:"mediaId"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	h.queueManager.OnTrackChanged(req.MediaID)
	writeJSON(w, http.StatusOK, h.queueManager.Snapshot())
}

func (h *APIHandler) PositionHandler(w http.ResponseWriter, r *http.Request) {
	var req positionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.queueManager.UpdatePlayback(req.PositionMs, req.Playing)
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) RemoveSourceHandler(w http.ResponseWriter, r *http.Request) {
	sourceID := mux.Vars(r)["source_id"]
	h.queueManager.RemoveItemsFromSource(sourceID)
	writeJSON(w, http.StatusOK, h.queueManager.Snapshot())
}
