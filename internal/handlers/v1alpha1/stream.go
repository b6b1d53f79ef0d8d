package v1alpha1

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/spaghetti-software-inc/ninjapivot/internal/handlers/v1alpha1/mappers"
	"github.com/spaghetti-software-inc/ninjapivot/internal/registry"
	"github.com/spaghetti-software-inc/ninjapivot/internal/service"
)

// StreamReportEvents handles (GET /api/v1/reports/{id}/events), the push
// strategy over server-sent events. Snapshot frames are emitted whenever
// the job changes, with comment heartbeats in between to keep the channel
// alive; the terminal frame is sent exactly once before the server closes
// the stream. A client disconnect releases the subscription and has no
// effect on job execution.
func (h *ServiceHandler) StreamReportEvents(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		renderError(w, r, http.StatusBadRequest, "invalid job id")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		renderError(w, r, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ch, cancel, err := h.watch(w, r, id)
	if err != nil {
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(h.heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		case snap, open := <-ch:
			if !open {
				return
			}
			payload, err := json.Marshal(mappers.SnapshotToApi(snap))
			if err != nil {
				zap.S().Named("stream_handler").Errorf("failed to marshal snapshot: %v", err)
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the API is anonymous and CORS-guarded at the router, accept any origin here
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamReportSocket handles (GET /api/v1/reports/{id}/ws), the same push
// strategy over a websocket for clients that cannot consume SSE. Frames
// carry the identical snapshot JSON; after the terminal frame the server
// closes the connection.
func (h *ServiceHandler) StreamReportSocket(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		renderError(w, r, http.StatusBadRequest, "invalid job id")
		return
	}

	ch, cancel, err := h.watch(w, r, id)
	if err != nil {
		return
	}
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Named("stream_handler").Warnf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// drain client frames so close/ping control messages are processed
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	heartbeat := time.NewTicker(h.heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case snap, open := <-ch:
			if !open {
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job reached a terminal state")
				_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(5*time.Second))
				return
			}
			if err := conn.WriteJSON(mappers.SnapshotToApi(snap)); err != nil {
				return
			}
		}
	}
}

// watch resolves the subscription or writes the error response.
func (h *ServiceHandler) watch(w http.ResponseWriter, r *http.Request, id uuid.UUID) (<-chan registry.Snapshot, func(), error) {
	ch, cancel, err := h.srv.WatchJob(r.Context(), id)
	if err != nil {
		var notFound *service.ErrJobNotFound
		if errors.As(err, &notFound) {
			renderError(w, r, http.StatusNotFound, err.Error())
		} else {
			zap.S().Named("stream_handler").Errorf("failed to watch job %s: %v", id, err)
			renderError(w, r, http.StatusInternalServerError, fmt.Sprintf("failed to watch job: %v", err))
		}
		return nil, nil, err
	}
	return ch, cancel, nil
}
