// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/okian/onetoone/internal/domain/model"
	"github.com/okian/onetoone/pkg/logger"
)

const defaultKeepalive = 15 * time.Second

// StreamDependencies defines the interface for the change stream.
type StreamDependencies interface {
	Subscribe() (<-chan model.ChangeEvent, func())
}

// StreamHandler serves change events as server-sent events.
type StreamHandler struct {
	deps      StreamDependencies
	keepalive time.Duration
	logger    logger.Logger
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(deps StreamDependencies) *StreamHandler {
	return &StreamHandler{
		deps:      deps,
		keepalive: defaultKeepalive,
		logger:    logger.Get().Named("api"),
	}
}

// HandleStream handles GET /api/stream requests. Each event is written with
// its kind as the SSE event name and the JSON change event as data. The
// stream ends when the client goes away or the service stops.
func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rc := http.NewResponseController(w)
	events, cancel := h.deps.Subscribe()
	defer cancel()

	// The server write timeout would otherwise cut the stream.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		h.logger.Warn(ctx, "stream flush unsupported", logger.Error(err))
		return
	}

	ping := time.NewTicker(h.keepalive)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(e)
			if err != nil {
				h.logger.Error(ctx, "change event encode failed", logger.String("kind", e.Kind), logger.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", e.ID, e.Kind, data); err != nil {
				return
			}
		case <-ping.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
