package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"ascend/internal/blueprint"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = (wsPongWait * 9) / 10
)

// wsTimings bounds how long a silent connection is kept.
type wsTimings struct {
	pongWait  time.Duration
	pingEvery time.Duration
}

var defaultWSTimings = wsTimings{pongWait: wsPongWait, pingEvery: wsPingEvery}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type wsError struct {
	Type    string `json:"type"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// GenerateWS serves generations over a websocket. Each text message from
// the client is a generation request; the server answers with the same
// events the SSE endpoint sends. Requests on one connection run one at a
// time.
func (h *Handler) GenerateWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	timings := h.ws
	_ = conn.SetReadDeadline(time.Now().Add(timings.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(timings.pongWait))
	})

	var writeMu sync.Mutex
	write := func(v any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
			return err
		}
		return conn.WriteJSON(v)
	}

	go func() {
		ticker := time.NewTicker(timings.pingEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				writeMu.Lock()
				err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
				writeMu.Unlock()
				if err != nil {
					cancel()
					return
				}
			}
		}
	}()

	requests := make(chan []byte)
	go func() {
		defer cancel()
		defer close(requests)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(timings.pongWait))
			select {
			case requests <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	for msg := range requests {
		var req blueprint.GenerationRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			if write(wsError{Type: "error", Code: http.StatusBadRequest, Message: "invalid json message"}) != nil {
				return
			}
			continue
		}
		req.CallerID = h.caller(r, req.CallerID)
		rsv, status, text := h.admit(ctx, &req)
		if status != 0 {
			if write(wsError{Type: "error", Code: status, Message: text}) != nil {
				return
			}
			continue
		}
		res, err := h.Orchestrator.Generate(ctx, req, func(ev blueprint.StreamEvent) error { return write(ev) })
		h.settle(ctx, req, rsv, res, err)
		if err != nil {
			h.Log.Warn("websocket generation aborted", map[string]any{"error": err})
			return
		}
	}
}
