package http

import (
	"errors"
	"net/http"

	"lsat-session-service/internal/app"
	"lsat-session-service/internal/domain"
	"lsat-session-service/internal/protocol"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Close codes carried over from the original relay so existing clients can
// distinguish "session gone" from "bad token".
const (
	closeSessionNotFound = 4004
	closeInvalidToken    = 4401
)

type WSHandler struct {
	service  *app.SessionService
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.SessionService, log *zap.Logger) *WSHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WSHandler{
		service: service,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeWS upgrades the request and wires the connection into the session
// relay. The first frame written is always the full-state snapshot, so a
// client that reconnects after a gap is reconciled before it sees any
// incremental event.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	token := r.URL.Query().Get("token")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	snapshot, updates, cancel, err := h.service.Attach(sessionID, token)
	if err != nil {
		code := closeSessionNotFound
		if errors.Is(err, domain.ErrInvalidToken) {
			code = closeInvalidToken
		}
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, err.Error()))
		return
	}
	defer cancel()
	defer h.service.Detach(sessionID, token)

	initial, err := protocol.Encode(snapshot)
	if err != nil {
		h.log.Error("encode snapshot", zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, initial); err != nil {
		return
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for frame := range updates {
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.log.Debug("ws write error", zap.Error(err))
				return
			}
		}
	}()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			break
		}
		h.service.Handle(sessionID, frame)
	}

	cancel()
	<-writerDone
}
