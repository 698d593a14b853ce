package ws

import (
	"net/http"
	"slices"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/kasuganosora/gridpath/config"
	"go.uber.org/zap"
)

// Handler is the Gin handler for GET /ws.
type Handler struct {
	router   *Router
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewHandler creates a new WebSocket Handler.
// sec.AllowedOrigins controls which WebSocket origins are accepted.
// An empty slice permits all origins (development only).
func NewHandler(sec config.SecurityConfig, router *Router, logger *zap.Logger) *Handler {
	h := &Handler{
		router:   router,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
	allowed := sec.AllowedOrigins
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowed) == 0 {
				return true
			}
			return slices.Contains(allowed, r.Header.Get("Origin"))
		},
	}
	return h
}

// ServeWS handles GET /ws.
func (h *Handler) ServeWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	s := NewSession(uuid.NewString(), conn, h.logger)
	s.IP = c.ClientIP()
	h.register(s)
	h.logger.Info("ws session opened", zap.String("session_id", s.ID), zap.String("ip", s.IP))
	h.readPump(s)
}

// readPump reads messages from the connection and dispatches them until it closes.
func (h *Handler) readPump(s *Session) {
	defer h.disconnect(s)

	s.setReadDeadline()
	s.Conn.SetPongHandler(func(string) error {
		s.setReadDeadline()
		return nil
	})

	for {
		_, raw, err := s.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseNoStatusReceived) {
				h.logger.Warn("ws unexpected close", zap.String("session_id", s.ID), zap.Error(err))
			}
			return
		}
		s.setReadDeadline()
		h.router.Dispatch(s, raw)
	}
}

func (h *Handler) register(s *Session) {
	h.mu.Lock()
	h.sessions[s.ID] = s
	h.mu.Unlock()
}

func (h *Handler) disconnect(s *Session) {
	s.Close()
	h.mu.Lock()
	delete(h.sessions, s.ID)
	h.mu.Unlock()
	h.logger.Info("ws session closed", zap.String("session_id", s.ID))
}

// Count returns the number of connected sessions.
func (h *Handler) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// CloseAll closes every session (used at server shutdown).
func (h *Handler) CloseAll() {
	h.mu.RLock()
	all := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		all = append(all, s)
	}
	h.mu.RUnlock()
	for _, s := range all {
		s.Close()
	}
}
