package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	sendChanBuf   = 256
	writeDeadline = 10 * time.Second
	readDeadline  = 60 * time.Second
	pingInterval  = 30 * time.Second
)

// Packet is the unified WS message envelope.
type Packet struct {
	Seq     uint64          `json:"seq,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Session is one connected client.
type Session struct {
	ID       string
	IP       string
	Conn     *websocket.Conn
	SendChan chan []byte
	Done     chan struct{}
	TraceID  string
	LastSeq  uint64

	mu        sync.Mutex
	subs      map[string]func() // map ID → unsubscribe
	closeOnce sync.Once
	logger    *zap.Logger
}

// NewSession creates a Session. When conn is non-nil its write goroutine is started.
func NewSession(id string, conn *websocket.Conn, logger *zap.Logger) *Session {
	s := &Session{
		ID:       id,
		Conn:     conn,
		SendChan: make(chan []byte, sendChanBuf),
		Done:     make(chan struct{}),
		subs:     make(map[string]func()),
		logger:   logger,
	}
	if conn != nil {
		go s.writePump()
	}
	return s
}

// writePump drains SendChan to the connection and pings it periodically.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer s.Conn.Close()
	for {
		select {
		case data := <-s.SendChan:
			_ = s.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := s.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.logger.Warn("ws write error", zap.String("session_id", s.ID), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = s.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := s.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.Done:
			_ = s.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// Send encodes a packet of msgType and queues it without blocking.
// It drops the packet if the session is closed or its buffer is full.
func (s *Session) Send(msgType string, payload any) {
	if s.IsClosed() {
		return
	}
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			s.logger.Error("encode ws payload", zap.String("type", msgType), zap.Error(err))
			return
		}
		raw = b
	}
	data, err := json.Marshal(Packet{Type: msgType, Payload: raw})
	if err != nil {
		return
	}
	select {
	case s.SendChan <- data:
	case <-s.Done:
	default:
		s.logger.Warn("send channel full, dropping packet",
			zap.String("session_id", s.ID),
			zap.String("type", msgType))
	}
}

// Subscribed reports whether the session follows mapID's events.
func (s *Session) Subscribed(mapID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.subs[mapID]
	return ok
}

func (s *Session) addSub(mapID string, cancel func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[mapID]; ok || s.subs == nil {
		return false
	}
	s.subs[mapID] = cancel
	return true
}

func (s *Session) dropSub(mapID string) bool {
	s.mu.Lock()
	cancel, ok := s.subs[mapID]
	delete(s.subs, mapID)
	s.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Close cancels every subscription and stops the write goroutine.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		subs := s.subs
		s.subs = nil
		s.mu.Unlock()
		for _, cancel := range subs {
			cancel()
		}
		close(s.Done)
	})
}

// IsClosed returns true if the session has been closed.
func (s *Session) IsClosed() bool {
	select {
	case <-s.Done:
		return true
	default:
		return false
	}
}

func (s *Session) setReadDeadline() {
	_ = s.Conn.SetReadDeadline(time.Now().Add(readDeadline))
}
