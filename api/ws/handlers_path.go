package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kasuganosora/gridpath/cache"
	"github.com/kasuganosora/gridpath/game/grid"
	"github.com/kasuganosora/gridpath/game/pathfind"
	"github.com/kasuganosora/gridpath/game/world"
	"go.uber.org/zap"
)

// RoomResolver returns the live room for a map, starting it if needed.
type RoomResolver interface {
	Get(ctx context.Context, mapID string) (*world.Room, error)
}

// PathHandlers serves path requests and completion-event subscriptions.
type PathHandlers struct {
	rooms  RoomResolver
	ps     cache.PubSub
	logger *zap.Logger
}

// NewPathHandlers creates PathHandlers.
func NewPathHandlers(rooms RoomResolver, ps cache.PubSub, logger *zap.Logger) *PathHandlers {
	return &PathHandlers{rooms: rooms, ps: ps, logger: logger}
}

// RegisterHandlers registers the path message types on the router.
func (h *PathHandlers) RegisterHandlers(r *Router) {
	r.On("ping", h.handlePing)
	r.On("path_request", h.handlePathRequest)
	r.On("subscribe", h.handleSubscribe)
	r.On("unsubscribe", h.handleUnsubscribe)
}

func (h *PathHandlers) handlePing(_ context.Context, s *Session, _ json.RawMessage) error {
	s.Send("pong", nil)
	return nil
}

type pathRequestMsg struct {
	Ref     string      `json:"ref"`
	MapID   string      `json:"map_id"`
	Profile string      `json:"profile"`
	Speed   float64     `json:"speed"`
	Start   *grid.Point `json:"start"`
	Goal    *grid.Point `json:"goal"`
}

// QueuedPayload acknowledges an accepted path_request.
type QueuedPayload struct {
	Ref       string `json:"ref,omitempty"`
	RequestID string `json:"request_id"`
	MapID     string `json:"map_id"`
}

// ResultPayload carries the outcome of a path_request back to its sender.
type ResultPayload struct {
	Ref string `json:"ref,omitempty"`
	world.CompletionEvent
}

func (h *PathHandlers) handlePathRequest(ctx context.Context, s *Session, raw json.RawMessage) error {
	var msg pathRequestMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("decode path_request: %w", err)
	}
	if msg.MapID == "" || msg.Start == nil || msg.Goal == nil {
		return errors.New("map_id, start and goal are required")
	}
	profile, err := pathfind.ResolveProfile(msg.Profile, msg.Speed)
	if err != nil {
		return err
	}
	room, err := h.rooms.Get(ctx, msg.MapID)
	if err != nil {
		return err
	}

	// The result waits for the acknowledgement so the client always sees
	// path_queued first.
	acked := make(chan struct{})
	handle, err := room.Submit(world.PathRequest{
		Profile: profile,
		Start:   *msg.Start,
		Goal:    *msg.Goal,
		Deliver: func(ev world.CompletionEvent) {
			<-acked
			s.Send("path_result", ResultPayload{Ref: msg.Ref, CompletionEvent: ev})
		},
	})
	if err != nil {
		return err
	}
	s.Send("path_queued", QueuedPayload{Ref: msg.Ref, RequestID: handle.ID, MapID: msg.MapID})
	close(acked)
	return nil
}

type subscribeMsg struct {
	MapID string `json:"map_id"`
}

func (m subscribeMsg) channel() string {
	if m.MapID == "" {
		return world.ChannelAll
	}
	return world.MapChannel(m.MapID)
}

// handleSubscribe forwards the map's completion events (every map's when
// map_id is empty) as path_event packets.
func (h *PathHandlers) handleSubscribe(ctx context.Context, s *Session, raw json.RawMessage) error {
	var msg subscribeMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("decode subscribe: %w", err)
	}
	if msg.MapID != "" {
		if _, err := h.rooms.Get(ctx, msg.MapID); err != nil {
			return err
		}
	}
	if s.Subscribed(msg.MapID) {
		s.Send("subscribed", msg)
		return nil
	}

	subCtx, cancel := context.WithCancel(context.Background())
	ch, unsub, err := h.ps.Subscribe(subCtx, msg.channel())
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe %s: %w", msg.channel(), err)
	}
	stop := func() {
		cancel()
		unsub()
	}
	if !s.addSub(msg.MapID, stop) {
		stop()
		return nil
	}
	go func() {
		for {
			select {
			case m, ok := <-ch:
				if !ok {
					return
				}
				s.Send("path_event", json.RawMessage(m.Payload))
			case <-subCtx.Done():
				return
			}
		}
	}()
	s.Send("subscribed", msg)
	return nil
}

func (h *PathHandlers) handleUnsubscribe(_ context.Context, s *Session, raw json.RawMessage) error {
	var msg subscribeMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("decode unsubscribe: %w", err)
	}
	s.dropSub(msg.MapID)
	s.Send("unsubscribed", msg)
	return nil
}
