package world

import (
	"sort"
	"sync"
	"time"

	"github.com/kasuganosora/gridpath/game/grid"
	"github.com/kasuganosora/gridpath/game/pathfind"
	"go.uber.org/zap"
)

// Telemetry is the optional per-room instrumentation hook.
type Telemetry interface {
	Observer(mapID string) pathfind.Observer
	RoomStarted()
	RoomStopped()
}

// WorldManager manages all active rooms, one per map.
type WorldManager struct {
	mu        sync.RWMutex
	rooms     map[string]*Room
	cfg       RoomConfig
	sink      EventSink
	telemetry Telemetry
	logger    *zap.Logger
}

// NewWorldManager creates a new WorldManager. telemetry may be nil.
func NewWorldManager(cfg RoomConfig, sink EventSink, telemetry Telemetry, logger *zap.Logger) *WorldManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorldManager{
		rooms:     make(map[string]*Room),
		cfg:       cfg,
		sink:      sink,
		telemetry: telemetry,
		logger:    logger,
	}
}

// GetOrCreate returns the room for mapID, creating it bound to g and starting
// its loop if needed. An existing room keeps its current grid.
func (wm *WorldManager) GetOrCreate(mapID string, g *grid.Grid) (*Room, error) {
	// Fast path: room already exists.
	wm.mu.RLock()
	room, ok := wm.rooms[mapID]
	wm.mu.RUnlock()
	if ok {
		return room, nil
	}

	// Slow path: create a new room.
	wm.mu.Lock()
	defer wm.mu.Unlock()
	// Double-check after acquiring write lock.
	if room, ok = wm.rooms[mapID]; ok {
		return room, nil
	}
	var obs pathfind.Observer
	if wm.telemetry != nil {
		obs = wm.telemetry.Observer(mapID)
	}
	room, err := NewRoom(mapID, wm.cfg, wm.sink, obs, wm.logger)
	if err != nil {
		return nil, err
	}
	if err := room.Bind(g); err != nil {
		return nil, err
	}
	wm.rooms[mapID] = room
	go room.Run()
	if wm.telemetry != nil {
		wm.telemetry.RoomStarted()
	}
	wm.logger.Info("map room created", zap.String("map_id", mapID), zap.Int("size", g.Size()))
	return room, nil
}

// Get returns the room for mapID, or nil if it does not exist.
func (wm *WorldManager) Get(mapID string) *Room {
	wm.mu.RLock()
	defer wm.mu.RUnlock()
	return wm.rooms[mapID]
}

// Destroy stops and removes the room for mapID.
func (wm *WorldManager) Destroy(mapID string) bool {
	wm.mu.Lock()
	room, ok := wm.rooms[mapID]
	if ok {
		delete(wm.rooms, mapID)
	}
	wm.mu.Unlock()
	if ok {
		room.Stop()
		if wm.telemetry != nil {
			wm.telemetry.RoomStopped()
		}
		wm.logger.Info("map room destroyed", zap.String("map_id", mapID))
	}
	return ok
}

// ActiveRoomCount returns the number of active rooms.
func (wm *WorldManager) ActiveRoomCount() int {
	wm.mu.RLock()
	defer wm.mu.RUnlock()
	return len(wm.rooms)
}

// Statuses returns a view of every room, ordered by map ID.
func (wm *WorldManager) Statuses() []RoomStatus {
	wm.mu.RLock()
	out := make([]RoomStatus, 0, len(wm.rooms))
	for _, r := range wm.rooms {
		out = append(out, r.Status())
	}
	wm.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].MapID < out[j].MapID })
	return out
}

// ReapIdle destroys rooms with no work and no agents that have been idle
// for longer than ttl. It returns the reaped map IDs.
func (wm *WorldManager) ReapIdle(ttl time.Duration, now time.Time) []string {
	wm.mu.RLock()
	var idle []string
	for id, r := range wm.rooms {
		if !r.Busy() && now.Sub(r.IdleSince()) > ttl {
			idle = append(idle, id)
		}
	}
	wm.mu.RUnlock()
	for _, id := range idle {
		wm.Destroy(id)
	}
	return idle
}

// StopAll stops all active rooms (used at server shutdown).
func (wm *WorldManager) StopAll() {
	wm.mu.Lock()
	rooms := make([]*Room, 0, len(wm.rooms))
	for _, r := range wm.rooms {
		rooms = append(rooms, r)
	}
	wm.rooms = make(map[string]*Room)
	wm.mu.Unlock()
	for _, r := range rooms {
		r.Stop()
		if wm.telemetry != nil {
			wm.telemetry.RoomStopped()
		}
	}
}
