package rest

import (
	"context"

	"github.com/kasuganosora/gridpath/game/mapstore"
	"github.com/kasuganosora/gridpath/game/world"
)

// Rooms resolves a map ID to its live room, loading the map from the store
// and starting a room when none is active.
type Rooms struct {
	store *mapstore.Store
	wm    *world.WorldManager
}

// NewRooms creates a Rooms resolver.
func NewRooms(store *mapstore.Store, wm *world.WorldManager) *Rooms {
	return &Rooms{store: store, wm: wm}
}

// Get returns the room for mapID, starting it if needed.
func (r *Rooms) Get(ctx context.Context, mapID string) (*world.Room, error) {
	if room := r.wm.Get(mapID); room != nil {
		return room, nil
	}
	g, _, err := r.store.Load(ctx, mapID)
	if err != nil {
		return nil, err
	}
	return r.wm.GetOrCreate(mapID, g)
}

// Active returns the room for mapID only if it is already running.
func (r *Rooms) Active(mapID string) *world.Room {
	return r.wm.Get(mapID)
}
