package world

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/kasuganosora/gridpath/game/grid"
	"github.com/kasuganosora/gridpath/game/pathfind"
	"go.uber.org/zap"
)

// Default loop periods. The path tick is close to one frame; the game tick
// matches the 3 Hz unit simulation.
const (
	DefaultTickInterval     = 16 * time.Millisecond
	DefaultGameTickInterval = time.Second / 3
)

// RoomConfig is shared by every room a WorldManager creates.
type RoomConfig struct {
	TickInterval     time.Duration
	GameTickInterval time.Duration
	SliceBudget      time.Duration
	Heuristic        pathfind.HeuristicConfig
}

func (c RoomConfig) withDefaults() RoomConfig {
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.GameTickInterval <= 0 {
		c.GameTickInterval = DefaultGameTickInterval
	}
	if c.SliceBudget <= 0 {
		c.SliceBudget = pathfind.DefaultSliceBudget
	}
	return c
}

// PathRequest is a path query against one room.
type PathRequest struct {
	ID      string
	Profile pathfind.Profile
	Start   grid.Point
	Goal    grid.Point
	// Deliver, if set, receives the completion event after it is published.
	Deliver func(CompletionEvent)
}

// RoomStatus is a point-in-time view of a room.
type RoomStatus struct {
	MapID      string         `json:"map_id"`
	Ready      bool           `json:"ready"`
	State      string         `json:"state"`
	QueueDepth int            `json:"queue_depth"`
	Size       int            `json:"size"`
	Agents     int            `json:"agents"`
	Stats      pathfind.Stats `json:"stats"`
}

// Room owns one map's pather and drives it from its own loop.
type Room struct {
	MapID string

	pather *pathfind.Pather
	sink   EventSink
	cfg    RoomConfig

	mu     sync.RWMutex
	agents map[string]*Agent

	lastActive atomic.Int64 // unix nanos
	stopCh     chan struct{}
	stopOnce   sync.Once
	logger     *zap.Logger
}

// NewRoom creates a Room with no grid bound and does not start its loop.
func NewRoom(mapID string, cfg RoomConfig, sink EventSink, obs pathfind.Observer, logger *zap.Logger) (*Room, error) {
	cfg = cfg.withDefaults()
	// Each room gets its own heuristic; the jitter variant keeps private rng state.
	h, err := pathfind.NewHeuristic(cfg.Heuristic)
	if err != nil {
		return nil, err
	}
	if sink == nil {
		sink = nopSink{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("map_id", mapID))
	room := &Room{
		MapID:  mapID,
		sink:   sink,
		cfg:    cfg,
		agents: make(map[string]*Agent),
		stopCh: make(chan struct{}),
		logger: logger,
	}
	room.pather = pathfind.New(logger,
		pathfind.WithSliceBudget(cfg.SliceBudget),
		pathfind.WithHeuristic(h),
		pathfind.WithObserver(pathfind.Observers(roomObserver{room}, obs)),
	)
	room.touch()
	return room, nil
}

// Run drives the pather and the agents until Stop. Call in a goroutine.
func (room *Room) Run() {
	pathTicker := time.NewTicker(room.cfg.TickInterval)
	defer pathTicker.Stop()
	gameTicker := time.NewTicker(room.cfg.GameTickInterval)
	defer gameTicker.Stop()

	last := time.Now()
	for {
		select {
		case now := <-pathTicker.C:
			room.pather.Tick(now.Sub(last))
			last = now
		case <-gameTicker.C:
			room.advanceAgents()
		case <-room.stopCh:
			return
		}
	}
}

// Stop ends the loop and withdraws every outstanding request.
func (room *Room) Stop() {
	room.stopOnce.Do(func() {
		close(room.stopCh)
		room.pather.Unbind()
	})
}

// StopChan returns a channel that is closed when this room is stopped.
func (room *Room) StopChan() <-chan struct{} {
	return room.stopCh
}

// Bind installs g. Outstanding requests are withdrawn and every agent's
// current route is dropped since it was planned on the old tiles.
func (room *Room) Bind(g *grid.Grid) error {
	withdrawn, err := room.pather.Bind(g)
	if err != nil {
		return err
	}
	room.mu.Lock()
	for _, a := range room.agents {
		a.clearRoute()
	}
	room.mu.Unlock()
	room.touch()
	if len(withdrawn) > 0 {
		room.logger.Warn("rebind withdrew path requests", zap.Int("count", len(withdrawn)))
	}
	return nil
}

// Submit queues a path request. Validation errors are returned synchronously.
func (room *Room) Submit(pr PathRequest) (pathfind.Handle, error) {
	if pr.ID == "" {
		pr.ID = uuid.NewString()
	}
	room.touch()
	// Queued is recorded first so the sink sees it before any completion.
	room.sink.Queued(room.MapID, pr.ID)
	h, err := room.pather.Submit(pathfind.Request{
		ID:      pr.ID,
		Profile: pr.Profile,
		Start:   pr.Start,
		Goal:    pr.Goal,
		OnComplete: func(res pathfind.Result) {
			ev := newCompletionEvent(room.MapID, res)
			room.sink.Completed(ev)
			if pr.Deliver != nil {
				pr.Deliver(ev)
			}
		},
	})
	if err != nil {
		room.sink.Rejected(room.MapID, pr.ID, err)
		return pathfind.Handle{}, err
	}
	return h, nil
}

// Tick runs one pather slice. Run calls it on every path tick.
func (room *Room) Tick(elapsed time.Duration) pathfind.TickReport {
	return room.pather.Tick(elapsed)
}

// Grid returns the bound grid, or nil.
func (room *Room) Grid() *grid.Grid { return room.pather.Grid() }

// Status returns the current room view.
func (room *Room) Status() RoomStatus {
	room.mu.RLock()
	agents := len(room.agents)
	room.mu.RUnlock()
	st := RoomStatus{
		MapID:      room.MapID,
		Ready:      room.pather.IsReady(),
		State:      room.pather.State().String(),
		QueueDepth: room.pather.QueueDepth(),
		Agents:     agents,
		Stats:      room.pather.Stats(),
	}
	if g := room.pather.Grid(); g != nil {
		st.Size = g.Size()
	}
	return st
}

// IdleSince reports when the room last saw a submit, bind or completion.
func (room *Room) IdleSince() time.Time {
	return time.Unix(0, room.lastActive.Load())
}

// Busy reports whether the room has work or agents that would be lost on reap.
func (room *Room) Busy() bool {
	if room.pather.State() == pathfind.StateActive || room.pather.QueueDepth() > 0 {
		return true
	}
	room.mu.RLock()
	defer room.mu.RUnlock()
	return len(room.agents) > 0
}

func (room *Room) touch() {
	room.lastActive.Store(time.Now().UnixNano())
}

// roomObserver forwards driver events that the room itself cares about.
type roomObserver struct {
	room *Room
}

func (o roomObserver) SearchStarted(*pathfind.Request) {}

func (o roomObserver) SearchFinished(*pathfind.Request, pathfind.Result) {
	o.room.touch()
}

func (o roomObserver) SliceYielded(*pathfind.Request) {}

func (o roomObserver) RequestsWithdrawn(reqs []*pathfind.Request) {
	ids := make([]string, len(reqs))
	for i, r := range reqs {
		ids[i] = r.ID
	}
	o.room.sink.Withdrawn(o.room.MapID, ids)
	o.room.forgetPending(ids)
}
