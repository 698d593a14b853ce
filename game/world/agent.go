package world

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/google/uuid"
	"github.com/kasuganosora/gridpath/game/grid"
	"github.com/kasuganosora/gridpath/game/pathfind"
	"go.uber.org/zap"
)

var (
	ErrAgentExists   = errors.New("world: agent already exists")
	ErrAgentNotFound = errors.New("world: agent not found")
	ErrTileBlocked   = errors.New("world: tile is not passable")
)

// Agent is a unit that walks the routes its path requests return.
type Agent struct {
	ID       string
	Profile  pathfind.Profile
	Pos      grid.Point
	route    []grid.Point // tiles still to enter, next first
	cooldown int          // game ticks until the next step
	pending  string       // request ID of the route being planned
}

// AgentView is the client-visible state of an agent.
type AgentView struct {
	ID        string       `json:"id"`
	Profile   string       `json:"profile"`
	Pos       grid.Point   `json:"pos"`
	Remaining int          `json:"remaining"`
	Planning  bool         `json:"planning"`
	Route     []grid.Point `json:"route,omitempty"`
}

func (a *Agent) view() AgentView {
	return AgentView{
		ID:        a.ID,
		Profile:   a.Profile.Name,
		Pos:       a.Pos,
		Remaining: len(a.route),
		Planning:  a.pending != "",
		Route:     append([]grid.Point(nil), a.route...),
	}
}

func (a *Agent) clearRoute() {
	a.route = nil
	a.cooldown = 0
	a.pending = ""
}

// stepTicks is how many game ticks entering p takes: speed times the terrain
// multiplier, rounded up, never less than one.
func stepTicks(g *grid.Grid, profile pathfind.Profile, p grid.Point) (int, bool) {
	c, ok := g.MovementCost(g.TerrainAt(p))
	if !ok {
		return 0, false
	}
	return max(1, int(math.Ceil(profile.Speed*c))), true
}

// SpawnAgent places a new agent on a passable tile.
func (room *Room) SpawnAgent(id string, profile pathfind.Profile, pos grid.Point) (AgentView, error) {
	g := room.pather.Grid()
	if g == nil {
		return AgentView{}, pathfind.ErrNotReady
	}
	if profile.Speed <= 0 || math.IsNaN(profile.Speed) || math.IsInf(profile.Speed, 0) {
		return AgentView{}, pathfind.ErrNonPositiveSpeed
	}
	if !g.InBounds(pos) {
		return AgentView{}, fmt.Errorf("%w: %v", pathfind.ErrOutOfBounds, pos)
	}
	if !g.Passable(pos) {
		return AgentView{}, fmt.Errorf("%w: %v", ErrTileBlocked, pos)
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	if _, ok := room.agents[id]; ok {
		return AgentView{}, ErrAgentExists
	}
	a := &Agent{ID: id, Profile: profile, Pos: pos}
	room.agents[id] = a
	room.touch()
	return a.view(), nil
}

// RemoveAgent drops an agent. A route still being planned is discarded on delivery.
func (room *Room) RemoveAgent(id string) error {
	room.mu.Lock()
	defer room.mu.Unlock()
	if _, ok := room.agents[id]; !ok {
		return ErrAgentNotFound
	}
	delete(room.agents, id)
	return nil
}

// MoveAgent plans a route for the agent to goal. The agent keeps walking its
// old route until the new one arrives; the latest request always wins.
func (room *Room) MoveAgent(id string, goal grid.Point) (pathfind.Handle, error) {
	reqID := uuid.NewString()
	room.mu.Lock()
	a, ok := room.agents[id]
	if !ok {
		room.mu.Unlock()
		return pathfind.Handle{}, ErrAgentNotFound
	}
	start, profile := a.Pos, a.Profile
	a.pending = reqID
	room.mu.Unlock()

	h, err := room.Submit(PathRequest{
		ID:      reqID,
		Profile: profile,
		Start:   start,
		Goal:    goal,
		Deliver: func(ev CompletionEvent) { room.deliverRoute(id, ev) },
	})
	if err != nil {
		room.mu.Lock()
		if a, ok := room.agents[id]; ok && a.pending == reqID {
			a.pending = ""
		}
		room.mu.Unlock()
		return h, err
	}
	return h, nil
}

func (room *Room) deliverRoute(id string, ev CompletionEvent) {
	room.mu.Lock()
	defer room.mu.Unlock()
	a, ok := room.agents[id]
	if !ok || a.pending != ev.RequestID {
		return
	}
	a.pending = ""
	at := slices.Index(ev.Path, a.Pos)
	if !ev.Found || at < 0 {
		// Unreachable, or the agent has since walked off the planned path.
		a.route = nil
		return
	}
	a.route = append([]grid.Point(nil), ev.Path[at+1:]...)
	a.cooldown = 0
	if len(a.route) > 0 {
		if g := room.pather.Grid(); g != nil {
			a.cooldown, _ = stepTicks(g, a.Profile, a.route[0])
		}
	}
}

func (room *Room) forgetPending(ids []string) {
	if len(ids) == 0 {
		return
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	for _, a := range room.agents {
		if _, ok := set[a.pending]; ok {
			a.pending = ""
		}
	}
}

// advanceAgents runs one game tick: every agent with a route counts down and
// steps onto its next tile when the countdown reaches zero.
func (room *Room) advanceAgents() {
	g := room.pather.Grid()
	if g == nil {
		return
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	for _, a := range room.agents {
		if len(a.route) == 0 {
			continue
		}
		if a.cooldown > 0 {
			a.cooldown--
		}
		if a.cooldown > 0 {
			continue
		}
		next := a.route[0]
		if !g.Passable(next) {
			room.logger.Debug("agent route blocked",
				zap.String("agent_id", a.ID),
				zap.Stringer("tile", next))
			a.route = nil
			continue
		}
		a.Pos = next
		a.route = a.route[1:]
		if len(a.route) > 0 {
			a.cooldown, _ = stepTicks(g, a.Profile, a.route[0])
		}
	}
}

// Agent returns a snapshot of one agent.
func (room *Room) Agent(id string) (AgentView, bool) {
	room.mu.RLock()
	defer room.mu.RUnlock()
	a, ok := room.agents[id]
	if !ok {
		return AgentView{}, false
	}
	return a.view(), true
}

// Agents returns a snapshot of every agent.
func (room *Room) Agents() []AgentView {
	room.mu.RLock()
	defer room.mu.RUnlock()
	out := make([]AgentView, 0, len(room.agents))
	for _, a := range room.agents {
		out = append(out, a.view())
	}
	return out
}
