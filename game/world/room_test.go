package world

import (
	"sync"
	"testing"
	"time"

	"github.com/kasuganosora/gridpath/game/grid"
	"github.com/kasuganosora/gridpath/game/pathfind"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSink struct {
	mu        sync.Mutex
	queued    []string
	rejected  []string
	completed []CompletionEvent
	withdrawn []string
}

func (s *recordingSink) Queued(_, id string) {
	s.mu.Lock()
	s.queued = append(s.queued, id)
	s.mu.Unlock()
}

func (s *recordingSink) Rejected(_, id string, _ error) {
	s.mu.Lock()
	s.rejected = append(s.rejected, id)
	s.mu.Unlock()
}

func (s *recordingSink) Completed(ev CompletionEvent) {
	s.mu.Lock()
	s.completed = append(s.completed, ev)
	s.mu.Unlock()
}

func (s *recordingSink) Withdrawn(_ string, ids []string) {
	s.mu.Lock()
	s.withdrawn = append(s.withdrawn, ids...)
	s.mu.Unlock()
}

func (s *recordingSink) events() []CompletionEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]CompletionEvent(nil), s.completed...)
}

func parseGrid(t *testing.T, rows ...string) *grid.Grid {
	t.Helper()
	g, err := grid.Parse(rows, nil)
	require.NoError(t, err)
	return g
}

func newBoundRoom(t *testing.T, g *grid.Grid) (*Room, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	room, err := NewRoom("m1", RoomConfig{}, sink, nil, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, room.Bind(g))
	t.Cleanup(room.Stop)
	return room, sink
}

func tickUntilIdle(t *testing.T, room *Room) {
	t.Helper()
	for i := 0; i < 1000; i++ {
		r := room.Tick(time.Millisecond)
		if r.State == pathfind.StateIdle && room.Status().QueueDepth == 0 {
			return
		}
	}
	t.Fatal("room never went idle")
}

func TestNewRoom_BadHeuristic(t *testing.T) {
	_, err := NewRoom("x", RoomConfig{Heuristic: pathfind.HeuristicConfig{Name: "nope"}}, nil, nil, nil)
	assert.Error(t, err)
}

func TestRoom_SubmitPublishesCompletion(t *testing.T) {
	room, sink := newBoundRoom(t, parseGrid(t,
		".....",
		".....",
		".....",
		".....",
		".....",
	))

	var delivered []CompletionEvent
	h, err := room.Submit(PathRequest{
		Profile: pathfind.Profile{Speed: 1},
		Start:   grid.Point{},
		Goal:    grid.Point{X: 4, Y: 4},
		Deliver: func(ev CompletionEvent) { delivered = append(delivered, ev) },
	})
	require.NoError(t, err)
	tickUntilIdle(t, room)

	evs := sink.events()
	require.Len(t, evs, 1)
	assert.Equal(t, h.ID, evs[0].RequestID)
	assert.Equal(t, "m1", evs[0].MapID)
	assert.Equal(t, StatusFound, evs[0].Status)
	assert.Equal(t, 8, evs[0].Steps)
	assert.InDelta(t, 8.0, evs[0].Cost, 1e-9)
	assert.Equal(t, []string{h.ID}, sink.queued)
	assert.Equal(t, evs, delivered)
}

func TestRoom_SubmitRejected(t *testing.T) {
	room, sink := newBoundRoom(t, parseGrid(t, "..", ".."))
	_, err := room.Submit(PathRequest{Profile: pathfind.Villager, Goal: grid.Point{X: 9, Y: 9}})
	assert.ErrorIs(t, err, pathfind.ErrOutOfBounds)
	assert.Len(t, sink.rejected, 1)
	assert.Equal(t, sink.queued, sink.rejected)
}

func TestRoom_ExhaustedEvent(t *testing.T) {
	room, sink := newBoundRoom(t, parseGrid(t,
		"..R",
		"RRR",
		"...",
	))
	_, err := room.Submit(PathRequest{Profile: pathfind.Villager, Goal: grid.Point{X: 2, Y: 2}})
	require.NoError(t, err)
	tickUntilIdle(t, room)
	evs := sink.events()
	require.Len(t, evs, 1)
	assert.Equal(t, StatusExhausted, evs[0].Status)
	assert.Empty(t, evs[0].Path)
}

func TestRoom_RebindWithdrawsAndClearsRoutes(t *testing.T) {
	g, err := grid.New(64, nil)
	require.NoError(t, err)
	room, sink := newBoundRoom(t, g)

	_, err = room.SpawnAgent("a1", pathfind.Warrior, grid.Point{})
	require.NoError(t, err)
	h1, err := room.MoveAgent("a1", grid.Point{X: 63, Y: 63})
	require.NoError(t, err)
	h2, err := room.Submit(PathRequest{Profile: pathfind.Villager, Goal: grid.Point{X: 5}})
	require.NoError(t, err)

	require.NoError(t, room.Bind(parseGrid(t, "...", "...", "...")))
	assert.ElementsMatch(t, []string{h1.ID, h2.ID}, sink.withdrawn)
	a, ok := room.Agent("a1")
	require.True(t, ok)
	assert.False(t, a.Planning)

	tickUntilIdle(t, room)
	assert.Empty(t, sink.events())
}

func TestRoom_StopWithdraws(t *testing.T) {
	room, sink := newBoundRoom(t, parseGrid(t, "...", "...", "..."))
	h, err := room.Submit(PathRequest{Profile: pathfind.Villager, Goal: grid.Point{X: 2, Y: 2}})
	require.NoError(t, err)
	room.Stop()
	room.Stop()
	assert.Equal(t, []string{h.ID}, sink.withdrawn)
	assert.False(t, room.Status().Ready)

	select {
	case <-room.StopChan():
	default:
		t.Fatal("stop channel not closed")
	}
}

func TestRoom_Status(t *testing.T) {
	room, _ := newBoundRoom(t, parseGrid(t, "...", "...", "..."))
	_, err := room.SpawnAgent("a", pathfind.Villager, grid.Point{X: 1, Y: 1})
	require.NoError(t, err)
	st := room.Status()
	assert.True(t, st.Ready)
	assert.Equal(t, "idle", st.State)
	assert.Equal(t, 3, st.Size)
	assert.Equal(t, 1, st.Agents)
	assert.True(t, room.Busy())
}

func TestRoom_RunDrivesTicks(t *testing.T) {
	sink := &recordingSink{}
	room, err := NewRoom("run", RoomConfig{TickInterval: time.Millisecond}, sink, nil, nil)
	require.NoError(t, err)
	require.NoError(t, room.Bind(parseGrid(t, "....", "....", "....", "....")))
	go room.Run()
	defer room.Stop()

	_, err = room.Submit(PathRequest{Profile: pathfind.Villager, Goal: grid.Point{X: 3, Y: 3}})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(sink.events()) == 1 }, 2*time.Second, 5*time.Millisecond)
}
