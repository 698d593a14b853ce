package world

import (
	"testing"

	"github.com/kasuganosora/gridpath/game/grid"
	"github.com/kasuganosora/gridpath/game/pathfind"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpawnAgent_Validation(t *testing.T) {
	room, _ := newBoundRoom(t, parseGrid(t,
		".W",
		"..",
	))
	_, err := room.SpawnAgent("a", pathfind.Villager, grid.Point{X: 1, Y: 0})
	assert.ErrorIs(t, err, ErrTileBlocked)
	_, err = room.SpawnAgent("a", pathfind.Villager, grid.Point{X: 5, Y: 0})
	assert.ErrorIs(t, err, pathfind.ErrOutOfBounds)
	_, err = room.SpawnAgent("a", pathfind.Profile{Speed: 0}, grid.Point{})
	assert.ErrorIs(t, err, pathfind.ErrNonPositiveSpeed)

	_, err = room.SpawnAgent("a", pathfind.Villager, grid.Point{})
	require.NoError(t, err)
	_, err = room.SpawnAgent("a", pathfind.Villager, grid.Point{})
	assert.ErrorIs(t, err, ErrAgentExists)

	require.NoError(t, room.RemoveAgent("a"))
	assert.ErrorIs(t, room.RemoveAgent("a"), ErrAgentNotFound)
	_, err = room.MoveAgent("a", grid.Point{})
	assert.ErrorIs(t, err, ErrAgentNotFound)
}

func TestSpawnAgent_NotReady(t *testing.T) {
	room, err := NewRoom("x", RoomConfig{}, nil, nil, nil)
	require.NoError(t, err)
	_, err = room.SpawnAgent("a", pathfind.Villager, grid.Point{})
	assert.ErrorIs(t, err, pathfind.ErrNotReady)
}

func TestAgent_WalksRouteAtProfileSpeed(t *testing.T) {
	// Road costs 0.25: a villager (speed 5) needs ceil(1.25)=2 ticks per road tile
	// and 5 ticks per grass tile.
	room, _ := newBoundRoom(t, parseGrid(t,
		"==.",
		"...",
		"...",
	))
	_, err := room.SpawnAgent("v", pathfind.Villager, grid.Point{})
	require.NoError(t, err)
	_, err = room.MoveAgent("v", grid.Point{X: 2, Y: 0})
	require.NoError(t, err)

	a, _ := room.Agent("v")
	assert.True(t, a.Planning)
	tickUntilIdle(t, room)

	a, _ = room.Agent("v")
	assert.False(t, a.Planning)
	require.Equal(t, []grid.Point{{X: 1, Y: 0}, {X: 2, Y: 0}}, a.Route)

	room.advanceAgents()
	a, _ = room.Agent("v")
	assert.Equal(t, grid.Point{}, a.Pos, "still counting down")

	room.advanceAgents()
	a, _ = room.Agent("v")
	assert.Equal(t, grid.Point{X: 1, Y: 0}, a.Pos)

	for i := 0; i < 4; i++ {
		room.advanceAgents()
	}
	a, _ = room.Agent("v")
	assert.Equal(t, grid.Point{X: 1, Y: 0}, a.Pos)
	room.advanceAgents()
	a, _ = room.Agent("v")
	assert.Equal(t, grid.Point{X: 2, Y: 0}, a.Pos)
	assert.Zero(t, a.Remaining)
}

func TestAgent_UnreachableGoalLeavesAgentInPlace(t *testing.T) {
	room, _ := newBoundRoom(t, parseGrid(t,
		"..R",
		"RRR",
		"...",
	))
	_, err := room.SpawnAgent("w", pathfind.Warrior, grid.Point{})
	require.NoError(t, err)
	_, err = room.MoveAgent("w", grid.Point{X: 0, Y: 2})
	require.NoError(t, err)
	tickUntilIdle(t, room)

	room.advanceAgents()
	a, _ := room.Agent("w")
	assert.Equal(t, grid.Point{}, a.Pos)
	assert.Zero(t, a.Remaining)
	assert.False(t, a.Planning)
}

func TestAgent_LatestRequestWins(t *testing.T) {
	room, _ := newBoundRoom(t, parseGrid(t,
		"....",
		"....",
		"....",
		"....",
	))
	_, err := room.SpawnAgent("a", pathfind.Warrior, grid.Point{})
	require.NoError(t, err)
	_, err = room.MoveAgent("a", grid.Point{X: 3})
	require.NoError(t, err)
	_, err = room.MoveAgent("a", grid.Point{Y: 3})
	require.NoError(t, err)
	tickUntilIdle(t, room)

	a, _ := room.Agent("a")
	require.NotEmpty(t, a.Route)
	assert.Equal(t, grid.Point{Y: 3}, a.Route[len(a.Route)-1])
	assert.Len(t, room.Agents(), 1)
}

func TestStepTicks(t *testing.T) {
	g := parseGrid(t, ".=", "TR")
	n, ok := stepTicks(g, pathfind.Warrior, grid.Point{X: 1})
	assert.True(t, ok)
	assert.Equal(t, 1, n)
	n, _ = stepTicks(g, pathfind.Warrior, grid.Point{Y: 1})
	assert.Equal(t, 12, n)
	_, ok = stepTicks(g, pathfind.Warrior, grid.Point{X: 1, Y: 1})
	assert.False(t, ok)
}
