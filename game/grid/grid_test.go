package grid

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultsToGrass(t *testing.T) {
	g, err := New(4, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, g.Size())
	tile, ok := g.TileAt(3, 3)
	require.True(t, ok)
	assert.Equal(t, Grass, tile.Terrain)
}

func TestNew_InvalidSize(t *testing.T) {
	_, err := New(0, nil)
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestTileAt_OutOfBounds(t *testing.T) {
	g, _ := New(3, nil)
	for _, p := range []Point{{-1, 0}, {0, -1}, {3, 0}, {0, 3}} {
		_, ok := g.TileAt(p.X, p.Y)
		assert.False(t, ok, "%v should be out of bounds", p)
		assert.Equal(t, Invalid, g.TerrainAt(p))
	}
}

func TestSet_IgnoresOutOfBounds(t *testing.T) {
	g, _ := New(2, nil)
	g.Set(5, 5, Rock) // must not panic
	g.Set(1, 0, Rock)
	assert.Equal(t, Rock, g.TerrainAt(Point{1, 0}))
}

func TestCostTable_Validate(t *testing.T) {
	assert.NoError(t, DefaultCosts().Validate())
	assert.ErrorIs(t, CostTable{Grass: 0}.Validate(), ErrNonPositiveCost)
	assert.ErrorIs(t, CostTable{Grass: -1}.Validate(), ErrNonPositiveCost)
	assert.ErrorIs(t, CostTable{Grass: math.NaN()}.Validate(), ErrNonPositiveCost)
	assert.ErrorIs(t, CostTable{Rock: math.Inf(1)}.Validate(), ErrNoPassableTerrain)
	assert.ErrorIs(t, CostTable{}.Validate(), ErrNoPassableTerrain)
}

func TestNew_RejectsBadCosts(t *testing.T) {
	_, err := New(3, CostTable{Grass: 0})
	assert.ErrorIs(t, err, ErrNonPositiveCost)
}

func TestCostTable_CostAndMin(t *testing.T) {
	ct := CostTable{Grass: 1, Road: 0.25, Rock: math.Inf(1)}
	c, ok := ct.Cost(Road)
	assert.True(t, ok)
	assert.Equal(t, 0.25, c)
	_, ok = ct.Cost(Rock)
	assert.False(t, ok, "+Inf is impassable")
	_, ok = ct.Cost(Water)
	assert.False(t, ok, "missing terrain is impassable")
	assert.Equal(t, 0.25, ct.MinCost())
}

func TestPassable(t *testing.T) {
	g, _ := New(3, nil)
	g.Set(1, 1, Rock)
	assert.True(t, g.Passable(Point{0, 0}))
	assert.False(t, g.Passable(Point{1, 1}))
	assert.False(t, g.Passable(Point{-1, 0}))
}

func TestParseTerrain(t *testing.T) {
	tt, err := ParseTerrain("road")
	require.NoError(t, err)
	assert.Equal(t, Road, tt)
	_, err = ParseTerrain("invalid")
	assert.Error(t, err)
	_, err = ParseTerrain("lava")
	assert.Error(t, err)
}

func TestParseAndRows_RoundTrip(t *testing.T) {
	rows := []string{
		".=T",
		"RWD",
		"S..",
	}
	g, err := Parse(rows, nil)
	require.NoError(t, err)
	assert.Equal(t, Road, g.TerrainAt(Point{1, 0}))
	assert.Equal(t, Water, g.TerrainAt(Point{1, 1}))
	assert.Equal(t, Sand, g.TerrainAt(Point{0, 2}))
	assert.Equal(t, rows, g.Rows())
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]string{"..", "."}, nil)
	assert.Error(t, err, "ragged rows")
	_, err = Parse([]string{".?", ".."}, nil)
	assert.Error(t, err, "unknown glyph")
	_, err = Parse(nil, nil)
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestParseCosts(t *testing.T) {
	ct, err := ParseCosts(map[string]float64{"grass": 2, "road": 0.5})
	require.NoError(t, err)
	assert.Equal(t, CostTable{Grass: 2, Road: 0.5}, ct)

	_, err = ParseCosts(map[string]float64{"grass": 0})
	assert.ErrorIs(t, err, ErrNonPositiveCost)
	_, err = ParseCosts(map[string]float64{"lava": 1})
	assert.Error(t, err)

	named := CostTable{Grass: 1, Rock: math.Inf(1)}.Named()
	assert.Equal(t, map[string]float64{"grass": 1}, named)
}

func TestGenerate_Deterministic(t *testing.T) {
	a, err := Generate(32, 7, nil)
	require.NoError(t, err)
	b, err := Generate(32, 7, nil)
	require.NoError(t, err)
	assert.Equal(t, a.Rows(), b.Rows())

	c, _ := Generate(32, 8, nil)
	assert.NotEqual(t, a.Rows(), c.Rows())
}

func TestGenerate_HasRoadThroughCentre(t *testing.T) {
	g, err := Generate(32, 42, nil)
	require.NoError(t, err)
	assert.Equal(t, Road, g.TerrainAt(Point{16, 16}))

	var trees int
	for y := 0; y < g.Size(); y++ {
		for x := 0; x < g.Size(); x++ {
			if g.TerrainAt(Point{x, y}) == Trees {
				trees++
			}
		}
	}
	assert.Positive(t, trees)
}

func TestGenerate_TinyGrid(t *testing.T) {
	g, err := Generate(1, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, Road, g.TerrainAt(Point{0, 0}))
}
