package grid

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrNonPositiveCost is returned when a cost table holds a zero, negative or NaN multiplier.
	ErrNonPositiveCost = errors.New("grid: movement cost must be positive")
	// ErrNoPassableTerrain is returned when no terrain in the cost table can be crossed.
	ErrNoPassableTerrain = errors.New("grid: cost table has no passable terrain")
	// ErrInvalidSize is returned for grids with a non-positive edge length.
	ErrInvalidSize = errors.New("grid: size must be positive")
)

// Point is a tile coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Point) String() string { return fmt.Sprintf("(%d,%d)", p.X, p.Y) }

// TerrainType tags every tile of a grid.
type TerrainType int

const (
	Grass TerrainType = iota
	Road
	Trees
	Rock
	Water
	Dirt
	Sand
	Invalid
)

var terrainNames = [...]string{"grass", "road", "trees", "rock", "water", "dirt", "sand", "invalid"}

func (t TerrainType) String() string {
	if t < 0 || int(t) >= len(terrainNames) {
		return "invalid"
	}
	return terrainNames[t]
}

// ParseTerrain maps a terrain name back to its TerrainType.
func ParseTerrain(name string) (TerrainType, error) {
	for i, n := range terrainNames {
		if n == name && TerrainType(i) != Invalid {
			return TerrainType(i), nil
		}
	}
	return Invalid, fmt.Errorf("grid: unknown terrain %q", name)
}

// CostTable holds the movement multiplier for crossing one tile of each terrain.
// Terrains missing from the table, or mapped to +Inf, cannot be entered.
type CostTable map[TerrainType]float64

// DefaultCosts returns grass 1, road 0.25 and trees 3; everything else is impassable.
func DefaultCosts() CostTable {
	return CostTable{
		Grass: 1,
		Road:  0.25,
		Trees: 3,
	}
}

// Validate rejects multipliers that would break heuristic admissibility.
func (ct CostTable) Validate() error {
	passable := false
	for t, c := range ct {
		if math.IsNaN(c) || c <= 0 {
			return fmt.Errorf("%w: %s=%v", ErrNonPositiveCost, t, c)
		}
		if !math.IsInf(c, 1) {
			passable = true
		}
	}
	if !passable {
		return ErrNoPassableTerrain
	}
	return nil
}

// Cost returns the multiplier for t and whether t can be entered at all.
func (ct CostTable) Cost(t TerrainType) (float64, bool) {
	c, ok := ct[t]
	if !ok || math.IsInf(c, 1) {
		return 0, false
	}
	return c, true
}

// MinCost is the cheapest passable multiplier, or +Inf if nothing is passable.
func (ct CostTable) MinCost() float64 {
	min := math.Inf(1)
	for _, c := range ct {
		if c < min {
			min = c
		}
	}
	return min
}

func (ct CostTable) clone() CostTable {
	out := make(CostTable, len(ct))
	for t, c := range ct {
		out[t] = c
	}
	return out
}

// Tile is a single grid cell.
type Tile struct {
	X       int
	Y       int
	Terrain TerrainType
}

// Grid is a square tile map stored row-major (x + y*size).
// It is read-only once bound to a pather; Set is for generators and loaders.
type Grid struct {
	size  int
	tiles []TerrainType
	costs CostTable
}

// New creates a size×size grid of grass tiles.
func New(size int, costs CostTable) (*Grid, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	if costs == nil {
		costs = DefaultCosts()
	}
	if err := costs.Validate(); err != nil {
		return nil, err
	}
	return &Grid{
		size:  size,
		tiles: make([]TerrainType, size*size),
		costs: costs.clone(),
	}, nil
}

// Size is the edge length of the grid.
func (g *Grid) Size() int { return g.size }

// Costs returns a copy of the grid's movement cost table.
func (g *Grid) Costs() CostTable { return g.costs.clone() }

// InBounds reports whether p addresses a tile of the grid.
func (g *Grid) InBounds(p Point) bool {
	return p.X >= 0 && p.X < g.size && p.Y >= 0 && p.Y < g.size
}

// TileAt returns the tile at (x, y), or false when out of bounds.
func (g *Grid) TileAt(x, y int) (Tile, bool) {
	if !g.InBounds(Point{x, y}) {
		return Tile{}, false
	}
	return Tile{X: x, Y: y, Terrain: g.tiles[x+y*g.size]}, true
}

// TerrainAt returns the terrain at p, or Invalid when out of bounds.
func (g *Grid) TerrainAt(p Point) TerrainType {
	if !g.InBounds(p) {
		return Invalid
	}
	return g.tiles[p.X+p.Y*g.size]
}

// Set changes the terrain at (x, y). Out-of-bounds writes are ignored.
func (g *Grid) Set(x, y int, t TerrainType) {
	if g.InBounds(Point{x, y}) {
		g.tiles[x+y*g.size] = t
	}
}

// MovementCost returns the multiplier for crossing a tile of type t.
func (g *Grid) MovementCost(t TerrainType) (float64, bool) {
	return g.costs.Cost(t)
}

// Passable reports whether the tile at p exists and can be entered.
func (g *Grid) Passable(p Point) bool {
	_, ok := g.costs.Cost(g.TerrainAt(p))
	return ok
}
