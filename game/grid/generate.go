package grid

import "math/rand/v2"

const (
	forestSeeds          = 50
	forestMaxGenerations = 500
	forestSpreadChance   = 20 // percent per neighbouring tree
)

// road leg step lengths: 1:20%, 2:50%, 3:20%, 4:10%
var straightDistanceOdds = [10]int{1, 1, 2, 2, 2, 2, 2, 3, 3, 4}

var turnDistanceOdds = [50]int{
	-4,
	-4, -4,
	-3, -3, -3,
	-2, -2, -2, -2,
	-1, -1, -1, -1, -1,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	1, 1, 1, 1, 1,
	2, 2, 2, 2,
	3, 3, 3,
	4, 4,
	4,
}

// Direction is a cardinal heading. North is +Y.
type Direction int

const (
	North Direction = iota
	East
	South
	West
)

// Generate builds a grass field with grown forests and four road legs running
// from the centre towards the edges. The same seed always yields the same grid.
func Generate(size int, seed uint64, costs CostTable) (*Grid, error) {
	g, err := New(size, costs)
	if err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	if size > 4 {
		g.growForests(rng)
	}
	g.paintRoads(rng)
	return g, nil
}

// between returns an int in [lo, hi).
func between(rng *rand.Rand, lo, hi int) int {
	return lo + rng.IntN(hi-lo)
}

func (g *Grid) growForests(rng *rand.Rand) {
	for i := 0; i < forestSeeds; i++ {
		sx := between(rng, 2, g.size-2)
		sy := between(rng, 2, g.size-2)

		g.Set(sx, sy, Trees)
		g.Set(sx-1, sy, Trees)
		g.Set(sx, sy-1, Trees)
		g.Set(sx+1, sy, Trees)
		g.Set(sx, sy+1, Trees)

		open := []Point{
			{sx - 1, sy - 1},
			{sx + 1, sy + 1},
			{sx - 1, sy + 1},
			{sx + 1, sy - 1},
		}

		for gen := 0; gen < forestMaxGenerations && len(open) > 0; gen++ {
			cur := open[0]
			open = open[1:]

			t := g.TerrainAt(cur)
			if t == Trees || t == Invalid {
				continue
			}

			chance := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if g.TerrainAt(Point{cur.X + dx, cur.Y + dy}) == Trees {
						chance += forestSpreadChance
					}
				}
			}

			if rng.IntN(100) < chance {
				g.Set(cur.X, cur.Y, Trees)
				open = append(open,
					Point{cur.X - 1, cur.Y},
					Point{cur.X, cur.Y - 1},
					Point{cur.X + 1, cur.Y},
					Point{cur.X, cur.Y + 1},
				)
			}
		}
	}
}

func (g *Grid) paintRoads(rng *rand.Rand) {
	left := []Direction{North, East, South, West}
	for leg := 0; leg < 4; leg++ {
		i := rng.IntN(len(left))
		dir := left[i]
		left = append(left[:i], left[i+1:]...)

		x, y := g.size/2, g.size/2
		for g.TerrainAt(Point{x, y}) != Invalid {
			straight := straightDistanceOdds[rng.IntN(len(straightDistanceOdds))]
			turn := turnDistanceOdds[rng.IntN(len(turnDistanceOdds))]
			x, y = g.paintRoadLeg(x, y, dir, straight, turn)
		}
	}
}

// paintRoadLeg paints one vertical then one horizontal road segment and returns the new head.
func (g *Grid) paintRoadLeg(x, y int, dir Direction, straight, turn int) (int, int) {
	ox, oy := x, y
	switch dir {
	case North:
		x += turn
		y += straight
	case South:
		x += turn
		y -= straight
	case West:
		x -= straight
		y += turn
	case East:
		x += straight
		y += turn
	}
	g.paintRoadLine(ox, oy, ox, y)
	g.paintRoadLine(ox, y, x, y)
	return x, y
}

func (g *Grid) paintRoadLine(x1, y1, x2, y2 int) {
	if x1 == x2 {
		if y1 > y2 {
			y1, y2 = y2, y1
		}
		for y := y1; y <= y2; y++ {
			g.Set(x1, y, Road)
		}
		return
	}
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	for x := x1; x <= x2; x++ {
		g.Set(x, y1, Road)
	}
}
