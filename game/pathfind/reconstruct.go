package pathfind

import (
	"math"

	"github.com/kasuganosora/gridpath/game/grid"
)

// reconstruct walks the best-cost field downhill from goal to start. Each step
// moves to the cheapest orthogonal neighbour that is strictly cheaper than the
// current tile; on equal costs the first in expansion order wins. On plateaus
// this can differ from the route the forward search actually settled.
func reconstruct(best map[grid.Point]float64, start, goal grid.Point) []grid.Point {
	var stack []grid.Point
	cur := goal
	for {
		stack = append(stack, cur)
		if cur == start {
			break
		}
		curCost, ok := best[cur]
		if !ok {
			return nil
		}
		next, nextCost := cur, curCost
		for _, d := range neighbourOffsets {
			nb := grid.Point{X: cur.X + d.X, Y: cur.Y + d.Y}
			c, seen := best[nb]
			if seen && c < nextCost {
				next, nextCost = nb, c
			}
		}
		if next == cur {
			// Only the start has no cheaper neighbour in a field built by search.
			return nil
		}
		cur = next
	}

	path := make([]grid.Point, 0, len(stack))
	for len(stack) > 0 {
		path = append(path, stack[len(stack)-1])
		stack = stack[:len(stack)-1]
	}
	return path
}

// PathCost sums speed × terrain cost over every tile entered along path.
// It returns +Inf if the path leaves the grid or crosses impassable terrain.
func PathCost(g *grid.Grid, p Profile, path []grid.Point) float64 {
	var total float64
	for i := 1; i < len(path); i++ {
		mult, ok := g.MovementCost(g.TerrainAt(path[i]))
		if !ok {
			return math.Inf(1)
		}
		total += p.Speed * mult
	}
	return total
}
