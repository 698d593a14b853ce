package pathfind

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/kasuganosora/gridpath/game/grid"
)

// Heuristic estimates the remaining cost from node to goal. minStep is the
// cheapest cost of entering one tile for the requesting agent.
type Heuristic interface {
	Estimate(node, start, goal grid.Point, minStep float64) float64
}

// Heuristic names accepted by NewHeuristic.
const (
	HeuristicManhattan    = "manhattan"
	HeuristicCrossProduct = "cross"
	HeuristicJitter       = "jitter"
)

func manhattan(a, b grid.Point) int {
	dx := a.X - b.X
	if dx < 0 {
		dx = -dx
	}
	dy := a.Y - b.Y
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

// Manhattan is weight × manhattan distance × minStep. Admissible for Weight <= 1.
type Manhattan struct {
	Weight float64
}

func (m Manhattan) Estimate(node, _, goal grid.Point, minStep float64) float64 {
	return m.Weight * float64(manhattan(node, goal)) * minStep
}

// CrossProduct adds a small penalty proportional to how far node strays from
// the straight start→goal line, so ties resolve towards direct-looking paths.
// The cross product is divided by the start-goal distance, which keeps the
// penalty near Bias × (tiles off the line) × minStep on any map size. It is
// not admissible: paths may cost slightly more than optimal.
type CrossProduct struct {
	Weight float64
	Bias   float64
}

func (c CrossProduct) Estimate(node, start, goal grid.Point, minStep float64) float64 {
	dx1 := node.X - goal.X
	dy1 := node.Y - goal.Y
	dx2 := start.X - goal.X
	dy2 := start.Y - goal.Y
	cross := math.Abs(float64(dx1*dy2-dx2*dy1)) / float64(max(1, manhattan(start, goal)))
	return c.Weight*float64(manhattan(node, goal))*minStep + cross*c.Bias*minStep
}

// Jitter adds uniform noise in [0, Spread×minStep) to the Manhattan estimate.
// Paths are reproducible only for the same seed and request order.
type Jitter struct {
	Weight float64
	Spread float64
	rng    *rand.Rand
}

// NewJitter creates a jitter heuristic with its own seeded source.
func NewJitter(weight, spread float64, seed uint64) *Jitter {
	return &Jitter{
		Weight: weight,
		Spread: spread,
		rng:    rand.New(rand.NewPCG(seed, seed+1)),
	}
}

func (j *Jitter) Estimate(node, _, goal grid.Point, minStep float64) float64 {
	return j.Weight*float64(manhattan(node, goal))*minStep + j.rng.Float64()*j.Spread*minStep
}

// HeuristicConfig selects and parameterises a heuristic.
type HeuristicConfig struct {
	Name   string
	Weight float64
	Bias   float64
	Spread float64
	Seed   uint64
}

// NewHeuristic builds the heuristic named in cfg. An empty name selects Manhattan.
func NewHeuristic(cfg HeuristicConfig) (Heuristic, error) {
	weight := cfg.Weight
	if weight <= 0 {
		weight = 1
	}
	switch cfg.Name {
	case "", HeuristicManhattan:
		return Manhattan{Weight: weight}, nil
	case HeuristicCrossProduct:
		bias := cfg.Bias
		if bias <= 0 {
			bias = 0.001
		}
		return CrossProduct{Weight: weight, Bias: bias}, nil
	case HeuristicJitter:
		spread := cfg.Spread
		if spread <= 0 {
			spread = 0.01
		}
		return NewJitter(weight, spread, cfg.Seed), nil
	default:
		return nil, fmt.Errorf("pathfind: unknown heuristic %q", cfg.Name)
	}
}
