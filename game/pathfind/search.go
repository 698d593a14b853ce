package pathfind

import (
	"time"

	"github.com/kasuganosora/gridpath/game/grid"
)

// neighbourOffsets is the fixed expansion order: north, east, south, west.
var neighbourOffsets = [4]grid.Point{{X: 0, Y: 1}, {X: 1, Y: 0}, {X: 0, Y: -1}, {X: -1, Y: 0}}

// search is the resumable state of one best-first search. It survives between
// ticks untouched; nothing in it refers to a previous request.
type search struct {
	grid      *grid.Grid
	req       *Request
	heuristic Heuristic
	minStep   float64

	open *openSet
	best map[grid.Point]float64

	expanded  int
	slices    int
	startedAt time.Time

	done  bool
	found bool
}

func newSearch(g *grid.Grid, req *Request, h Heuristic, now time.Time) *search {
	s := &search{
		grid:      g,
		req:       req,
		heuristic: h,
		minStep:   req.Profile.Speed * g.Costs().MinCost(),
		open:      newOpenSet(),
		best:      map[grid.Point]float64{req.Start: 0},
		startedAt: now,
	}
	if req.Start == req.Goal {
		s.done, s.found = true, true
		return s
	}
	s.open.Upsert(req.Start, s.estimate(req.Start))
	return s
}

func (s *search) estimate(p grid.Point) float64 {
	return s.heuristic.Estimate(p, s.req.Start, s.req.Goal, s.minStep)
}

// step expands one tile and reports whether the search has terminated.
func (s *search) step() bool {
	if s.done {
		return true
	}
	if s.open.Len() == 0 {
		s.done = true
		return true
	}

	node, _ := s.open.PopMin()
	if node == s.req.Goal {
		s.done, s.found = true, true
		return true
	}
	s.expanded++

	g := s.best[node]
	for _, d := range neighbourOffsets {
		nb := grid.Point{X: node.X + d.X, Y: node.Y + d.Y}
		if !s.grid.InBounds(nb) {
			continue
		}
		mult, ok := s.grid.MovementCost(s.grid.TerrainAt(nb))
		if !ok {
			continue
		}
		candidate := g + s.req.Profile.Speed*mult
		if prev, seen := s.best[nb]; seen && prev <= candidate {
			continue
		}
		s.best[nb] = candidate
		s.open.Upsert(nb, candidate+s.estimate(nb))
	}
	return false
}

// run steps until the search terminates, the deadline passes or cancelled
// reports true. The clock is read after every expansion.
func (s *search) run(deadline time.Time, now func() time.Time, cancelled func() bool) (done, aborted bool) {
	s.slices++
	for {
		if cancelled() {
			return false, true
		}
		if s.step() {
			return true, false
		}
		if now().After(deadline) {
			return false, false
		}
	}
}

func (s *search) result(now time.Time) Result {
	res := Result{
		RequestID: s.req.ID,
		Found:     s.found,
		Expanded:  s.expanded,
		Slices:    s.slices,
		Elapsed:   now.Sub(s.startedAt),
	}
	if s.found {
		res.Path = reconstruct(s.best, s.req.Start, s.req.Goal)
		// An overestimating heuristic can settle the goal above the cost of
		// the descended path, so the cost is taken from the path itself.
		res.Cost = PathCost(s.grid, s.req.Profile, res.Path)
	}
	return res
}
