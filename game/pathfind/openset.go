package pathfind

import (
	"container/heap"

	"github.com/kasuganosora/gridpath/game/grid"
)

type openItem struct {
	node         grid.Point
	fCost        float64
	seq          uint64
	indexInQueue int
}

// openQueue orders by f; equal f pops in insertion order.
type openQueue []*openItem

func (q openQueue) Len() int { return len(q) }
func (q openQueue) Less(i, j int) bool {
	if q[i].fCost != q[j].fCost {
		return q[i].fCost < q[j].fCost
	}
	return q[i].seq < q[j].seq
}
func (q openQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].indexInQueue = i
	q[j].indexInQueue = j
}

func (q *openQueue) Push(x any) {
	item := x.(*openItem)
	item.indexInQueue = len(*q)
	*q = append(*q, item)
}

func (q *openQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.indexInQueue = -1
	*q = old[:n-1]
	return item
}

// openSet is the frontier of a search: a heap plus a membership index for decrease-key.
type openSet struct {
	queue openQueue
	index map[grid.Point]*openItem
	seq   uint64
}

func newOpenSet() *openSet {
	return &openSet{index: make(map[grid.Point]*openItem)}
}

func (s *openSet) Len() int { return s.queue.Len() }

func (s *openSet) Contains(p grid.Point) bool {
	_, ok := s.index[p]
	return ok
}

// Upsert inserts p with priority f, or re-prioritises it if already present.
// A re-prioritised item keeps its first insertion order for ties.
func (s *openSet) Upsert(p grid.Point, f float64) {
	if item, ok := s.index[p]; ok {
		item.fCost = f
		heap.Fix(&s.queue, item.indexInQueue)
		return
	}
	s.seq++
	item := &openItem{node: p, fCost: f, seq: s.seq}
	heap.Push(&s.queue, item)
	s.index[p] = item
}

// PopMin removes the lowest-f tile.
func (s *openSet) PopMin() (grid.Point, float64) {
	item := heap.Pop(&s.queue).(*openItem)
	delete(s.index, item.node)
	return item.node, item.fCost
}
