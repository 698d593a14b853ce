package pathfind

import "sync"

// RequestQueue is an unbounded FIFO of pending requests. Producers may call
// Enqueue from any goroutine; the pather is the only consumer.
type RequestQueue struct {
	mu    sync.Mutex
	items []*Request
	head  int
}

// NewRequestQueue creates an empty queue.
func NewRequestQueue() *RequestQueue {
	return &RequestQueue{}
}

// Enqueue appends req to the tail.
func (q *RequestQueue) Enqueue(req *Request) {
	q.mu.Lock()
	q.items = append(q.items, req)
	q.mu.Unlock()
}

// Dequeue removes and returns the head, or false when empty.
func (q *RequestQueue) Dequeue() (*Request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.head >= len(q.items) {
		return nil, false
	}
	req := q.items[q.head]
	q.items[q.head] = nil
	q.head++
	// Compact once the consumed prefix dominates the backing array.
	if q.head > 64 && q.head*2 >= len(q.items) {
		n := copy(q.items, q.items[q.head:])
		q.items = q.items[:n]
		q.head = 0
	}
	return req, true
}

// Len is the number of queued requests.
func (q *RequestQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// Clear empties the queue and returns what was in it, oldest first.
func (q *RequestQueue) Clear() []*Request {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*Request, len(q.items)-q.head)
	copy(out, q.items[q.head:])
	q.items = nil
	q.head = 0
	return out
}
