package world

import (
	"github.com/kasuganosora/gridpath/game/grid"
	"github.com/kasuganosora/gridpath/game/pathfind"
)

// Request status values, as stored in the status mailbox and carried by events.
const (
	StatusQueued    = "queued"
	StatusFound     = "found"
	StatusExhausted = "exhausted"
	StatusWithdrawn = "withdrawn"
	StatusRejected  = "rejected"
)

// ChannelAll carries completion events from every room.
const ChannelAll = "path:all"

// MapChannel is the pub/sub channel for one room's completion events.
func MapChannel(mapID string) string { return "path:" + mapID }

// CompletionEvent is published once per delivered result.
type CompletionEvent struct {
	RequestID string       `json:"request_id"`
	MapID     string       `json:"map_id"`
	Status    string       `json:"status"`
	Found     bool         `json:"found"`
	Cost      float64      `json:"cost"`
	Steps     int          `json:"steps"`
	Path      []grid.Point `json:"path,omitempty"`
	Expanded  int          `json:"expanded"`
	Slices    int          `json:"slices"`
	ElapsedMs float64      `json:"elapsed_ms"`
}

func newCompletionEvent(mapID string, res pathfind.Result) CompletionEvent {
	status := StatusExhausted
	if res.Found {
		status = StatusFound
	}
	return CompletionEvent{
		RequestID: res.RequestID,
		MapID:     mapID,
		Status:    status,
		Found:     res.Found,
		Cost:      res.Cost,
		Steps:     res.Steps(),
		Path:      res.Path,
		Expanded:  res.Expanded,
		Slices:    res.Slices,
		ElapsedMs: float64(res.Elapsed.Microseconds()) / 1000,
	}
}

// RequestStatus is the mailbox record for a request. It never holds the path.
type RequestStatus struct {
	RequestID string  `json:"request_id"`
	MapID     string  `json:"map_id"`
	Status    string  `json:"status"`
	Cost      float64 `json:"cost,omitempty"`
	Steps     int     `json:"steps,omitempty"`
	Error     string  `json:"error,omitempty"`
	UpdatedAt int64   `json:"updated_at"` // unix millis
}

// EventSink receives request lifecycle updates from rooms. Implementations
// must not block the calling tick loop.
type EventSink interface {
	Queued(mapID, requestID string)
	Rejected(mapID, requestID string, err error)
	Completed(ev CompletionEvent)
	Withdrawn(mapID string, requestIDs []string)
}

type nopSink struct{}

func (nopSink) Queued(string, string)          {}
func (nopSink) Rejected(string, string, error) {}
func (nopSink) Completed(CompletionEvent)      {}
func (nopSink) Withdrawn(string, []string)     {}
