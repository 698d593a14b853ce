package world

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kasuganosora/gridpath/cache"
	"go.uber.org/zap"
)

// ErrStatusNotFound is returned for unknown or expired request IDs.
var ErrStatusNotFound = errors.New("world: request status not found")

// RecentLimit is how many outcomes each map keeps in its recent list.
const RecentLimit = 50

const publishTimeout = 2 * time.Second

func statusKey(requestID string) string { return "path:req:" + requestID }

func recentKey(mapID string) string { return "path:recent:" + mapID }

type publishJob struct {
	status RequestStatus
	event  *CompletionEvent
}

// Publisher records request statuses in the cache and fans completion events
// out over pub/sub. A single worker applies updates in submission order so a
// queued record never overwrites a terminal one.
type Publisher struct {
	cache    cache.Cache
	ps       cache.PubSub
	ttl      time.Duration
	now      func() time.Time
	jobs     chan publishJob
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	logger   *zap.Logger
}

// NewPublisher starts the publishing worker. ttl bounds how long status
// records live; zero keeps them until evicted.
func NewPublisher(c cache.Cache, ps cache.PubSub, ttl time.Duration, logger *zap.Logger) *Publisher {
	p := &Publisher{
		cache:  c,
		ps:     ps,
		ttl:    ttl,
		now:    time.Now,
		jobs:   make(chan publishJob, 4096),
		stopCh: make(chan struct{}),
		logger: logger,
	}
	p.wg.Add(1)
	go p.worker()
	return p
}

func (p *Publisher) Queued(mapID, requestID string) {
	p.enqueue(publishJob{status: RequestStatus{RequestID: requestID, MapID: mapID, Status: StatusQueued}})
}

func (p *Publisher) Rejected(mapID, requestID string, err error) {
	st := RequestStatus{RequestID: requestID, MapID: mapID, Status: StatusRejected}
	if err != nil {
		st.Error = err.Error()
	}
	p.enqueue(publishJob{status: st})
}

func (p *Publisher) Completed(ev CompletionEvent) {
	p.enqueue(publishJob{
		status: RequestStatus{
			RequestID: ev.RequestID,
			MapID:     ev.MapID,
			Status:    ev.Status,
			Cost:      ev.Cost,
			Steps:     ev.Steps,
		},
		event: &ev,
	})
}

func (p *Publisher) Withdrawn(mapID string, requestIDs []string) {
	for _, id := range requestIDs {
		p.enqueue(publishJob{status: RequestStatus{RequestID: id, MapID: mapID, Status: StatusWithdrawn}})
	}
}

func (p *Publisher) enqueue(job publishJob) {
	select {
	case p.jobs <- job:
	default:
		p.logger.Warn("publisher queue full, dropping update",
			zap.String("request_id", job.status.RequestID),
			zap.String("status", job.status.Status))
	}
}

// Stop drains pending updates and stops the worker.
func (p *Publisher) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()
}

func (p *Publisher) worker() {
	defer p.wg.Done()
	for {
		select {
		case job := <-p.jobs:
			p.apply(job)
		case <-p.stopCh:
			for {
				select {
				case job := <-p.jobs:
					p.apply(job)
				default:
					return
				}
			}
		}
	}
}

func (p *Publisher) apply(job publishJob) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	job.status.UpdatedAt = p.now().UnixMilli()
	raw, err := json.Marshal(job.status)
	if err != nil {
		p.logger.Error("encode request status", zap.Error(err))
		return
	}
	if err := p.cache.Set(ctx, statusKey(job.status.RequestID), string(raw), p.ttl); err != nil {
		p.logger.Warn("store request status failed",
			zap.String("request_id", job.status.RequestID),
			zap.Error(err))
	}
	if job.event == nil {
		return
	}

	key := recentKey(job.status.MapID)
	if err := p.cache.LPush(ctx, key, string(raw)); err == nil {
		_ = p.cache.LTrim(ctx, key, 0, RecentLimit-1)
	}

	payload, err := json.Marshal(job.event)
	if err != nil {
		p.logger.Error("encode completion event", zap.Error(err))
		return
	}
	for _, ch := range []string{MapChannel(job.event.MapID), ChannelAll} {
		if err := p.ps.Publish(ctx, ch, string(payload)); err != nil {
			p.logger.Warn("publish completion event failed",
				zap.String("channel", ch),
				zap.String("request_id", job.event.RequestID),
				zap.Error(err))
		}
	}
}

// LoadStatus reads the mailbox record for requestID.
func LoadStatus(ctx context.Context, c cache.Cache, requestID string) (*RequestStatus, error) {
	raw, err := c.Get(ctx, statusKey(requestID))
	if cache.IsNotFound(err) {
		return nil, ErrStatusNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("world: load status %s: %w", requestID, err)
	}
	var st RequestStatus
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, fmt.Errorf("world: decode status %s: %w", requestID, err)
	}
	return &st, nil
}

// RecentOutcomes returns up to n of the latest outcomes on mapID, newest first.
func RecentOutcomes(ctx context.Context, c cache.Cache, mapID string, n int) ([]RequestStatus, error) {
	if n <= 0 || n > RecentLimit {
		n = RecentLimit
	}
	raws, err := c.LRange(ctx, recentKey(mapID), 0, int64(n-1))
	if err != nil {
		return nil, err
	}
	out := make([]RequestStatus, 0, len(raws))
	for _, raw := range raws {
		var st RequestStatus
		if err := json.Unmarshal([]byte(raw), &st); err != nil {
			continue
		}
		out = append(out, st)
	}
	return out, nil
}
