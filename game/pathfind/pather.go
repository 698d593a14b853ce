package pathfind

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/kasuganosora/gridpath/game/grid"
	"go.uber.org/zap"
)

// DefaultSliceBudget is the longest a single Tick keeps searching before yielding.
const DefaultSliceBudget = 16 * time.Millisecond

// State is the scheduling state of a Pather.
type State int32

const (
	StateNotReady State = iota
	StateIdle
	StateActive
)

func (s State) String() string {
	switch s {
	case StateNotReady:
		return "not_ready"
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Options configures a Pather.
type Options struct {
	SliceBudget time.Duration
	Heuristic   Heuristic
	Now         func() time.Time
	Observer    Observer
}

// Option is a function that modifies Options.
type Option func(*Options)

// WithSliceBudget sets the per-tick search budget.
func WithSliceBudget(d time.Duration) Option {
	return func(o *Options) { o.SliceBudget = d }
}

// WithHeuristic replaces the default weight-1 Manhattan heuristic.
func WithHeuristic(h Heuristic) Option {
	return func(o *Options) { o.Heuristic = h }
}

// WithClock replaces time.Now for slice accounting.
func WithClock(now func() time.Time) Option {
	return func(o *Options) { o.Now = now }
}

// WithObserver registers an event observer.
func WithObserver(obs Observer) Option {
	return func(o *Options) { o.Observer = obs }
}

// Stats are cumulative driver counters.
type Stats struct {
	Ticks     uint64        `json:"ticks"`
	Yields    uint64        `json:"yields"`
	Found     uint64        `json:"found"`
	Exhausted uint64        `json:"exhausted"`
	Withdrawn uint64        `json:"withdrawn"`
	Expanded  uint64        `json:"expanded"`
	HostTime  time.Duration `json:"host_time"`
}

// TickReport describes what a single Tick did.
type TickReport struct {
	State     State
	Completed int
	Yielded   bool
	Cancelled bool
}

type binding struct {
	grid       *grid.Grid
	generation uint64
	ready      bool
}

type completion struct {
	req *Request
	res Result
}

// Pather serves path requests one at a time, spreading each search over as
// many Ticks as needed so no Tick runs longer than the slice budget.
type Pather struct {
	mu         sync.Mutex // held for the duration of a slice
	queue      *RequestQueue
	pending    map[*Request]uint64
	pendingMu  sync.Mutex
	active     *search
	generation uint64

	bound      atomic.Pointer[binding]
	invalidate atomic.Bool
	state      atomic.Int32

	statsMu sync.Mutex
	stats   Stats

	opts   Options
	logger *zap.Logger
}

// New creates a Pather with no grid bound.
func New(logger *zap.Logger, options ...Option) *Pather {
	opts := Options{
		SliceBudget: DefaultSliceBudget,
		Heuristic:   Manhattan{Weight: 1},
		Now:         time.Now,
		Observer:    nopObserver{},
	}
	for _, o := range options {
		o(&opts)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pather{
		queue:   NewRequestQueue(),
		pending: make(map[*Request]uint64),
		opts:    opts,
		logger:  logger,
	}
	p.state.Store(int32(StateNotReady))
	return p
}

// Bind installs g as the active grid. Any in-flight search and every queued
// request are withdrawn without notification and returned oldest first.
func (p *Pather) Bind(g *grid.Grid) ([]*Request, error) {
	if g == nil {
		return nil, ErrNilGrid
	}
	if err := g.Costs().Validate(); err != nil {
		return nil, err
	}
	withdrawn := p.invalidateWith(func(gen uint64) *binding {
		return &binding{grid: g, generation: gen, ready: true}
	})
	p.state.Store(int32(StateIdle))
	p.logger.Info("pathfinder grid bound",
		zap.Int("size", g.Size()),
		zap.Int("withdrawn", len(withdrawn)))
	return withdrawn, nil
}

// Unbind drops readiness. In-flight and queued requests are withdrawn and
// Submit fails with ErrNotReady until the next Bind.
func (p *Pather) Unbind() []*Request {
	withdrawn := p.invalidateWith(func(gen uint64) *binding {
		return &binding{generation: gen}
	})
	p.state.Store(int32(StateNotReady))
	p.logger.Info("pathfinder grid unbound", zap.Int("withdrawn", len(withdrawn)))
	return withdrawn
}

func (p *Pather) invalidateWith(next func(gen uint64) *binding) []*Request {
	// Raised before taking the lock so a running slice stops at its next expansion.
	p.invalidate.Store(true)
	p.mu.Lock()
	var withdrawn []*Request
	if p.active != nil {
		withdrawn = append(withdrawn, p.active.req)
		p.active = nil
	}
	withdrawn = append(withdrawn, p.queue.Clear()...)
	p.generation++
	p.bound.Store(next(p.generation))
	p.invalidate.Store(false)
	p.mu.Unlock()

	p.forget(withdrawn)
	p.withdraw(withdrawn)
	return withdrawn
}

func (p *Pather) withdraw(reqs []*Request) {
	if len(reqs) == 0 {
		return
	}
	p.statsMu.Lock()
	p.stats.Withdrawn += uint64(len(reqs))
	p.statsMu.Unlock()
	p.opts.Observer.RequestsWithdrawn(reqs)
}

func (p *Pather) forget(reqs []*Request) {
	p.pendingMu.Lock()
	for _, r := range reqs {
		delete(p.pending, r)
	}
	p.pendingMu.Unlock()
}

// Submit validates req against the bound grid and queues it. Validation
// failures are returned synchronously and nothing is queued.
func (p *Pather) Submit(req Request) (Handle, error) {
	b := p.bound.Load()
	if b == nil || !b.ready {
		return Handle{}, ErrNotReady
	}
	if err := req.Profile.validate(); err != nil {
		return Handle{}, err
	}
	if req.OnComplete == nil {
		return Handle{}, ErrNilCallback
	}
	if !b.grid.InBounds(req.Start) {
		return Handle{}, fmt.Errorf("%w: start %v", ErrOutOfBounds, req.Start)
	}
	if !b.grid.InBounds(req.Goal) {
		return Handle{}, fmt.Errorf("%w: goal %v", ErrOutOfBounds, req.Goal)
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.EnqueuedAt = p.opts.Now()
	r := &req

	p.pendingMu.Lock()
	p.pending[r] = b.generation
	p.pendingMu.Unlock()
	p.queue.Enqueue(r)

	p.logger.Debug("path request queued",
		zap.String("request_id", r.ID),
		zap.Stringer("start", r.Start),
		zap.Stringer("goal", r.Goal))
	return Handle{ID: r.ID}, nil
}

// Tick runs the driver for at most one slice budget. elapsed is the host time
// since the previous Tick and only feeds Stats. Completion callbacks run after
// the slice, in request order.
func (p *Pather) Tick(elapsed time.Duration) TickReport {
	done, stale, report := p.slice(elapsed)
	p.forget(stale)
	p.withdraw(stale)
	for _, c := range done {
		p.notify(c)
	}
	return report
}

func (p *Pather) notify(c completion) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("path completion callback panicked",
				zap.String("request_id", c.req.ID),
				zap.Any("recover", r))
		}
	}()
	c.req.OnComplete(c.res)
}

func (p *Pather) slice(elapsed time.Duration) (done []completion, stale []*Request, report TickReport) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.statsMu.Lock()
	p.stats.Ticks++
	p.stats.HostTime += elapsed
	p.statsMu.Unlock()

	b := p.bound.Load()
	if b == nil || !b.ready {
		return nil, nil, TickReport{State: StateNotReady}
	}

	deadline := p.opts.Now().Add(p.opts.SliceBudget)
	for {
		if p.active == nil {
			req, ok := p.queue.Dequeue()
			if !ok {
				report.State = StateIdle
				break
			}
			if gen := p.takePending(req); gen != b.generation {
				// Validated against a grid that has since been replaced.
				stale = append(stale, req)
				continue
			}
			p.active = newSearch(b.grid, req, p.opts.Heuristic, p.opts.Now())
			p.opts.Observer.SearchStarted(req)
		}

		finished, aborted := p.active.run(deadline, p.opts.Now, p.invalidate.Load)
		if aborted {
			// The invalidator owns the in-flight request from here.
			report.State = StateNotReady
			report.Cancelled = true
			return done, stale, report
		}
		if !finished {
			report.State = StateActive
			report.Yielded = true
			p.recordYield()
			p.opts.Observer.SliceYielded(p.active.req)
			break
		}

		res := p.active.result(p.opts.Now())
		req := p.active.req
		p.active = nil
		p.recordResult(res)
		p.opts.Observer.SearchFinished(req, res)
		p.logger.Debug("path search finished",
			zap.String("request_id", req.ID),
			zap.Bool("found", res.Found),
			zap.Int("steps", res.Steps()),
			zap.Float64("cost", res.Cost),
			zap.Int("expanded", res.Expanded),
			zap.Int("slices", res.Slices))
		done = append(done, completion{req: req, res: res})
		report.Completed++

		if p.opts.Now().After(deadline) {
			report.State = StateIdle
			if p.queue.Len() > 0 {
				report.State = StateActive
				report.Yielded = true
			}
			break
		}
	}
	p.state.Store(int32(report.State))
	return done, stale, report
}

func (p *Pather) takePending(r *Request) uint64 {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	gen, ok := p.pending[r]
	if !ok {
		return 0
	}
	delete(p.pending, r)
	return gen
}

func (p *Pather) recordYield() {
	p.statsMu.Lock()
	p.stats.Yields++
	p.statsMu.Unlock()
}

func (p *Pather) recordResult(res Result) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	p.stats.Expanded += uint64(res.Expanded)
	if res.Found {
		p.stats.Found++
	} else {
		p.stats.Exhausted++
	}
}

// IsReady reports whether a grid is bound.
func (p *Pather) IsReady() bool {
	b := p.bound.Load()
	return b != nil && b.ready
}

// QueueDepth is the number of requests waiting behind the active search.
func (p *Pather) QueueDepth() int { return p.queue.Len() }

// State is the driver state as of the last Tick, Bind or Unbind.
func (p *Pather) State() State { return State(p.state.Load()) }

// Stats returns a copy of the cumulative counters.
func (p *Pather) Stats() Stats {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	return p.stats
}

// Grid returns the bound grid, or nil.
func (p *Pather) Grid() *grid.Grid {
	if b := p.bound.Load(); b != nil && b.ready {
		return b.grid
	}
	return nil
}
