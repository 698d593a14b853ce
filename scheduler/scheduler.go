package scheduler

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// TaskFn is the function signature for scheduled tasks.
type TaskFn func()

// Task kinds reported by Tasks.
const (
	KindTicker = "ticker"
	KindDelay  = "delay"
)

// TaskInfo describes a registered task for the admin API.
type TaskInfo struct {
	Name     string        `json:"name"`
	Kind     string        `json:"kind"`
	Interval time.Duration `json:"interval"`
	Runs     int64         `json:"runs"`
	Panics   int64         `json:"panics"`
	LastRun  time.Time     `json:"last_run,omitempty"`
}

// Scheduler runs the service's periodic jobs (stats logging, idle room
// reaping) and one-shot delayed jobs such as scheduled rebinds.
type Scheduler struct {
	mu      sync.Mutex
	tasks   map[string]*task
	logger  *zap.Logger
	stopCh  chan struct{}
	stopped sync.Once
}

type task struct {
	name     string
	kind     string
	interval time.Duration
	fn       TaskFn
	ticker   *time.Ticker
	timer    *time.Timer
	stopCh   chan struct{}
	runs     atomic.Int64
	panics   atomic.Int64
	lastRun  atomic.Int64 // unix nanos
}

// New creates a new Scheduler.
func New(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		tasks:  make(map[string]*task),
		stopCh: make(chan struct{}),
		logger: logger,
	}
}

// run invokes the task once, recovering and counting panics.
func (s *Scheduler) run(t *task) {
	defer func() {
		if r := recover(); r != nil {
			t.panics.Add(1)
			s.logger.Error("scheduler task panicked",
				zap.String("task", t.name),
				zap.String("kind", t.kind),
				zap.Any("recover", r))
		}
	}()
	t.runs.Add(1)
	t.lastRun.Store(time.Now().UnixNano())
	t.fn()
}

// removeLocked stops and forgets a task. Caller holds mu.
func (s *Scheduler) removeLocked(name string) {
	old, ok := s.tasks[name]
	if !ok {
		return
	}
	if old.stopCh != nil {
		close(old.stopCh)
	}
	if old.timer != nil {
		old.timer.Stop()
	}
	delete(s.tasks, name)
}

// AddTicker registers a task to run on a fixed interval.
// If a task with the same name exists, it is replaced.
func (s *Scheduler) AddTicker(name string, interval time.Duration, fn TaskFn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(name)

	t := &task{
		name:     name,
		kind:     KindTicker,
		interval: interval,
		fn:       fn,
		ticker:   time.NewTicker(interval),
		stopCh:   make(chan struct{}),
	}
	s.tasks[name] = t

	go func() {
		defer t.ticker.Stop()
		for {
			select {
			case <-t.ticker.C:
				s.run(t)
			case <-t.stopCh:
				return
			case <-s.stopCh:
				return
			}
		}
	}()
	s.logger.Info("scheduler task registered", zap.String("name", name), zap.Duration("interval", interval))
}

// AddDelay runs fn once after the given delay, replacing any pending task
// of the same name.
func (s *Scheduler) AddDelay(name string, delay time.Duration, fn TaskFn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(name)

	t := &task{name: name, kind: KindDelay, interval: delay, fn: fn}
	t.timer = time.AfterFunc(delay, func() {
		select {
		case <-s.stopCh:
			return
		default:
		}
		s.run(t)
		s.mu.Lock()
		if s.tasks[name] == t {
			delete(s.tasks, name)
		}
		s.mu.Unlock()
	})
	s.tasks[name] = t
}

// Remove stops and removes a ticker or delay task by name.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(name)
}

// Stop stops all tasks.
func (s *Scheduler) Stop() {
	s.stopped.Do(func() {
		close(s.stopCh)
		s.mu.Lock()
		for _, t := range s.tasks {
			if t.timer != nil {
				t.timer.Stop()
			}
		}
		s.mu.Unlock()
	})
}

// ListTickers returns the sorted names of all registered ticker tasks.
func (s *Scheduler) ListTickers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tasks))
	for name, t := range s.tasks {
		if t.kind == KindTicker {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Tasks returns every registered task, sorted by name.
func (s *Scheduler) Tasks() []TaskInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TaskInfo, 0, len(s.tasks))
	for _, t := range s.tasks {
		info := TaskInfo{
			Name:     t.name,
			Kind:     t.kind,
			Interval: t.interval,
			Runs:     t.runs.Load(),
			Panics:   t.panics.Load(),
		}
		if ns := t.lastRun.Load(); ns > 0 {
			info.LastRun = time.Unix(0, ns)
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
