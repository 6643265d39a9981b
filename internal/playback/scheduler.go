package playback

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/membership-portal/internal/progress"
)

// Kind selects the delivery policy for a scheduled payload.
type Kind int

const (
	// Throttled payloads leave at most once per window, leading and trailing edge.
	Throttled Kind = iota
	// Debounced payloads leave once, delay after the last input.
	Debounced
	// Immediate payloads bypass both policies.
	Immediate
)

func (k Kind) String() string {
	switch k {
	case Throttled:
		return "throttled"
	case Debounced:
		return "debounced"
	case Immediate:
		return "immediate"
	}
	return "unknown"
}

// Sender delivers one sync payload to the server.
type Sender interface {
	Send(ctx context.Context, req progress.SyncRequest) error
}

type SchedulerConfig struct {
	ThrottleWindow time.Duration
	DebounceDelay  time.Duration
	RetryBackoff   time.Duration
	SendTimeout    time.Duration
	QueueSize      int
}

func (c *SchedulerConfig) withDefaults() {
	if c.ThrottleWindow <= 0 {
		c.ThrottleWindow = 10 * time.Second
	}
	if c.DebounceDelay <= 0 {
		c.DebounceDelay = 300 * time.Millisecond
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 5 * time.Second
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 10 * time.Second
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
}

type pending struct {
	req progress.SyncRequest
	seq uint64
}

type job struct {
	req     progress.SyncRequest
	attempt int
}

// Scheduler bounds how often progress updates leave the client. Sends run in
// order on a single goroutine so Schedule never blocks the caller.
type Scheduler struct {
	cfg    SchedulerConfig
	clock  Clock
	sender Sender
	log    *zap.Logger

	mu  sync.Mutex
	seq uint64

	windowOpen  bool
	windowGen   uint64
	windowTimer Timer
	trailing    *pending

	debounceGen   uint64
	debounceTimer Timer
	debounced     *pending

	retryID uint64
	retries map[uint64]Timer

	stopped bool
	queue   chan job
	done    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewScheduler(sender Sender, clock Clock, log *zap.Logger, cfg SchedulerConfig) *Scheduler {
	cfg.withDefaults()
	if clock == nil {
		clock = RealClock()
	}
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cfg:     cfg,
		clock:   clock,
		sender:  sender,
		log:     log,
		retries: make(map[uint64]Timer),
		queue:   make(chan job, cfg.QueueSize),
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
	go s.run()
	return s
}

// Schedule hands a payload to the policy named by kind.
func (s *Scheduler) Schedule(kind Kind, req progress.SyncRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.seq++
	p := &pending{req: req, seq: s.seq}

	switch kind {
	case Throttled:
		if !s.windowOpen {
			s.openWindowLocked()
			s.enqueueLocked(job{req: req})
			return
		}
		s.trailing = p
	case Debounced:
		s.debounced = p
		s.stopDebounceLocked()
		s.debounceGen++
		gen := s.debounceGen
		s.debounceTimer = s.clock.AfterFunc(s.cfg.DebounceDelay, func() { s.debounceFired(gen) })
	default:
		// Anything still pending was sampled earlier than this payload.
		s.trailing = nil
		s.debounced = nil
		s.stopDebounceLocked()
		s.enqueueLocked(job{req: req})
	}
}

func (s *Scheduler) openWindowLocked() {
	s.windowOpen = true
	s.windowGen++
	gen := s.windowGen
	s.windowTimer = s.clock.AfterFunc(s.cfg.ThrottleWindow, func() { s.windowClosed(gen) })
}

func (s *Scheduler) windowClosed(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.windowGen || s.stopped {
		return
	}
	s.windowOpen = false
	s.windowTimer = nil
	if s.trailing == nil {
		return
	}
	req := s.trailing.req
	s.trailing = nil
	s.openWindowLocked()
	s.enqueueLocked(job{req: req})
}

func (s *Scheduler) debounceFired(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.debounceGen || s.stopped || s.debounced == nil {
		return
	}
	req := s.debounced.req
	s.debounced = nil
	s.debounceTimer = nil
	s.enqueueLocked(job{req: req})
}

func (s *Scheduler) stopDebounceLocked() {
	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
		s.debounceTimer = nil
	}
	s.debounceGen++
}

// FlushAll sends every pending payload now, oldest first.
func (s *Scheduler) FlushAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	var out []*pending
	if s.trailing != nil {
		out = append(out, s.trailing)
	}
	if s.debounced != nil {
		out = append(out, s.debounced)
	}
	s.trailing = nil
	s.debounced = nil
	s.stopDebounceLocked()

	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	for _, p := range out {
		s.enqueueLocked(job{req: p.req})
	}
}

// CancelAll stops every timer and drops pending payloads, including scheduled retries.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelAllLocked()
}

func (s *Scheduler) cancelAllLocked() {
	if s.windowTimer != nil {
		s.windowTimer.Stop()
		s.windowTimer = nil
	}
	s.windowGen++
	s.windowOpen = false
	s.trailing = nil

	s.stopDebounceLocked()
	s.debounced = nil

	for id, t := range s.retries {
		t.Stop()
		delete(s.retries, id)
	}
}

// Stop flushes pending payloads, cancels timers and waits for queued sends to
// finish. In-flight sends are abandoned when ctx expires first.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.FlushAll()

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		<-s.done
		return nil
	}
	s.cancelAllLocked()
	s.stopped = true
	close(s.queue)
	s.mu.Unlock()

	select {
	case <-s.done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		<-s.done
		return ctx.Err()
	}
}

func (s *Scheduler) enqueueLocked(j job) {
	select {
	case s.queue <- j:
	default:
		s.log.Debug("progress sync queue full, dropping update",
			zap.String("content_item_id", j.req.ContentItemID))
	}
}

func (s *Scheduler) run() {
	defer close(s.done)
	for j := range s.queue {
		s.deliver(j)
	}
}

func (s *Scheduler) deliver(j job) {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.SendTimeout)
	err := s.sender.Send(ctx, j.req)
	cancel()
	if err == nil {
		return
	}

	if j.attempt > 0 || !Retriable(err) {
		s.log.Debug("progress sync dropped",
			zap.String("content_item_id", j.req.ContentItemID),
			zap.Int("attempt", j.attempt+1),
			zap.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.retryID++
	id := s.retryID
	next := job{req: j.req, attempt: j.attempt + 1}
	s.retries[id] = s.clock.AfterFunc(s.cfg.RetryBackoff, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.retries[id]; !ok || s.stopped {
			return
		}
		delete(s.retries, id)
		s.enqueueLocked(next)
	})
}
