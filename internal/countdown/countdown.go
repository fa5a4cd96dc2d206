// Package countdown drives the timeline engine once per tick and hands the
// latest result to the page, the terminal view and the signage job.
package countdown

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	appLog "invitecal/internal/log"
	"invitecal/internal/timeline"
)

// DefaultInterval is the tick period.
const DefaultInterval = time.Second

// Clock supplies the current instant in the display zone.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in Location (time.Local if nil).
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

// Holder keeps the timeline currently in effect. A reload swaps in a new
// Timeline; existing ones are never modified.
type Holder struct {
	p atomic.Pointer[timeline.Timeline]
}

func NewHolder(tl *timeline.Timeline) *Holder {
	h := &Holder{}
	h.p.Store(tl)
	return h
}

func (h *Holder) Load() *timeline.Timeline { return h.p.Load() }

// Swap installs tl and returns the previous timeline. A nil tl is ignored.
func (h *Holder) Swap(tl *timeline.Timeline) *timeline.Timeline {
	if tl == nil {
		return h.p.Load()
	}
	return h.p.Swap(tl)
}

// Snapshot is one evaluation result and the instant it was computed for.
type Snapshot struct {
	At     time.Time
	Result timeline.Result
}

// Runner evaluates the held timeline every interval.
type Runner struct {
	holder   *Holder
	clock    Clock
	interval time.Duration

	latest atomic.Pointer[Snapshot]

	mu     sync.Mutex
	subs   map[int]chan Snapshot
	nextID int
	closed bool
}

// NewRunner builds a Runner. A non-positive interval means DefaultInterval.
func NewRunner(holder *Holder, clock Clock, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Runner{
		holder:   holder,
		clock:    clock,
		interval: interval,
		subs:     make(map[int]chan Snapshot),
	}
}

// Evaluate computes the result for now against the current timeline
// without publishing it.
func (r *Runner) Evaluate(now time.Time) Snapshot {
	return Snapshot{At: now, Result: r.holder.Load().Evaluate(now)}
}

// Latest returns the most recently published snapshot. Before the first
// tick it evaluates the current instant.
func (r *Runner) Latest() Snapshot {
	if s := r.latest.Load(); s != nil {
		return *s
	}
	return r.Evaluate(r.clock.Now())
}

// Subscribe returns a channel receiving every published snapshot. The
// channel holds one value; a slow reader sees only the newest. The returned
// func unsubscribes and is safe to call more than once.
func (r *Runner) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := r.nextID
	r.nextID++
	r.subs[id] = ch
	r.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if c, ok := r.subs[id]; ok {
				delete(r.subs, id)
				close(c)
			}
		})
	}
}

// Run publishes a snapshot immediately and then on every tick until ctx is
// done. The ticker is stopped and all subscriber channels are closed before
// Run returns.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	defer r.closeSubscribers()

	appLog.Info("countdown runner started", "interval", r.interval.String())
	r.tick()

	for {
		select {
		case <-ctx.Done():
			appLog.Info("countdown runner stopped")
			return ctx.Err()
		case <-ticker.C:
			r.tick()
		}
	}
}

func (r *Runner) tick() {
	snap := r.Evaluate(r.clock.Now())
	prev := r.latest.Swap(&snap)
	if prev == nil || prev.Result.Kind() != snap.Result.Kind() {
		appLog.Info("countdown state", "kind", string(snap.Result.Kind()), "at", snap.At.Format(time.RFC3339))
	}
	r.publish(snap)
}

func (r *Runner) publish(snap Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ch := range r.subs {
		select {
		case ch <- snap:
		default:
			// Drop the stale value so the reader gets the newest one.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func (r *Runner) closeSubscribers() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, ch := range r.subs {
		close(ch)
		delete(r.subs, id)
	}
	r.closed = true
}
