// Package scheduler arms one-shot, wall-clock deadline timers keyed by campaign.
//
// A key has at most one pending timer. Scheduling a key that is already
// pending replaces the earlier timer, so a creation path and a reconciliation
// path racing on the same campaign produce a single callback. Deadlines that
// are already in the past fire immediately.
package scheduler

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

type entry struct {
	timer  *time.Timer
	gen    uint64
	fireAt time.Time
}

// Scheduler maps campaign keys to pending timers
type Scheduler struct {
	mu            sync.Mutex
	entries       map[string]*entry
	gen           uint64
	closed        bool
	running       sync.WaitGroup
	now           func() time.Time
	skewThreshold time.Duration
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithClock overrides the wall clock used to compute delays
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// WithSkewThreshold sets how far in the past a deadline may be before it is
// logged as probable clock skew. Zero disables the check.
func WithSkewThreshold(d time.Duration) Option {
	return func(s *Scheduler) {
		s.skewThreshold = d
	}
}

// New creates a Scheduler
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule arms fn to run once at fireAt. If key already has a pending
// timer it is replaced and Schedule returns true.
func (s *Scheduler) Schedule(key string, fireAt time.Time, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		log.WithField("key", key).Warn("Scheduler closed, dropping deadline")
		return false
	}

	replaced := false
	if existing, ok := s.entries[key]; ok {
		// If Stop loses the race the stale callback still sees a newer generation and returns
		existing.timer.Stop()
		replaced = true
	}

	delay := fireAt.Sub(s.now())
	if delay < 0 {
		if s.skewThreshold > 0 && -delay > s.skewThreshold {
			log.WithFields(log.Fields{
				"key":     key,
				"fireAt":  fireAt,
				"overdue": (-delay).String(),
				"maxSkew": s.skewThreshold.String(),
			}).Warn("Deadline is further in the past than any plausible downtime, check the system clock")
		}
		delay = 0
	}

	s.gen++
	gen := s.gen
	e := &entry{gen: gen, fireAt: fireAt}
	e.timer = time.AfterFunc(delay, func() {
		s.fire(key, gen, fn)
	})
	s.entries[key] = e

	log.WithFields(log.Fields{
		"key":      key,
		"fireAt":   fireAt,
		"delay":    delay.String(),
		"replaced": replaced,
	}).Debug("Deadline scheduled")

	return replaced
}

func (s *Scheduler) fire(key string, gen uint64, fn func()) {
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok || e.gen != gen || s.closed {
		s.mu.Unlock()
		return
	}
	delete(s.entries, key)
	s.running.Add(1)
	s.mu.Unlock()

	defer s.running.Done()
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"key":   key,
				"panic": r,
			}).Error("Deadline callback panicked")
		}
	}()

	fn()
}

// Cancel disarms the pending timer for key. It returns false if nothing was
// pending, including when the callback already started.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(s.entries, key)
	return true
}

// Deadline returns the pending fire time for key
func (s *Scheduler) Deadline(key string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return time.Time{}, false
	}
	return e.fireAt, true
}

// Pending returns the number of armed timers
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close disarms every pending timer and waits for running callbacks to return
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	for key, e := range s.entries {
		e.timer.Stop()
		delete(s.entries, key)
	}
	s.mu.Unlock()

	s.running.Wait()
}
