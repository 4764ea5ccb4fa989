package exam

import (
	"context"
	"log"
	"time"
)

// DefaultSweepGrace is the tolerance past a session's duration before the
// sweeper reclaims it. Deliberately generous so momentary timer drift never
// punishes a student who is about to submit.
const DefaultSweepGrace = 5 * time.Minute

// Sweeper reclaims abandoned in-progress sessions: a student who closes the
// browser mid-exam leaves the session orphaned until a sweep pass marks it
// completed.
type Sweeper struct {
	store    Store
	interval time.Duration
	grace    time.Duration
	now      func() time.Time
}

func NewSweeper(store Store, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		grace:    DefaultSweepGrace,
		now:      time.Now,
	}
}

// WithGrace overrides the reclaim tolerance.
func (sw *Sweeper) WithGrace(grace time.Duration) *Sweeper {
	if grace > 0 {
		sw.grace = grace
	}
	return sw
}

// WithClock overrides the time source. Tests only.
func (sw *Sweeper) WithClock(now func() time.Time) *Sweeper {
	sw.now = now
	return sw
}

// SweepOnce completes every in-progress session whose elapsed time exceeds
// its duration plus the grace window. Returns how many sessions were
// reclaimed; a failure on one session does not stop the pass.
func (sw *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	sessions, err := sw.store.ListInProgressSessions(ctx)
	if err != nil {
		return 0, err
	}
	now := sw.now()
	reclaimed := 0
	for _, sess := range sessions {
		limit := time.Duration(sess.DurationMinutes)*time.Minute + sw.grace
		if sess.Elapsed(now) <= limit {
			continue
		}
		if err := sw.store.CompleteSession(ctx, sess.ID, now); err != nil {
			log.Printf("sweep: complete session %s: %v", sess.ID, err)
			continue
		}
		reclaimed++
	}
	return reclaimed, nil
}

// Run sweeps on the configured interval until the context is cancelled.
func (sw *Sweeper) Run(ctx context.Context) {
	t := time.NewTicker(sw.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n, err := sw.SweepOnce(ctx); err != nil {
				log.Printf("sweep: %v", err)
			} else if n > 0 {
				log.Printf("sweep: auto-completed %d expired session(s)", n)
			}
		}
	}
}
