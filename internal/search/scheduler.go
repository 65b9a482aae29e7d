package search

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorhill/cronexpr"
)

var schedLogger = log.New(log.Writer(), "[SCHED] ", log.LstdFlags)

// Scheduler periodically reindexes the gateway snapshot on a cron schedule.
type Scheduler struct {
	Gateway *Gateway
	expr    *cronexpr.Expression
	spec    string
	now     func() time.Time
	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
}

// NewScheduler parses spec, a standard 5-field cron expression or one of
// the @hourly/@daily style shorthands.
func NewScheduler(g *Gateway, spec string) (*Scheduler, error) {
	expr, err := cronexpr.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("reindex cron %q: %w", spec, err)
	}
	return &Scheduler{
		Gateway: g,
		expr:    expr,
		spec:    spec,
		now:     time.Now,
	}, nil
}

// Next returns the next fire time after t.
func (s *Scheduler) Next(t time.Time) time.Time { return s.expr.Next(t) }

// IsDue reports whether a run is due now given the last run time. A
// schedule that never ran is due immediately.
func (s *Scheduler) IsDue(last *time.Time) bool {
	if last == nil {
		return true
	}
	next := s.expr.Next(*last)
	return !next.IsZero() && !next.After(s.now())
}

// Start runs the schedule in a goroutine until Stop or ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stop, s.done
	go func() {
		defer close(done)
		for {
			next := s.expr.Next(s.now())
			if next.IsZero() {
				schedLogger.Printf("schedule %q has no future runs", s.spec)
				return
			}
			timer := time.NewTimer(time.Until(next))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-stop:
				timer.Stop()
				return
			case <-timer.C:
				s.tick(ctx)
			}
		}
	}()
}

func (s *Scheduler) tick(ctx context.Context) {
	n, err := s.Gateway.Reindex(ctx)
	if err != nil {
		schedLogger.Printf("reindex %s failed: %v", s.Gateway.Index, err)
		return
	}
	schedLogger.Printf("reindexed %d chunks into %s", n, s.Gateway.Index)
}

// Stop ends the schedule and waits for the loop to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()
	if done == nil {
		return
	}
	close(stop)
	<-done
}
