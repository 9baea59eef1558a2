package sources

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/gorhill/cronexpr"
)

// RefreshScheduler re-ingests source content on a cron schedule.
// Shorthands @hourly and @daily are accepted alongside full cron
// expressions. Per-source failures are logged, never fatal.
type RefreshScheduler struct {
	expr    *cronexpr.Expression
	sources []Refresher
	logger  *log.Logger
}

// NewRefreshScheduler parses the schedule. An empty schedule returns
// (nil, nil): scheduling is disabled and searches rely on lazy refresh.
func NewRefreshScheduler(schedule string, sources []Refresher) (*RefreshScheduler, error) {
	if schedule == "" {
		return nil, nil
	}
	switch schedule {
	case "@hourly":
		schedule = "0 * * * *"
	case "@daily":
		schedule = "0 0 * * *"
	}
	expr, err := cronexpr.Parse(schedule)
	if err != nil {
		return nil, fmt.Errorf("parse refresh schedule %q: %w", schedule, err)
	}
	return &RefreshScheduler{
		expr:    expr,
		sources: sources,
		logger:  log.New(log.Writer(), "[REFRESH] ", log.LstdFlags),
	}, nil
}

// Run blocks until ctx is done. The first refresh runs after a short
// random delay so several instances starting together do not hit the
// backing systems at once.
func (s *RefreshScheduler) Run(ctx context.Context) {
	if s == nil {
		return
	}
	initial := time.Duration(rand.Intn(30)+1) * time.Second
	s.logger.Printf("scheduler started, first refresh in %v", initial)

	timer := time.NewTimer(initial)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Printf("scheduler stopped: %v", ctx.Err())
			return
		case <-timer.C:
			s.refreshAll(ctx)
			next := s.expr.Next(time.Now())
			if next.IsZero() {
				s.logger.Printf("no further runs in schedule, stopping")
				return
			}
			timer.Reset(time.Until(next))
			s.logger.Printf("next refresh at %s", next.Format(time.RFC3339))
		}
	}
}

func (s *RefreshScheduler) refreshAll(ctx context.Context) {
	for _, src := range s.sources {
		if ctx.Err() != nil {
			return
		}
		started := time.Now()
		if err := src.RefreshContent(ctx); err != nil {
			s.logger.Printf("refresh failed for %s: %v", src.Type(), err)
			continue
		}
		s.logger.Printf("refreshed %s in %v", src.Type(), time.Since(started))
	}
}
