package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/MimeLyc/react-agent/pkg/icron"
	"github.com/MimeLyc/react-agent/pkg/log"
)

// Asker is the part of QAService the scheduler needs.
type Asker interface {
	Ask(ctx context.Context, question string, maxLoops int) (*Result, error)
}

// ScheduledQuestion asks a fixed question on a cron schedule. A trigger
// that fires while the previous run is still going joins that run instead
// of starting another one.
type ScheduledQuestion struct {
	asker    Asker
	cron     *cron.Cron
	cronExpr string
	question string
	maxLoops int
	group    singleflight.Group
	onResult func(*Result)
}

func NewScheduledQuestion(asker Asker, c *cron.Cron, cronExpr, question string, maxLoops int) *ScheduledQuestion {
	return &ScheduledQuestion{
		asker:    asker,
		cron:     c,
		cronExpr: cronExpr,
		question: question,
		maxLoops: maxLoops,
	}
}

// OnResult registers a callback for every finished scheduled run.
func (s *ScheduledQuestion) OnResult(fn func(*Result)) {
	s.onResult = fn
}

// Schedule registers the question with the cron engine. It does not start
// the engine.
func (s *ScheduledQuestion) Schedule(ctx context.Context) error {
	if strings.TrimSpace(s.question) == "" {
		return NewError(ErrValidation, "scheduled question is required")
	}
	info, err := icron.GetTriggerInfo(s.cronExpr, time.Now())
	if err != nil {
		return fmt.Errorf("failed to schedule question: %w", err)
	}

	if _, err := s.cron.AddFunc(s.cronExpr, func() {
		if _, err := s.Trigger(ctx); err != nil {
			LogError(err)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule question: %w", err)
	}

	log.Info("Scheduled question %q: %s", s.question, info)
	return nil
}

// Trigger asks the question now, sharing an in-flight run if there is one.
func (s *ScheduledQuestion) Trigger(ctx context.Context) (*Result, error) {
	v, err, shared := s.group.Do("ask", func() (any, error) {
		result, err := s.asker.Ask(ctx, s.question, s.maxLoops)
		if err == nil && s.onResult != nil {
			s.onResult(result)
		}
		return result, err
	})
	if err != nil {
		return nil, err
	}
	if shared {
		log.Debug("Scheduled trigger joined a run already in progress")
	}

	result := v.(*Result)
	if info, err := icron.GetTriggerInfo(s.cronExpr, time.Now()); err == nil {
		log.Info("Next scheduled run %s", info)
	}
	return result, nil
}
