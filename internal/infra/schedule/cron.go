// Package schedule runs the housekeeping jobs (history retention, session
// sweeps) on standard 5-field cron expressions.
package schedule

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Job is one housekeeping task. The context ends when the scheduler stops.
type Job func(ctx context.Context) error

type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
}

func New(loc *time.Location, logger *zap.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithParser(parser), cron.WithLocation(loc), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// Validate parses spec without scheduling anything.
func Validate(spec string) error {
	_, err := parser.Parse(strings.TrimSpace(spec))
	return err
}

// Add registers job under name. An empty spec disables it.
func (s *Scheduler) Add(name, spec string, job Job) error {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		s.logger.Info("job disabled", zap.String("job", name))
		return nil
	}
	_, err := s.cron.AddFunc(spec, func() {
		start := time.Now()
		if err := job(s.ctx); err != nil {
			s.logger.Error("job failed", zap.String("job", name), zap.Error(err))
			return
		}
		s.logger.Debug("job done", zap.String("job", name), zap.Duration("took", time.Since(start)))
	})
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	s.logger.Info("job scheduled", zap.String("job", name), zap.String("cron", spec))
	return nil
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop cancels running jobs and waits for them to return or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// Len counts registered jobs.
func (s *Scheduler) Len() int { return len(s.cron.Entries()) }
