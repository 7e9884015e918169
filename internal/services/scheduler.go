package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/jira-auditor/domain"
)

// AuditRunner executes one audit pass.
type AuditRunner interface {
	Run(ctx context.Context) (*domain.AuditResult, error)
}

// RunRecorder stores run outcomes for the status server.
type RunRecorder interface {
	Record(result *domain.AuditResult, err error)
}

// SchedulerConfig controls when audits run and how long each may take.
type SchedulerConfig struct {
	Spec       string
	RunTimeout time.Duration
}

// Scheduler runs the auditor on a cron schedule. Overlapping runs are skipped.
type Scheduler struct {
	runner   AuditRunner
	recorder RunRecorder
	logger   *zap.Logger
	cron     *cron.Cron
	cfg      SchedulerConfig

	mu     sync.Mutex
	base   context.Context
	cancel context.CancelFunc
}

func NewScheduler(runner AuditRunner, recorder RunRecorder, logger *zap.Logger, cfg SchedulerConfig) (*Scheduler, error) {
	if cfg.Spec == "" {
		cfg.Spec = "@daily"
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 30 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cl := cronLogger{logger: logger.Sugar()}
	s := &Scheduler{
		runner:   runner,
		recorder: recorder,
		logger:   logger,
		cfg:      cfg,
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		base: context.Background(),
	}

	if _, err := s.cron.AddFunc(cfg.Spec, func() {
		_, _ = s.RunOnce(s.baseContext())
	}); err != nil {
		return nil, domain.WrapError(domain.ErrCodeConfiguration, fmt.Sprintf("invalid SCHEDULE_CRON %q", cfg.Spec), err)
	}
	return s, nil
}

// Start launches the cron scheduler. Runs use a context derived from ctx.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil || s.cron == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	s.base, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("audit scheduler started", zap.String("schedule", s.cfg.Spec), zap.Time("next_run", s.Next()))
}

// Stop halts the schedule, cancels a running audit and waits for it to return.
func (s *Scheduler) Stop(ctx context.Context) {
	if s == nil || s.cron == nil {
		return
	}
	stopCtx := s.cron.Stop()
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	s.logger.Info("audit scheduler stopped")
}

// RunOnce performs one audit synchronously and records its outcome.
func (s *Scheduler) RunOnce(ctx context.Context) (*domain.AuditResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithTimeout(ctx, s.cfg.RunTimeout)
	defer cancel()

	result, err := s.runner.Run(runCtx)
	if err != nil {
		s.logger.Error("scheduled audit failed", zap.Error(err))
	}
	if s.recorder != nil {
		s.recorder.Record(result, err)
	}
	return result, err
}

// Next returns the next scheduled run, or the zero time before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Scheduler) baseContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base
}

// cronLogger routes cron's internal logging through zap.
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
