package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"habitflow/pkg/metrics"
	"habitflow/pkg/trace"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

// Scheduler runs jobs on cron specs ("@every 1m", "0 3 * * *") in the
// configured zone. A job still running when its next slot arrives is skipped.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
}

func NewScheduler(loc *time.Location, logger *zap.Logger) *Scheduler {
	cl := cronLogger{logger.Sugar()}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// Add registers job under name. timeout bounds a single run.
func (s *Scheduler) Add(name, spec string, timeout time.Duration, job Job) error {
	if _, err := s.cron.AddFunc(spec, func() { s.run(name, timeout, job) }); err != nil {
		return fmt.Errorf("schedule job %s (%q): %w", name, spec, err)
	}
	s.logger.Info("Scheduled job", zap.String("job", name), zap.String("spec", spec))
	return nil
}

func (s *Scheduler) run(name string, timeout time.Duration, job Job) {
	ctx := trace.WithContext(s.ctx, trace.GenerateTraceID())
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := job(ctx)
	metrics.RecordJobRun(name, err, time.Since(start))

	if err != nil {
		s.logger.Error("Job failed",
			zap.String("job", name),
			zap.Duration("latency", time.Since(start)),
			zap.String("trace_id", trace.FromContext(ctx)),
			zap.Error(err),
		)
		return
	}
	s.logger.Debug("Job finished", zap.String("job", name), zap.Duration("latency", time.Since(start)))
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs and waits for them until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) {
	s.cancel()
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("Timed out waiting for running jobs")
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
