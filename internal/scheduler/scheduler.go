// internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"fmt"
	"time"

	"marketplace-engine/internal/common/logger"

	rcron "github.com/robfig/cron/v3"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

// Scheduler runs jobs on cron specs. A run that is still going when its
// next tick fires is skipped.
type Scheduler struct {
	cron   *rcron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	logger logger.Logger
}

func New(log logger.Logger) *Scheduler {
	log = log.WithFields(map[string]interface{}{"component": "scheduler"})
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: rcron.New(rcron.WithChain(
			rcron.Recover(cronLogger{log}),
			rcron.SkipIfStillRunning(cronLogger{log}),
		)),
		ctx:    ctx,
		cancel: cancel,
		logger: log,
	}
}

// Register adds job under name. timeout bounds a single run; zero means none.
func (s *Scheduler) Register(name, spec string, timeout time.Duration, job Job) error {
	_, err := s.cron.AddFunc(spec, func() { s.run(name, timeout, job) })
	if err != nil {
		return fmt.Errorf("register %s (%s): %w", name, spec, err)
	}
	s.logger.Info("Scheduled job registered", map[string]interface{}{"job": name, "spec": spec})
	return nil
}

func (s *Scheduler) run(name string, timeout time.Duration, job Job) {
	ctx := s.ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	if err := job(ctx); err != nil {
		s.logger.Error("Scheduled job failed", map[string]interface{}{
			"job":        name,
			"error":      err.Error(),
			"durationMs": time.Since(start).Milliseconds(),
		})
		return
	}
	s.logger.Info("Scheduled job finished", map[string]interface{}{
		"job":        name,
		"durationMs": time.Since(start).Milliseconds(),
	})
}

func (s *Scheduler) Len() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs and waits for them until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out with jobs still running", nil)
	}
}

// cronLogger adapts the service logger to robfig/cron.
type cronLogger struct {
	log logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug("cron: "+msg, kvToMap(keysAndValues))
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := kvToMap(keysAndValues)
	fields["error"] = fmt.Sprint(err)
	c.log.Error("cron: "+msg, fields)
}

func kvToMap(kv []interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(kv)/2+1)
	for i := 0; i+1 < len(kv); i += 2 {
		out[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return out
}
