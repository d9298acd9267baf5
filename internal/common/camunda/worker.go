// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"sync"
	"time"

	"marketplace-engine/internal/common/config"
	"marketplace-engine/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// CommandTimeout bounds a complete, fail or throw command sent after a job ran.
const CommandTimeout = 5 * time.Second

// CommandContext returns a context for reporting a job outcome. It does not
// derive from the job context, which may already have expired.
func CommandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), CommandTimeout)
}

// JobWorkerOpener is the part of zbc.Client the registry needs.
type JobWorkerOpener interface {
	NewJobWorker() worker.JobWorkerBuilderStep1
}

// Registry opens job workers and closes them together on shutdown.
type Registry struct {
	client  JobWorkerOpener
	logger  logger.Logger
	mu      sync.Mutex
	workers map[string]worker.JobWorker
}

var _ JobWorkerOpener = zbc.Client(nil)

func NewRegistry(client JobWorkerOpener, log logger.Logger) *Registry {
	return &Registry{
		client:  client,
		logger:  log.WithFields(map[string]interface{}{"component": "zeebe"}),
		workers: make(map[string]worker.JobWorker),
	}
}

// Register opens a worker for taskType unless the config disables it. A task
// type registered twice keeps the first worker.
func (r *Registry) Register(taskType string, wcfg config.WorkerConfig, handler worker.JobHandler) bool {
	if !wcfg.Enabled {
		r.logger.Info("worker disabled", map[string]interface{}{"taskType": taskType})
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.workers[taskType]; exists {
		r.logger.Warn("worker already registered", map[string]interface{}{"taskType": taskType})
		return false
	}

	jw := r.client.NewJobWorker().
		JobType(taskType).
		Handler(handler).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(config.GetDuration(wcfg.Timeout)).
		Name(taskType).
		Open()

	r.workers[taskType] = jw
	r.logger.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": wcfg.MaxJobsActive,
		"timeoutMs":     wcfg.Timeout,
	})
	return true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workers)
}

// Close stops every open worker and waits for in-flight jobs.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for taskType, jw := range r.workers {
		jw.Close()
		jw.AwaitClose()
		r.logger.Info("worker stopped", map[string]interface{}{"taskType": taskType})
	}
	r.workers = make(map[string]worker.JobWorker)
}
