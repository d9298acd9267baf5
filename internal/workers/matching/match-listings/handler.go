// internal/workers/matching/match-listings/handler.go
package matchlistings

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"marketplace-engine/internal/common/camunda"
	apperrors "marketplace-engine/internal/common/errors"
	"marketplace-engine/internal/common/logger"
	"marketplace-engine/internal/common/metrics"
	"marketplace-engine/internal/common/observability"
	"marketplace-engine/internal/matching"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "match-listings"
)

// Matcher is satisfied by *matching.Service.
type Matcher interface {
	MatchSubject(ctx context.Context, req matching.Request) (*matching.Response, error)
}

type Handler struct {
	config  *Config
	matcher Matcher
	obs     *observability.Observability
	errors  *apperrors.ErrorHandler
	logger  logger.Logger
}

func NewHandler(config *Config, matcher Matcher, obs *observability.Observability, log logger.Logger) *Handler {
	l := log.With(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:  config,
		matcher: matcher,
		obs:     obs,
		errors:  apperrors.NewErrorHandler(l),
		logger:  l,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()
	defer func() {
		metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
		h.obs.RecordJobDuration(ctx, TaskType, time.Since(start))
	}()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, apperrors.NewValidationError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.failJob(client, job, err)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	resp, err := h.matcher.MatchSubject(ctx, matching.Request{
		SubjectID: input.SubjectID,
		TenantID:  input.TenantID,
		TopK:      input.TopK,
	})
	if err != nil {
		return nil, err
	}

	out := &Output{
		Scope:       resp.Scope,
		Degraded:    resp.Degraded,
		ResultCount: len(resp.Results),
		Results:     resp.Results,
	}
	if len(resp.Results) > 0 {
		out.TopScore = resp.Results[0].OverallScore
	}

	h.logger.Info("listings matched", map[string]interface{}{
		"subjectId": input.SubjectID,
		"scope":     out.Scope,
		"results":   out.ResultCount,
		"degraded":  out.Degraded,
	})
	return out, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	ctx, cancel := camunda.CommandContext()
	defer cancel()

	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	h.obs.RecordJobProcessed(ctx, TaskType, "completed")
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, err error) {
	ctx, cancel := camunda.CommandContext()
	defer cancel()

	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(apperrors.CodeOf(err))).Inc()
	h.obs.RecordJobProcessed(ctx, TaskType, "failed")
	h.errors.HandleJobError(ctx, client, job, err)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
