// internal/workers/inquiry/build-buyer-profile/handler.go
package buildbuyerprofile

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"marketplace-engine/internal/common/camunda"
	apperrors "marketplace-engine/internal/common/errors"
	"marketplace-engine/internal/common/logger"
	"marketplace-engine/internal/common/metrics"
	"marketplace-engine/internal/intake"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "build-buyer-profile"
)

// InquiryRunner is satisfied by *intake.Pipeline.
type InquiryRunner interface {
	Run(ctx context.Context, in intake.Inquiry) (*intake.Result, error)
}

type Handler struct {
	config   *Config
	pipeline InquiryRunner
	errors   *apperrors.ErrorHandler
	logger   logger.Logger
}

func NewHandler(config *Config, pipeline InquiryRunner, log logger.Logger) *Handler {
	l := log.With(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		pipeline: pipeline,
		errors:   apperrors.NewErrorHandler(l),
		logger:   l,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})
	defer func() {
		metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

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
	res, err := h.pipeline.Run(ctx, intake.Inquiry{
		SubjectID: input.SubjectID,
		TenantID:  input.TenantID,
		Text:      input.Text,
		Context:   input.Context,
		TopK:      input.TopK,
		SkipMatch: input.SkipMatch,
	})
	if err != nil {
		return nil, err
	}

	out := &Output{
		ProfileProvenance: res.Profile.Provenance,
		ProfileDegraded:   res.Degraded,
		HasEmbedding:      len(res.Profile.Embedding) > 0,
		Stages:            res.Stages,
		TopListingIDs:     []string{},
	}
	if res.Matches != nil {
		out.MatchCount = len(res.Matches.Results)
		for _, m := range res.Matches.Results {
			out.TopListingIDs = append(out.TopListingIDs, m.CandidateID)
		}
	}

	h.logger.Info("buyer profile built", map[string]interface{}{
		"subjectId":  input.SubjectID,
		"provenance": out.ProfileProvenance,
		"degraded":   out.ProfileDegraded,
		"matches":    out.MatchCount,
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
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, err error) {
	ctx, cancel := camunda.CommandContext()
	defer cancel()

	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(apperrors.CodeOf(err))).Inc()
	h.errors.HandleJobError(ctx, client, job, err)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
