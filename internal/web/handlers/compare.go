package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tahmidi1980-dev/facecomparison3llm/internal/compare"
	"github.com/tahmidi1980-dev/facecomparison3llm/internal/pipeline"
)

// Runner drives one comparison request through the pipeline. It is
// satisfied by the pipeline orchestrator.
type Runner interface {
	RunWithProgress(ctx context.Context, req *compare.Request, progress pipeline.ProgressSink) *compare.Result
}

// CompareHandler serves the asynchronous comparison API.
type CompareHandler struct {
	runner Runner
	jobs   *JobManager
}

// NewCompareHandler creates a comparison handler.
func NewCompareHandler(runner Runner, jobs *JobManager) *CompareHandler {
	return &CompareHandler{
		runner: runner,
		jobs:   jobs,
	}
}

// readImagePart reads one uploaded image from the multipart form,
// bounded by the request image size limit.
func readImagePart(r *http.Request, field string) ([]byte, error) {
	file, _, err := r.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("missing form file %q", field)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, compare.MaxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading form file %q: %w", field, err)
	}
	return data, nil
}

// Start accepts a multipart upload with image_a and image_b parts,
// validates it and starts a comparison job. Validation failure is the
// only hard error surfaced to the caller; everything past this point
// degrades into the result itself.
func (h *CompareHandler) Start(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(2*compare.MaxImageBytes + 1<<20); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	imageA, err := readImagePart(r, "image_a")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	imageB, err := readImagePart(r, "image_b")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	req, err := compare.NewRequest(imageA, imageB)
	if err != nil {
		if errors.Is(err, compare.ErrInvalidImage) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to create request")
		return
	}

	job, ctx := h.jobs.CreateJob(req.ID)
	go h.run(ctx, job, req)

	respondJSON(w, http.StatusAccepted, map[string]string{
		"id":     req.ID,
		"status": string(job.GetStatus()),
	})
}

func (h *CompareHandler) run(ctx context.Context, job *ComparisonJob, req *compare.Request) {
	job.SetRunning()
	job.SendEvent(JobEvent{Type: "started", Message: "comparison started"})

	result := h.runner.RunWithProgress(ctx, req, jobProgress{job})
	job.Complete(result)
	log.Printf("comparison %s finished: %s (confidence %.2f)", req.ID, result.Decision, result.Confidence)
}

// jobProgress forwards pipeline stage events to the job's SSE
// listeners. SendEvent never blocks, which keeps the pipeline's
// decision path clear of slow clients.
type jobProgress struct {
	job *ComparisonJob
}

func (p jobProgress) OnEvent(requestID string, stage compare.Stage, kind pipeline.EventKind) {
	p.job.SendEvent(JobEvent{
		Type: string(kind),
		Data: map[string]string{"stage": string(stage)},
	})
}

// Status returns the current state of a comparison job, including the
// result once the job completed.
func (h *CompareHandler) Status(w http.ResponseWriter, r *http.Request) {
	job := h.jobs.GetJob(chi.URLParam(r, "jobId"))
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	respondJSON(w, http.StatusOK, job.Snapshot())
}

// Events streams job progress as server-sent events.
func (h *CompareHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamSSEEvents(w, r,
		func(id string) SSEJob {
			if job := h.jobs.GetJob(id); job != nil {
				return job
			}
			return nil
		},
		func(job SSEJob) any {
			return job.(*ComparisonJob).Snapshot()
		},
	)
}

// Cancel aborts a running comparison job.
func (h *CompareHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	job := h.jobs.GetJob(chi.URLParam(r, "jobId"))
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	job.Cancel()
	respondJSON(w, http.StatusOK, map[string]string{"status": string(job.GetStatus())})
}
