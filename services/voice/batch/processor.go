// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/AleutianVoice/services/rag"
	"github.com/AleutianAI/AleutianVoice/services/voice/observability"
)

// Config bounds the worker pool.
type Config struct {
	// MaxConcurrent caps jobs processed simultaneously.
	MaxConcurrent int

	// MaxQueueSize caps jobs held in the queue in any status.
	MaxQueueSize int

	// ProviderRPS rate-limits item queries against the provider across
	// all jobs. Zero disables the limiter.
	ProviderRPS float64

	// IdleDelay is the poll backoff when the queue is empty. Zero selects
	// one second.
	IdleDelay time.Duration
}

// Processor is the bounded-concurrency worker pool feeding batch jobs to
// the provider. One coordinating loop pulls jobs and spawns one goroutine
// per job; a weighted semaphore admits at most MaxConcurrent of them.
type Processor struct {
	queue     *Queue
	client    rag.Client
	metrics   *observability.Metrics
	sem       *semaphore.Weighted
	limiter   *rate.Limiter
	idleDelay time.Duration

	maxConcurrent int

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewProcessor builds a worker pool with its own queue.
func NewProcessor(client rag.Client, metrics *observability.Metrics, cfg Config) *Processor {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 5
	}
	if cfg.IdleDelay <= 0 {
		cfg.IdleDelay = time.Second
	}
	var limiter *rate.Limiter
	if cfg.ProviderRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.ProviderRPS), 1)
	}
	return &Processor{
		queue:         NewQueue(cfg.MaxQueueSize),
		client:        client,
		metrics:       metrics,
		sem:           semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		limiter:       limiter,
		idleDelay:     cfg.IdleDelay,
		maxConcurrent: cfg.MaxConcurrent,
	}
}

// Queue exposes the underlying job queue, mainly for the retention sweeper.
func (p *Processor) Queue() *Queue {
	return p.queue
}

// Start launches the coordinating loop. Calling Start on a running
// processor logs and returns.
func (p *Processor) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		slog.Warn("batch processor already running")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	go p.runLoop(ctx, p.done)
	slog.Info("batch processor started", "max_concurrent", p.maxConcurrent)
}

// Stop cancels the coordinating loop and waits for it to exit. In-flight
// jobs observe the cancellation through their item contexts.
func (p *Processor) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	cancel()
	<-done
	slog.Info("batch processor stopped")
}

// Running reports whether the coordinating loop is live.
func (p *Processor) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Processor) runLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		if ctx.Err() != nil {
			return
		}
		job := p.queue.NextPending()
		p.metrics.SetBatchQueueDepth(p.queue.Status().Pending)
		if job == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.idleDelay):
			}
			continue
		}
		go p.processJob(ctx, job)
	}
}

func (p *Processor) processJob(ctx context.Context, job *Job) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("batch job panicked", "task_id", job.ID(), "panic", r)
			p.queue.Fail(job.ID(), fmt.Sprintf("internal error: %v", r))
			p.metrics.BatchJobFinished(string(StatusFailed))
		}
	}()

	if err := p.sem.Acquire(ctx, 1); err != nil {
		// Shutdown while waiting for a slot.
		return
	}
	defer p.sem.Release(1)

	if !job.Start() {
		// Cancelled while queued for a slot.
		p.queue.Release(job.ID())
		return
	}
	slog.Info("processing batch job",
		"task_id", job.ID(),
		"items", len(job.Items()),
	)

	type itemOutcome struct {
		result *rag.QueryResult
		err    error
	}
	outcomes := make(chan itemOutcome)
	for _, text := range job.Items() {
		go func(text string) {
			result, err := p.queryItem(ctx, text)
			outcomes <- itemOutcome{result: result, err: err}
		}(text)
	}

	// Results append in completion order, not submission order.
	for range job.Items() {
		outcome := <-outcomes
		if outcome.err != nil {
			job.AppendResult(&rag.QueryResult{
				Content:  "处理失败: " + outcome.err.Error(),
				Metadata: map[string]any{"error": true},
			}, true)
			p.metrics.BatchItemProcessed(observability.ResultError)
		} else {
			job.AppendResult(outcome.result, false)
			p.metrics.BatchItemProcessed(observability.ResultSuccess)
		}
	}

	p.queue.Release(job.ID())
	if job.Complete() {
		view := job.Snapshot()
		p.metrics.BatchJobFinished(string(StatusCompleted))
		slog.Info("batch job completed",
			"task_id", job.ID(),
			"completed", view.Progress.Completed,
			"failed", view.Progress.Failed,
		)
	}
}

func (p *Processor) queryItem(ctx context.Context, text string) (*rag.QueryResult, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return p.client.Query(ctx, text, "batch-user", "")
}

// SubmitJob creates and enqueues a job.
func (p *Processor) SubmitJob(name string, items []string, options map[string]any, description string) (*Job, error) {
	job := NewJob(name, items, options, description)
	if _, err := p.queue.Submit(job); err != nil {
		return nil, err
	}
	p.metrics.SetBatchQueueDepth(p.queue.Status().Pending)
	return job, nil
}

// JobStatus returns the snapshot for id.
func (p *Processor) JobStatus(id string) (JobView, error) {
	job, err := p.queue.Get(id)
	if err != nil {
		return JobView{}, err
	}
	return job.Snapshot(), nil
}

// ResultsPage is one page of job results.
type ResultsPage struct {
	TaskID  string             `json:"task_id"`
	Results []*rag.QueryResult `json:"results"`
	Total   int                `json:"total"`
	Page    int                `json:"page"`
	Size    int                `json:"size"`
}

// JobResults paginates the results accumulated so far. Pages are 1-based.
func (p *Processor) JobResults(id string, page, size int) (ResultsPage, error) {
	job, err := p.queue.Get(id)
	if err != nil {
		return ResultsPage{}, err
	}
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 100
	}
	results := job.Results()
	start := (page - 1) * size
	if start > len(results) {
		start = len(results)
	}
	end := start + size
	if end > len(results) {
		end = len(results)
	}
	return ResultsPage{
		TaskID:  id,
		Results: results[start:end],
		Total:   len(results),
		Page:    page,
		Size:    size,
	}, nil
}

// CancelJob cancels a pending or running job. Terminal jobs return false.
func (p *Processor) CancelJob(id string) bool {
	cancelled := p.queue.Cancel(id)
	if cancelled {
		p.metrics.BatchJobFinished(string(StatusCancelled))
	}
	return cancelled
}

// ListJobs returns job snapshots newest-first, optionally filtered.
func (p *Processor) ListJobs(status Status) []JobView {
	jobs := p.queue.List(status)
	views := make([]JobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, job.Snapshot())
	}
	return views
}

// ProcessorStatus describes the pool and its queue.
type ProcessorStatus struct {
	IsRunning     bool        `json:"is_running"`
	MaxConcurrent int         `json:"max_concurrent"`
	Queue         QueueStatus `json:"queue"`
}

// Status reports pool state and queue occupancy.
func (p *Processor) Status() ProcessorStatus {
	return ProcessorStatus{
		IsRunning:     p.Running(),
		MaxConcurrent: p.maxConcurrent,
		Queue:         p.queue.Status(),
	}
}
