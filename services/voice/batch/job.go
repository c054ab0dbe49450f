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
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianVoice/services/rag"
)

// Status is the lifecycle state of a batch job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether a job in this status will never change again.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Progress counts item outcomes for one job. completed+failed never exceeds
// total.
type Progress struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// Percentage returns item completion as 0-100.
func (p Progress) Percentage() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Completed+p.Failed) / float64(p.Total) * 100
}

// Job is one batch processing task: a named list of texts fanned out to the
// provider. The queue and the worker pool mutate it from different
// goroutines, so all field access goes through its mutex.
type Job struct {
	mu sync.Mutex

	id          string
	name        string
	description string
	items       []string
	options     map[string]any

	status       Status
	progress     Progress
	results      []*rag.QueryResult
	errorMessage string

	createdAt   time.Time
	startedAt   *time.Time
	completedAt *time.Time
}

// NewJob creates a pending job with a fresh id.
func NewJob(name string, items []string, options map[string]any, description string) *Job {
	if options == nil {
		options = map[string]any{}
	}
	return &Job{
		id:          uuid.NewString(),
		name:        name,
		description: description,
		items:       items,
		options:     options,
		status:      StatusPending,
		progress:    Progress{Total: len(items)},
		createdAt:   time.Now(),
	}
}

func (j *Job) ID() string {
	return j.id
}

// Items returns the texts to process. The slice is never mutated after
// construction, so it is shared, not copied.
func (j *Job) Items() []string {
	return j.items
}

func (j *Job) Options() map[string]any {
	return j.options
}

func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

func (j *Job) CreatedAt() time.Time {
	return j.createdAt
}

// Start transitions pending → running. Returns false if the job was
// cancelled (or otherwise moved on) before a worker picked it up.
func (j *Job) Start() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status != StatusPending {
		return false
	}
	j.status = StatusRunning
	now := time.Now()
	j.startedAt = &now
	return true
}

// Complete transitions running → completed. Returns false when the job was
// cancelled mid-run; the cancellation outcome wins.
func (j *Job) Complete() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status != StatusRunning {
		return false
	}
	j.status = StatusCompleted
	now := time.Now()
	j.completedAt = &now
	return true
}

// Fail marks the job failed unless it already reached a terminal status.
func (j *Job) Fail(message string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status.IsTerminal() {
		return false
	}
	j.status = StatusFailed
	j.errorMessage = message
	now := time.Now()
	j.completedAt = &now
	return true
}

// MarkCancelled stamps the cancelled status. The queue decides whether
// cancellation is allowed; this just records it.
func (j *Job) MarkCancelled() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = StatusCancelled
	now := time.Now()
	j.completedAt = &now
}

// AppendResult records one item outcome and advances progress.
func (j *Job) AppendResult(result *rag.QueryResult, failed bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.results = append(j.results, result)
	if failed {
		j.progress.Failed++
	} else {
		j.progress.Completed++
	}
}

// Results returns a copy of the result slice accumulated so far.
func (j *Job) Results() []*rag.QueryResult {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]*rag.QueryResult, len(j.results))
	copy(out, j.results)
	return out
}

// CompletedAt returns the terminal timestamp, or nil while the job is
// still live.
func (j *Job) CompletedAt() *time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.completedAt
}

// ProgressView is the serializable progress block.
type ProgressView struct {
	Total      int     `json:"total"`
	Completed  int     `json:"completed"`
	Failed     int     `json:"failed"`
	Percentage float64 `json:"percentage"`
}

// JobView is the serializable snapshot of a job, shaped for the REST and
// CLI surfaces.
type JobView struct {
	TaskID       string         `json:"task_id"`
	Name         string         `json:"name"`
	Description  string         `json:"description,omitempty"`
	Status       Status         `json:"status"`
	Progress     ProgressView   `json:"progress"`
	CreatedAt    time.Time      `json:"created_at"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Options      map[string]any `json:"options,omitempty"`
}

// Snapshot captures a consistent view of the job for serialization.
func (j *Job) Snapshot() JobView {
	j.mu.Lock()
	defer j.mu.Unlock()
	return JobView{
		TaskID:      j.id,
		Name:        j.name,
		Description: j.description,
		Status:      j.status,
		Progress: ProgressView{
			Total:      j.progress.Total,
			Completed:  j.progress.Completed,
			Failed:     j.progress.Failed,
			Percentage: j.progress.Percentage(),
		},
		CreatedAt:    j.createdAt,
		StartedAt:    j.startedAt,
		CompletedAt:  j.completedAt,
		ErrorMessage: j.errorMessage,
		Options:      j.options,
	}
}
