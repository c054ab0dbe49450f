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
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"
)

var (
	// ErrQueueFull is returned when the job map holds maxSize jobs.
	// Completed jobs count against capacity until cleanup removes them.
	ErrQueueFull = errors.New("task queue is full")

	// ErrJobNotFound is returned for unknown job ids.
	ErrJobNotFound = errors.New("job not found")
)

// Queue is the in-memory FIFO of batch jobs plus the id → job map. It is
// safe for concurrent use by the submission surface and the worker pool.
//
// In-memory is deliberate: jobs are short-lived diagnostics work and the
// retention sweeper bounds memory, so durable storage would only add an
// operational dependency.
type Queue struct {
	mu      sync.Mutex
	maxSize int
	jobs    map[string]*Job
	pending []string
	running map[string]struct{}
}

// NewQueue creates a queue holding at most maxSize jobs in any status.
func NewQueue(maxSize int) *Queue {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &Queue{
		maxSize: maxSize,
		jobs:    make(map[string]*Job),
		running: make(map[string]struct{}),
	}
}

// Submit enqueues a pending job. Fails with ErrQueueFull at capacity.
func (q *Queue) Submit(job *Job) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) >= q.maxSize {
		return "", ErrQueueFull
	}
	q.jobs[job.ID()] = job
	q.pending = append(q.pending, job.ID())
	slog.Info("batch job submitted",
		"task_id", job.ID(),
		"pending", len(q.pending),
	)
	return job.ID(), nil
}

// NextPending pops the oldest pending job and moves it to the running set.
// Returns nil when the queue is empty, or when the popped job is no longer
// pending (cancelled while queued); the caller simply polls again.
func (q *Queue) NextPending() *Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil
	}
	id := q.pending[0]
	q.pending = q.pending[1:]

	job, ok := q.jobs[id]
	if !ok || job.Status() != StatusPending {
		return nil
	}
	q.running[id] = struct{}{}
	return job
}

// Release removes a job from the running set once its processing finished,
// whatever the outcome recorded on the job itself.
func (q *Queue) Release(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.running, id)
}

// Fail marks a job failed and releases its running slot.
func (q *Queue) Fail(id, message string) {
	q.mu.Lock()
	delete(q.running, id)
	job := q.jobs[id]
	q.mu.Unlock()
	if job != nil {
		job.Fail(message)
		slog.Error("batch job failed", "task_id", id, "error", message)
	}
}

// Cancel cancels a pending or running job. Returns false for unknown ids
// and for jobs already in a terminal status.
func (q *Queue) Cancel(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[id]
	if !ok || job.Status().IsTerminal() {
		return false
	}
	for i, pid := range q.pending {
		if pid == id {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			break
		}
	}
	delete(q.running, id)
	job.MarkCancelled()
	slog.Info("batch job cancelled", "task_id", id)
	return true
}

// Get returns the job for id, or ErrJobNotFound.
func (q *Queue) Get(id string) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// List returns jobs newest-first, optionally filtered by status.
func (q *Queue) List(status Status) []*Job {
	q.mu.Lock()
	jobs := make([]*Job, 0, len(q.jobs))
	for _, job := range q.jobs {
		jobs = append(jobs, job)
	}
	q.mu.Unlock()

	if status != "" {
		filtered := jobs[:0]
		for _, job := range jobs {
			if job.Status() == status {
				filtered = append(filtered, job)
			}
		}
		jobs = filtered
	}
	sort.Slice(jobs, func(i, k int) bool {
		return jobs[i].CreatedAt().After(jobs[k].CreatedAt())
	})
	return jobs
}

// QueueStatus summarizes queue occupancy.
type QueueStatus struct {
	TotalJobs      int `json:"total_jobs"`
	Pending        int `json:"pending"`
	Running        int `json:"running"`
	MaxSize        int `json:"max_size"`
	AvailableSlots int `json:"available_slots"`
}

// Status reports current occupancy.
func (q *Queue) Status() QueueStatus {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStatus{
		TotalJobs:      len(q.jobs),
		Pending:        len(q.pending),
		Running:        len(q.running),
		MaxSize:        q.maxSize,
		AvailableSlots: q.maxSize - len(q.jobs),
	}
}

// Cleanup drops terminal jobs whose completion is older than maxAge and
// returns how many were removed. Live jobs are never touched.
func (q *Queue) Cleanup(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	q.mu.Lock()
	defer q.mu.Unlock()
	var removed int
	for id, job := range q.jobs {
		if !job.Status().IsTerminal() {
			continue
		}
		if completed := job.CompletedAt(); completed != nil && completed.Before(cutoff) {
			delete(q.jobs, id)
			removed++
		}
	}
	if removed > 0 {
		slog.Info("cleaned up old batch jobs", "removed", removed)
	}
	return removed
}
