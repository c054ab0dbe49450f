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
	"log/slog"
	"sync"
	"time"
)

// CleanupScheduler periodically drops old terminal jobs from a queue so
// completed work stops counting against queue capacity.
type CleanupScheduler struct {
	queue    *Queue
	interval time.Duration
	maxAge   time.Duration

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewCleanupScheduler sweeps queue every interval, removing terminal jobs
// older than maxAge.
func NewCleanupScheduler(queue *Queue, interval, maxAge time.Duration) *CleanupScheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	return &CleanupScheduler{
		queue:    queue,
		interval: interval,
		maxAge:   maxAge,
	}
}

// Start launches the sweep loop. Safe to call repeatedly.
func (s *CleanupScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		slog.Warn("cleanup scheduler already running")
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(s.stop, s.done)
	slog.Info("cleanup scheduler started",
		"interval", s.interval,
		"max_age", s.maxAge,
	)
}

// Stop halts the sweep loop and waits for it to exit.
func (s *CleanupScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stop, done := s.stop, s.done
	s.mu.Unlock()

	close(stop)
	<-done
	slog.Info("cleanup scheduler stopped")
}

func (s *CleanupScheduler) run(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.RunNow()
		}
	}
}

// RunNow performs one sweep immediately and returns the removal count.
func (s *CleanupScheduler) RunNow() int {
	return s.queue.Cleanup(s.maxAge)
}
