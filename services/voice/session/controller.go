// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/AleutianVoice/pkg/textsplit"
	"github.com/AleutianAI/AleutianVoice/services/rag"
	"github.com/AleutianAI/AleutianVoice/services/voice/observability"
)

var controllerTracer = otel.Tracer("aleutian.voice.session.controller")

// queryTask is the handle for one in-flight query. done is closed after the
// task's cleanup has fully run, so cancel-then-await observes completion.
type queryTask struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Controller owns the single active-query slot for a session. At most one
// query task exists at any time; starting a new one while another is active
// is refused, and preemption goes through CancelActiveQuery first.
type Controller struct {
	writer    FrameWriter
	client    rag.Client
	metrics   *observability.Metrics
	chunkSize int

	mu     sync.Mutex
	active *queryTask
}

// NewController wires a controller to a frame writer and a provider client.
// chunkSize bounds answer chunks in runes; zero selects the default.
func NewController(writer FrameWriter, client rag.Client, metrics *observability.Metrics, chunkSize int) *Controller {
	if chunkSize <= 0 {
		chunkSize = textsplit.DefaultChunkSize
	}
	return &Controller{
		writer:    writer,
		client:    client,
		metrics:   metrics,
		chunkSize: chunkSize,
	}
}

// HasActiveQuery reports whether a query task currently holds the slot.
func (c *Controller) HasActiveQuery() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}

// StartQuery launches a query task for the aggregated question. The caller
// must have ensured no task is active (via CancelActiveQuery or
// HasActiveQuery); a second start while one is active emits a
// waiting_for_question note and does nothing.
func (c *Controller) StartQuery(parent context.Context, st *State, question, mode string) {
	question = strings.TrimSpace(question)
	if question == "" {
		_ = c.writer.WriteError(CodeEmptyQuestion, "Aggregated question is empty")
		return
	}

	c.mu.Lock()
	if c.active != nil {
		c.mu.Unlock()
		_ = c.writer.WriteStatus(StatusFrame{Stage: StageWaitingForQuestion, Note: "RAG query already running"})
		return
	}
	ctx, cancel := context.WithCancel(parent)
	task := &queryTask{cancel: cancel, done: make(chan struct{})}
	c.active = task
	c.mu.Unlock()

	go func() {
		defer func() {
			cancel()
			c.mu.Lock()
			if c.active == task {
				c.active = nil
			}
			c.mu.Unlock()
			close(task.done)
		}()
		c.runQuery(ctx, st, question, mode)
	}()
}

// CancelActiveQuery cancels the in-flight query, if any, and blocks until
// its cleanup has run. The interrupting status is emitted before the cancel
// so the client sees the preemption ordering.
func (c *Controller) CancelActiveQuery(note string) {
	c.mu.Lock()
	task := c.active
	c.mu.Unlock()
	if task == nil {
		return
	}
	_ = c.writer.WriteStatus(StatusFrame{Stage: StageInterrupting, Note: note})
	task.cancel()
	<-task.done
}

// Shutdown cancels and awaits any active query without emitting frames.
// Used on transport disconnect, when the peer can no longer hear us.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	task := c.active
	c.mu.Unlock()
	if task == nil {
		return
	}
	task.cancel()
	<-task.done
}

func (c *Controller) runQuery(ctx context.Context, st *State, question, mode string) {
	ctx, span := controllerTracer.Start(ctx, "session.query")
	defer span.End()
	span.SetAttributes(
		attribute.String("session.id", st.SessionID()),
		attribute.String("query.mode", mode),
	)

	start := time.Now()

	initialStage := StageAnalyzing
	if mode == ModeInstant {
		initialStage = StageInstantQuery
	}
	_ = c.writer.WriteStatus(StatusFrame{Stage: initialStage, Question: question})
	_ = c.writer.WriteStatus(StatusFrame{Stage: StageQueryingRAG, Mode: mode})

	result, err := c.client.Query(ctx, question, "ws-user-"+st.SessionID(), "")
	if err != nil {
		if ctx.Err() != nil {
			// Preempted or the session went away. The successor task or
			// the engine owns the client-facing narrative from here.
			span.SetStatus(codes.Error, "cancelled")
			c.metrics.QueryFinished(mode, observability.ResultCancelled, time.Since(start))
			slog.Debug("query cancelled",
				"session_id", st.SessionID(),
				"mode", mode,
			)
			return
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.metrics.QueryFinished(mode, observability.ResultError, time.Since(start))
		slog.Error("rag query failed",
			"session_id", st.SessionID(),
			"mode", mode,
			"error", err,
		)
		_ = c.writer.WriteError(CodeServerError, err.Error())
		st.Reset()
		return
	}

	chunks := textsplit.Split(result.Content, c.chunkSize)
	if len(chunks) == 0 {
		chunks = []string{result.Content}
	}
	for i, chunk := range chunks {
		if ctx.Err() != nil {
			c.metrics.QueryFinished(mode, observability.ResultCancelled, time.Since(start))
			return
		}
		_ = c.writer.WriteAnswer(i, chunk, i == len(chunks)-1)
		c.metrics.AnswerChunkSent()
	}
	_ = c.writer.WriteStatus(StatusFrame{Stage: StageIdle})
	st.Reset()

	c.metrics.QueryFinished(mode, observability.ResultSuccess, time.Since(start))
	slog.Info("rag query answered",
		"session_id", st.SessionID(),
		"mode", mode,
		"chunks", len(chunks),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
