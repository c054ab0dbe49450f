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
	"encoding/json"
	"log/slog"

	"github.com/AleutianAI/AleutianVoice/services/voice/observability"
)

// Conn is the read side of the transport. *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
}

// Engine runs the per-connection protocol loop: it reads frames, validates
// them, mutates session state and drives the query controller. One engine
// exists per websocket connection and owns its read loop goroutine.
type Engine struct {
	conn    Conn
	writer  FrameWriter
	ctrl    *Controller
	state   *State
	metrics *observability.Metrics
}

// NewEngine assembles an engine around an accepted connection.
func NewEngine(conn Conn, writer FrameWriter, ctrl *Controller, state *State, metrics *observability.Metrics) *Engine {
	return &Engine{
		conn:    conn,
		writer:  writer,
		ctrl:    ctrl,
		state:   state,
		metrics: metrics,
	}
}

// Run processes inbound messages until the client stops or disconnects.
// Any active query is cancelled and awaited before Run returns, so no task
// outlives its connection.
func (e *Engine) Run(ctx context.Context) {
	e.metrics.SessionOpened()
	defer e.metrics.SessionClosed()
	defer e.ctrl.Shutdown()

	_ = e.writer.WriteConnected(e.state.SessionID())
	_ = e.writer.WriteStatus(StatusFrame{Stage: StageListening})

	slog.Info("session started", "session_id", e.state.SessionID())

	for {
		_, data, err := e.conn.ReadMessage()
		if err != nil {
			slog.Info("session disconnected",
				"session_id", e.state.SessionID(),
				"reason", err,
			)
			return
		}
		if stop := e.handleMessage(ctx, data); stop {
			slog.Info("session stopped by client", "session_id", e.state.SessionID())
			return
		}
	}
}

// handleMessage validates and dispatches one inbound frame. It returns true
// when the client requested termination.
func (e *Engine) handleMessage(ctx context.Context, data []byte) bool {
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		_ = e.writer.WriteError(CodeInvalidJSON, "Message is not valid JSON")
		return false
	}

	msgType, ok := payload["type"].(string)
	if !ok {
		_ = e.writer.WriteError(CodeInvalidMessage, "Message must carry a string 'type' field")
		return false
	}
	e.metrics.MessageReceived(msgType)

	// A new session identity preempts whatever the old one was doing.
	if sid, ok := payload["session_id"].(string); ok && sid != "" && sid != e.state.SessionID() {
		slog.Info("session identity switched",
			"old_session_id", e.state.SessionID(),
			"new_session_id", sid,
		)
		e.ctrl.CancelActiveQuery("Session switched")
		e.state = NewState(sid)
	}

	switch msgType {
	case TypeKeepalive:
		_ = e.writer.WriteAck(msgType, e.state.SessionID())
		return false
	case TypeControl:
		_ = e.writer.WriteAck(msgType, e.state.SessionID())
		return e.handleControl(ctx, payload)
	case TypeASRChunk:
		_ = e.writer.WriteAck(msgType, e.state.SessionID())
		e.handleASRChunk(ctx, payload)
		return false
	default:
		_ = e.writer.WriteError(CodeUnsupportedType, "Unsupported message type: "+msgType)
		return false
	}
}

func (e *Engine) handleControl(ctx context.Context, payload map[string]any) bool {
	action, _ := payload["action"].(string)
	switch action {
	case ActionPause:
		e.state.SetPaused(true)
		_ = e.writer.WriteStatus(StatusFrame{Stage: StagePaused})
	case ActionResume:
		e.state.SetPaused(false)
		_ = e.writer.WriteStatus(StatusFrame{Stage: StageListening})
	case ActionStop:
		e.ctrl.CancelActiveQuery("Session closing")
		_ = e.writer.WriteStatus(StatusFrame{Stage: StageClosed})
		return true
	case ActionInstantQuery:
		e.handleInstantQuery(ctx)
	default:
		_ = e.writer.WriteError(CodeUnknownAction, "Unknown control action: "+action)
	}
	return false
}

// handleInstantQuery preempts any running query and re-asks the last
// finalized fragment immediately, skipping the question heuristic.
func (e *Engine) handleInstantQuery(ctx context.Context) {
	last := e.state.LastFinalText()
	if last == "" {
		_ = e.writer.WriteError(CodeNoFinalASR, "No finalized ASR text to query")
		return
	}
	e.ctrl.CancelActiveQuery("Instant query requested")
	e.ctrl.StartQuery(ctx, e.state, last, ModeInstant)
}

func (e *Engine) handleASRChunk(ctx context.Context, payload map[string]any) {
	if e.state.Paused() {
		_ = e.writer.WriteStatus(StatusFrame{Stage: StagePaused, Note: "Chunk ignored while paused"})
		return
	}

	text, ok := payload["text"].(string)
	if !ok {
		_ = e.writer.WriteError(CodeInvalidMessage, "asr_chunk requires a string 'text' field")
		return
	}
	isFinal := false
	if raw, present := payload["is_final"]; present {
		b, ok := raw.(bool)
		if !ok {
			_ = e.writer.WriteError(CodeInvalidMessage, "'is_final' must be a boolean")
			return
		}
		isFinal = b
	}

	if !isFinal {
		e.state.AddChunk(text, false)
		return
	}

	// A running query already captured the prior aggregate; keep only the
	// newest fragment so stale combined text is never re-asked.
	if e.ctrl.HasActiveQuery() {
		e.state.CollapseToLatest(text)
		_ = e.writer.WriteStatus(StatusFrame{Stage: StageWaitingForQuestion, Note: "RAG query already running"})
		return
	}

	e.state.AddChunk(text, true)
	if !e.state.LooksLikeQuestion() {
		_ = e.writer.WriteStatus(StatusFrame{Stage: StageWaitingForQuestion, Note: "No question detected yet"})
		return
	}

	e.ctrl.StartQuery(ctx, e.state, e.state.AggregatedText(), ModeStandard)
}
