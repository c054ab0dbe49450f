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

// =============================================================================
// Wire Protocol
// =============================================================================

// Inbound message types.
const (
	TypeKeepalive = "keepalive"
	TypeControl   = "control"
	TypeASRChunk  = "asr_chunk"
)

// Control actions.
const (
	ActionPause        = "pause"
	ActionResume       = "resume"
	ActionStop         = "stop"
	ActionInstantQuery = "instant_query"
)

// Status stages emitted to the client. One stage is active per session at
// any time; transitions are driven by the protocol engine and the query
// controller.
const (
	StageListening          = "listening"
	StagePaused             = "paused"
	StageWaitingForQuestion = "waiting_for_question"
	StageAnalyzing          = "analyzing"
	StageInstantQuery       = "instant_query"
	StageQueryingRAG        = "querying_rag"
	StageInterrupting       = "interrupting"
	StageIdle               = "idle"
	StageClosed             = "closed"
)

// Query modes.
const (
	ModeStandard = "standard"
	ModeInstant  = "instant"
)

// Stable error codes for protocol errors. Codes never change even when the
// human-readable message does.
const (
	CodeInvalidJSON     = "INVALID_JSON"
	CodeInvalidMessage  = "INVALID_MESSAGE"
	CodeUnsupportedType = "UNSUPPORTED_TYPE"
	CodeUnknownAction   = "UNKNOWN_ACTION"
	CodeNoFinalASR      = "NO_FINAL_ASR"
	CodeEmptyQuestion   = "EMPTY_QUESTION"
	CodeServerError     = "SERVER_ERROR"
)

// AckFrame acknowledges an inbound message before it is processed.
type AckFrame struct {
	Type         string `json:"type"`
	Message      string `json:"message,omitempty"`
	ReceivedType string `json:"received_type,omitempty"`
	SessionID    string `json:"session_id"`
}

// StatusFrame reports a stage transition. Question, Mode and Note are
// stage-dependent and omitted when empty.
type StatusFrame struct {
	Type     string `json:"type"`
	Stage    string `json:"stage"`
	Question string `json:"question,omitempty"`
	Mode     string `json:"mode,omitempty"`
	Note     string `json:"note,omitempty"`
}

// AnswerFrame carries one chunk of a streamed answer. Final marks the last
// chunk of the stream.
type AnswerFrame struct {
	Type        string `json:"type"`
	StreamIndex int    `json:"stream_index"`
	Content     string `json:"content"`
	Final       bool   `json:"final"`
}

// ErrorFrame reports a protocol or provider error without closing the
// connection.
type ErrorFrame struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
