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
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"
)

// frameRecorder captures emitted frames for assertions. It is safe for the
// concurrent writes the engine and query tasks produce.
type frameRecorder struct {
	mu     sync.Mutex
	frames []any
}

func (r *frameRecorder) record(frame any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, frame)
	return nil
}

func (r *frameRecorder) WriteConnected(sessionID string) error {
	return r.record(AckFrame{Type: "ack", Message: "connected", SessionID: sessionID})
}

func (r *frameRecorder) WriteAck(receivedType, sessionID string) error {
	return r.record(AckFrame{Type: "ack", ReceivedType: receivedType, SessionID: sessionID})
}

func (r *frameRecorder) WriteStatus(frame StatusFrame) error {
	frame.Type = "status"
	return r.record(frame)
}

func (r *frameRecorder) WriteAnswer(index int, content string, final bool) error {
	return r.record(AnswerFrame{Type: "answer", StreamIndex: index, Content: content, Final: final})
}

func (r *frameRecorder) WriteError(code, message string) error {
	return r.record(ErrorFrame{Type: "error", Code: code, Message: message})
}

func (r *frameRecorder) snapshot() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]any, len(r.frames))
	copy(out, r.frames)
	return out
}

// waitFor polls until some recorded frame satisfies pred, failing the test
// after two seconds.
func (r *frameRecorder) waitFor(t *testing.T, desc string, pred func(frame any) bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, frame := range r.snapshot() {
			if pred(frame) {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s; frames: %#v", desc, r.snapshot())
}

func (r *frameRecorder) waitForStage(t *testing.T, stage string) {
	t.Helper()
	r.waitFor(t, "status stage "+stage, func(frame any) bool {
		s, ok := frame.(StatusFrame)
		return ok && s.Stage == stage
	})
}

func (r *frameRecorder) errorCodes() []string {
	var codes []string
	for _, frame := range r.snapshot() {
		if e, ok := frame.(ErrorFrame); ok {
			codes = append(codes, e.Code)
		}
	}
	return codes
}

func (r *frameRecorder) stages() []string {
	var stages []string
	for _, frame := range r.snapshot() {
		if s, ok := frame.(StatusFrame); ok {
			stages = append(stages, s.Stage)
		}
	}
	return stages
}

var _ FrameWriter = (*frameRecorder)(nil)

// scriptedConn feeds the engine a sequence of inbound frames. Closing it
// simulates a transport disconnect.
type scriptedConn struct {
	ch        chan []byte
	closeOnce sync.Once
}

func newScriptedConn() *scriptedConn {
	return &scriptedConn{ch: make(chan []byte, 16)}
}

func (c *scriptedConn) ReadMessage() (int, []byte, error) {
	data, ok := <-c.ch
	if !ok {
		return 0, nil, io.EOF
	}
	return 1, data, nil
}

func (c *scriptedConn) sendRaw(data string) {
	c.ch <- []byte(data)
}

func (c *scriptedConn) send(t *testing.T, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal scripted frame: %v", err)
	}
	c.ch <- data
}

func (c *scriptedConn) disconnect() {
	c.closeOnce.Do(func() { close(c.ch) })
}

var _ Conn = (*scriptedConn)(nil)
