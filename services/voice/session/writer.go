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
	"log/slog"
	"sync"
)

// FrameWriter emits protocol frames to one client. Implementations must be
// safe for concurrent use: the read loop and the active query task write
// interleaved frames on the same connection.
type FrameWriter interface {
	WriteConnected(sessionID string) error
	WriteAck(receivedType, sessionID string) error
	WriteStatus(frame StatusFrame) error
	WriteAnswer(index int, content string, final bool) error
	WriteError(code, message string) error
}

// jsonConn is the slice of *websocket.Conn the writer needs.
type jsonConn interface {
	WriteJSON(v any) error
}

// wsFrameWriter serializes frame writes onto a single websocket connection.
// gorilla/websocket allows at most one concurrent writer, so every send
// goes through the mutex.
type wsFrameWriter struct {
	mu   sync.Mutex
	conn jsonConn
}

// NewFrameWriter wraps a websocket connection in a mutex-gated FrameWriter.
func NewFrameWriter(conn jsonConn) FrameWriter {
	return &wsFrameWriter{conn: conn}
}

func (w *wsFrameWriter) writeJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.conn.WriteJSON(v); err != nil {
		// The peer may already be gone; the read loop notices and tears
		// the session down, so a failed send is only worth a debug line.
		slog.Debug("websocket frame write failed", "error", err)
		return err
	}
	return nil
}

func (w *wsFrameWriter) WriteConnected(sessionID string) error {
	return w.writeJSON(AckFrame{Type: "ack", Message: "connected", SessionID: sessionID})
}

func (w *wsFrameWriter) WriteAck(receivedType, sessionID string) error {
	return w.writeJSON(AckFrame{Type: "ack", ReceivedType: receivedType, SessionID: sessionID})
}

func (w *wsFrameWriter) WriteStatus(frame StatusFrame) error {
	frame.Type = "status"
	return w.writeJSON(frame)
}

func (w *wsFrameWriter) WriteAnswer(index int, content string, final bool) error {
	return w.writeJSON(AnswerFrame{Type: "answer", StreamIndex: index, Content: content, Final: final})
}

func (w *wsFrameWriter) WriteError(code, message string) error {
	return w.writeJSON(ErrorFrame{Type: "error", Code: code, Message: message})
}

var _ FrameWriter = (*wsFrameWriter)(nil)
