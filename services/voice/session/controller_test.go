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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianVoice/services/rag"
)

func TestControllerQueryFlow(t *testing.T) {
	t.Run("successful query streams answer and goes idle", func(t *testing.T) {
		rec := &frameRecorder{}
		client := &rag.MockClient{Delay: time.Millisecond, Answer: "第一步先对齐目标。第二步拆分任务。"}
		ctrl := NewController(rec, client, nil, 10)
		st := NewState("s1")
		st.AddChunk("下一步怎么做？", true)

		ctrl.StartQuery(context.Background(), st, st.AggregatedText(), ModeStandard)
		rec.waitForStage(t, StageIdle)

		stages := rec.stages()
		assert.Equal(t, []string{StageAnalyzing, StageQueryingRAG, StageIdle}, stages)

		var answers []AnswerFrame
		for _, frame := range rec.snapshot() {
			if a, ok := frame.(AnswerFrame); ok {
				answers = append(answers, a)
			}
		}
		require.NotEmpty(t, answers)
		assert.True(t, answers[len(answers)-1].Final)
		for i, a := range answers {
			assert.Equal(t, i, a.StreamIndex)
			assert.False(t, i < len(answers)-1 && a.Final)
		}

		// The session is reset for the next utterance.
		assert.Equal(t, "", st.AggregatedText())
		assert.False(t, ctrl.HasActiveQuery())
	})

	t.Run("instant mode announces instant_query stage", func(t *testing.T) {
		rec := &frameRecorder{}
		ctrl := NewController(rec, &rag.MockClient{Delay: time.Millisecond}, nil, 0)
		st := NewState("s1")

		ctrl.StartQuery(context.Background(), st, "现在几点？", ModeInstant)
		rec.waitForStage(t, StageIdle)
		assert.Contains(t, rec.stages(), StageInstantQuery)
		assert.NotContains(t, rec.stages(), StageAnalyzing)
	})

	t.Run("empty question rejected without starting a task", func(t *testing.T) {
		rec := &frameRecorder{}
		ctrl := NewController(rec, rag.NewMockClient(), nil, 0)

		ctrl.StartQuery(context.Background(), NewState("s1"), "   ", ModeStandard)
		assert.Equal(t, []string{CodeEmptyQuestion}, rec.errorCodes())
		assert.False(t, ctrl.HasActiveQuery())
	})

	t.Run("provider error surfaces SERVER_ERROR and resets", func(t *testing.T) {
		rec := &frameRecorder{}
		client := &rag.MockClient{Delay: time.Millisecond, Err: errors.New("upstream down")}
		ctrl := NewController(rec, client, nil, 0)
		st := NewState("s1")
		st.AddChunk("问题？", true)

		ctrl.StartQuery(context.Background(), st, st.AggregatedText(), ModeStandard)
		rec.waitFor(t, "server error frame", func(frame any) bool {
			e, ok := frame.(ErrorFrame)
			return ok && e.Code == CodeServerError
		})
		rec.waitFor(t, "slot released", func(any) bool { return !ctrl.HasActiveQuery() })
		assert.Equal(t, "", st.AggregatedText())
	})
}

func TestControllerSingleActiveQuery(t *testing.T) {
	t.Run("second start refused while one is active", func(t *testing.T) {
		rec := &frameRecorder{}
		client := &rag.MockClient{Delay: 200 * time.Millisecond}
		ctrl := NewController(rec, client, nil, 0)
		st := NewState("s1")

		ctrl.StartQuery(context.Background(), st, "第一个问题？", ModeStandard)
		require.True(t, ctrl.HasActiveQuery())
		ctrl.StartQuery(context.Background(), st, "第二个问题？", ModeStandard)

		rec.waitFor(t, "waiting_for_question refusal", func(frame any) bool {
			s, ok := frame.(StatusFrame)
			return ok && s.Stage == StageWaitingForQuestion
		})
		ctrl.Shutdown()
	})

	t.Run("cancel awaits the old task before returning", func(t *testing.T) {
		rec := &frameRecorder{}
		client := &rag.MockClient{Delay: time.Minute}
		ctrl := NewController(rec, client, nil, 0)
		st := NewState("s1")

		ctrl.StartQuery(context.Background(), st, "慢问题？", ModeStandard)
		require.True(t, ctrl.HasActiveQuery())

		done := make(chan struct{})
		go func() {
			ctrl.CancelActiveQuery("test preemption")
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("CancelActiveQuery did not return")
		}

		// Slot is free the moment cancel returns: no double occupancy.
		assert.False(t, ctrl.HasActiveQuery())
		assert.Contains(t, rec.stages(), StageInterrupting)
		// Cancellation must never be reported to the client as an error.
		assert.Empty(t, rec.errorCodes())
	})

	t.Run("cancel without active query is a no-op", func(t *testing.T) {
		rec := &frameRecorder{}
		ctrl := NewController(rec, rag.NewMockClient(), nil, 0)
		ctrl.CancelActiveQuery("nothing running")
		assert.Empty(t, rec.snapshot())
	})

	t.Run("shutdown is silent", func(t *testing.T) {
		rec := &frameRecorder{}
		client := &rag.MockClient{Delay: time.Minute}
		ctrl := NewController(rec, client, nil, 0)
		st := NewState("s1")

		ctrl.StartQuery(context.Background(), st, "慢问题？", ModeStandard)
		rec.waitForStage(t, StageQueryingRAG)
		before := len(rec.snapshot())
		ctrl.Shutdown()
		assert.False(t, ctrl.HasActiveQuery())
		assert.Len(t, rec.snapshot(), before)
	})
}
