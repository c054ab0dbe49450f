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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateAggregation(t *testing.T) {
	t.Run("finalized chunks join in arrival order", func(t *testing.T) {
		st := NewState("s1")
		st.AddChunk("请问", true)
		st.AddChunk("下一步怎么做", true)
		assert.Equal(t, "请问 下一步怎么做", st.AggregatedText())
		assert.Equal(t, "下一步怎么做", st.LastFinalText())
	})

	t.Run("interim and blank chunks are dropped", func(t *testing.T) {
		st := NewState("s1")
		st.AddChunk("partial", false)
		st.AddChunk("   ", true)
		assert.Equal(t, "", st.AggregatedText())
		assert.Equal(t, "", st.LastFinalText())
	})

	t.Run("collapse keeps only the latest fragment", func(t *testing.T) {
		st := NewState("s1")
		st.AddChunk("first", true)
		st.AddChunk("second", true)
		st.CollapseToLatest("third")
		assert.Equal(t, "third", st.AggregatedText())
		assert.Equal(t, "third", st.LastFinalText())
	})

	t.Run("reset clears text but not pause state", func(t *testing.T) {
		st := NewState("s1")
		st.AddChunk("hello?", true)
		st.SetPaused(true)
		st.Reset()
		assert.Equal(t, "", st.AggregatedText())
		assert.Equal(t, "", st.LastFinalText())
		assert.True(t, st.Paused())
	})
}

func TestLooksLikeQuestion(t *testing.T) {
	cases := []struct {
		name string
		text string
		want bool
	}{
		{"full-width question mark", "今天天气怎么样？", true},
		{"ascii question mark", "really?", true},
		{"chinese particle", "你叫什么名字", true},
		{"statement in chinese", "大家好，今天开会", false},
		{"english interrogative", "what time is it", true},
		{"english interrogative capitalized", "What time is it", true},
		{"word boundary respected", "whatever happens happens", false},
		{"plain statement", "the meeting starts at noon", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := NewState("s1")
			st.AddChunk(tc.text, true)
			assert.Equal(t, tc.want, st.LooksLikeQuestion())
		})
	}

	t.Run("empty aggregate is never a question", func(t *testing.T) {
		assert.False(t, NewState("s1").LooksLikeQuestion())
	})
}
