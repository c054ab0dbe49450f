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
	"regexp"
	"strings"
	"sync"
)

// Chinese interrogative markers matched as substrings of the aggregate.
var chineseQuestionWords = []string{
	"吗", "呢", "什么", "怎么", "为什么", "如何", "哪里",
	"哪个", "谁", "几", "多少", "是否", "能否", "可否",
	"干嘛", "咋", "啥",
}

// English interrogatives matched on word boundaries against the lower-cased
// aggregate.
var englishQuestionRe = regexp.MustCompile(
	`\b(what|how|why|when|where|who|which|whom|whose|can|could|would|should|is|are|do|does|did)\b`)

// State holds the accumulated ASR text for one connection. The read loop
// and the active query task touch it from different goroutines, so all
// access goes through the internal mutex.
type State struct {
	mu            sync.Mutex
	sessionID     string
	finalChunks   []string
	lastFinalText string
	paused        bool
}

// NewState creates an empty session state for the given identity.
func NewState(sessionID string) *State {
	return &State{sessionID: sessionID}
}

func (s *State) SessionID() string {
	return s.sessionID
}

// AddChunk records an ASR fragment. Only finalized, non-blank fragments are
// retained; interim fragments are intentionally dropped since the upstream
// recognizer will re-send them finalized.
func (s *State) AddChunk(text string, isFinal bool) {
	trimmed := strings.TrimSpace(text)
	if !isFinal || trimmed == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalChunks = append(s.finalChunks, trimmed)
	s.lastFinalText = trimmed
}

// CollapseToLatest replaces the accumulated fragments with the single
// latest one. Used while a query is already in flight: the running query
// captured the prior aggregate, so stale combined text must not be
// re-asked.
func (s *State) CollapseToLatest(text string) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalChunks = []string{trimmed}
	s.lastFinalText = trimmed
}

// AggregatedText joins all finalized fragments in arrival order.
func (s *State) AggregatedText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.Join(s.finalChunks, " ")
}

// LastFinalText returns the most recent finalized fragment, or "" when no
// fragment has been finalized since the last reset.
func (s *State) LastFinalText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFinalText
}

func (s *State) SetPaused(paused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = paused
}

func (s *State) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Reset clears accumulated text so the next utterance starts fresh. Pause
// state survives a reset.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalChunks = nil
	s.lastFinalText = ""
}

// LooksLikeQuestion applies the question heuristic to the aggregate: a
// question mark (ASCII or full-width), a Chinese interrogative particle, or
// an English interrogative on a word boundary.
func (s *State) LooksLikeQuestion() bool {
	text := strings.ToLower(s.AggregatedText())
	if text == "" {
		return false
	}
	if strings.ContainsAny(text, "?？") {
		return true
	}
	for _, word := range chineseQuestionWords {
		if strings.Contains(text, word) {
			return true
		}
	}
	return englishQuestionRe.MatchString(text)
}
