// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package textsplit provides text chunking utilities for streaming answers
// over the realtime protocol. Splitting is rune-aware so multi-byte CJK
// answers never break mid-character.
package textsplit

import (
	"regexp"
	"strings"
)

// DefaultChunkSize is the chunk size used for streamed answers when the
// caller does not override it.
const DefaultChunkSize = 120

// sentence boundary runes, CJK and ASCII
var sentenceEnders = []rune{'。', '？', '！', '.', '?', '!'}

var whitespaceRe = regexp.MustCompile(`\s+`)

// Split breaks text into chunks of at most maxSize runes, preferring to cut
// at sentence boundaries and falling back to spaces. No characters are lost
// other than whitespace trimmed at chunk edges.
//
// # Inputs
//
//   - text: Text to split. Empty input yields a nil slice.
//   - maxSize: Maximum chunk length in runes. Values < 1 fall back to
//     DefaultChunkSize.
//
// # Outputs
//
//   - []string: Ordered chunks; concatenation preserves the input's
//     non-whitespace content.
func Split(text string, maxSize int) []string {
	if text == "" {
		return nil
	}
	if maxSize < 1 {
		maxSize = DefaultChunkSize
	}

	runes := []rune(text)
	if len(runes) <= maxSize {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + maxSize
		if end < len(runes) {
			if cut := lastBoundary(runes, start, end); cut > start {
				end = cut + 1
			}
		} else {
			end = len(runes)
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		start = end
	}
	return chunks
}

// lastBoundary returns the index of the rightmost split point strictly
// after start in runes[start:end): a sentence ender if one exists,
// otherwise a space, otherwise -1.
func lastBoundary(runes []rune, start, end int) int {
	space := -1
	for i := end - 1; i > start; i-- {
		for _, e := range sentenceEnders {
			if runes[i] == e {
				return i
			}
		}
		if space == -1 && runes[i] == ' ' {
			space = i
		}
	}
	return space
}

// Clean collapses runs of whitespace to single spaces and trims the result.
func Clean(text string) string {
	if text == "" {
		return ""
	}
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

// Truncate shortens text to at most maxLength runes, appending suffix when
// truncation occurs. The suffix counts against the limit.
func Truncate(text string, maxLength int, suffix string) string {
	runes := []rune(text)
	if text == "" || len(runes) <= maxLength {
		return text
	}
	keep := maxLength - len([]rune(suffix))
	if keep < 0 {
		keep = 0
	}
	return string(runes[:keep]) + suffix
}
