// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package textsplit

import (
	"strings"
	"testing"
)

func TestSplit(t *testing.T) {
	t.Run("empty input yields no chunks", func(t *testing.T) {
		if got := Split("", 120); got != nil {
			t.Errorf("expected nil, got %v", got)
		}
	})

	t.Run("short input returned whole", func(t *testing.T) {
		got := Split("hello world", 120)
		if len(got) != 1 || got[0] != "hello world" {
			t.Errorf("expected single chunk, got %v", got)
		}
	})

	t.Run("chunks respect max size in runes", func(t *testing.T) {
		text := strings.Repeat("一二三四五六七八九十", 10) // 100 runes, no boundaries
		for _, chunk := range Split(text, 30) {
			if n := len([]rune(chunk)); n > 30 {
				t.Errorf("chunk has %d runes, want <= 30: %q", n, chunk)
			}
		}
	})

	t.Run("prefers sentence boundaries", func(t *testing.T) {
		text := "第一句话。第二句话要长一些才行。第三句话也是。"
		chunks := Split(text, 12)
		if len(chunks) < 2 {
			t.Fatalf("expected multiple chunks, got %v", chunks)
		}
		if !strings.HasSuffix(chunks[0], "。") {
			t.Errorf("first chunk should end at sentence boundary, got %q", chunks[0])
		}
	})

	t.Run("falls back to spaces", func(t *testing.T) {
		text := "alpha beta gamma delta epsilon zeta eta theta iota kappa"
		for _, chunk := range Split(text, 20) {
			if strings.HasPrefix(chunk, " ") || strings.HasSuffix(chunk, " ") {
				t.Errorf("chunk not trimmed: %q", chunk)
			}
			if len([]rune(chunk)) > 20 {
				t.Errorf("chunk too long: %q", chunk)
			}
		}
	})

	t.Run("no characters lost", func(t *testing.T) {
		text := "这是一个很长的答案，需要分块传输。它有好几句话！Each one matters? yes it does."
		joined := strings.Join(Split(text, 10), "")
		want := strings.ReplaceAll(text, " ", "")
		got := strings.ReplaceAll(joined, " ", "")
		if got != want {
			t.Errorf("content lost:\n got %q\nwant %q", got, want)
		}
	})

	t.Run("non-positive size uses default", func(t *testing.T) {
		text := strings.Repeat("x", DefaultChunkSize+5)
		chunks := Split(text, 0)
		if len(chunks) != 2 {
			t.Errorf("expected 2 chunks with default size, got %d", len(chunks))
		}
	})
}

func TestClean(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"", ""},
		{"  hello   world \n", "hello world"},
		{"a\t\tb", "a b"},
	}
	for _, tc := range cases {
		if got := Clean(tc.in); got != tc.want {
			t.Errorf("Clean(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	t.Run("short text unchanged", func(t *testing.T) {
		if got := Truncate("abc", 10, "..."); got != "abc" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("long text gets suffix within limit", func(t *testing.T) {
		got := Truncate(strings.Repeat("a", 50), 10, "...")
		if got != strings.Repeat("a", 7)+"..." {
			t.Errorf("got %q", got)
		}
	})

	t.Run("rune aware", func(t *testing.T) {
		got := Truncate("一二三四五六七八", 5, "…")
		if got != "一二三四…" {
			t.Errorf("got %q", got)
		}
	})
}
