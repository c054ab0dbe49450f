// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Config holds the voice service's process configuration, read once from
// the environment at startup.
type Config struct {
	Port string

	// AnswerChunkSize bounds streamed answer chunks in runes.
	AnswerChunkSize int

	BatchMaxConcurrent int
	BatchMaxQueueSize  int

	// BatchProviderRPS caps batch queries per second against the
	// provider. Zero disables the cap.
	BatchProviderRPS float64

	// RetentionMaxAge is how long finished batch jobs stay queryable.
	RetentionMaxAge time.Duration

	CleanupInterval time.Duration
}

// Load reads configuration from the environment, warning and falling back
// to defaults on missing or unparseable values.
func Load() Config {
	return Config{
		Port:               envString("VOICE_PORT", "12230"),
		AnswerChunkSize:    envInt("ANSWER_CHUNK_SIZE", 120),
		BatchMaxConcurrent: envInt("BATCH_MAX_CONCURRENT", 5),
		BatchMaxQueueSize:  envInt("BATCH_MAX_QUEUE_SIZE", 1000),
		BatchProviderRPS:   envFloat("BATCH_PROVIDER_RPS", 0),
		RetentionMaxAge:    time.Duration(envInt("BATCH_RETENTION_HOURS", 24)) * time.Hour,
		CleanupInterval:    time.Duration(envInt("BATCH_CLEANUP_INTERVAL_MINUTES", 60)) * time.Minute,
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("invalid integer in environment, using default",
			"key", key, "value", v, "default", fallback)
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("invalid number in environment, using default",
			"key", key, "value", v, "default", fallback)
		return fallback
	}
	return f
}
