// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricNamespace = "aleutian"
	metricSubsystem = "voice"
)

// Query outcome labels.
const (
	ResultSuccess   = "success"
	ResultError     = "error"
	ResultCancelled = "cancelled"
)

// Metrics aggregates the Prometheus instruments for the voice service. A
// nil *Metrics is valid and records nothing, which keeps tests free of
// registry plumbing.
type Metrics struct {
	SessionsActive prometheus.Gauge
	MessagesTotal  *prometheus.CounterVec
	QueriesTotal   *prometheus.CounterVec
	QuerySeconds   *prometheus.HistogramVec
	AnswerChunks   prometheus.Counter

	BatchJobsTotal  *prometheus.CounterVec
	BatchItemsTotal *prometheus.CounterVec
	BatchQueueDepth prometheus.Gauge
}

// NewMetrics registers the voice instruments on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricNamespace,
			Subsystem: metricSubsystem,
			Name:      "sessions_active",
			Help:      "Number of websocket sessions currently connected.",
		}),
		MessagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricNamespace,
			Subsystem: metricSubsystem,
			Name:      "messages_total",
			Help:      "Inbound protocol messages by declared type.",
		}, []string{"type"}),
		QueriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricNamespace,
			Subsystem: metricSubsystem,
			Name:      "queries_total",
			Help:      "RAG queries by mode and outcome.",
		}, []string{"mode", "result"}),
		QuerySeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricNamespace,
			Subsystem: metricSubsystem,
			Name:      "query_duration_seconds",
			Help:      "Wall-clock duration of RAG queries by mode.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),
		AnswerChunks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricNamespace,
			Subsystem: metricSubsystem,
			Name:      "answer_chunks_total",
			Help:      "Answer chunks streamed to clients.",
		}),
		BatchJobsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricNamespace,
			Subsystem: metricSubsystem,
			Name:      "batch_jobs_total",
			Help:      "Batch jobs by terminal status.",
		}, []string{"status"}),
		BatchItemsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricNamespace,
			Subsystem: metricSubsystem,
			Name:      "batch_items_total",
			Help:      "Batch items processed by result.",
		}, []string{"result"}),
		BatchQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricNamespace,
			Subsystem: metricSubsystem,
			Name:      "batch_queue_depth",
			Help:      "Jobs waiting in the batch queue.",
		}),
	}
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.SessionsActive.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.SessionsActive.Dec()
}

func (m *Metrics) MessageReceived(msgType string) {
	if m == nil {
		return
	}
	m.MessagesTotal.WithLabelValues(msgType).Inc()
}

// QueryFinished records one query outcome with its duration.
func (m *Metrics) QueryFinished(mode, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.QueriesTotal.WithLabelValues(mode, result).Inc()
	m.QuerySeconds.WithLabelValues(mode).Observe(elapsed.Seconds())
}

func (m *Metrics) AnswerChunkSent() {
	if m == nil {
		return
	}
	m.AnswerChunks.Inc()
}

func (m *Metrics) BatchJobFinished(status string) {
	if m == nil {
		return
	}
	m.BatchJobsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) BatchItemProcessed(result string) {
	if m == nil {
		return
	}
	m.BatchItemsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) SetBatchQueueDepth(pending int) {
	if m == nil {
		return
	}
	m.BatchQueueDepth.Set(float64(pending))
}
