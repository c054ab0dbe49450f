// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// Tests for the Prometheus instruments

package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	t.Run("session gauge tracks open and close", func(t *testing.T) {
		m := NewMetrics(prometheus.NewRegistry())
		m.SessionOpened()
		m.SessionOpened()
		m.SessionClosed()
		assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsActive))
	})

	t.Run("query outcomes label by mode and result", func(t *testing.T) {
		m := NewMetrics(prometheus.NewRegistry())
		m.QueryFinished("standard", ResultSuccess, 20*time.Millisecond)
		m.QueryFinished("standard", ResultSuccess, 30*time.Millisecond)
		m.QueryFinished("instant", ResultCancelled, time.Millisecond)

		assert.Equal(t, 2.0,
			testutil.ToFloat64(m.QueriesTotal.WithLabelValues("standard", ResultSuccess)))
		assert.Equal(t, 1.0,
			testutil.ToFloat64(m.QueriesTotal.WithLabelValues("instant", ResultCancelled)))
	})

	t.Run("batch counters", func(t *testing.T) {
		m := NewMetrics(prometheus.NewRegistry())
		m.BatchJobFinished("completed")
		m.BatchItemProcessed(ResultSuccess)
		m.BatchItemProcessed(ResultError)
		m.SetBatchQueueDepth(3)

		assert.Equal(t, 1.0, testutil.ToFloat64(m.BatchJobsTotal.WithLabelValues("completed")))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.BatchItemsTotal.WithLabelValues(ResultError)))
		assert.Equal(t, 3.0, testutil.ToFloat64(m.BatchQueueDepth))
	})

	t.Run("nil metrics record nothing and never panic", func(t *testing.T) {
		var m *Metrics
		m.SessionOpened()
		m.MessageReceived("keepalive")
		m.QueryFinished("standard", ResultError, time.Second)
		m.AnswerChunkSent()
		m.BatchJobFinished("failed")
		m.SetBatchQueueDepth(1)
	})
}
