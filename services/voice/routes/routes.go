// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/AleutianVoice/services/rag"
	"github.com/AleutianAI/AleutianVoice/services/voice/batch"
	"github.com/AleutianAI/AleutianVoice/services/voice/handlers"
	"github.com/AleutianAI/AleutianVoice/services/voice/observability"
)

func SetupRoutes(router *gin.Engine, client rag.Client, processor *batch.Processor,
	metrics *observability.Metrics, chunkSize int) {

	router.GET("/health", handlers.HealthCheck(client))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		v1.GET("/asr/ws", handlers.HandleASRWebSocket(client, metrics, chunkSize))

		batchGroup := v1.Group("/batch")
		{
			batchGroup.POST("/tasks", handlers.SubmitTask(processor))
			batchGroup.GET("/tasks", handlers.ListTasks(processor))
			batchGroup.GET("/tasks/:taskId", handlers.GetTaskStatus(processor))
			batchGroup.GET("/tasks/:taskId/results", handlers.GetTaskResults(processor))
			batchGroup.DELETE("/tasks/:taskId", handlers.CancelTask(processor))
			batchGroup.GET("/status", handlers.GetBatchStatus(processor))
		}
	}
}
