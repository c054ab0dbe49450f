// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianVoice/services/rag"
)

// HealthCheck probes both provider capabilities and reports service
// liveness. The service stays "ok" even when a probe fails; the flags let
// operators tell the two apart.
func HealthCheck(client rag.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		ragOK := client.HealthCheck(ctx)
		_, searchErr := client.Search(ctx, "test")
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"rag":    ragOK,
			"search": searchErr == nil,
		})
	}
}
