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
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianVoice/services/voice/batch"
)

// SubmitTaskRequest is the batch submission payload.
type SubmitTaskRequest struct {
	Name        string         `json:"name" binding:"required,max=100"`
	Texts       []string       `json:"texts" binding:"required,min=1,max=10000"`
	Options     map[string]any `json:"options"`
	Description string         `json:"description" binding:"max=500"`
}

// SubmitTask enqueues a batch job.
func SubmitTask(processor *batch.Processor) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SubmitTaskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		job, err := processor.SubmitJob(req.Name, req.Texts, req.Options, req.Description)
		if err != nil {
			if errors.Is(err, batch.ErrQueueFull) {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, job.Snapshot())
	}
}

// GetTaskStatus returns the snapshot for one job.
func GetTaskStatus(processor *batch.Processor) gin.HandlerFunc {
	return func(c *gin.Context) {
		view, err := processor.JobStatus(c.Param("taskId"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

// GetTaskResults returns one page of job results.
func GetTaskResults(processor *batch.Processor) gin.HandlerFunc {
	return func(c *gin.Context) {
		var query struct {
			Page int `form:"page,default=1" binding:"min=1"`
			Size int `form:"size,default=100" binding:"min=1,max=1000"`
		}
		if err := c.ShouldBindQuery(&query); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		page, err := processor.JobResults(c.Param("taskId"), query.Page, query.Size)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

// CancelTask cancels a pending or running job.
func CancelTask(processor *batch.Processor) gin.HandlerFunc {
	return func(c *gin.Context) {
		taskID := c.Param("taskId")
		if !processor.CancelJob(taskID) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "task not found or not cancellable",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"task_id": taskID, "cancelled": true})
	}
}

// ListTasks returns all jobs, optionally filtered by status.
func ListTasks(processor *batch.Processor) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := batch.Status(c.Query("status"))
		c.JSON(http.StatusOK, gin.H{"tasks": processor.ListJobs(status)})
	}
}

// GetBatchStatus reports the worker pool and queue occupancy.
func GetBatchStatus(processor *batch.Processor) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, processor.Status())
	}
}
