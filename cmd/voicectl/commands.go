// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

const defaultServerURL = "http://localhost:12230"

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	serverURL string

	submitName        string
	submitDescription string
	submitFile        string

	resultsPage int
	resultsSize int

	listStatus string
)

// =============================================================================
// COMMAND DEFINITIONS
// =============================================================================

var (
	rootCmd = &cobra.Command{
		Use:   "voicectl",
		Short: "A CLI to manage the Aleutian voice service",
		Long: `voicectl submits and inspects batch question jobs on the voice
service and checks service health.`,
	}

	submitCmd = &cobra.Command{
		Use:   "submit [question]...",
		Short: "Submit a batch of questions for offline processing",
		Long: `Submits questions as one batch job. Questions come from the
arguments, or from a file (one per line) via --file.`,
		Run: runSubmit,
	}

	statusCmd = &cobra.Command{
		Use:   "status [task-id]",
		Short: "Show the status of a batch task",
		Args:  cobra.ExactArgs(1),
		Run:   runStatus,
	}

	resultsCmd = &cobra.Command{
		Use:   "results [task-id]",
		Short: "Fetch a page of batch task results",
		Args:  cobra.ExactArgs(1),
		Run:   runResults,
	}

	cancelCmd = &cobra.Command{
		Use:   "cancel [task-id]",
		Short: "Cancel a pending or running batch task",
		Args:  cobra.ExactArgs(1),
		Run:   runCancel,
	}

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List batch tasks, optionally filtered by status",
		Run:   runList,
	}

	queueCmd = &cobra.Command{
		Use:   "queue",
		Short: "Show worker pool and queue occupancy",
		Run:   runQueue,
	}

	healthCmd = &cobra.Command{
		Use:   "health",
		Short: "Check voice service and provider health",
		Run:   runHealth,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServerURL,
		"Base URL of the voice service")

	submitCmd.Flags().StringVar(&submitName, "name", "voicectl batch",
		"Name for the batch task")
	submitCmd.Flags().StringVar(&submitDescription, "description", "",
		"Description for the batch task")
	submitCmd.Flags().StringVar(&submitFile, "file", "",
		"Read questions from a file, one per line")

	resultsCmd.Flags().IntVar(&resultsPage, "page", 1, "Result page (1-based)")
	resultsCmd.Flags().IntVar(&resultsSize, "size", 100, "Results per page")

	listCmd.Flags().StringVar(&listStatus, "status", "",
		"Filter by status (pending, running, completed, failed, cancelled)")

	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resultsCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(healthCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATIONS
// =============================================================================

func collectQuestions(args []string) ([]string, error) {
	questions := append([]string{}, args...)
	if submitFile != "" {
		f, err := os.Open(submitFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", submitFile, err)
		}
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" {
				questions = append(questions, line)
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", submitFile, err)
		}
	}
	return questions, nil
}

func runSubmit(cmd *cobra.Command, args []string) {
	questions, err := collectQuestions(args)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	if len(questions) == 0 {
		log.Fatal("Error: no questions given; pass them as arguments or via --file")
	}

	var reply map[string]any
	err = doJSON("POST", serverURL+"/v1/batch/tasks", map[string]any{
		"name":        submitName,
		"texts":       questions,
		"description": submitDescription,
	}, &reply)
	if err != nil {
		log.Fatalf("Error submitting task: %v", err)
	}
	printJSON(reply)
}

func runStatus(cmd *cobra.Command, args []string) {
	var reply map[string]any
	if err := doJSON("GET", serverURL+"/v1/batch/tasks/"+args[0], nil, &reply); err != nil {
		log.Fatalf("Error fetching status: %v", err)
	}
	printJSON(reply)
}

func runResults(cmd *cobra.Command, args []string) {
	url := fmt.Sprintf("%s/v1/batch/tasks/%s/results?page=%d&size=%d",
		serverURL, args[0], resultsPage, resultsSize)
	var reply map[string]any
	if err := doJSON("GET", url, nil, &reply); err != nil {
		log.Fatalf("Error fetching results: %v", err)
	}
	printJSON(reply)
}

func runCancel(cmd *cobra.Command, args []string) {
	var reply map[string]any
	if err := doJSON("DELETE", serverURL+"/v1/batch/tasks/"+args[0], nil, &reply); err != nil {
		log.Fatalf("Error cancelling task: %v", err)
	}
	printJSON(reply)
}

func runList(cmd *cobra.Command, args []string) {
	url := serverURL + "/v1/batch/tasks"
	if listStatus != "" {
		url += "?status=" + listStatus
	}
	var reply map[string]any
	if err := doJSON("GET", url, nil, &reply); err != nil {
		log.Fatalf("Error listing tasks: %v", err)
	}
	printJSON(reply)
}

func runQueue(cmd *cobra.Command, args []string) {
	var reply map[string]any
	if err := doJSON("GET", serverURL+"/v1/batch/status", nil, &reply); err != nil {
		log.Fatalf("Error fetching queue status: %v", err)
	}
	printJSON(reply)
}

func runHealth(cmd *cobra.Command, args []string) {
	var reply map[string]any
	if err := doJSON("GET", serverURL+"/health", nil, &reply); err != nil {
		log.Fatalf("Error checking health: %v", err)
	}
	printJSON(reply)
}
