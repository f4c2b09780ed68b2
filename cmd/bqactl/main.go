// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command bqactl is a small client for the brickqa server.
//
// Usage:
//
//	bqactl ask "昨天1205房间的平均温度是多少？"
//	bqactl ask --server http://localhost:8089 --trace "list all rooms"
//	bqactl health
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	serverURL string
	showTrace bool
)

// askRequest mirrors the server's ask body.
type askRequest struct {
	Question string `json:"question"`
}

// askResponse mirrors the server's answer body.
type askResponse struct {
	Answer      string `json:"answer"`
	Diagnostics struct {
		QuestionType     string   `json:"question_type"`
		TimeWindow       string   `json:"time_window"`
		Rows             int      `json:"rows"`
		Retries          int      `json:"retries"`
		FallbackStrategy string   `json:"fallback_strategy"`
		Trace            []string `json:"trace"`
	} `json:"diagnostics"`
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "bqactl",
		Short: "Client for the brickqa building question-answering server",
	}
	rootCmd.PersistentFlags().StringVar(&serverURL, "server",
		envOr("BRICKQA_SERVER", "http://localhost:8089"), "Base URL of the brickqa server")

	askCmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a natural-language question about the building",
		Args:  cobra.MinimumNArgs(1),
		Run:   runAskCommand,
	}
	askCmd.Flags().BoolVar(&showTrace, "trace", false, "Print the pipeline trace and diagnostics")

	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Check server liveness",
		Run:   runHealthCommand,
	}

	rootCmd.AddCommand(askCmd, healthCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runAskCommand(_ *cobra.Command, args []string) {
	question := strings.Join(args, " ")
	fmt.Printf("Asking: %s\n", question)
	fmt.Println("---")

	body, err := json.Marshal(askRequest{Question: question})
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	req, err := http.NewRequest("POST", serverURL+"/v1/buildingqa/ask", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	client := &http.Client{Timeout: 3 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("Error reading response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("Server returned %d: %s", resp.StatusCode, string(raw))
	}

	var answer askResponse
	if err := json.Unmarshal(raw, &answer); err != nil {
		log.Fatalf("Error decoding response: %v", err)
	}

	fmt.Printf("\nAnswer:\n%s\n", answer.Answer)
	if showTrace {
		d := answer.Diagnostics
		fmt.Println("\nDiagnostics:")
		fmt.Printf("  question_type:     %s\n", d.QuestionType)
		fmt.Printf("  time_window:       %s\n", d.TimeWindow)
		fmt.Printf("  rows:              %d\n", d.Rows)
		fmt.Printf("  retries:           %d\n", d.Retries)
		fmt.Printf("  fallback_strategy: %s\n", d.FallbackStrategy)
		fmt.Printf("  trace:             %s\n", strings.Join(d.Trace, " -> "))
	}
	fmt.Println("\n---")
}

func runHealthCommand(_ *cobra.Command, _ []string) {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(serverURL + "/v1/buildingqa/health")
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("Server returned %d", resp.StatusCode)
	}
	fmt.Println("ok")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
