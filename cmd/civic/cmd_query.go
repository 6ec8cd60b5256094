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
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// queryRequest is the payload for POST /v1/assistant/query.
type queryRequest struct {
	Query    string `json:"query"`
	Identity string `json:"identity,omitempty"`
}

// queryResponse is the response from POST /v1/assistant/query.
type queryResponse struct {
	ID       string `json:"id"`
	Response string `json:"response"`
	Blocked  bool   `json:"blocked"`
	Reframe  string `json:"reframe,omitempty"`
	Flagged  bool   `json:"flagged,omitempty"`
}

// followupsResponse is the response from GET /v1/assistant/query/:id/followups.
type followupsResponse struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Suggestions []struct {
		Text     string `json:"text"`
		Category string `json:"category"`
	} `json:"suggestions,omitempty"`
}

// errorResponse mirrors the server's uniform error body.
type errorResponse struct {
	Error             string `json:"error"`
	Code              string `json:"code,omitempty"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
}

func runAskCommand(_ *cobra.Command, args []string) {
	question := strings.Join(args, " ")
	fmt.Printf("Asking: %s\n", question)
	fmt.Println("---")

	resp, err := sendQuery(question)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	printTurn(resp)

	// Suggestions are generated after the answer is delivered, so poll
	// briefly rather than blocking the whole request on them.
	if !resp.Blocked {
		printFollowups(resp.ID, 10*time.Second)
	}
	fmt.Println("\n---")
}

func runChatCommand(_ *cobra.Command, args []string) {
	if len(args) > 0 {
		fmt.Printf("Warning: Unexpected arguments ignored: %v\n", args)
		fmt.Println("Use 'civic chat --help' to see available flags.")
	}

	fmt.Println("CivicScope chat. Type a question, /flag <note> to report the last answer, or exit.")

	scanner := bufio.NewScanner(os.Stdin)
	var lastQuery, lastResponse string

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" || line == "q" {
			fmt.Println("Goodbye.")
			break
		}

		if note, ok := strings.CutPrefix(line, "/flag"); ok {
			if lastResponse == "" {
				fmt.Println("Nothing to flag yet; ask a question first.")
				continue
			}
			if err := sendFeedback(lastQuery, lastResponse, strings.TrimSpace(note)); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to send feedback: %v\n", err)
				continue
			}
			fmt.Println("Thanks, the exchange has been logged for review.")
			continue
		}

		resp, err := sendQuery(line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}

		printTurn(resp)
		if !resp.Blocked {
			lastQuery, lastResponse = line, resp.Response
			printFollowups(resp.ID, 10*time.Second)
		}
		fmt.Println()
	}
}

func runFeedbackCommand(cmd *cobra.Command, _ []string) {
	query, _ := cmd.Flags().GetString("query")
	response, _ := cmd.Flags().GetString("response")
	if query == "" || response == "" {
		log.Fatalf("Usage: civic feedback --query <question> --response <answer> [--note <what was wrong>]")
	}
	if err := sendFeedback(query, response, feedbackNote); err != nil {
		log.Fatalf("Error: %v", err)
	}
	fmt.Println("Feedback logged for review.")
}

// sendQuery posts one question to the assistant and decodes the turn result.
// Rate and budget rejections come back as errors carrying the server's message.
func sendQuery(question string) (*queryResponse, error) {
	client := &http.Client{Timeout: 3 * time.Minute}

	payload := queryRequest{Query: question, Identity: identityFlag}
	jsonPayload, _ := json.Marshal(payload)

	targetURL := fmt.Sprintf("%s/v1/assistant/query", getAssistantBaseURL())

	done := make(chan bool)
	go showSpinner("Thinking", done)

	resp, err := client.Post(targetURL, "application/json", bytes.NewBuffer(jsonPayload))
	done <- true
	fmt.Print("\r                                                \r")

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: CivicScope server unavailable at %s\n", targetURL)
		fmt.Fprintf(os.Stderr, "Start it with: ANTHROPIC_API_KEY=<key> ./civicscope\n")
		fmt.Fprintf(os.Stderr, "Or set CIVICSCOPE_URL to override the default address.\n")
		return nil, fmt.Errorf("connection failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Error("failed to close response body", "error", closeErr)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
			if errResp.RetryAfterSeconds > 0 {
				return nil, fmt.Errorf("%s (retry in %ds)", errResp.Error, errResp.RetryAfterSeconds)
			}
			return nil, fmt.Errorf("%s", errResp.Error)
		}
		return nil, fmt.Errorf("server error (HTTP %d): %s", resp.StatusCode, string(body))
	}

	var result queryResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}

// printTurn renders a turn result. Blocked turns print the reframe the
// server supplied instead of an answer.
func printTurn(resp *queryResponse) {
	if resp.Blocked {
		fmt.Printf("\n%s\n", resp.Reframe)
		return
	}
	fmt.Printf("\n%s\n", resp.Response)
}

// printFollowups polls the followups endpoint until the batch is ready or
// the deadline passes. A turn with no suggestions prints nothing.
func printFollowups(turnID string, wait time.Duration) {
	client := &http.Client{Timeout: 30 * time.Second}
	targetURL := fmt.Sprintf("%s/v1/assistant/query/%s/followups", getAssistantBaseURL(), turnID)

	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		resp, err := client.Get(targetURL)
		if err != nil {
			return
		}
		body, readErr := io.ReadAll(resp.Body)
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Error("failed to close response body", "error", closeErr)
		}
		if readErr != nil || resp.StatusCode != http.StatusOK {
			return
		}

		var followups followupsResponse
		if err := json.Unmarshal(body, &followups); err != nil {
			return
		}
		if followups.Status == "ready" {
			if len(followups.Suggestions) > 0 {
				fmt.Println("\nYou might also ask:")
				for i, s := range followups.Suggestions {
					fmt.Printf("%d. %s\n", i+1, s.Text)
				}
			}
			return
		}
		time.Sleep(500 * time.Millisecond)
	}
}

// sendFeedback reports an exchange to POST /v1/assistant/feedback.
func sendFeedback(query, response, note string) error {
	postBody, err := json.Marshal(map[string]string{
		"query":    query,
		"response": response,
		"feedback": note,
	})
	if err != nil {
		return fmt.Errorf("failed to create request body: %w", err)
	}

	targetURL := fmt.Sprintf("%s/v1/assistant/feedback", getAssistantBaseURL())
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Post(targetURL, "application/json", bytes.NewBuffer(postBody))
	if err != nil {
		return fmt.Errorf("failed to reach server: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Error("failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server rejected feedback (HTTP %d): %s", resp.StatusCode, string(body))
	}
	return nil
}

// showSpinner displays the animation while a request is in flight.
func showSpinner(msg string, done chan bool) {
	chars := []string{"▖", "▘", "▝", "▗"}
	i := 0

	fmt.Print("\033[?25l")
	defer fmt.Print("\033[?25h")

	for {
		select {
		case <-done:
			return
		default:
			fmt.Printf("\r%s  %s... \033[K", chars[i%len(chars)], msg)
			i++
			time.Sleep(100 * time.Millisecond)
		}
	}
}
