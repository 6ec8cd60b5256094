// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command civic is the terminal client for the CivicScope assistant server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Flag values shared across subcommands.
var (
	identityFlag string
	feedbackNote string
)

var rootCmd = &cobra.Command{
	Use:   "civic",
	Short: "Ask questions about public school data",
	Long: `civic talks to a running CivicScope server.

Set CIVICSCOPE_URL to point at the server (default: http://localhost:8080).`,
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question and print the answer with follow-up ideas",
	Args:  cobra.MinimumNArgs(1),
	Run:   runAskCommand,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive question loop (type /flag <note> to report the last answer)",
	Run:   runChatCommand,
}

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Report a problematic exchange for review",
	Run:   runFeedbackCommand,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&identityFlag, "identity", "",
		"Identity string for rate limiting (default: server uses client IP)")
	feedbackCmd.Flags().String("query", "", "The question that produced the bad answer")
	feedbackCmd.Flags().String("response", "", "The answer being reported (required)")
	feedbackCmd.Flags().StringVar(&feedbackNote, "note", "", "What was wrong with it")
	rootCmd.AddCommand(askCmd, chatCmd, feedbackCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// getAssistantBaseURL resolves the server address from CIVICSCOPE_URL.
func getAssistantBaseURL() string {
	if url := os.Getenv("CIVICSCOPE_URL"); url != "" {
		return url
	}
	return "http://localhost:8080"
}
