// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command platecli is the terminal client for the platechat server.
//
// Usage:
//
//	platecli ask "plot F3-R15c-SM-33 until 28/01/2024"
//	platecli chat
//	platecli chat --resume <session-id>
//
// The server address comes from --server, then PLATECHAT_SERVER, then
// http://localhost:8080.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// serverFlag and resumeID hold flag values shared by the subcommands.
var (
	serverFlag string
	resumeID   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "platecli",
		Short: "Terminal client for the settlement-plate chatbot",
		Long: "platecli talks to a running platechat server: one-shot questions\n" +
			"with 'ask', or an interactive multi-turn session with 'chat'.",
	}
	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", "",
		"platechat server base URL (default PLATECHAT_SERVER or http://localhost:8080)")

	askCmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Send one question and print the reply",
		Args:  cobra.MinimumNArgs(1),
		Run:   runAskCommand,
	}

	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive multi-turn session",
		Run:   runChatCommand,
	}
	chatCmd.Flags().StringVar(&resumeID, "resume", "", "Resume an existing session by ID")

	rootCmd.AddCommand(askCmd, chatCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// getServerBaseURL resolves the server address: flag, then env, then the
// local default.
func getServerBaseURL() string {
	if serverFlag != "" {
		return serverFlag
	}
	if env := os.Getenv("PLATECHAT_SERVER"); env != "" {
		return env
	}
	return "http://localhost:8080"
}
