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
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// turnRequest is the payload for POST /v1/dialog/turn.
type turnRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Text      string `json:"text"`
}

// turnResponse mirrors the server's TurnResponse.
type turnResponse struct {
	SessionID      string         `json:"session_id"`
	Status         string         `json:"status"`
	Reply          string         `json:"reply,omitempty"`
	Function       string         `json:"function,omitempty"`
	Params         map[string]any `json:"params,omitempty"`
	FunctionOutput string         `json:"function_output,omitempty"`
	Slot           string         `json:"slot,omitempty"`
	Prompt         string         `json:"prompt,omitempty"`
	Candidates     []string       `json:"candidates,omitempty"`
}

func runAskCommand(_ *cobra.Command, args []string) {
	question := strings.Join(args, " ")
	fmt.Printf("Asking: %s\n", question)
	fmt.Println("---")

	resp, err := sendTurn(turnRequest{Text: question})
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	switch resp.Status {
	case "awaiting_slot", "clash_pending":
		fmt.Printf("\n%s\n", resp.Prompt)
		fmt.Printf("\nThe server needs more input. Continue with:\n")
		fmt.Printf("  platecli chat --resume %s\n", resp.SessionID)
	default:
		printTurn(resp)
	}
}

func runChatCommand(_ *cobra.Command, args []string) {
	if len(args) > 0 {
		fmt.Printf("Warning: Unexpected arguments ignored: %v\n", args)
		fmt.Println("Use 'platecli chat --help' to see available flags.")
	}

	sessionID := resumeID
	if sessionID != "" {
		fmt.Printf("Resuming session %s\n", sessionID)
	}
	fmt.Println("Connected. Type a question, or 'exit' to quit.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "exit" || text == "quit" || text == "q" {
			fmt.Println("Goodbye.")
			break
		}

		resp, err := sendTurn(turnRequest{SessionID: sessionID, Text: text})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		sessionID = resp.SessionID

		switch resp.Status {
		case "awaiting_slot", "clash_pending":
			fmt.Printf("\n%s\n\n", resp.Prompt)
		default:
			printTurn(resp)
		}
	}
}

// printTurn prints a completed turn: the grounded reply, plus function
// details when a function ran.
func printTurn(resp turnResponse) {
	fmt.Printf("\n%s\n", resp.Reply)
	if resp.Function != "" {
		fmt.Printf("\n[function: %s", resp.Function)
		if len(resp.Params) > 0 {
			params, _ := json.Marshal(resp.Params)
			fmt.Printf(", params: %s", params)
		}
		fmt.Printf(", session: %s]\n", resp.SessionID)
	}
	fmt.Println()
}

// sendTurn posts one turn to the server and decodes the response.
func sendTurn(req turnRequest) (turnResponse, error) {
	var turn turnResponse

	payload, err := json.Marshal(req)
	if err != nil {
		return turn, fmt.Errorf("failed to create request body: %w", err)
	}

	client := &http.Client{Timeout: 3 * time.Minute}
	turnURL := fmt.Sprintf("%s/v1/dialog/turn", getServerBaseURL())
	resp, err := client.Post(turnURL, "application/json", bytes.NewBuffer(payload))
	if err != nil {
		return turn, fmt.Errorf("platechat server unavailable at %s: %w", turnURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return turn, fmt.Errorf("failed to read server response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return turn, fmt.Errorf("server returned an error (status %d): %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, &turn); err != nil {
		return turn, fmt.Errorf("failed to parse server response: %w", err)
	}
	return turn, nil
}
