// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import "testing"

func TestSafeLogString(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "anthropic key",
			input: "auth failed for sk-ant-REDACTED",
			want:  "auth failed for [REDACTED:anthropic_key]",
		},
		{
			name:  "generic sk key",
			input: "used sk-abcdefghij0123456789xyz in request",
			want:  "used [REDACTED:api_key] in request",
		},
		{
			name:  "bearer token",
			input: "header Authorization: Bearer abc.def.ghi123456",
			want:  "header Authorization: [REDACTED:bearer_token]",
		},
		{
			name:  "query param key",
			input: "GET /v1/models?key=AIzaSyAbcDefGhi123 failed",
			want:  "GET /v1/models?key=[REDACTED] failed",
		},
		{
			name:  "no secrets",
			input: "dial tcp 127.0.0.1:11434: connection refused",
			want:  "dial tcp 127.0.0.1:11434: connection refused",
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SafeLogString(tt.input); got != tt.want {
				t.Errorf("SafeLogString(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
