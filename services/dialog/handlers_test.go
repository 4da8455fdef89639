// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dialog

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tuasgeo/platechat/services/dialog/registry"
	"github.com/tuasgeo/platechat/services/llm"
)

// scriptedChat distinguishes the two model roles: Chat serves the
// classifier, ChatStream serves the responder.
type scriptedChat struct {
	classifyReply string
	respondReply  string
}

func (s *scriptedChat) Chat(_ context.Context, _ []llm.Message, _ llm.ChatOptions) (string, error) {
	return s.classifyReply, nil
}

func (s *scriptedChat) ChatStream(_ context.Context, _ []llm.Message, _ llm.ChatOptions, onToken func(string)) (string, error) {
	if onToken != nil {
		onToken(s.respondReply)
	}
	return s.respondReply, nil
}

func newTestRouter(t *testing.T, chat llm.ChatClient) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc, err := NewService(ServiceConfig{
		Chat:  chat,
		Model: "test-model",
		Data: registry.NewStaticDataSource([]registry.PlateRecord{
			{ID: "F3-R09a-SM-12", LatestSettlement: "4.2m", AsaokaDOC: "92.4%"},
		}),
	})
	if err != nil {
		t.Fatalf("NewService() error: %v", err)
	}

	router := gin.New()
	RegisterRoutes(router.Group("/v1"), NewHandlers(svc))
	return router
}

func postJSON(t *testing.T, router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeTurn(t *testing.T, w *httptest.ResponseRecorder) TurnResponse {
	t.Helper()
	var resp TurnResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return resp
}

func TestHandleTurn_FirstCallResolved(t *testing.T) {
	router := newTestRouter(t, &scriptedChat{
		classifyReply: `{"function": "plot_combi_S"}`,
		respondReply:  "Your graph is ready to download.",
	})

	w := postJSON(t, router, "/v1/dialog/turn", TurnRequest{
		Text: "Plot settlements for: F3-R15c-SM-33. Cutoff date: January 28 2024.",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	resp := decodeTurn(t, w)
	if resp.Status != "resolved" {
		t.Fatalf("Status = %q, body %s", resp.Status, w.Body.String())
	}
	if resp.SessionID == "" {
		t.Error("SessionID should be assigned")
	}
	if resp.Function != "plot_combi_S" {
		t.Errorf("Function = %q", resp.Function)
	}
	if !strings.Contains(resp.FunctionOutput, "Plotted combined data for IDs: F3-R15c-SM-33, Max Date: 2024-01-28") {
		t.Errorf("FunctionOutput = %q", resp.FunctionOutput)
	}
	if resp.Reply != "Your graph is ready to download." {
		t.Errorf("Reply = %q", resp.Reply)
	}
}

func TestHandleTurn_SlotFlowAcrossTurns(t *testing.T) {
	router := newTestRouter(t, &scriptedChat{
		classifyReply: `{"function": "plot_combi_S"}`,
		respondReply:  "Done.",
	})

	w := postJSON(t, router, "/v1/dialog/turn", TurnRequest{
		Text: "I want a graph with the following plates: F3-R03a-SM-54.",
	})
	resp := decodeTurn(t, w)
	if resp.Status != "awaiting_slot" || resp.Slot != "max_date" {
		t.Fatalf("first turn = %+v", resp)
	}
	if resp.Prompt != "What's your max_date?" {
		t.Errorf("Prompt = %q", resp.Prompt)
	}

	w = postJSON(t, router, "/v1/dialog/turn", TurnRequest{
		SessionID: resp.SessionID,
		Text:      "before July 22 2025",
	})
	resp2 := decodeTurn(t, w)
	if resp2.Status != "resolved" {
		t.Fatalf("second turn = %+v", resp2)
	}
	if resp2.SessionID != resp.SessionID {
		t.Error("session ID should be stable across turns")
	}
	if !strings.Contains(resp2.FunctionOutput, "Max Date: 2025-07-22") {
		t.Errorf("FunctionOutput = %q", resp2.FunctionOutput)
	}
}

func TestHandleTurn_CancelFallsBack(t *testing.T) {
	router := newTestRouter(t, &scriptedChat{
		classifyReply: `{"function": "plot_combi_S"}`,
		respondReply:  "Here's a free-form answer instead.",
	})

	w := postJSON(t, router, "/v1/dialog/turn", TurnRequest{
		Text: "graph the plates F3-R03a-SM-54",
	})
	resp := decodeTurn(t, w)
	if resp.Status != "awaiting_slot" {
		t.Fatalf("first turn = %+v", resp)
	}

	w = postJSON(t, router, "/v1/dialog/turn", TurnRequest{SessionID: resp.SessionID, Text: "nvm"})
	resp = decodeTurn(t, w)
	if resp.Status != "cancelled" {
		t.Fatalf("Status = %q", resp.Status)
	}
	if resp.Reply == "" {
		t.Error("cancelled turn should still answer the original query")
	}
}

func TestHandleTurn_ClashFlow(t *testing.T) {
	// The model says report, the keywords say plot.
	router := newTestRouter(t, &scriptedChat{
		classifyReply: `{"function": "reporter_Asaoka"}`,
		respondReply:  "Graph ready.",
	})

	w := postJSON(t, router, "/v1/dialog/turn", TurnRequest{
		Text: "plot F3-R09a-SM-12 until 31/07/2025",
	})
	resp := decodeTurn(t, w)
	if resp.Status != "clash_pending" {
		t.Fatalf("first turn = %+v", resp)
	}
	if len(resp.Candidates) != 2 || resp.Candidates[0] != "reporter_Asaoka" || resp.Candidates[1] != "plot_combi_S" {
		t.Fatalf("Candidates = %v", resp.Candidates)
	}

	w = postJSON(t, router, "/v1/dialog/turn", TurnRequest{
		SessionID: resp.SessionID,
		Text:      "plot_combi_S",
	})
	resp = decodeTurn(t, w)
	if resp.Status != "resolved" || resp.Function != "plot_combi_S" {
		t.Fatalf("after pick = %+v", resp)
	}
}

func TestHandleTurn_ClashPickOutsideCandidatesReasks(t *testing.T) {
	router := newTestRouter(t, &scriptedChat{
		classifyReply: `{"function": "reporter_Asaoka"}`,
		respondReply:  "Graph ready.",
	})

	w := postJSON(t, router, "/v1/dialog/turn", TurnRequest{
		Text: "plot F3-R09a-SM-12 until 31/07/2025",
	})
	resp := decodeTurn(t, w)
	if resp.Status != "clash_pending" {
		t.Fatalf("first turn = %+v", resp)
	}
	sessionID := resp.SessionID

	// A typo'd pick is the user's mistake, not a server fault: the clash
	// stands and the turn re-asks instead of failing.
	w = postJSON(t, router, "/v1/dialog/turn", TurnRequest{
		SessionID: sessionID,
		Text:      "plot_combo_S",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	resp = decodeTurn(t, w)
	if resp.Status != "clash_pending" {
		t.Fatalf("after bad pick = %+v", resp)
	}
	if len(resp.Candidates) != 2 || resp.Candidates[0] != "reporter_Asaoka" || resp.Candidates[1] != "plot_combi_S" {
		t.Fatalf("Candidates = %v", resp.Candidates)
	}
	if !strings.Contains(resp.Prompt, "plot_combo_S") {
		t.Errorf("re-ask prompt should quote the pick, got %q", resp.Prompt)
	}

	// A correct pick on the next turn still resolves.
	w = postJSON(t, router, "/v1/dialog/turn", TurnRequest{
		SessionID: sessionID,
		Text:      "plot_combi_S",
	})
	resp = decodeTurn(t, w)
	if resp.Status != "resolved" || resp.Function != "plot_combi_S" {
		t.Fatalf("after valid pick = %+v", resp)
	}
}

func TestHandleTurn_NoFunctionAnswersFreeForm(t *testing.T) {
	router := newTestRouter(t, &scriptedChat{
		classifyReply: `{"function": "none"}`,
		respondReply:  "It's reclaimed land in Singapore.",
	})

	w := postJSON(t, router, "/v1/dialog/turn", TurnRequest{Text: "tell me about the project"})
	resp := decodeTurn(t, w)
	if resp.Status != "answered" {
		t.Fatalf("Status = %q", resp.Status)
	}
	if resp.Reply == "" {
		t.Error("free-form turn should carry a reply")
	}
}

func TestHandleTurn_MissingText(t *testing.T) {
	router := newTestRouter(t, &scriptedChat{})
	w := postJSON(t, router, "/v1/dialog/turn", map[string]string{"session_id": "x"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleClassify(t *testing.T) {
	router := newTestRouter(t, &scriptedChat{classifyReply: `{"function": "Asaoka_data"}`})

	w := postJSON(t, router, "/v1/resolve/classify", ClassifyRequest{Text: "run the asaoka analysis"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp ClassifyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Function != "Asaoka_data" || resp.Clash != nil {
		t.Errorf("resp = %+v", resp)
	}
}

func TestHandleResolveParams(t *testing.T) {
	router := newTestRouter(t, &scriptedChat{})

	w := postJSON(t, router, "/v1/resolve/params", ResolveParamsRequest{
		ContextText: "Plot F3-R09a-SM-12 until 31/07/2025",
		Function:    "plot_combi_S",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp ResolveParamsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.MissingSlot != "" {
		t.Fatalf("MissingSlot = %q, want complete", resp.MissingSlot)
	}
	if resp.Params["max_date"] != "2025-07-31" {
		t.Errorf("max_date = %v", resp.Params["max_date"])
	}
}

func TestHandleResolveParams_Missing(t *testing.T) {
	router := newTestRouter(t, &scriptedChat{})

	w := postJSON(t, router, "/v1/resolve/params", ResolveParamsRequest{
		ContextText: "Plot the settlement data",
		Function:    "plot_combi_S",
	})
	var resp ResolveParamsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.MissingSlot != "plates" {
		t.Errorf("MissingSlot = %q, want plates", resp.MissingSlot)
	}
	if resp.Prompt != "What's your plates?" {
		t.Errorf("Prompt = %q", resp.Prompt)
	}
}

func TestHandleResolveParams_UnsupportedFunction(t *testing.T) {
	router := newTestRouter(t, &scriptedChat{})

	w := postJSON(t, router, "/v1/resolve/params", ResolveParamsRequest{
		ContextText: "anything",
		Function:    "delete_everything",
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
}

func TestHandleHealthAndReady(t *testing.T) {
	router := newTestRouter(t, &scriptedChat{})

	for _, path := range []string{"/v1/dialog/health", "/v1/dialog/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, w.Code)
		}
	}
}
