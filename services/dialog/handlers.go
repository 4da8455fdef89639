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
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tuasgeo/platechat/services/dialog/config"
	"github.com/tuasgeo/platechat/services/dialog/intent"
	"github.com/tuasgeo/platechat/services/dialog/params"
	"github.com/tuasgeo/platechat/services/dialog/session"
	"github.com/tuasgeo/platechat/services/llm"
	"github.com/tuasgeo/platechat/services/responder"
)

// =============================================================================
// Wire Types
// =============================================================================

// ErrorResponse is the error envelope for all endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ClassifyRequest asks which function a query maps to.
type ClassifyRequest struct {
	Text string `json:"text" binding:"required"`
}

// ClassifyResponse carries the arbiter's decision. Function is empty when
// no registered function fits; Clash is set when the classifiers disagree.
type ClassifyResponse struct {
	Function string        `json:"function,omitempty"`
	Clash    *intent.Clash `json:"clash,omitempty"`
}

// ResolveParamsRequest asks for a function's slots to be filled from
// context text.
type ResolveParamsRequest struct {
	ContextText string `json:"context_text" binding:"required"`
	Function    string `json:"function" binding:"required"`
}

// ResolveParamsResponse carries either the full parameter set or the
// first missing slot with the follow-up prompt for it.
type ResolveParamsResponse struct {
	Params      params.Params `json:"params,omitempty"`
	MissingSlot string        `json:"missing_slot,omitempty"`
	Prompt      string        `json:"prompt,omitempty"`
}

// TurnRequest submits one conversational turn. SessionID is empty on the
// first turn; later turns echo the ID the first response assigned.
type TurnRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text" binding:"required"`
}

// TurnResponse is the result of one turn.
//
// Status values:
//
//	resolved      - A function ran; Reply explains FunctionOutput.
//	awaiting_slot - Prompt asks for the named Slot; answer on this session.
//	clash_pending - Prompt asks the user to pick among Candidates.
//	cancelled     - The user backed out; Reply answers the original query
//	                free-form.
//	answered      - No function fit; Reply answers free-form.
type TurnResponse struct {
	SessionID      string        `json:"session_id"`
	Status         string        `json:"status"`
	Reply          string        `json:"reply,omitempty"`
	Function       string        `json:"function,omitempty"`
	Params         params.Params `json:"params,omitempty"`
	FunctionOutput string        `json:"function_output,omitempty"`
	Slot           string        `json:"slot,omitempty"`
	Prompt         string        `json:"prompt,omitempty"`
	Candidates     []string      `json:"candidates,omitempty"`
}

// =============================================================================
// Handlers
// =============================================================================

// Handlers serves the dialog HTTP API.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers over the service.
func NewHandlers(svc *Service) *Handlers {
	if svc == nil {
		panic("NewHandlers: svc must not be nil")
	}
	return &Handlers{svc: svc}
}

func getOrCreateRequestID(c *gin.Context) string {
	if id := c.GetHeader("X-Request-ID"); id != "" {
		return id
	}
	return uuid.NewString()
}

// HandleClassify handles POST /v1/resolve/classify.
//
// Response:
//
//	200 OK: ClassifyResponse
//	400 Bad Request: Missing text
//	502 Bad Gateway: Classifier backend failure
func (h *Handlers) HandleClassify(c *gin.Context) {
	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_REQUEST"})
		return
	}

	decision, err := h.svc.arbiter.Resolve(c.Request.Context(), req.Text)
	if err != nil {
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Error: llm.SafeLogString(err.Error()),
			Code:  "CLASSIFIER_FAILURE",
		})
		return
	}
	c.JSON(http.StatusOK, ClassifyResponse{Function: decision.Function, Clash: decision.Clash})
}

// HandleResolveParams handles POST /v1/resolve/params.
//
// Response:
//
//	200 OK: ResolveParamsResponse
//	400 Bad Request: Missing fields
//	422 Unprocessable Entity: Unknown function name
func (h *Handlers) HandleResolveParams(c *gin.Context) {
	var req ResolveParamsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_REQUEST"})
		return
	}

	res, err := h.svc.resolver.Resolve(c.Request.Context(), req.ContextText, req.Function)
	if err != nil {
		if errors.Is(err, config.ErrUnsupportedFunction) {
			c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
				Error: err.Error(),
				Code:  "UNSUPPORTED_FUNCTION",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "RESOLVER_FAILURE"})
		return
	}
	if !res.Complete() {
		c.JSON(http.StatusOK, ResolveParamsResponse{
			MissingSlot: res.Missing,
			Prompt:      session.PromptForSlot(res.Missing),
		})
		return
	}
	c.JSON(http.StatusOK, ResolveParamsResponse{Params: res.Params})
}

// HandleTurn handles POST /v1/dialog/turn. It drives the session state
// machine for the turn, runs the resolved function when one completes, and
// generates the user-facing reply.
//
// Response:
//
//	200 OK: TurnResponse
//	400 Bad Request: Missing text
//	500 Internal Server Error: Function or engine failure
//	502 Bad Gateway: Model backend failure
func (h *Handlers) HandleTurn(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.svc.logger.With(slog.String("request_id", requestID))

	var req TurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_REQUEST"})
		return
	}

	sessionID, conv := h.svc.sessions.GetOrCreate(req.SessionID)
	conv.mu.Lock()
	defer conv.mu.Unlock()

	ctx := c.Request.Context()

	// The utterance the responder explains is the conversation's original
	// query, not a slot answer or clash pick.
	utterance := req.Text
	if conv.dialogue.Open() {
		utterance = conv.dialogue.OriginalQuery
	}

	var outcome session.Outcome
	switch {
	case conv.dialogue.ClashPending():
		outcome = h.svc.engine.Choose(ctx, conv.dialogue, req.Text)
	case conv.dialogue.AwaitingSlot():
		outcome = h.svc.engine.Submit(ctx, conv.dialogue, req.Text)
	default:
		conv.dialogue, outcome = h.svc.engine.Open(ctx, req.Text)
	}
	if !conv.dialogue.Open() {
		conv.dialogue = nil
	}

	switch outcome.Kind {
	case session.OutcomeAwaitingSlot:
		c.JSON(http.StatusOK, TurnResponse{
			SessionID: sessionID,
			Status:    string(outcome.Kind),
			Function:  outcome.Function,
			Slot:      outcome.Slot,
			Prompt:    session.PromptForSlot(outcome.Slot),
		})

	case session.OutcomeClashPending:
		c.JSON(http.StatusOK, TurnResponse{
			SessionID:  sessionID,
			Status:     string(outcome.Kind),
			Candidates: []string{outcome.Clash.Learned, outcome.Clash.Rule},
			Prompt: fmt.Sprintf("Did you mean %s or %s? (or say 'skip')",
				outcome.Clash.Learned, outcome.Clash.Rule),
		})

	case session.OutcomeResolved:
		h.finishResolved(c, logger, sessionID, conv, utterance, outcome)

	case session.OutcomeCancelled, session.OutcomeNoFunction:
		// Free-form fallback with the original query, unaugmented.
		reply, err := h.svc.responder.Respond(ctx, responder.Request{Utterance: utterance}, conv.memory)
		if err != nil {
			c.JSON(http.StatusBadGateway, ErrorResponse{
				Error: llm.SafeLogString(err.Error()),
				Code:  "MODEL_FAILURE",
			})
			return
		}
		status := "answered"
		if outcome.Kind == session.OutcomeCancelled {
			status = string(session.OutcomeCancelled)
		}
		c.JSON(http.StatusOK, TurnResponse{SessionID: sessionID, Status: status, Reply: reply})

	default: // OutcomeFailed
		// A pick that matches neither clash candidate is user input, not a
		// server fault; the clash stands, so re-ask.
		if errors.Is(outcome.Err, session.ErrNotACandidate) && conv.dialogue.ClashPending() {
			clash := conv.dialogue.Clash
			c.JSON(http.StatusOK, TurnResponse{
				SessionID:  sessionID,
				Status:     string(session.OutcomeClashPending),
				Candidates: []string{clash.Learned, clash.Rule},
				Prompt: fmt.Sprintf("%q isn't one of the options. Did you mean %s or %s? (or say 'skip')",
					req.Text, clash.Learned, clash.Rule),
			})
			return
		}
		logger.Error("dialog: turn failed", slog.String("error", outcome.Err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: llm.SafeLogString(outcome.Err.Error()),
			Code:  "TURN_FAILURE",
		})
	}
}

// finishResolved runs the resolved function and generates the explanatory
// reply.
func (h *Handlers) finishResolved(c *gin.Context, logger *slog.Logger, sessionID string, conv *conversation, utterance string, outcome session.Outcome) {
	ctx := c.Request.Context()

	output, err := h.svc.registry.Run(ctx, outcome.Function, outcome.Params)
	if err != nil {
		logger.Error("dialog: function failed",
			slog.String("function", outcome.Function),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "FUNCTION_FAILURE",
		})
		return
	}

	reply, err := h.svc.responder.Respond(ctx, responder.Request{
		Utterance:      utterance,
		Function:       outcome.Function,
		Params:         outcome.Params,
		FunctionOutput: output,
	}, conv.memory)
	if err != nil {
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Error: llm.SafeLogString(err.Error()),
			Code:  "MODEL_FAILURE",
		})
		return
	}

	c.JSON(http.StatusOK, TurnResponse{
		SessionID:      sessionID,
		Status:         string(session.OutcomeResolved),
		Reply:          reply,
		Function:       outcome.Function,
		Params:         outcome.Params,
		FunctionOutput: output,
	})
}

// HandleHealth handles GET /v1/dialog/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleReady handles GET /v1/dialog/ready. The service is ready once the
// embedded configuration loaded, which NewService guarantees.
func (h *Handlers) HandleReady(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ready",
		"sessions": h.svc.sessions.Len(),
	})
}
