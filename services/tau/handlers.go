// Copyright (C) 2025 The tau authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tau

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pedronobrol/tau/services/tau/lang"
	"github.com/pedronobrol/tau/services/tau/prover"
	"github.com/pedronobrol/tau/services/tau/translate"
)

// Handlers contains the HTTP handlers for the tau service.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Version: ServiceVersion})
}

// HandleVerifyFunction handles POST /api/verify-function.
//
// Response:
//
//	200 OK: VerifyResponse (verified or not; unproved is not an HTTP error)
//	400 Bad Request: malformed body, parse error, unknown function
//	422 Unprocessable Entity: source outside the supported subset
//	503 Service Unavailable: why3 missing
//	504 Gateway Timeout: prover timeout
func (h *Handlers) HandleVerifyFunction(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleVerifyFunction")

	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: "INVALID_REQUEST"})
		return
	}

	logger.Info("verifying function", "function", req.FunctionName)

	resp, err := h.svc.VerifyFunction(c.Request.Context(), req)
	if err != nil {
		writeVerifyError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleVerifyAll handles POST /api/verify-all.
func (h *Handlers) HandleVerifyAll(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleVerifyAll")

	var req VerifyAllRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: "INVALID_REQUEST"})
		return
	}

	resp, err := h.svc.VerifyAll(c.Request.Context(), req)
	if err != nil {
		writeVerifyError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleProofCheck handles POST /api/proofs/check.
func (h *Handlers) HandleProofCheck(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleProofCheck")

	var req ProofQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: "INVALID_REQUEST"})
		return
	}

	resp, err := h.svc.CheckProof(c.Request.Context(), req)
	if err != nil {
		writeVerifyError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleProofsByBody handles POST /api/proofs/by-body.
func (h *Handlers) HandleProofsByBody(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleProofsByBody")

	var req ProofQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: "INVALID_REQUEST"})
		return
	}

	certs, err := h.svc.FindProofsByBody(c.Request.Context(), req)
	if err != nil {
		writeVerifyError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"proofs": certs, "count": len(certs)})
}

// HandleProofStore handles POST /api/proofs/store.
func (h *Handlers) HandleProofStore(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleProofStore")

	var req StoreProofRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: "INVALID_REQUEST"})
		return
	}

	cert, err := h.svc.StoreProof(c.Request.Context(), req)
	if err != nil {
		writeVerifyError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stored": true, "hash": cert.Hash})
}

// HandleProofStats handles GET /api/proofs/stats.
func (h *Handlers) HandleProofStats(c *gin.Context) {
	stats, err := h.svc.Proofs().Statistics(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "STATS_FAILED"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// HandleProofList handles GET /api/proofs/list?verified_only=true.
func (h *Handlers) HandleProofList(c *gin.Context) {
	verifiedOnly := c.Query("verified_only") == "true"
	list, err := h.svc.Proofs().List(c.Request.Context(), verifiedOnly)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "LIST_FAILED"})
		return
	}
	c.JSON(http.StatusOK, ProofListResponse{Proofs: list, Count: len(list)})
}

// HandleProofInvalidate handles DELETE /api/proofs/:hash.
func (h *Handlers) HandleProofInvalidate(c *gin.Context) {
	hash := c.Param("hash")
	found, err := h.svc.Proofs().Invalidate(c.Request.Context(), hash)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "INVALIDATE_FAILED"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no certificate with that hash", Code: "NOT_FOUND"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"invalidated": hash})
}

// HandleProofClear handles POST /api/proofs/clear.
func (h *Handlers) HandleProofClear(c *gin.Context) {
	if err := h.svc.Proofs().Clear(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "CLEAR_FAILED"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}

// HandleProofCleanup handles POST /api/proofs/cleanup?max_age=720h.
func (h *Handlers) HandleProofCleanup(c *gin.Context) {
	maxAge := 90 * 24 * time.Hour
	if raw := c.Query("max_age"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid max_age", Code: "INVALID_REQUEST"})
			return
		}
		maxAge = parsed
	}

	removed, err := h.svc.Proofs().Cleanup(c.Request.Context(), maxAge)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "CLEANUP_FAILED"})
		return
	}
	c.JSON(http.StatusOK, CleanupResponse{Removed: removed})
}

// writeVerifyError maps the verification error taxonomy onto HTTP statuses.
func writeVerifyError(c *gin.Context, logger *slog.Logger, err error) {
	status := http.StatusInternalServerError
	code := "VERIFY_FAILED"

	switch {
	case errors.Is(err, ErrEmptySource), errors.Is(err, ErrFunctionNotFound):
		status = http.StatusBadRequest
		code = "INVALID_REQUEST"
	case errors.Is(err, lang.ErrSyntax):
		status = http.StatusBadRequest
		code = "PARSE_ERROR"
	case errors.Is(err, translate.ErrUnsupportedConstruct),
		errors.Is(err, translate.ErrMissingElseBranch),
		errors.Is(err, translate.ErrMultipleLoops),
		errors.Is(err, translate.ErrUnknownFunction),
		errors.Is(err, translate.ErrChainedComparison):
		status = http.StatusUnprocessableEntity
		code = "UNSUPPORTED_CONSTRUCT"
	case errors.Is(err, prover.ErrProverNotFound):
		status = http.StatusServiceUnavailable
		code = "PROVER_NOT_FOUND"
	case errors.Is(err, prover.ErrProverTimeout):
		status = http.StatusGatewayTimeout
		code = "PROVER_TIMEOUT"
	}

	logger.Warn("verification request failed", "error", err, "status", status)
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

// getOrCreateRequestID gets or creates a request ID.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
