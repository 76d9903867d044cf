// Copyright (C) 2025 The tau authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tau

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
}

// WSEvent is one message in the verification stream.
type WSEvent struct {
	Event  string          `json:"event"`
	Round  *WSRound        `json:"round,omitempty"`
	Result *VerifyResponse `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
	Code   string          `json:"code,omitempty"`
}

// WSRound summarizes one prover round for the stream.
type WSRound struct {
	Number int  `json:"number"`
	Proved bool `json:"proved"`
}

func sendJSON(ws *websocket.Conn, v any) error {
	err := ws.WriteJSON(v)
	if err != nil {
		slog.Warn("failed to write websocket JSON", "error", err)
	}
	return err
}

// HandleVerifyWS handles GET /ws/verify. The client sends VerifyRequest
// messages; for each, the service streams a "started" event, one "round"
// event per prover round, and a terminal "result" or "error" event. The
// connection stays open for further requests.
func (h *Handlers) HandleVerifyWS(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("failed to upgrade websocket", "error", err)
		return
	}
	defer ws.Close()

	sessionID := uuid.NewString()
	logger := slog.With("session_id", sessionID, "handler", "HandleVerifyWS")
	logger.Info("websocket session started")

	if err := sendJSON(ws, gin.H{"event": "session_created", "session_id": sessionID}); err != nil {
		return
	}

	for {
		var req VerifyRequest
		if err := ws.ReadJSON(&req); err != nil {
			logger.Info("websocket client disconnected", "error", err.Error())
			return
		}

		if err := sendJSON(ws, WSEvent{Event: "started"}); err != nil {
			return
		}

		resp, verr := h.svc.VerifyFunction(c.Request.Context(), req)
		if verr != nil {
			logger.Warn("websocket verification failed", "error", verr)
			if err := sendJSON(ws, WSEvent{Event: "error", Error: verr.Error(), Code: "VERIFY_FAILED"}); err != nil {
				return
			}
			continue
		}

		for _, round := range resp.RoundDetails {
			ev := WSEvent{Event: "round", Round: &WSRound{Number: round.Number, Proved: round.Proved}}
			if err := sendJSON(ws, ev); err != nil {
				return
			}
		}

		if err := sendJSON(ws, WSEvent{Event: "result", Result: resp}); err != nil {
			return
		}
	}
}
