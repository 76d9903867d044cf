// Copyright (C) 2025 The tau authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tau

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes registers all tau routes with the router.
//
//	GET  /health - Health check
//	GET  /metrics - Prometheus metrics
//
//	POST /api/verify-function - Verify one function
//	POST /api/verify-all - Verify every function in a module
//
//	POST /api/proofs/check - Look up a certificate
//	POST /api/proofs/by-body - Certificates sharing a body
//	POST /api/proofs/store - Record an externally produced result
//	GET  /api/proofs/stats - Cache counters
//	GET  /api/proofs/list - Certificate summaries
//	DELETE /api/proofs/:hash - Invalidate one certificate
//	POST /api/proofs/clear - Drop the whole cache
//	POST /api/proofs/cleanup - Remove certificates past max_age
//
//	GET  /ws/verify - Streaming verification over WebSocket
func RegisterRoutes(router *gin.Engine, handlers *Handlers) {
	router.GET("/health", handlers.HandleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.POST("/verify-function", handlers.HandleVerifyFunction)
		api.POST("/verify-all", handlers.HandleVerifyAll)

		proofs := api.Group("/proofs")
		{
			proofs.POST("/check", handlers.HandleProofCheck)
			proofs.POST("/by-body", handlers.HandleProofsByBody)
			proofs.POST("/store", handlers.HandleProofStore)
			proofs.GET("/stats", handlers.HandleProofStats)
			proofs.GET("/list", handlers.HandleProofList)
			proofs.DELETE("/:hash", handlers.HandleProofInvalidate)
			proofs.POST("/clear", handlers.HandleProofClear)
			proofs.POST("/cleanup", handlers.HandleProofCleanup)
		}
	}

	router.GET("/ws/verify", handlers.HandleVerifyWS)
}

// NewRouter builds the production gin engine for the service.
func NewRouter(svc *Service) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	RegisterRoutes(router, NewHandlers(svc))
	return router
}
