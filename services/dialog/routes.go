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
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the dialog endpoints with the router group.
//
// Endpoints:
//
//	POST /v1/dialog/turn   - Drive one conversational turn
//	GET  /v1/dialog/health - Health check
//	GET  /v1/dialog/ready  - Readiness check
//
//	POST /v1/resolve/classify - Classify a query to a function name
//	POST /v1/resolve/params   - Fill a function's slots from context text
//
// Example:
//
//	service, _ := dialog.NewService(dialog.DefaultServiceConfig())
//	handlers := dialog.NewHandlers(service)
//
//	v1 := router.Group("/v1")
//	dialog.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	d := rg.Group("/dialog")
	{
		d.POST("/turn", handlers.HandleTurn)
		d.GET("/health", handlers.HandleHealth)
		d.GET("/ready", handlers.HandleReady)
	}

	resolve := rg.Group("/resolve")
	{
		resolve.POST("/classify", handlers.HandleClassify)
		resolve.POST("/params", handlers.HandleResolveParams)
	}
}
