// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package buildingqa

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all building QA routes with the router.
//
// Description:
//
//	Registers all /v1/buildingqa/* endpoints with the given Gin router
//	group. The group should already have any required middleware applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Endpoints:
//
//	POST /v1/buildingqa/ask - Answer a natural-language building question
//	GET  /v1/buildingqa/health - Process liveness
//	GET  /v1/buildingqa/ready - Readiness for traffic
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	qa := rg.Group("/buildingqa")
	{
		qa.POST("/ask", handlers.HandleAsk)
		qa.GET("/health", handlers.HandleHealth)
		qa.GET("/ready", handlers.HandleReady)
	}
}
