// Copyright (C) 2026 The Selene Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0> for the full license text.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/innacampo/selene-demo/services/selene/contextbuilder"
	"github.com/innacampo/selene-demo/services/selene/observability"
	"github.com/innacampo/selene-demo/services/selene/rag"
)

// CacheStats reports hit/miss counters for every cache tier.
func CacheStats(orchestrator *rag.Orchestrator, builder *contextbuilder.Builder) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := orchestrator.CacheStats()
		stats["user_ctx"] = builder.Stats()
		c.JSON(http.StatusOK, gin.H{"caches": stats})
	}
}

// invalidateRequest selects which tier to drop. An empty or "all" tier
// clears everything.
type invalidateRequest struct {
	Tier string `json:"tier"`
}

// InvalidateCache drops a cache tier on demand.
func InvalidateCache(orchestrator *rag.Orchestrator, builder *contextbuilder.Builder, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req invalidateRequest
		if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		tier := req.Tier
		if tier == "" {
			tier = "all"
		}

		switch tier {
		case "all":
			orchestrator.ClearAllCaches()
			builder.Invalidate()
		case "rag":
			orchestrator.InvalidateRAGCache()
		case "ctx_query":
			orchestrator.InvalidateQueryCache()
		case "user_ctx":
			builder.Invalidate()
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown tier: " + tier})
			return
		}

		slog.Info("Cache invalidated", "tier", tier)
		if metrics != nil {
			metrics.CacheInvalidationsTotal.Add(c.Request.Context(), 1,
				metric.WithAttributes(attribute.String("tier", tier)))
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "tier": tier})
	}
}
