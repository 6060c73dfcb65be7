// Copyright (C) 2026 The Selene Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0> for the full license text.

package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/innacampo/selene-demo/services/llm"
	"github.com/innacampo/selene-demo/services/selene/contextbuilder"
	"github.com/innacampo/selene-demo/services/selene/datatypes"
	"github.com/innacampo/selene-demo/services/selene/handlers"
	"github.com/innacampo/selene-demo/services/selene/observability"
	"github.com/innacampo/selene-demo/services/selene/rag"
	"github.com/innacampo/selene-demo/services/selene/report"
	"github.com/innacampo/selene-demo/services/selene/storage"
)

// Deps carries everything the route table wires into handlers.
type Deps struct {
	Pulses       *storage.PulseStore
	Profiles     *storage.ProfileStore
	Sessions     *storage.SessionStore
	Builder      *contextbuilder.Builder
	Orchestrator *rag.Orchestrator
	Reports      *report.Generator
	Stream       llm.StreamingClient
	Stages       []datatypes.Stage
	Metrics      *observability.Metrics

	// RequestTimeout bounds non-streaming model-backed requests.
	// Zero disables the bound. Streaming chat is exempt: a healthy
	// stream can legitimately outlive any fixed deadline.
	RequestTimeout time.Duration
}

// SetupRoutes registers the full Selene API surface.
func SetupRoutes(router *gin.Engine, deps Deps) {
	router.Use(otelgin.Middleware("selene"))
	router.Use(requestMetrics(deps.Metrics))

	router.GET("/health", handlers.HealthCheck)
	if h := observability.MetricsHandler(); h != nil {
		router.GET("/metrics", gin.WrapH(h))
	} else {
		router.GET("/metrics", func(c *gin.Context) {
			c.JSON(http.StatusNotFound, gin.H{"error": "metrics exporter disabled"})
		})
	}

	v1 := router.Group("/v1")
	{
		v1.POST("/chat/stream", handlers.HandleChatStream(handlers.ChatStreamDeps{
			Orchestrator: deps.Orchestrator,
			Builder:      deps.Builder,
			Sessions:     deps.Sessions,
			Stream:       deps.Stream,
			Metrics:      deps.Metrics,
		}))

		v1.GET("/insights/report", withTimeout(deps.RequestTimeout),
			handlers.GetInsightsReport(deps.Reports, deps.Metrics))

		pulse := v1.Group("/pulse")
		{
			pulse.POST("", handlers.CreatePulseEntry(deps.Pulses, deps.Builder, deps.Metrics))
			pulse.GET("", handlers.ListPulseEntries(deps.Pulses))
			pulse.POST("/restore", handlers.RestorePulseBackup(deps.Pulses, deps.Builder))
		}

		profile := v1.Group("/profile")
		{
			profile.GET("", handlers.GetProfile(deps.Profiles))
			profile.PUT("", handlers.UpdateProfile(deps.Profiles, deps.Builder, deps.Stages))
		}

		cache := v1.Group("/cache")
		{
			cache.GET("/stats", handlers.CacheStats(deps.Orchestrator, deps.Builder))
			cache.POST("/invalidate", handlers.InvalidateCache(deps.Orchestrator, deps.Builder, deps.Metrics))
		}
	}
}

// requestMetrics counts and times every HTTP request by method, route
// template, and status. A nil Metrics handle makes it a no-op.
func requestMetrics(m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		ctx := c.Request.Context()
		m.HTTPRequestsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("method", c.Request.Method),
			attribute.String("path", path),
			attribute.Int("status", c.Writer.Status())))
		m.HTTPRequestDuration.Record(ctx, time.Since(start).Seconds())
	}
}

// withTimeout attaches a deadline to the request context. A zero or
// negative timeout makes it a no-op.
func withTimeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if timeout <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
