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

	"github.com/innacampo/selene-demo/services/selene/observability"
	"github.com/innacampo/selene-demo/services/selene/report"
)

// GetInsightsReport generates and returns the full insights report.
func GetInsightsReport(generator *report.Generator, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		rep, err := generator.Generate(c.Request.Context())
		if err != nil {
			slog.Error("Failed to generate insights report", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate report"})
			return
		}

		if metrics != nil {
			completeness := "full"
			if rep.Narrative == "" {
				completeness = "partial"
			}
			metrics.ReportsTotal.Add(c.Request.Context(), 1,
				metric.WithAttributes(attribute.String("completeness", completeness)))
		}
		c.JSON(http.StatusOK, rep)
	}
}
