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
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/innacampo/selene-demo/services/selene/contextbuilder"
	"github.com/innacampo/selene-demo/services/selene/datatypes"
	"github.com/innacampo/selene-demo/services/selene/observability"
	"github.com/innacampo/selene-demo/services/selene/storage"
)

// CreatePulseEntry accepts a daily symptom check-in.
//
// # Description
//
// Stamps the current time when the request omits a timestamp, validates
// the entry, appends it to the pulse store, and invalidates the cached
// user context so the next chat sees the fresh data.
func CreatePulseEntry(store *storage.PulseStore, builder *contextbuilder.Builder, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.PulseRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		entry := datatypes.PulseEntry{
			Timestamp: req.Timestamp,
			Rest:      req.Rest,
			Climate:   req.Climate,
			Clarity:   req.Clarity,
			Notes:     req.Notes,
		}
		if entry.Timestamp == "" {
			entry.Timestamp = time.Now().UTC().Format(time.RFC3339)
		}

		if err := store.Append(entry); err != nil {
			slog.Warn("Rejected pulse entry", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		builder.Invalidate()
		if metrics != nil {
			metrics.PulseEntriesTotal.Add(c.Request.Context(), 1)
		}
		c.JSON(http.StatusCreated, gin.H{"status": "success", "entry": entry})
	}
}

// ListPulseEntries returns stored check-ins, optionally bounded by a
// ?days=N window.
func ListPulseEntries(store *storage.PulseStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		daysParam := c.Query("days")
		if daysParam == "" {
			entries, err := store.Load()
			if err != nil {
				slog.Error("Failed to load pulse history", "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load pulse history"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
			return
		}

		days, err := strconv.Atoi(daysParam)
		if err != nil || days <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be a positive integer"})
			return
		}
		cutoff := time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
		entries, err := store.LoadSince(cutoff)
		if err != nil {
			slog.Error("Failed to load pulse history", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load pulse history"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
	}
}

// RestorePulseBackup rolls the pulse file back to the newest backup.
func RestorePulseBackup(store *storage.PulseStore, builder *contextbuilder.Builder) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := store.RestoreLatestBackup(); err != nil {
			slog.Error("Failed to restore pulse backup", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		builder.Invalidate()
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	}
}
