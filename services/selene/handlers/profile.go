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

	"github.com/innacampo/selene-demo/services/selene/config"
	"github.com/innacampo/selene-demo/services/selene/contextbuilder"
	"github.com/innacampo/selene-demo/services/selene/datatypes"
	"github.com/innacampo/selene-demo/services/selene/storage"
)

// GetProfile returns the stored user profile.
func GetProfile(store *storage.ProfileStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		profile, err := store.Load()
		if err != nil {
			slog.Error("Failed to load profile", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load profile"})
			return
		}
		c.JSON(http.StatusOK, profile)
	}
}

// UpdateProfile replaces the stored profile. The stage must be one of
// the configured menopause stages.
func UpdateProfile(store *storage.ProfileStore, builder *contextbuilder.Builder, stages []datatypes.Stage) gin.HandlerFunc {
	return func(c *gin.Context) {
		var profile datatypes.UserProfile
		if err := c.ShouldBindJSON(&profile); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		if profile.Stage != "" {
			if _, ok := config.StageByKey(stages, profile.Stage); !ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unknown stage: " + profile.Stage})
				return
			}
		}

		if err := store.Save(profile); err != nil {
			slog.Error("Failed to save profile", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save profile"})
			return
		}
		builder.Invalidate()
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	}
}
