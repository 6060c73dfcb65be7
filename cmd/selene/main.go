// Copyright (C) 2026 The Selene Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0> for the full license text.

// Command selene runs the Selene personal menopause health assistant.
//
// Selene keeps all health data on the local machine. It serves a small
// HTTP API for daily check-ins, deterministic trend analysis, and a
// retrieval-augmented streaming chat backed by a local model.
//
// # Environment Variables
//
//   - SELENE_DATA_DIR: data directory (default: ~/.selene)
//   - SELENE_LISTEN_ADDR: HTTP listen address (default: :8800)
//   - SELENE_LLM_BACKEND: "ollama" or "openai" (default: ollama)
//   - WEAVIATE_URL: Weaviate vector DB URL (default: http://localhost:8080)
//   - OLLAMA_BASE_URL, OLLAMA_MODEL: Ollama connection settings
//
// # Usage
//
//	selene serve
//	SELENE_LISTEN_ADDR=:9000 selene serve
package main

import (
	"log"

	"github.com/spf13/cobra"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "selene",
	Short: "A local-first menopause health assistant",
	Long: `Selene tracks daily symptom check-ins, runs deterministic trend
analysis over them, and answers questions with a retrieval-augmented
chat pipeline. All data stays on your machine.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the Selene version",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println("selene", Version)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}
