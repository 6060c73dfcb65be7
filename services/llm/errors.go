// Copyright (C) 2026 The Selene Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0> for the full license text.

package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"syscall"
)

// User-facing degradation messages. Handlers surface these verbatim so the
// user learns what to do, not what the stack trace said.
const (
	MsgTimeout           = "Request timed out. The model may be overloaded."
	MsgConnectionRefused = "Cannot connect to Ollama. Is it running?"
)

// BackendError is a classified failure from an LLM backend.
//
// StatusCode is the HTTP status when one was received, 0 otherwise.
// Retryable marks transient failures worth another attempt after backoff.
type BackendError struct {
	StatusCode int
	Message    string
	Retryable  bool
}

func (e *BackendError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("llm backend error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("llm backend error: %s", e.Message)
}

// ClassifyError wraps a transport or API failure as a BackendError.
// Timeouts and refused connections are retryable and carry the standard
// degradation message.
func ClassifyError(err error) *BackendError {
	if err == nil {
		return nil
	}
	var be *BackendError
	if errors.As(err, &be) {
		return be
	}
	if IsTimeout(err) {
		return &BackendError{Message: MsgTimeout, Retryable: true}
	}
	if IsConnectionRefused(err) {
		return &BackendError{Message: MsgConnectionRefused, Retryable: true}
	}
	return &BackendError{Message: err.Error()}
}

// IsTimeout reports whether err is a deadline or timeout failure.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	// http.Client wraps its own timeout without a typed error.
	return strings.Contains(err.Error(), "Client.Timeout exceeded")
}

// IsConnectionRefused reports whether err means nothing is listening at
// the backend address.
func IsConnectionRefused(err error) bool {
	return err != nil && errors.Is(err, syscall.ECONNREFUSED)
}

// IsRetryable reports whether the failure is worth retrying with backoff.
func IsRetryable(err error) bool {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Retryable
	}
	return IsTimeout(err) || IsConnectionRefused(err)
}
