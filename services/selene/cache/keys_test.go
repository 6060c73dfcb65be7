// Copyright (C) 2026 The Selene Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0> for the full license text.

package cache

import (
	"strings"
	"testing"
)

// TestKey_Deterministic tests that identical inputs always produce the same
// key and that the prefix is applied verbatim.
func TestKey_Deterministic(t *testing.T) {
	t.Parallel()

	k1 := Key("rag", "what is perimenopause", 2)
	k2 := Key("rag", "what is perimenopause", 2)
	if k1 != k2 {
		t.Errorf("Expected identical keys, got %q vs %q", k1, k2)
	}
	if !strings.HasPrefix(k1, "rag:") {
		t.Errorf("Expected rag: prefix, got %q", k1)
	}
	// prefix + ":" + 64 hex chars
	if len(k1) != len("rag:")+64 {
		t.Errorf("Unexpected key length %d", len(k1))
	}
}

// TestKey_OrderSensitive tests that reordering parts changes the key.
func TestKey_OrderSensitive(t *testing.T) {
	t.Parallel()

	if Key("p", "a", "b") == Key("p", "b", "a") {
		t.Error("Expected reordered parts to produce a different key")
	}
}

// TestKey_DistinctInputs tests that differing parts or prefixes do not
// collide on the obvious cases.
func TestKey_DistinctInputs(t *testing.T) {
	t.Parallel()

	if Key("p", "query", 2) == Key("p", "query", 3) {
		t.Error("Expected different part values to differ")
	}
	if Key("rag", "q") == Key("user_ctx", "q") {
		t.Error("Expected different prefixes to differ")
	}
}

// TestKey_EmptyPrefix tests that an empty prefix yields a bare digest with
// no leading separator.
func TestKey_EmptyPrefix(t *testing.T) {
	t.Parallel()

	k := Key("", "q")
	if strings.Contains(k, ":") {
		t.Errorf("Expected bare digest, got %q", k)
	}
	if len(k) != 64 {
		t.Errorf("Expected 64 hex chars, got %d", len(k))
	}
}

// TestKey_MixedTypes tests that non-string parts are accepted and
// stringified consistently.
func TestKey_MixedTypes(t *testing.T) {
	t.Parallel()

	k1 := Key("p", 42, true, 1.5)
	k2 := Key("p", "42", "true", "1.5")
	if k1 != k2 {
		t.Error("Expected fmt.Sprint stringification to match string parts")
	}
}
