// Copyright (C) 2026 The Selene Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0> for the full license text.

package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Key derives a deterministic cache key from arbitrary parts.
//
// # Description
//
// Each part is stringified with fmt.Sprint, the parts are joined with "|",
// and the result is hashed with SHA-256. The returned key is
// "prefix:<hex digest>", or the bare digest when prefix is empty. The same
// parts in the same order always produce the same key; reordering parts
// produces a different key.
//
// # Inputs
//
//   - prefix: Namespace for the key, e.g. "rag" or "user_ctx". May be empty.
//   - parts: Values identifying the cached computation.
//
// # Outputs
//
//   - string: The derived key. Raw part values never appear in it, so keys
//     are safe to log even when parts contain user text.
func Key(prefix string, parts ...any) string {
	strs := make([]string, len(parts))
	for i, p := range parts {
		strs[i] = fmt.Sprint(p)
	}
	sum := sha256.Sum256([]byte(strings.Join(strs, "|")))
	digest := hex.EncodeToString(sum[:])
	if prefix == "" {
		return digest
	}
	return prefix + ":" + digest
}
