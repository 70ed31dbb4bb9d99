// Copyright 2025 The ebnis-fe Authors
// SPDX-License-Identifier: Apache-2.0

package ebnis

import (
	"strings"

	"github.com/google/uuid"
)

// OfflineIDPrefix marks identifiers generated on the client while
// disconnected. Server-issued ids never carry this prefix, so a prefix test
// is a reliable "was created offline" predicate.
const OfflineIDPrefix = "ebnis-offline-id-"

// NewOfflineID generates a fresh client-side identifier.
func NewOfflineID() string {
	return OfflineIDPrefix + uuid.New().String()
}

// IsOfflineID reports whether id was generated offline on this client.
func IsOfflineID(id string) bool {
	return strings.HasPrefix(id, OfflineIDPrefix)
}
