// Open Testimony - Decentralized Chain-of-Custody for Digital Evidence
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/opentestimony

package config

import (
	"fmt"
	"strings"
)

// Validate checks invariants that koanf's unmarshal step can't express:
// production deployments must not run with a default session secret, and
// the embedding dimensions must be positive since they size DuckDB's
// vector columns directly.
func (c *Config) Validate() error {
	if c.Database.VisionEmbeddingDim <= 0 {
		return fmt.Errorf("database.vision_embedding_dim must be positive")
	}
	if c.Database.TextEmbeddingDim <= 0 {
		return fmt.Errorf("database.text_embedding_dim must be positive")
	}
	if strings.EqualFold(c.Server.Environment, "production") {
		if c.Security.SessionSecret == "" {
			return fmt.Errorf("security.session_secret is required in production")
		}
		if len(c.Security.SessionSecret) < 32 {
			return fmt.Errorf("security.session_secret must be at least 32 bytes in production")
		}
	}
	if c.Indexing.ClipWindowStride <= 0 {
		c.Indexing.ClipWindowStride = 1
	}
	return nil
}
