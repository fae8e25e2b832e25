// Open Testimony - Decentralized Chain-of-Custody for Digital Evidence
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/opentestimony

// Package authz enforces the RBAC gates that sit beyond the ingest
// API's two-role staff/admin split: the tag-catalogue delete, integrity
// report export, bulk import, and user-management endpoints each check
// a (role, object, action) triple against a Casbin policy rather than a
// hardcoded role comparison, so the policy can be extended without a
// code change (spec.md §4.1 tag management / integrity report / bulk
// upload, all admin-gated).
package authz

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"

	"github.com/tomtom215/opentestimony/internal/audit"
	"github.com/tomtom215/opentestimony/internal/config"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// Enforcer wraps a Casbin synced enforcer with a short-lived decision
// cache, matching the teacher's caching strategy.
type Enforcer struct {
	enforcer *casbin.SyncedEnforcer
	cache    *enforcementCache
	ledger   *audit.Ledger
}

// NewEnforcer loads the RBAC model/policy, preferring files on disk at
// cfg.ModelPath/PolicyPath and falling back to the embedded defaults.
// ledger receives an authz.denied entry for every rejected request, the
// audit half of the access-log-scan admin view; pass nil to disable
// that logging (e.g. in tests that don't wire a ledger).
func NewEnforcer(cfg *config.CasbinConfig, ledger *audit.Ledger) (*Enforcer, error) {
	var m model.Model
	var err error
	if cfg.ModelPath != "" && fileExists(cfg.ModelPath) {
		m, err = model.NewModelFromFile(cfg.ModelPath)
	} else {
		m, err = model.NewModelFromString(embeddedModel)
	}
	if err != nil {
		return nil, fmt.Errorf("authz: load model: %w", err)
	}

	var enforcer *casbin.SyncedEnforcer
	if cfg.PolicyPath != "" && fileExists(cfg.PolicyPath) {
		adapter := fileadapter.NewAdapter(cfg.PolicyPath)
		enforcer, err = casbin.NewSyncedEnforcer(m, adapter)
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m)
		if err == nil {
			err = loadEmbeddedPolicy(enforcer, embeddedPolicy)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("authz: create enforcer: %w", err)
	}

	return &Enforcer{enforcer: enforcer, cache: newEnforcementCache(5 * time.Minute), ledger: ledger}, nil
}

// loadEmbeddedPolicy parses the embedded CSV policy the same way the
// file adapter would, for the no-policy-file deployment path.
func loadEmbeddedPolicy(enforcer *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		switch parts[0] {
		case "p":
			if len(parts) >= 4 {
				if _, err := enforcer.AddPolicy(parts[1], parts[2], parts[3]); err != nil {
					return fmt.Errorf("add policy %v: %w", parts[1:], err)
				}
			}
		case "g":
			if len(parts) >= 3 {
				if _, err := enforcer.AddGroupingPolicy(parts[1], parts[2]); err != nil {
					return fmt.Errorf("add grouping policy %v: %w", parts[1:], err)
				}
			}
		}
	}
	return nil
}

// Enforce checks whether role may perform action on object, caching the
// decision for a short window.
func (e *Enforcer) Enforce(role, object, action string) (bool, error) {
	if allowed, ok := e.cache.get(role, object, action); ok {
		return allowed, nil
	}
	allowed, err := e.enforcer.Enforce(role, object, action)
	if err != nil {
		return false, fmt.Errorf("authz: enforce: %w", err)
	}
	e.cache.set(role, object, action, allowed)
	return allowed, nil
}

// Close stops the cache's cleanup goroutine.
func (e *Enforcer) Close() {
	e.cache.stop()
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
