// Open Testimony - Decentralized Chain-of-Custody for Digital Evidence
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/opentestimony

package authz

import (
	"context"
	"net/http"

	"github.com/tomtom215/opentestimony/internal/apierr"
	"github.com/tomtom215/opentestimony/internal/audit"
	"github.com/tomtom215/opentestimony/internal/auth"
	"github.com/tomtom215/opentestimony/internal/logging"
)

// Require wraps a handler, rejecting the request unless the
// authenticated subject's role is allowed (object, action) by policy.
func (e *Enforcer) Require(object, action string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject, ok := auth.SubjectFromContext(r.Context())
		if !ok {
			apierr.WriteError(w, r, apierr.Auth("authentication required"))
			return
		}

		allowed, err := e.Enforce(subject.Role, object, action)
		if err != nil {
			logging.Error().Err(err).Str("role", subject.Role).Str("object", object).Str("action", action).Msg("authz: enforcement error")
			apierr.WriteError(w, r, apierr.Backend("authorization check failed", err))
			return
		}
		if !allowed {
			e.logDenial(r.Context(), subject, object, action)
			apierr.WriteError(w, r, apierr.Auth("insufficient permissions"))
			return
		}
		next(w, r)
	}
}

// logDenial best-effort appends an authz.denied audit entry for the
// access-log-scan admin view. A failure to append must not turn an
// already-correct 403 into a 500, so the error is logged and swallowed.
func (e *Enforcer) logDenial(ctx context.Context, subject *auth.Subject, object, action string) {
	if e.ledger == nil {
		return
	}
	if _, err := e.ledger.Append(ctx, audit.AppendInput{
		EventType: audit.EventAuthzDenied,
		EventData: map[string]any{"role": subject.Role, "object": object, "action": action},
		UserID:    subject.UserID,
	}); err != nil {
		logging.Error().Err(err).Msg("authz: append authz.denied audit entry")
	}
}
