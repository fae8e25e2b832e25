// Open Testimony - Decentralized Chain-of-Custody for Digital Evidence
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/opentestimony

// Package audit implements the append-only, hash-chained audit ledger:
// every state change in the ingest API is recorded as an Entry linked to
// its predecessor by SHA-256, so after-the-fact tampering with any entry
// is detectable by recomputing the chain (spec.md §4.2).
package audit

import (
	"strings"
	"time"
)

// EventType names the kind of state change an entry records. The set is
// non-exhaustive by design — new event types are just new string values.
type EventType string

const (
	EventDeviceRegister    EventType = "device_register"
	EventUpload            EventType = "upload"
	EventBulkUpload        EventType = "bulk_upload"
	EventAnnotationUpdate  EventType = "annotation_update"
	EventWebAnnotationEdit EventType = "web_annotation_update"
	EventQueueReview       EventType = "queue_review"
	EventTagDeleted        EventType = "tag_deleted"
	EventUserCreated       EventType = "user_created"
	EventUserUpdated       EventType = "user_updated"
	EventPasswordReset     EventType = "password_reset"
	EventVideoDeleted      EventType = "video_deleted"
	EventAuthFailure       EventType = "auth.failure"
	EventAuthzDenied       EventType = "authz.denied"
)

// GenesisHash is the predecessor of the first entry ever appended: 64
// zero characters, standing in for "no SHA-256 hash".
var GenesisHash = strings.Repeat("0", 64)

// Entry is one immutable, hash-linked ledger row.
type Entry struct {
	ID             string
	SequenceNumber int64
	EventType      EventType
	MediaID        string // empty when not applicable
	DeviceID       string // empty when not applicable
	EventData      map[string]any
	EntryHash      string
	PreviousHash   string
	CreatedAt      time.Time
}

// AppendInput carries the caller-supplied fields for Append; UserID is
// spliced into EventData after hashing (spec.md §4.2 step 4) so it is
// deliberately not part of this struct's hashed projection.
type AppendInput struct {
	EventType EventType
	EventData map[string]any
	MediaID   string
	DeviceID  string
	UserID    string
}

// VerifyError describes one link or hash mismatch found during VerifyChain.
type VerifyError struct {
	SequenceNumber int64  `json:"sequence_number"`
	Error          string `json:"error"`
	Expected       string `json:"expected"`
	Actual         string `json:"actual"`
}

// VerifyResult is the outcome of a full chain verification.
type VerifyResult struct {
	Valid          bool          `json:"valid"`
	EntriesChecked int64         `json:"entries_checked"`
	Errors         []VerifyError `json:"errors"`
}
