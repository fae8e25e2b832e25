// Open Testimony - Decentralized Chain-of-Custody for Digital Evidence
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/opentestimony

package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"github.com/goccy/go-json"
)

// canonicalJSON sorts object keys recursively, as Python's
// json.dumps(..., sort_keys=True) does, so the same logical value always
// serializes to the same bytes regardless of map iteration order. Go's
// encoding/json (and goccy/go-json) sort map[string]T keys already, but
// nested map[string]any values inside a hand-built any aren't guaranteed
// the same way across every encoder, so this walks the value itself and
// rebuilds it as an orderedObject before marshaling rather than relying
// on encoder internals. The output is compact (no space after ',' or
// ':'), so it is not byte-identical to json.dumps with its default
// separators.
func canonicalJSON(v any) ([]byte, error) {
	return json.Marshal(canonicalize(v))
}

// orderedObject preserves explicit key order through json.Marshal, which
// canonicalize populates in sorted order.
type orderedObject struct {
	keys   []string
	values map[string]any
}

func (o orderedObject) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, k := range o.keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		keyJSON, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf = append(buf, keyJSON...)
		buf = append(buf, ':')
		valJSON, err := json.Marshal(canonicalize(o.values[k]))
		if err != nil {
			return nil, err
		}
		buf = append(buf, valJSON...)
	}
	buf = append(buf, '}')
	return buf, nil
}

func canonicalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return orderedObject{keys: keys, values: val}
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = canonicalize(e)
		}
		return out
	default:
		return v
	}
}

// hashEntry computes entry_hash = SHA256(canonical_json({sequence_number,
// event_type, event_data, previous_hash, created_at})) per spec.md §4.2.
// eventData must already have user_id stripped (Append strips it before
// hashing and splices it back in afterward; VerifyChain strips it before
// recomputing).
func hashEntry(sequence int64, eventType EventType, eventData map[string]any, previousHash, createdAtISO string) (string, error) {
	payload := map[string]any{
		"sequence_number": sequence,
		"event_type":      string(eventType),
		"event_data":      eventData,
		"previous_hash":   previousHash,
		"created_at":      createdAtISO,
	}
	b, err := canonicalJSON(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// stripUserID returns a copy of eventData without the "user_id" key, the
// splice documented in spec.md §4.2 step 4 and §9's Open Question (a
// missing user_id on an old entry should be treated as "stripped
// already", so this is also safe to call on data that never had one).
func stripUserID(eventData map[string]any) map[string]any {
	if eventData == nil {
		return map[string]any{}
	}
	if _, ok := eventData["user_id"]; !ok {
		return eventData
	}
	out := make(map[string]any, len(eventData))
	for k, v := range eventData {
		if k == "user_id" {
			continue
		}
		out[k] = v
	}
	return out
}
