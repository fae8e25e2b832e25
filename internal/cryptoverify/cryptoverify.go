// Package cryptoverify verifies device-signed upload payloads: ECDSA
// P-256/SHA-256 signatures over either the raw signed_payload bytes or a
// canonical-JSON projection of payload, plus the documented MVP bypass
// for devices that only carry an HMAC-tagged placeholder key
// (spec.md §4.1 step 5).
package cryptoverify

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"sort"
	"strings"

	"github.com/goccy/go-json"
)

// Status is the result of verifying an upload's signature.
type Status string

const (
	StatusVerified     Status = "verified"
	StatusVerifiedMVP  Status = "verified-mvp"
	StatusSignedUpload Status = "signed-upload"
	StatusFailed       Status = "failed"
	StatusErrorMVP     Status = "error-mvp"
)

// mvpMarker is the prefix a base64-decoded MVP key body carries instead
// of real PEM key material.
const mvpMarker = "DEVICE:"

// IsMVPKey reports whether publicKeyPEM is an MVP placeholder: the PEM
// body (between BEGIN/END, ignoring the headers) base64-decodes to a
// string starting with "DEVICE:".
func IsMVPKey(publicKeyPEM string) bool {
	body := pemBody(publicKeyPEM)
	decoded, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return false
	}
	return strings.HasPrefix(string(decoded), mvpMarker)
}

// pemBody strips PEM armor and whitespace, returning the base64 payload.
func pemBody(publicKeyPEM string) string {
	s := strings.TrimSpace(publicKeyPEM)
	lines := strings.Split(s, "\n")
	var b strings.Builder
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "-----") {
			continue
		}
		b.WriteString(line)
	}
	return b.String()
}

// Verify checks signature against signedPayload (if present) or the
// canonical-JSON form of payload, using the key material in
// publicKeyPEM. source is "live" or "upload" and selects between the
// verified/signed-upload success statuses (spec.md §4.1 step 5).
func Verify(publicKeyPEM string, payload map[string]any, signedPayload []byte, signature []byte, source string) Status {
	if IsMVPKey(publicKeyPEM) {
		return StatusVerifiedMVP
	}

	block, _ := pem.Decode([]byte(publicKeyPEM))
	if block == nil {
		return StatusErrorMVP
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return StatusErrorMVP
	}
	ecdsaPub, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return StatusErrorMVP
	}

	signedBytes := signedPayload
	if len(signedBytes) == 0 {
		canonical, err := canonicalPayloadJSON(payload)
		if err != nil {
			return StatusErrorMVP
		}
		signedBytes = canonical
	}

	digest := sha256.Sum256(signedBytes)
	if !ecdsa.VerifyASN1(ecdsaPub, digest[:], signature) {
		return StatusFailed
	}

	if source == "upload" {
		return StatusSignedUpload
	}
	return StatusVerified
}

// canonicalPayloadJSON sorts object keys recursively, matching the
// device-side canonical-JSON(payload) the reference client signs when no
// signed_payload is supplied.
func canonicalPayloadJSON(payload map[string]any) ([]byte, error) {
	return marshalSorted(payload)
}

func marshalSorted(v any) ([]byte, error) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			kj, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			b.Write(kj)
			b.WriteByte(':')
			vj, err := marshalSorted(val[k])
			if err != nil {
				return nil, err
			}
			b.Write(vj)
		}
		b.WriteByte('}')
		return []byte(b.String()), nil
	case []any:
		var b strings.Builder
		b.WriteByte('[')
		for i, e := range val {
			if i > 0 {
				b.WriteByte(',')
			}
			ej, err := marshalSorted(e)
			if err != nil {
				return nil, err
			}
			b.Write(ej)
		}
		b.WriteByte(']')
		return []byte(b.String()), nil
	case nil, bool, float64, float32, int, int64, string:
		return json.Marshal(val)
	default:
		return json.Marshal(val)
	}
}
