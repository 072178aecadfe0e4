// Package signature verifies MercadoPago webhook signatures.
//
// The provider signs the manifest `id:{data.id};request-id:{request-id};ts:{ts};`
// with HMAC-SHA256 and sends the hex digest as `v1` inside the x-signature
// header. Dashboards hand out the shared secret in inconsistent encodings, so
// the verifier tries the secret both as raw hex bytes and as UTF-8.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Header is the parsed x-signature header.
type Header struct {
	TS string
	V1 string
}

// ParseHeader splits x-signature into key=value pairs delimited by `,` or
// `;` and extracts ts and v1. Both must be present.
func ParseHeader(raw string) (Header, error) {
	var h Header
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';'
	})
	for _, part := range parts {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		switch k {
		case "ts":
			h.TS = v
		case "v1":
			h.V1 = v
		}
	}
	if h.TS == "" {
		return Header{}, fmt.Errorf("ParseHeader: missing ts in %q", raw)
	}
	if h.V1 == "" {
		return Header{}, fmt.Errorf("ParseHeader: missing v1 in %q", raw)
	}
	return h, nil
}

// NormalizeDataID lowercases the data id only when it contains a letter.
// Numeric payment ids are left untouched; alphanumeric ids (e.g. card token
// events) are signed lowercase by the provider.
func NormalizeDataID(s string) string {
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return strings.ToLower(s)
		}
	}
	return s
}

// Manifest builds the exact signed string. Field order and the trailing
// semicolon are part of the provider contract.
func Manifest(dataID, requestID, ts string) string {
	return fmt.Sprintf("id:%s;request-id:%s;ts:%s;", dataID, requestID, ts)
}

// KeyMode records which interpretation of the shared secret produced a
// matching digest.
type KeyMode string

const (
	KeyModeHex  KeyMode = "hex"
	KeyModeUTF8 KeyMode = "utf8"
)

// Result describes a successful verification.
type Result struct {
	KeyMode  KeyMode
	Manifest string
}

type candidate struct {
	mode KeyMode
	key  []byte
}

// Verifier checks webhook signatures against a shared secret.
type Verifier struct {
	secret     string
	candidates []candidate
}

func NewVerifier(secret string) *Verifier {
	secret = strings.TrimSpace(secret)
	v := &Verifier{secret: secret}

	// Hex interpretation first when it applies: a secret issued as hex that
	// also verifies as UTF-8 is indistinguishable, and hex is what the
	// provider dashboard issues.
	if isHex(secret) {
		key, _ := hex.DecodeString(secret)
		v.candidates = append(v.candidates, candidate{mode: KeyModeHex, key: key})
	}
	v.candidates = append(v.candidates, candidate{mode: KeyModeUTF8, key: []byte(secret)})
	return v
}

// Verify reports whether the received hash matches the manifest built from
// dataID (already normalized), requestID, and the header's ts. The first
// matching key interpretation wins.
func (v *Verifier) Verify(dataID, requestID string, h Header) (Result, bool) {
	manifest := Manifest(dataID, requestID, h.TS)
	for _, c := range v.candidates {
		calc := hmacHex(c.key, manifest)
		if safeEqualHex(calc, h.V1) || calc == h.V1 {
			return Result{KeyMode: c.mode, Manifest: manifest}, true
		}
	}
	return Result{Manifest: manifest}, false
}

// CandidateDigests returns the digests computed for a manifest under each
// secret interpretation, keyed by mode. These are safe to log: they are the
// computed side of the comparison, not the secret.
func (v *Verifier) CandidateDigests(manifest string) map[KeyMode]string {
	out := make(map[KeyMode]string, len(v.candidates))
	for _, c := range v.candidates {
		out[c.mode] = hmacHex(c.key, manifest)
	}
	return out
}

// Sign computes the hex HMAC-SHA256 digest of a manifest under key. This is
// the provider side of the contract, used by tooling that emulates it.
func Sign(key []byte, manifest string) string {
	return hmacHex(key, manifest)
}

func hmacHex(key []byte, data string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// safeEqualHex compares two hex digests in constant time. A received value
// that is not decodable hex cannot be compared this way; the caller falls
// back to direct string equality.
func safeEqualHex(a, b string) bool {
	ba, err := hex.DecodeString(a)
	if err != nil {
		return false
	}
	bb, err := hex.DecodeString(b)
	if err != nil {
		return false
	}
	return len(ba) == len(bb) && hmac.Equal(ba, bb)
}

func isHex(s string) bool {
	if s == "" || len(s)%2 != 0 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
