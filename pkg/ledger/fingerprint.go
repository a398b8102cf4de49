package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Fingerprint computes a content digest over the canonical form of a fetched
// item. JSON payloads are canonicalized by decoding and re-encoding, which
// sorts object keys and normalizes whitespace, so two byte-different
// serializations of the same content hash identically. Non-JSON payloads are
// hashed as raw bytes.
func Fingerprint(raw []byte) string {
	var v any
	if err := json.Unmarshal(raw, &v); err == nil {
		if canonical, err := json.Marshal(v); err == nil {
			raw = canonical
		}
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
