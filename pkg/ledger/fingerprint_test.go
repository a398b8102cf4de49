package ledger

import "testing"

func TestFingerprint_StableAcrossFieldOrder(t *testing.T) {
	a := []byte(`{"number":"3076","congress":118,"title":"Example Act"}`)
	b := []byte(`{"title":"Example Act","congress":118,"number":"3076"}`)

	if Fingerprint(a) != Fingerprint(b) {
		t.Error("fingerprints differ for identical content with reordered fields")
	}
}

func TestFingerprint_ChangesWithContent(t *testing.T) {
	a := []byte(`{"number":"3076","title":"Example Act"}`)
	b := []byte(`{"number":"3076","title":"Example Act (amended)"}`)

	if Fingerprint(a) == Fingerprint(b) {
		t.Error("fingerprints identical for different content")
	}
}

func TestFingerprint_IgnoresWhitespace(t *testing.T) {
	a := []byte(`{"id": 1}`)
	b := []byte(`{ "id":1 }`)

	if Fingerprint(a) != Fingerprint(b) {
		t.Error("fingerprints differ for whitespace-only serialization changes")
	}
}

func TestFingerprint_NonJSONPayload(t *testing.T) {
	a := Fingerprint([]byte("not json"))
	b := Fingerprint([]byte("not json"))
	c := Fingerprint([]byte("other bytes"))

	if a != b {
		t.Error("fingerprint not deterministic for raw bytes")
	}
	if a == c {
		t.Error("fingerprint identical for different raw bytes")
	}
	if len(a) != 64 {
		t.Errorf("fingerprint length = %d, want 64 hex chars", len(a))
	}
}
