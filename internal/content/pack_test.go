package content

import "testing"

func TestDigestValueIsStable(t *testing.T) {
	payload := map[string]any{
		"resources": []any{"gold", "wood"},
		"version":   "1.0.0",
	}
	first, err := DigestValue(payload)
	if err != nil {
		t.Fatalf("digest failed: %v", err)
	}
	second, err := DigestValue(map[string]any{
		"version":   "1.0.0",
		"resources": []any{"gold", "wood"},
	})
	if err != nil {
		t.Fatalf("digest failed: %v", err)
	}
	if !first.Equal(second) {
		t.Fatalf("expected identical payloads to digest equally: %+v vs %+v", first, second)
	}
	if first.Version != DigestVersion {
		t.Fatalf("unexpected digest version %d", first.Version)
	}
}

func TestDigestValueDetectsChanges(t *testing.T) {
	base, err := DigestValue(map[string]any{"resources": []any{"gold"}})
	if err != nil {
		t.Fatalf("digest failed: %v", err)
	}
	changed, err := DigestValue(map[string]any{"resources": []any{"iron"}})
	if err != nil {
		t.Fatalf("digest failed: %v", err)
	}
	if base.Equal(changed) {
		t.Fatalf("expected differing payloads to produce differing digests")
	}
}
