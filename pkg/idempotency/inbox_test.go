package idempotency

import "testing"

func TestGenerateKey(t *testing.T) {
	a := GenerateKey("claim-1", "000123456")
	b := GenerateKey("claim-1", "000123456")
	if a != b {
		t.Error("same inputs produced different keys")
	}
	if len(a) != 64 {
		t.Errorf("key length = %d, want 64 hex chars", len(a))
	}

	if GenerateKey("claim-1", "000123457") == a {
		t.Error("different control numbers collided")
	}
	if GenerateKey("claim-2", "000123456") == a {
		t.Error("different claims collided")
	}

	// the separator keeps (ab, c) and (a, bc) apart
	if GenerateKey("ab", "c") == GenerateKey("a", "bc") {
		t.Error("ambiguous concatenation")
	}
}
