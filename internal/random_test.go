package internal

import "testing"

func TestNewJTIIsUnique(t *testing.T) {
	seen := make(map[string]bool, 256)
	for i := 0; i < 256; i++ {
		jti, err := NewJTI()
		if err != nil {
			t.Fatalf("NewJTI: %v", err)
		}
		if seen[jti] {
			t.Fatalf("duplicate jti %q", jti)
		}
		seen[jti] = true
	}
}

func TestOpaqueTokenShape(t *testing.T) {
	tok, err := NewOpaqueToken()
	if err != nil {
		t.Fatalf("NewOpaqueToken: %v", err)
	}
	if len(tok) != 43 {
		t.Fatalf("unexpected token length %d", len(tok))
	}
	if !ValidOpaqueToken(tok) {
		t.Fatal("generated token must validate")
	}
	for _, bad := range []string{"", "short", tok + "x", tok[:42] + "!"} {
		if ValidOpaqueToken(bad) {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}
