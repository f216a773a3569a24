package utils

import (
	"strings"
	"testing"
)

func TestGenerateShortToken(t *testing.T) {
	token, err := GenerateShortToken(6)
	if err != nil {
		t.Fatal(err)
	}
	if len(token) != 12 {
		t.Fatalf("token %q, want 12 chars", token)
	}
	for _, r := range token {
		if !strings.ContainsRune("0123456789ABCDEF", r) {
			t.Fatalf("token %q contains non-hex rune %q", token, r)
		}
	}

	// Two draws colliding would mean the source is not random at all.
	other, err := GenerateShortToken(6)
	if err != nil {
		t.Fatal(err)
	}
	if other == token {
		t.Fatalf("two draws produced the same token %q", token)
	}
}
