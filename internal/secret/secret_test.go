package secret

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func testKey(t *testing.T, b byte) []byte {
	t.Helper()
	key := make([]byte, KeySize)
	for i := range key {
		key[i] = b
	}
	return key
}

func TestNewRejectsBadKeySize(t *testing.T) {
	if _, err := New([]byte("too short")); err == nil {
		t.Fatal("expected error for short key")
	}
}

func TestEncryptMapRoundTrip(t *testing.T) {
	c, err := New(testKey(t, 1))
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}

	cookies := map[string]string{
		"auth_token": "abc123",
		"ct0":        "def456",
	}
	ciphertext, err := c.EncryptMap(cookies)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if strings.Contains(ciphertext, "abc123") {
		t.Fatal("ciphertext leaks plaintext")
	}

	v, err := c.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if v.Values == nil {
		t.Fatal("expected structured value, got raw")
	}
	if diff := cmp.Diff(cookies, v.Values); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestEncryptStringRoundTrip(t *testing.T) {
	c, err := New(testKey(t, 2))
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}

	ciphertext, err := c.EncryptString("not json at all")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	v, err := c.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if v.Values != nil {
		t.Fatalf("expected raw value, got map %v", v.Values)
	}
	if diff := cmp.Diff("not json at all", v.Raw); diff != "" {
		t.Errorf("raw mismatch (-want +got):\n%s", diff)
	}
}

func TestDecryptFailures(t *testing.T) {
	c, err := New(testKey(t, 3))
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	other, err := New(testKey(t, 4))
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}

	sealed, err := c.EncryptMap(map[string]string{"k": "v"})
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	tests := []struct {
		name       string
		ciphertext string
	}{
		{"not base64", "%%%not-base64%%%"},
		{"too short", base64.StdEncoding.EncodeToString([]byte("ab"))},
		{"different key", sealed},
		{"truncated", sealed[:len(sealed)/2]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codec := c
			if tt.name == "different key" {
				codec = other
			}
			if _, err := codec.Decrypt(tt.ciphertext); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}
