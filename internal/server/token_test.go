package server

import (
	"errors"
	"strings"
	"testing"
)

func TestHashTokenRoundTrip(t *testing.T) {
	t.Parallel()

	hash, err := HashToken("producer-secret")
	if err != nil {
		t.Fatalf("HashToken error: %v", err)
	}
	if !strings.HasPrefix(hash, "pbkdf2$sha256$") {
		t.Fatalf("unexpected hash format: %q", hash)
	}
	if err := VerifyToken(hash, "producer-secret"); err != nil {
		t.Fatalf("expected token to verify, got %v", err)
	}
}

func TestHashTokenRejectsEmptyToken(t *testing.T) {
	t.Parallel()

	if _, err := HashToken(""); err == nil {
		t.Fatal("expected error for empty token")
	}
}

func TestHashTokenSaltsEachHash(t *testing.T) {
	t.Parallel()

	first, err := HashToken("producer-secret")
	if err != nil {
		t.Fatalf("HashToken error: %v", err)
	}
	second, err := HashToken("producer-secret")
	if err != nil {
		t.Fatalf("HashToken error: %v", err)
	}
	if first == second {
		t.Fatal("expected distinct salts to yield distinct hashes")
	}
}

func TestVerifyTokenRejectsWrongToken(t *testing.T) {
	t.Parallel()

	hash, err := HashToken("producer-secret")
	if err != nil {
		t.Fatalf("HashToken error: %v", err)
	}
	if err := VerifyToken(hash, "not-the-secret"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyTokenRejectsMalformedHashes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		hash string
	}{
		{name: "empty", hash: ""},
		{name: "wrong part count", hash: "pbkdf2$sha256$120000$salt"},
		{name: "unknown algorithm", hash: "bcrypt$sha256$120000$c2FsdA$a2V5"},
		{name: "bad iterations", hash: "pbkdf2$sha256$zero$c2FsdA$a2V5"},
		{name: "bad salt encoding", hash: "pbkdf2$sha256$120000$!!!$a2V5"},
		{name: "bad key encoding", hash: "pbkdf2$sha256$120000$c2FsdA$!!!"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := VerifyToken(tc.hash, "producer-secret")
			if err == nil {
				t.Fatal("expected error for malformed hash")
			}
			if errors.Is(err, ErrInvalidToken) {
				t.Fatalf("malformed hash should not map to ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestExtractBearerToken(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		header string
		want   string
	}{
		{name: "empty", header: "", want: ""},
		{name: "well formed", header: "Bearer producer-secret", want: "producer-secret"},
		{name: "padded", header: "  Bearer producer-secret  ", want: "producer-secret"},
		{name: "wrong scheme", header: "Basic cHJvZHVjZXI", want: ""},
		{name: "scheme only", header: "Bearer ", want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := extractBearerToken(tc.header); got != tc.want {
				t.Fatalf("extractBearerToken(%q) = %q, want %q", tc.header, got, tc.want)
			}
		})
	}
}
