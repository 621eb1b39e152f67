package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestMerchantTokenRoundTrip(t *testing.T) {
	id := uuid.New()

	token, err := GenerateMerchantToken("jwt-secret", id, time.Hour)
	if err != nil {
		t.Fatalf("GenerateMerchantToken() error: %v", err)
	}

	got, err := ParseMerchantToken("jwt-secret", token)
	if err != nil {
		t.Fatalf("ParseMerchantToken() error: %v", err)
	}
	if got != id {
		t.Errorf("merchant id = %s, want %s", got, id)
	}
}

func TestParseMerchantTokenRejects(t *testing.T) {
	id := uuid.New()

	token, _ := GenerateMerchantToken("jwt-secret", id, time.Hour)
	if _, err := ParseMerchantToken("other-secret", token); err == nil {
		t.Error("expected error for wrong secret")
	}

	expired, _ := GenerateMerchantToken("jwt-secret", id, -time.Minute)
	if _, err := ParseMerchantToken("jwt-secret", expired); err == nil {
		t.Error("expected error for expired token")
	}

	if _, err := ParseMerchantToken("jwt-secret", "not-a-token"); err == nil {
		t.Error("expected error for garbage token")
	}
}

func TestAPIKeys(t *testing.T) {
	key, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey() error: %v", err)
	}
	if !strings.HasPrefix(key, "sk_gw_") || len(key) != len("sk_gw_")+48 {
		t.Errorf("unexpected key format %q", key)
	}

	hash, err := HashAPIKey(key)
	if err != nil {
		t.Fatalf("HashAPIKey() error: %v", err)
	}
	if hash == key {
		t.Error("hash must not equal the key")
	}
	if !CheckAPIKey(hash, key) {
		t.Error("CheckAPIKey() rejected the right key")
	}
	if CheckAPIKey(hash, key+"x") {
		t.Error("CheckAPIKey() accepted a wrong key")
	}
	if CheckAPIKey(hash, "") {
		t.Error("CheckAPIKey() accepted an empty key")
	}
}
