package config

import (
	"testing"
)

func TestEnsureSecrets_GeneratesMissingValues(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	if err := cfg.ensureSecrets(); err != nil {
		t.Fatalf("ensureSecrets() error = %v", err)
	}

	if cfg.Security.JWTSigningKey == "" {
		t.Fatal("jwt signing key should be auto-generated")
	}
	// 32 random bytes hex-encoded -> 64 chars.
	if len(cfg.Security.JWTSigningKey) != 64 {
		t.Fatalf("jwt signing key length = %d, want 64", len(cfg.Security.JWTSigningKey))
	}
}

func TestEnsureSecrets_PreservesProvidedValues(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Security: SecurityConfig{
			JWTSigningKey: "abcdefghijklmnopqrstuvwxyzABCDEF123456",
		},
	}

	if err := cfg.ensureSecrets(); err != nil {
		t.Fatalf("ensureSecrets() error = %v", err)
	}

	if got := cfg.Security.JWTSigningKey; got != "abcdefghijklmnopqrstuvwxyzABCDEF123456" {
		t.Fatalf("jwt signing key changed unexpectedly: %q", got)
	}
}

func TestConfigValidate_RejectsShortSigningKey(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Security: SecurityConfig{
			JWTSigningKey: "short-secret",
		},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() expected error for short signing key, got nil")
	}
}
