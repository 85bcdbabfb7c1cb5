package config

import "testing"

func TestLoadIncludesRetrievalDefaults(t *testing.T) {
	t.Setenv("PATH_TIMEOUT_SECONDS", "")
	t.Setenv("PATH_TOP_K", "")
	t.Setenv("FUSION_TOP_N", "")
	t.Setenv("GENERATION_ENABLED", "")

	cfg := Load()
	if cfg.PathTimeoutSeconds != 30 {
		t.Fatalf("expected default path timeout 30, got %d", cfg.PathTimeoutSeconds)
	}
	if cfg.PathTopK != 10 {
		t.Fatalf("expected default path top k 10, got %d", cfg.PathTopK)
	}
	if cfg.FusionTopN != 10 {
		t.Fatalf("expected default fusion top n 10, got %d", cfg.FusionTopN)
	}
	if !cfg.GenerationEnabled {
		t.Fatalf("expected generation enabled by default")
	}
}

func TestLoadParsesRetrievalOverrides(t *testing.T) {
	t.Setenv("PATH_TIMEOUT_SECONDS", "8")
	t.Setenv("PATH_TOP_K", "15")
	t.Setenv("FUSION_TOP_N", "5")
	t.Setenv("GENERATION_ENABLED", "false")

	cfg := Load()
	if cfg.PathTimeoutSeconds != 8 {
		t.Fatalf("expected path timeout 8, got %d", cfg.PathTimeoutSeconds)
	}
	if cfg.PathTopK != 15 {
		t.Fatalf("expected path top k 15, got %d", cfg.PathTopK)
	}
	if cfg.FusionTopN != 5 {
		t.Fatalf("expected fusion top n 5, got %d", cfg.FusionTopN)
	}
	if cfg.GenerationEnabled {
		t.Fatalf("expected generation disabled")
	}
}

func TestLoadFallsBackOnMalformedNumbers(t *testing.T) {
	t.Setenv("RATE_LIMIT_RPS", "not-a-number")
	t.Setenv("RATE_LIMIT_BURST", "nope")
	t.Setenv("MAX_IN_FLIGHT", "many")

	cfg := Load()
	if cfg.RateLimitRPS != 10 {
		t.Fatalf("expected rate limit rps fallback 10, got %v", cfg.RateLimitRPS)
	}
	if cfg.RateLimitBurst != 20 {
		t.Fatalf("expected rate limit burst fallback 20, got %d", cfg.RateLimitBurst)
	}
	if cfg.MaxInFlight != 64 {
		t.Fatalf("expected max in flight fallback 64, got %d", cfg.MaxInFlight)
	}
}
