package config

import (
	"reflect"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "ENV", "EMBEDDING_PROVIDER", "EMBEDDING_CACHE", "QUEUE_BACKEND", "FREE_ANALYSIS_LIMIT", "CORS_ALLOW_ORIGINS"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	if cfg.Port != "8080" || cfg.Env != "dev" {
		t.Fatalf("unexpected defaults: port=%q env=%q", cfg.Port, cfg.Env)
	}
	if cfg.EmbeddingProvider != "hash" || cfg.EmbeddingCache != "memory" || cfg.QueueBackend != "none" {
		t.Fatalf("unexpected engine defaults: %+v", cfg)
	}
	if cfg.FreeAnalysisLimit != 10 {
		t.Fatalf("FreeAnalysisLimit = %d", cfg.FreeAnalysisLimit)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ENV", "prod")
	t.Setenv("DATABASE_URL", "postgres://x")
	t.Setenv("EMBEDDING_PROVIDER", "Gemini")
	t.Setenv("EMBEDDING_DIM", "256")
	t.Setenv("QUEUE_BACKEND", "kafka")
	t.Setenv("FREE_ANALYSIS_LIMIT", "nope")
	t.Setenv("CORS_ALLOW_ORIGINS", " https://a.dev , ,https://b.dev")
	t.Setenv("LOG_DEBUG", "true")

	cfg := Load()
	if cfg.Env != "production" {
		t.Fatalf("Env = %q", cfg.Env)
	}
	if cfg.EmbeddingProvider != "gemini" || cfg.EmbeddingDim != 256 {
		t.Fatalf("embedding = %q/%d", cfg.EmbeddingProvider, cfg.EmbeddingDim)
	}
	if cfg.QueueBackend != "none" {
		t.Fatalf("QueueBackend = %q", cfg.QueueBackend)
	}
	if cfg.FreeAnalysisLimit != 10 {
		t.Fatalf("FreeAnalysisLimit = %d", cfg.FreeAnalysisLimit)
	}
	if !reflect.DeepEqual(cfg.CORSAllowOrigin, []string{"https://a.dev", "https://b.dev"}) {
		t.Fatalf("CORSAllowOrigin = %v", cfg.CORSAllowOrigin)
	}
	if !cfg.LogDebug {
		t.Fatal("LogDebug not set")
	}
}
