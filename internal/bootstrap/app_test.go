package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"

	"resume-ats/internal/analyses"
	"resume-ats/internal/shared/config"
	"resume-ats/internal/shared/storage/db"
)

func devConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Env:                "dev",
		ObjectStoreType:    "local",
		LocalStoreDir:      t.TempDir(),
		EmbeddingProvider:  "hash",
		EmbeddingCache:     "memory",
		EmbeddingCacheSize: 16,
		QueueBackend:       "none",
		Dispatch:           "auto",
		FreeAnalysisLimit:  3,
		RequestsPerMinute:  100,
		AnalyzePerMinute:   10,
	}
}

func TestBuildInMemory(t *testing.T) {
	gin.SetMode(gin.TestMode)
	app, err := Build(context.Background(), devConfig(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })

	if app.DB != nil || app.Publisher != nil {
		t.Fatalf("unexpected external deps: db=%v queue=%v", app.DB, app.Publisher)
	}
	if app.AnalysesService.Dispatch != analyses.DispatchAsync {
		t.Fatalf("dispatch = %v, want async", app.AnalysesService.Dispatch)
	}
	if app.UsageService.Limit() != 3 {
		t.Fatalf("usage limit = %d", app.UsageService.Limit())
	}

	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("health = %d", resp.Code)
	}
}

func TestBuildWithRedis(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	cfg := devConfig(t)
	cfg.RedisURL = "redis://" + mr.Addr()
	cfg.EmbeddingCache = "redis"

	app, err := Build(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })
	if app.Redis == nil {
		t.Fatal("redis client not wired")
	}

	if _, err := app.Provider.Embed(context.Background(), "golang postgres"); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(mr.Keys()) == 0 {
		t.Fatal("embedding was not cached in redis")
	}

	report := app.Health.Status(context.Background())
	if !report.OK || report.Checks["redis"] != "ok" {
		t.Fatalf("health = %+v", report)
	}
}

func TestBuildRequiresDatabaseOutsideDev(t *testing.T) {
	cfg := devConfig(t)
	cfg.Env = "production"
	if _, err := Build(context.Background(), cfg); !errors.Is(err, db.ErrNoDatabaseURL) {
		t.Fatalf("err = %v, want ErrNoDatabaseURL", err)
	}
}

func TestNewEngineRedisCacheWithoutClient(t *testing.T) {
	cfg := devConfig(t)
	cfg.EmbeddingCache = "redis"
	engine, p, err := NewEngine(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if engine.Rules() == nil || p.Model() == "" {
		t.Fatal("engine not initialized")
	}
	res := engine.Analyze(context.Background(), "Skills\nGo, SQL", "Go developer")
	if res.Fallback {
		t.Fatal("unexpected fallback result")
	}
}

func TestNewEngineBadRulesFile(t *testing.T) {
	cfg := devConfig(t)
	cfg.RulesFile = "/nonexistent/rules.yaml"
	if _, _, err := NewEngine(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected rules error")
	}
}

func TestResolveDispatch(t *testing.T) {
	cases := []struct {
		mode     string
		hasQueue bool
		want     analyses.Dispatch
		wantErr  bool
	}{
		{"auto", false, analyses.DispatchAsync, false},
		{"auto", true, analyses.DispatchQueue, false},
		{"inline", true, analyses.DispatchInline, false},
		{"async", true, analyses.DispatchAsync, false},
		{"queue", true, analyses.DispatchQueue, false},
		{"queue", false, 0, true},
	}
	for _, tc := range cases {
		got, err := resolveDispatch(tc.mode, tc.hasQueue)
		if (err != nil) != tc.wantErr {
			t.Fatalf("%s/%v: err = %v", tc.mode, tc.hasQueue, err)
		}
		if err == nil && got != tc.want {
			t.Errorf("%s/%v = %v, want %v", tc.mode, tc.hasQueue, got, tc.want)
		}
	}
}
