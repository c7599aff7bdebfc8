package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"resume-ats/internal/analyses"
	"resume-ats/internal/auth"
	"resume-ats/internal/services/health"
	"resume-ats/internal/shared/config"
	"resume-ats/internal/shared/metrics"
	"resume-ats/internal/shared/server/middleware"
	"resume-ats/internal/usage"
)

const (
	apiPrefix   = "/api/v1"
	metricsPath = "/metrics"

	groupAnalyze = "ANALYZE"
	groupDefault = "DEFAULT"
)

// RouterDeps carries the handlers mounted by NewRouter.
type RouterDeps struct {
	Config          config.Config
	AnalysisHandler *analyses.Handler
	UsageHandler    *usage.Handler
	Health          *health.Service
	// Auth mounts Google sign-in and GET /me. Nil disables session tokens.
	Auth   *auth.GoogleService
	Tokens middleware.TokenVerifier
	// Limiter backs the per-user rate limit. Nil uses an in-process limiter.
	Limiter middleware.Limiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.IdentityWith(middleware.IdentityConfig{
			Tokens:          deps.Tokens,
			TrustUserHeader: deps.Config.TrustUserHeader,
			Public:          []string{apiPrefix + "/health", metricsPath, auth.StartPath, auth.CallbackPath},
		}),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules:        rateLimitRules(deps.Config),
			DefaultGroup: groupDefault,
			GroupFor:     rateLimitGroup,
			Limiter:      deps.Limiter,
		}),
	)

	r.GET(metricsPath, metrics.Handler())

	api := r.Group(apiPrefix)
	if deps.Health != nil {
		deps.Health.RegisterRoutes(api)
	}
	if deps.Auth != nil {
		deps.Auth.RegisterRoutes(api)
	}
	if deps.AnalysisHandler != nil {
		deps.AnalysisHandler.RegisterRoutes(api)
	}
	if deps.UsageHandler != nil {
		deps.UsageHandler.RegisterRoutes(api)
		if deps.Config.Env == "dev" {
			deps.UsageHandler.RegisterDevRoutes(api.Group("/dev"))
		}
	}
	return r
}

func rateLimitRules(cfg config.Config) map[string]middleware.RateLimitRule {
	return map[string]middleware.RateLimitRule{
		groupAnalyze: perMinute(cfg.AnalyzePerMinute),
		groupDefault: perMinute(cfg.RequestsPerMinute),
	}
}

func perMinute(n int) middleware.RateLimitRule {
	return middleware.RateLimitRule{Rate: float64(n) / 60, Burst: n}
}

// rateLimitGroup puts analysis creation in its own, tighter bucket.
func rateLimitGroup(c *gin.Context) string {
	if c.Request.Method != http.MethodPost {
		return groupDefault
	}
	p := strings.TrimSuffix(c.Request.URL.Path, "/")
	if p == apiPrefix+"/analyses" || p == apiPrefix+"/analyses/upload" {
		return groupAnalyze
	}
	return groupDefault
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
