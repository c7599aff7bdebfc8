package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"

	"resume-ats/internal/analyses"
	"resume-ats/internal/auth"
	"resume-ats/internal/embedding"
	"resume-ats/internal/queue"
	"resume-ats/internal/rules"
	"resume-ats/internal/scoring"
	"resume-ats/internal/services/health"
	sharedauth "resume-ats/internal/shared/auth"
	"resume-ats/internal/shared/config"
	"resume-ats/internal/shared/server"
	"resume-ats/internal/shared/server/middleware"
	"resume-ats/internal/shared/storage/db"
	"resume-ats/internal/shared/storage/object"
	localstore "resume-ats/internal/shared/storage/object/local"
	s3store "resume-ats/internal/shared/storage/object/s3"
	"resume-ats/internal/shared/storage/redis"
	"resume-ats/internal/shared/telemetry"
	"resume-ats/internal/usage"
)

const embeddingCacheTTL = 7 * 24 * time.Hour

// App holds shared dependencies.
type App struct {
	Config   config.Config
	Router   *gin.Engine
	DB       *sql.DB
	Redis    *goredis.Client
	Store    object.Store
	Rules    *rules.Rules
	Provider embedding.Provider
	Engine   *scoring.Engine

	Publisher queue.Publisher
	SQS       *queue.SQSClient
	AMQP      *queue.AMQPClient

	AnalysesRepo    analyses.Repo
	UsageService    *usage.Service
	AnalysesService *analyses.Service
	AnalysisHandler *analyses.Handler
	UsageHandler    *usage.Handler
	Health          *health.Service
	Signer          *sharedauth.Signer
	Auth            *auth.GoogleService

	profile db.Profile
}

// Build prepares shared dependencies and the HTTP router for an API process.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	return BuildFor(ctx, cfg, db.ProfileServer)
}

// BuildFor is Build with the database pool sized for profile.
func BuildFor(ctx context.Context, cfg config.Config, profile db.Profile) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	app := &App{Config: cfg, profile: profile}

	steps := []func(context.Context) error{
		app.buildRedis,
		app.buildEngine,
		app.buildDB,
		app.buildStore,
		app.buildQueue,
		app.buildServices,
		app.buildAuth,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			_ = app.Close()
			return nil, err
		}
	}

	var limiter middleware.Limiter
	if app.Redis != nil {
		limiter = middleware.NewRedisRateLimiter(app.Redis, "ratelimit:")
	}
	app.Router = server.NewRouter(server.RouterDeps{
		Config:          cfg,
		AnalysisHandler: app.AnalysisHandler,
		UsageHandler:    app.UsageHandler,
		Health:          app.Health,
		Auth:            app.Auth,
		Tokens:          app.Signer,
		Limiter:         limiter,
	})
	return app, nil
}

// NewEngine loads the rule tables and the embedding provider named by cfg.
// rdb backs the embedding cache when cfg.EmbeddingCache is "redis".
func NewEngine(ctx context.Context, cfg config.Config, rdb *goredis.Client) (*scoring.Engine, embedding.Provider, error) {
	r, err := rules.Load(cfg.RulesFile)
	if err != nil {
		return nil, nil, err
	}
	p, err := embedding.New(ctx, embedding.Options{
		Provider:     cfg.EmbeddingProvider,
		Model:        cfg.EmbeddingModel,
		Dim:          cfg.EmbeddingDim,
		GeminiAPIKey: cfg.GeminiAPIKey,
	})
	if err != nil {
		return nil, nil, err
	}

	switch cfg.EmbeddingCache {
	case "redis":
		if rdb == nil {
			telemetry.Warn("bootstrap.embedding_cache", map[string]any{"cache": "redis", "fallback": "memory", "reason": "no redis client"})
			p, err = withMemoryCache(p, cfg.EmbeddingCacheSize)
		} else {
			p = embedding.NewCached(p, embedding.NewRedisCache(rdb, embeddingCacheTTL))
		}
	case "memory":
		p, err = withMemoryCache(p, cfg.EmbeddingCacheSize)
	}
	if err != nil {
		return nil, nil, err
	}

	telemetry.Info("bootstrap.engine", map[string]any{
		"rules_version": r.Version,
		"embedding":     p.Model(),
		"cache":         cfg.EmbeddingCache,
	})
	return scoring.New(p, r), p, nil
}

func withMemoryCache(p embedding.Provider, size int) (embedding.Provider, error) {
	c, err := embedding.NewMemoryCache(size)
	if err != nil {
		return nil, err
	}
	return embedding.NewCached(p, c), nil
}

func (a *App) buildRedis(ctx context.Context) error {
	if strings.TrimSpace(a.Config.RedisURL) == "" {
		return nil
	}
	client, err := redis.Connect(ctx, a.Config.RedisURL)
	if err != nil {
		if isDevLike(a.Config.Env) {
			telemetry.Warn("bootstrap.redis_unavailable", map[string]any{"error": err.Error()})
			return nil
		}
		return err
	}
	a.Redis = client
	return nil
}

func (a *App) buildEngine(ctx context.Context) error {
	engine, p, err := NewEngine(ctx, a.Config, a.Redis)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	a.Engine, a.Provider, a.Rules = engine, p, engine.Rules()
	return nil
}

func (a *App) buildDB(ctx context.Context) error {
	cfg := a.Config
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Info("bootstrap.db", map[string]any{"mode": "memory"})
			return nil
		}
		return db.ErrNoDatabaseURL
	}

	sqlDB, err := db.Open(ctx, cfg, a.profile)
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.db", map[string]any{"mode": "memory", "error": err.Error()})
			return nil
		}
		return err
	}
	if isDevLike(cfg.Env) {
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			sqlDB.Close()
			return err
		}
	}
	a.DB = sqlDB
	return nil
}

func (a *App) buildStore(ctx context.Context) error {
	switch a.Config.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(a.Config.S3Bucket) == "" {
			return errors.New("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		store, err := s3store.New(ctx, a.Config.AWSRegion, a.Config.S3Bucket, a.Config.S3Prefix, a.Config.SSEKMSKeyID)
		if err != nil {
			return err
		}
		a.Store = store
	default:
		a.Store = localstore.New(a.Config.LocalStoreDir)
	}
	return nil
}

func (a *App) buildQueue(ctx context.Context) error {
	switch a.Config.QueueBackend {
	case "sqs":
		c, err := queue.NewSQSClient(ctx, a.Config.AWSRegion, a.Config.SQSQueueURL, queue.SQSOptions{
			Concurrency: a.Config.WorkerConcurrency,
		})
		if err != nil {
			return err
		}
		a.SQS, a.Publisher = c, c
	case "amqp":
		c, err := queue.DialAMQP(a.Config.RabbitMQURL, a.Config.AMQPQueue)
		if err != nil {
			return err
		}
		a.AMQP, a.Publisher = c, c
	}
	return nil
}

func (a *App) buildServices(context.Context) error {
	if a.DB != nil {
		a.AnalysesRepo = &analyses.PGRepo{DB: a.DB}
		a.UsageService = usage.NewServiceWithStore(usage.NewPGStore(a.DB), a.Config.FreeAnalysisLimit)
	} else {
		a.AnalysesRepo = analyses.NewMemoryRepo()
		a.UsageService = usage.NewService(a.Config.FreeAnalysisLimit)
	}

	dispatch, err := resolveDispatch(a.Config.Dispatch, a.Publisher != nil)
	if err != nil {
		return err
	}
	a.AnalysesService = &analyses.Service{
		Repo:     a.AnalysesRepo,
		Engine:   a.Engine,
		Usage:    a.UsageService,
		Store:    a.Store,
		Queue:    a.Publisher,
		Dispatch: dispatch,
	}
	a.AnalysisHandler = analyses.NewHandler(a.AnalysesService)
	a.UsageHandler = usage.NewHandler(a.UsageService)

	a.Health = health.NewService(a.Rules.Version)
	if a.DB != nil {
		a.Health.Add("database", db.Ping(a.DB))
	}
	if a.Redis != nil {
		a.Health.Add("redis", func(ctx context.Context) error { return a.Redis.Ping(ctx).Err() })
	}
	return nil
}

func (a *App) buildAuth(context.Context) error {
	signer, err := sharedauth.NewSigner(a.Config.JWTSecret, sharedauth.DefaultTTL, a.Config.Env == "production")
	if err != nil {
		return err
	}
	a.Signer = signer
	a.Auth = auth.NewGoogleService(auth.GoogleConfig{
		ClientID:     a.Config.GoogleClientID,
		ClientSecret: a.Config.GoogleClientSecret,
		RedirectURL:  a.Config.GoogleRedirectURL,
		UIRedirect:   a.Config.UIRedirectURL,
	}, signer)
	if !a.Auth.Configured() {
		telemetry.Info("bootstrap.auth", map[string]any{"google": "disabled"})
	}
	return nil
}

// resolveDispatch maps ANALYSIS_DISPATCH to a dispatch mode. "auto" queues
// jobs when a queue backend is configured.
func resolveDispatch(mode string, hasQueue bool) (analyses.Dispatch, error) {
	switch mode {
	case "inline":
		return analyses.DispatchInline, nil
	case "async":
		return analyses.DispatchAsync, nil
	case "queue":
		if !hasQueue {
			return 0, errors.New("ANALYSIS_DISPATCH=queue requires QUEUE_BACKEND")
		}
		return analyses.DispatchQueue, nil
	default:
		if hasQueue {
			return analyses.DispatchQueue, nil
		}
		return analyses.DispatchAsync, nil
	}
}

// Close releases connections held by the app.
func (a *App) Close() error {
	var errs []error
	if a.AMQP != nil {
		errs = append(errs, a.AMQP.Close())
	}
	if a.Provider != nil {
		errs = append(errs, embedding.Close(a.Provider))
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil && !db.IsLambdaRuntime() {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
