package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"resume-workflow/internal/cv"
	"resume-workflow/internal/fetch"
	"resume-workflow/internal/knowledge"
	"resume-workflow/internal/llm"
	"resume-workflow/internal/llm/langchain"
	"resume-workflow/internal/llm/openai"
	"resume-workflow/internal/llm/prompts"
	"resume-workflow/internal/queue"
	"resume-workflow/internal/services/health"
	"resume-workflow/internal/sessions"
	"resume-workflow/internal/shared/config"
	"resume-workflow/internal/shared/metrics"
	"resume-workflow/internal/shared/server"
	"resume-workflow/internal/shared/storage/db"
	"resume-workflow/internal/shared/storage/object"
	localstore "resume-workflow/internal/shared/storage/object/local"
	s3store "resume-workflow/internal/shared/storage/object/s3"
	"resume-workflow/internal/shared/telemetry"
	"resume-workflow/internal/workerproc"
	"resume-workflow/internal/workflow"
	"resume-workflow/resume/render"
)

const httpFetchTimeout = 30 * time.Second

// App holds shared dependencies.
type App struct {
	Config    config.Config
	Router    *gin.Engine
	DB        *sql.DB
	Redis     *redis.Client
	Store     object.ObjectStore
	Queue     queue.Client
	Sessions  sessions.Store
	LLM       llm.Client
	Knowledge *knowledge.Service
	Engine    *workflow.Engine
	Workflow  *workflow.Service
	Renderer  *render.LatexRenderer
	CVHandler *cv.Handler

	localQueue *queue.ChannelClient
	stopLocal  context.CancelFunc
	localDone  chan struct{}
}

// Options switches off parts of the graph a binary does not need.
type Options struct {
	// SkipRouter leaves App.Router nil.
	SkipRouter bool
	// SkipQueue builds no queue client even when INDEX_QUEUE_URL is set.
	SkipQueue bool
}

// Build prepares shared dependencies and the HTTP router.
func Build(cfg config.Config) (*App, error) {
	return BuildWithOptions(context.Background(), cfg, Options{})
}

// BuildWithOptions prepares shared dependencies according to opts.
func BuildWithOptions(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var queueClient queue.Client
	if !opts.SkipQueue {
		if queueClient, err = buildQueue(ctx, cfg); err != nil {
			return nil, err
		}
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		Queue:  queueClient,
	}

	if err := buildSessions(ctx, app); err != nil {
		return nil, err
	}
	if err := buildServices(app); err != nil {
		return nil, err
	}
	if local, ok := queueClient.(*queue.ChannelClient); ok {
		app.startLocalIndexer(local)
	}

	if !opts.SkipRouter {
		app.Router = server.NewRouter(server.RouterDeps{
			Config:    app.Config,
			CVHandler: app.CVHandler,
			Health:    app.healthService(),
		})
	}
	return app, nil
}

// Close stops the local indexer and releases database and cache connections.
func (a *App) Close() error {
	if a.localQueue != nil {
		a.localQueue.Close()
		a.stopLocal()
		<-a.localDone
		a.localQueue = nil
	}
	var errs []error
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}

func (a *App) healthService() *health.Service {
	checks := map[string]health.Pinger{}
	if a.DB != nil {
		checks["database"] = a.DB
	}
	if a.Redis != nil {
		client := a.Redis
		checks["redis"] = health.PingFunc(func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
	}
	return health.NewService(2*time.Second, checks)
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if config.IsDevLike(cfg.Env) {
			telemetry.Info("bootstrap.database_skipped", map[string]any{"reason": "DATABASE_URL empty", "env": cfg.Env})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	if err != nil {
		if config.IsDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.database_unavailable", map[string]any{"error": err.Error()})
			return nil, nil
		}
		return nil, err
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

const localQueueCapacity = 256

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	switch strings.TrimSpace(cfg.IndexQueueURL) {
	case "":
		return nil, nil
	case queue.LocalURL:
		return queue.NewChannelClient(localQueueCapacity), nil
	default:
		return queue.NewSQSClient(ctx, cfg.IndexQueueURL, cfg.AWSRegion)
	}
}

// startLocalIndexer consumes the in-process queue with the same message
// handling as cmd/worker.
func (a *App) startLocalIndexer(q *queue.ChannelClient) {
	ctx, cancel := context.WithCancel(context.Background())
	a.localQueue = q
	a.stopLocal = cancel
	a.localDone = make(chan struct{})
	workers := max(1, a.Config.WorkerConcurrency)

	go func() {
		defer close(a.localDone)
		q.Consume(ctx, workers, func(ctx context.Context, body string) error {
			metrics.IncIndexJobsReceived()
			if err := workerproc.HandleMessage(ctx, a.Knowledge, body); err != nil {
				metrics.IncIndexJobsFailed()
				return err
			}
			metrics.IncIndexJobsCompleted()
			return nil
		})
	}()
	telemetry.Info("bootstrap.local_indexer_started", map[string]any{"workers": workers})
}

func buildSessions(ctx context.Context, app *App) error {
	cfg := app.Config
	switch cfg.SessionStore {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			if !config.IsDevLike(cfg.Env) {
				return fmt.Errorf("redis ping: %w", err)
			}
			telemetry.Warn("bootstrap.redis_unavailable", map[string]any{"addr": cfg.RedisAddr, "error": err.Error()})
			app.Sessions = sessions.NewMemoryStore(cfg.SessionTTL)
			return nil
		}
		app.Redis = client
		app.Sessions = sessions.NewRedisStore(client, cfg.SessionTTL)
	case "postgres":
		if app.DB == nil {
			if !config.IsDevLike(cfg.Env) {
				return fmt.Errorf("SESSION_STORE=postgres requires DATABASE_URL")
			}
			telemetry.Warn("bootstrap.session_store_fallback", map[string]any{"requested": "postgres", "using": "memory"})
			app.Sessions = sessions.NewMemoryStore(cfg.SessionTTL)
			return nil
		}
		app.Sessions = sessions.NewPGStore(app.DB, cfg.SessionTTL)
	default:
		app.Sessions = sessions.NewMemoryStore(cfg.SessionTTL)
	}
	return nil
}

const llmAttempts = 3

func buildLLM(cfg config.Config) (llm.Client, error) {
	var base llm.Client
	switch cfg.LLMProvider {
	case "", langchain.ProviderOpenAI:
		c, err := openai.NewClient(cfg.OpenAIAPIKey, cfg.LLMModel)
		if err != nil {
			return nil, err
		}
		base = c
	default:
		c, err := langchain.NewClient(cfg)
		if err != nil {
			return nil, err
		}
		base = c
	}
	return llm.WithRetry(base, llmAttempts, llm.DefaultRetryDelay), nil
}

func buildFetcher(cfg config.Config) workflow.Fetcher {
	if cfg.Fetcher == "http" {
		return fetch.NewHTTPFetcher(httpFetchTimeout)
	}
	return fetch.NewChromeFetcher(cfg.ChromePath, cfg.FetchWait)
}

func buildServices(app *App) error {
	cfg := app.Config

	llmClient, err := buildLLM(cfg)
	if err != nil {
		return fmt.Errorf("llm client: %w", err)
	}
	embedder, err := langchain.NewEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("embedder: %w", err)
	}
	catalog, err := prompts.Default()
	if err != nil {
		return fmt.Errorf("prompt catalog: %w", err)
	}
	renderer, err := render.NewLatexRenderer()
	if err != nil {
		return fmt.Errorf("renderer: %w", err)
	}

	var repo knowledge.Repo
	if app.DB != nil {
		repo = &knowledge.PGRepo{DB: app.DB}
	} else {
		repo = knowledge.NewMemoryRepo()
	}
	knowledgeSvc := &knowledge.Service{
		Store:    app.Store,
		Repo:     repo,
		Embedder: embedder,
		TopK:     cfg.RetrievalTopK,
		Chunking: knowledge.DefaultChunkConfig(),
	}

	engine := &workflow.Engine{
		Fetcher:      buildFetcher(cfg),
		Knowledge:    knowledgeSvc,
		LLM:          llmClient,
		Prompts:      catalog,
		Renderer:     renderer,
		Notes:        app.Store,
		JobTextLimit: cfg.JobTextLimit,
	}
	if cfg.RenderPDF {
		engine.Compiler = render.NewPDFCompiler(cfg.PDFLatexPath)
	}
	workflowSvc := &workflow.Service{
		Engine:       engine,
		Sessions:     app.Sessions,
		RunTimeout:   cfg.RunTimeout,
		MaxRevisions: cfg.MaxRevisions,
	}

	app.LLM = llmClient
	app.Knowledge = knowledgeSvc
	app.Engine = engine
	app.Workflow = workflowSvc
	app.Renderer = renderer
	app.CVHandler = cv.NewHandler(workflowSvc, cv.NewIndexHandler(knowledgeSvc, app.Queue))

	telemetry.Info("bootstrap.ready", map[string]any{
		"env":             cfg.Env,
		"session_store":   cfg.SessionStore,
		"object_store":    cfg.ObjectStoreType,
		"llm_provider":    cfg.LLMProvider,
		"llm_model":       cfg.LLMModel,
		"embed_provider":  cfg.EmbedProvider,
		"fetcher":         cfg.Fetcher,
		"render_pdf":      cfg.RenderPDF,
		"database":        app.DB != nil,
		"async_indexing":  app.Queue != nil,
		"prompts_version": catalog.Version(),
	})
	return nil
}
