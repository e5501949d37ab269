package main

import (
	"context"
	"time"

	"github.com/Abraxas-365/applyflow/internal/ai/docintel"
	"github.com/Abraxas-365/applyflow/internal/ai/embeddings"
	"github.com/Abraxas-365/applyflow/internal/ai/visionocr"
	"github.com/Abraxas-365/applyflow/pkg/config"
	"github.com/Abraxas-365/applyflow/pkg/fsx/fsxlocal"
	"github.com/Abraxas-365/applyflow/pkg/fsx/fsxs3"
	"github.com/Abraxas-365/applyflow/pkg/logx"
	"github.com/Abraxas-365/applyflow/recruitment/candidate"
	"github.com/Abraxas-365/applyflow/recruitment/candidate/candidateapi"
	"github.com/Abraxas-365/applyflow/recruitment/candidate/candidateinfra"
	"github.com/Abraxas-365/applyflow/recruitment/candidate/candidatesrv"
	"github.com/Abraxas-365/applyflow/recruitment/candidate/migration"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const (
	defaultPollAttempts   = 120
	ocrCachePrefix        = "applyflow:ocr"
	recognizerPingTimeout = 15 * time.Second
)

// Container holds all application dependencies
type Container struct {
	Config *config.Config

	// Infrastructure
	Repository candidate.Repository
	Vectors    candidate.VectorIndex
	Redis      *redis.Client
	S3Client   *s3.Client

	closers []func(ctx context.Context) error
}

// NewContainer connects the store selected by the configured URL scheme.
// Pipeline collaborators are built on demand by the commands that need them.
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	c := &Container{Config: cfg}
	if err := c.initStore(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Container) initStore(ctx context.Context) error {
	url := c.Config.StoreURL()

	switch c.Config.StoreScheme() {
	case "mongodb", "mongodb+srv":
		connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		repo, err := candidateinfra.ConnectMongo(connectCtx, url, c.Config.Store.Database, c.Config.Store.Collection)
		if err != nil {
			return err
		}
		repo.EnsureIndexes(ctx)
		c.Repository = repo
		c.closers = append(c.closers, repo.Close)
		logx.Infof("Connected to document store %s/%s", c.Config.Store.Database, c.Config.Store.Collection)

	case "postgres", "postgresql":
		db, err := sqlx.Connect("postgres", url)
		if err != nil {
			return candidate.ErrRegistry.NewWithCause(candidate.CodeStoreUnavailable, err)
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		repo := candidateinfra.NewPostgresRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return err
		}
		c.Repository = repo
		c.Vectors = repo
		c.closers = append(c.closers, func(context.Context) error { return repo.Close() })
		logx.Info("Connected to Postgres store")

	case "memory":
		repo := candidateinfra.NewMemoryRepository()
		c.Repository = repo
		c.Vectors = repo
		logx.Warn("Using in-memory store: nothing will be persisted")

	default:
		return config.ErrInvalid().
			WithDetail("setting", "STORE_URL").
			WithDetail("scheme", c.Config.StoreScheme())
	}
	return nil
}

func (c *Container) initRedis(ctx context.Context) {
	if c.Redis != nil || c.Config.Cache.RedisAddr == "" {
		return
	}
	client := redis.NewClient(&redis.Options{
		Addr:     c.Config.Cache.RedisAddr,
		Password: c.Config.Cache.RedisPass,
		DB:       0,
	})
	if _, err := client.Ping(ctx).Result(); err != nil {
		logx.Warnf("Failed to connect to Redis, OCR cache disabled: %v", err)
		_ = client.Close()
		return
	}
	c.Redis = client
	c.closers = append(c.closers, func(context.Context) error { return client.Close() })
}

func (c *Container) initS3(ctx context.Context) error {
	if c.S3Client != nil || c.Config.Storage.S3Endpoint == "" {
		return nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(c.Config.Storage.S3Region))
	if err != nil {
		return err
	}
	endpoint := c.Config.Storage.S3Endpoint
	c.S3Client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})
	return nil
}

func (c *Container) recognizer() *candidateinfra.DocumentRecognizer {
	cfg := c.Config
	var analyzer candidateinfra.Analyzer
	switch cfg.OCR.Provider {
	case "openai":
		analyzer = visionocr.NewRecognizer(cfg.AI.OpenAIKey, visionocr.WithModel(cfg.AI.VisionModel))
		logx.Infof("Text extraction: OpenAI vision (%s)", cfg.AI.VisionModel)
	default:
		analyzer = docintel.NewClient(cfg.OCR.AzureEndpoint, cfg.OCR.AzureKey,
			docintel.WithModel(cfg.OCR.AzureModel),
			docintel.WithPolling(cfg.OCR.PollInterval, defaultPollAttempts),
		)
		logx.Infof("Text extraction: Azure Document Intelligence (%s)", cfg.OCR.AzureModel)
	}
	return candidateinfra.NewDocumentRecognizer(analyzer)
}

func (c *Container) scheduler() *migration.WriteScheduler {
	p := c.Config.Pipeline
	return migration.NewWriteScheduler(
		migration.WithThrottleBaseDelay(p.ThrottleBaseDelay),
		migration.WithMaxWriteAttempts(p.ThrottleMaxAttempts),
		migration.WithPacing(p.WritePacing),
	)
}

func (c *Container) embedder() candidate.Embedder {
	if !c.Config.AI.EmbeddingsEnabled || c.Config.AI.OpenAIKey == "" {
		return nil
	}
	if c.Vectors == nil {
		logx.Warn("EMBEDDINGS_ENABLED is set but the store has no vector support, skipping")
		return nil
	}
	return embeddings.NewGenerator(c.Config.AI.OpenAIKey)
}

// Runner wires the enrichment pipeline.
func (c *Container) Runner(ctx context.Context) (*migration.Runner, error) {
	cfg := c.Config

	spool, err := fsxlocal.NewLocalFileSystem(cfg.Pipeline.TempFolder)
	if err != nil {
		return nil, err
	}
	resolver := candidate.NewResolver(cfg.Storage.BaseURL, cfg.Storage.Bucket)
	httpFetcher := candidateinfra.NewHTTPFetcher(spool,
		candidateinfra.WithTimeout(cfg.Pipeline.FetchTimeout),
		candidateinfra.WithKeepFiles(cfg.Pipeline.KeepTempFiles),
	)

	var fetcher candidate.Fetcher = httpFetcher
	if err := c.initS3(ctx); err != nil {
		return nil, err
	}
	if c.S3Client != nil {
		objects := fsxs3.NewS3FileSystem(c.S3Client, cfg.Storage.Bucket, "")
		fetcher = candidateinfra.NewStorageFetcher(objects, resolver, httpFetcher)
		logx.Infof("Fetching documents through S3 endpoint %s", cfg.Storage.S3Endpoint)
	}

	recognizer := c.recognizer()
	pingCtx, cancel := context.WithTimeout(ctx, recognizerPingTimeout)
	defer cancel()
	if err := recognizer.Ping(pingCtx); err != nil {
		return nil, err
	}

	var extractorOpts []candidatesrv.ExtractorOption
	c.initRedis(ctx)
	if c.Redis != nil {
		extractorOpts = append(extractorOpts, candidatesrv.WithTextCache(
			candidateinfra.NewRedisTextCache(c.Redis, ocrCachePrefix, cfg.Cache.TTL),
		))
	}

	deps := migration.Dependencies{
		Resolver:   resolver,
		Fetcher:    fetcher,
		Extractor:  candidatesrv.NewExtractor(recognizer, extractorOpts...),
		Repository: c.Repository,
		Scheduler:  c.scheduler(),
		Embedder:   c.embedder(),
		Vectors:    c.Vectors,
	}
	return migration.NewRunner(deps, migration.Options{
		DocumentConcurrency: cfg.Pipeline.DocumentConcurrency,
		SkipExisting:        cfg.Pipeline.SkipExisting,
	}), nil
}

// Importer wires the bulk raw-insert migration.
func (c *Container) Importer() *migration.Importer {
	return migration.NewImporter(c.Repository, c.scheduler())
}

// QueryHandlers wires the read-only API.
func (c *Container) QueryHandlers() *candidateapi.Handlers {
	var embedder candidate.Embedder
	if c.Vectors != nil && c.Config.AI.OpenAIKey != "" {
		embedder = embeddings.NewGenerator(c.Config.AI.OpenAIKey)
	}
	return candidateapi.NewHandlers(candidatesrv.NewQueryService(c.Repository, c.Vectors, embedder))
}

// Close releases every connection in reverse order of creation.
func (c *Container) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			logx.Warnf("Closing connection: %v", err)
		}
	}
}
