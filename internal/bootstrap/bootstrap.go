// Package bootstrap builds the portal service and its backends from
// environment configuration. It is shared by the API server and the
// ingest worker.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"golang.org/x/time/rate"

	"github.com/WessleyAI/resume-portal/engine/embedding"
	"github.com/WessleyAI/resume-portal/engine/graph"
	"github.com/WessleyAI/resume-portal/engine/portal"
	"github.com/WessleyAI/resume-portal/engine/semantic"
	"github.com/WessleyAI/resume-portal/engine/summary"
	"github.com/WessleyAI/resume-portal/pkg/config"
	"github.com/WessleyAI/resume-portal/pkg/metrics"
	"github.com/WessleyAI/resume-portal/pkg/ollama"
	"github.com/WessleyAI/resume-portal/pkg/resilience"
)

// Config holds all environment-based configuration.
type Config struct {
	Port           string
	CORSOrigin     string
	RequestTimeout time.Duration
	MaxBodyBytes   int64

	EmbedProvider   string
	OpenAIKey       string
	EmbedModel      string
	EmbedDimensions int
	EmbedMaxRetries int
	EmbedCacheSize  int
	EmbedRPS        float64
	OllamaURL       string

	VectorBackend string
	QdrantURL     string
	Collection    string
	DatabaseURL   string

	GeminiKey    string
	SummaryModel string

	Neo4jURL  string
	Neo4jUser string
	Neo4jPass string

	NATSURL string
	TopK    int
}

// LoadConfig reads Config from the environment.
func LoadConfig() Config {
	return Config{
		Port:           config.String("PORT", "8080"),
		CORSOrigin:     config.String("CORS_ORIGIN", "*"),
		RequestTimeout: config.Duration("REQUEST_TIMEOUT", 60*time.Second),
		MaxBodyBytes:   int64(config.Int("MAX_BODY_BYTES", 12<<20)),

		EmbedProvider:   strings.ToLower(config.String("EMBED_PROVIDER", "openai")),
		OpenAIKey:       os.Getenv("OPENAI_API_KEY"),
		EmbedModel:      config.String("EMBED_MODEL", embedding.DefaultOpenAIModel),
		EmbedDimensions: config.Int("EMBED_DIMENSIONS", embedding.Dimensions),
		EmbedMaxRetries: config.Int("EMBED_MAX_RETRIES", embedding.DefaultMaxRetries),
		EmbedCacheSize:  config.Int("EMBED_CACHE_SIZE", 10000),
		EmbedRPS:        config.Float("EMBED_RPS", 0),
		OllamaURL:       config.String("OLLAMA_URL", ollama.DefaultURL),

		VectorBackend: strings.ToLower(config.String("VECTOR_BACKEND", "qdrant")),
		QdrantURL:     config.String("QDRANT_URL", "localhost:6334"),
		Collection:    config.String("QDRANT_COLLECTION", semantic.DefaultCollection),
		DatabaseURL:   os.Getenv("DATABASE_URL"),

		GeminiKey:    os.Getenv("GOOGLE_GEMINI_API_KEY"),
		SummaryModel: config.String("SUMMARY_MODEL", summary.DefaultModel),

		Neo4jURL:  os.Getenv("NEO4J_URL"),
		Neo4jUser: config.String("NEO4J_USER", "neo4j"),
		Neo4jPass: config.String("NEO4J_PASS", "password"),

		NATSURL: os.Getenv("NATS_URL"),
		TopK:    config.Int("SEARCH_TOP_K", portal.DefaultOptions().TopK),
	}
}

// Runtime is a wired portal with the connections it owns.
type Runtime struct {
	Portal   *portal.Service
	Embedder *embedding.Service
	NATS     *nats.Conn
	Metrics  *metrics.Registry

	closers []func()
}

// Close releases connections in reverse order of opening.
func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.closers = nil
}

// Build connects every backend named by cfg and assembles the portal
// service. NATS, Neo4j and Gemini are optional. On error everything opened
// so far is closed.
func Build(ctx context.Context, cfg Config, name string, logger *slog.Logger) (rt *Runtime, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	rt = &Runtime{Metrics: metrics.New()}
	defer func() {
		if err != nil {
			rt.Close()
			rt = nil
		}
	}()

	// --- Optional NATS ---
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name(name))
		if err != nil {
			return nil, fmt.Errorf("nats connect: %w", err)
		}
		rt.NATS = nc
		rt.closers = append(rt.closers, func() { nc.Drain() })
	}

	// --- Embeddings ---
	rt.Embedder = BuildEmbedder(cfg, rt.Metrics, rt.NATS, logger)

	// --- Vector store ---
	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, func() { store.Close() })
	if err := store.EnsureCollection(ctx, rt.Embedder.Dimensions()); err != nil {
		return nil, fmt.Errorf("ensure collection: %w", err)
	}

	deps := portal.Deps{Embedder: rt.Embedder, Store: store}
	if rt.NATS != nil {
		deps.Events = rt.NATS
	}

	// --- Optional Neo4j skill graph ---
	if cfg.Neo4jURL != "" {
		driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
		if err != nil {
			return nil, fmt.Errorf("neo4j driver: %w", err)
		}
		rt.closers = append(rt.closers, func() { driver.Close(context.Background()) })
		g := graph.New(driver)
		if err := g.EnsureSchema(ctx); err != nil {
			logger.Warn("graph schema not ensured", "err", err)
		}
		deps.Graph = g
	}

	// --- Optional Gemini summaries ---
	if cfg.GeminiKey != "" {
		gen, err := summary.NewGemini(ctx, cfg.GeminiKey, cfg.SummaryModel)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() { gen.Close() })
		deps.Summarizer = gen
	} else {
		logger.Warn("GOOGLE_GEMINI_API_KEY not set, summaries disabled")
	}

	opts := portal.DefaultOptions()
	opts.TopK = cfg.TopK
	rt.Portal = portal.New(deps, opts, logger)
	return rt, nil
}

// BuildEmbedder wires the provider selected by cfg with caching,
// throttling, a circuit breaker, metrics and fallback events. nc may be nil.
func BuildEmbedder(cfg Config, reg *metrics.Registry, nc *nats.Conn, logger *slog.Logger) *embedding.Service {
	if logger == nil {
		logger = slog.Default()
	}
	opts := embedding.Options{
		Dimensions: cfg.EmbedDimensions,
		MaxRetries: retryBudget(cfg.EmbedMaxRetries),
		Cache:      embedding.NewCache(cfg.EmbedCacheSize),
		Logger:     logger,
	}
	if reg != nil {
		opts.Recorder = embedding.NewMetricsRecorder(reg)
	}

	if p := Provider(cfg); p != nil {
		opts.Provider = p
	}

	if cfg.EmbedRPS > 0 {
		opts.Limiter = rate.NewLimiter(rate.Limit(cfg.EmbedRPS), 1)
	}

	bo := resilience.DefaultBreakerOpts
	bo.Ignore = func(err error) bool {
		return errors.Is(err, context.Canceled) || embedding.IsRateLimited(err)
	}
	bo.OnStateChange = func(from, to resilience.State) {
		logger.Warn("embedding breaker state changed", "from", from.String(), "to", to.String())
	}
	breaker := resilience.NewBreaker(bo)
	opts.Breaker = breaker

	if nc != nil {
		opts.Notifier = embedding.NewNATSNotifier(nc, logger)
	}
	svc := embedding.New(opts)
	if reg != nil {
		reg.GaugeFunc("embedding_cache_entries", "Vectors held in the embedding cache.",
			func() float64 { return float64(svc.CacheLen()) })
		reg.GaugeFunc("embedding_breaker_state", "Provider breaker state: 0 closed, 1 open, 2 half-open.",
			func() float64 { return float64(breaker.State()) })
	}
	return svc
}

// retryBudget maps EMBED_MAX_RETRIES onto Options.MaxRetries, where zero
// would otherwise select the default.
func retryBudget(n int) int {
	if n <= 0 {
		return embedding.NoRetries
	}
	return n
}

// Provider returns the embedding provider selected by cfg, or nil when
// OpenAI is selected without an API key.
func Provider(cfg Config) embedding.Provider {
	switch cfg.EmbedProvider {
	case "ollama":
		return embedding.NewOllamaProvider(ollama.NewClient(cfg.OllamaURL, cfg.EmbedModel))
	default:
		if cfg.OpenAIKey == "" {
			return nil
		}
		return embedding.NewOpenAIProvider(cfg.OpenAIKey,
			embedding.WithModel(cfg.EmbedModel),
			embedding.WithDimensions(cfg.EmbedDimensions),
		)
	}
}

// OpenStore connects the vector backend selected by cfg.
func OpenStore(ctx context.Context, cfg Config) (semantic.Store, error) {
	switch cfg.VectorBackend {
	case "pgvector", "postgres":
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required for the pgvector backend")
		}
		s, err := semantic.NewPGStore(ctx, cfg.DatabaseURL, cfg.Collection)
		if err != nil {
			return nil, fmt.Errorf("pgvector connect: %w", err)
		}
		return s, nil
	case "qdrant", "":
		s, err := semantic.New(cfg.QdrantURL, cfg.Collection)
		if err != nil {
			return nil, fmt.Errorf("qdrant connect: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown VECTOR_BACKEND %q", cfg.VectorBackend)
	}
}
