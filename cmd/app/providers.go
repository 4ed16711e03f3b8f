package main

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/bank-support/internal/domain/knowledge"
	"github.com/yanqian/bank-support/internal/domain/support"
	"github.com/yanqian/bank-support/internal/infra/config"
	"github.com/yanqian/bank-support/internal/infra/corpuswatch"
	"github.com/yanqian/bank-support/internal/infra/embedder"
	"github.com/yanqian/bank-support/internal/infra/knowledgeindex"
	"github.com/yanqian/bank-support/internal/infra/llm"
	"github.com/yanqian/bank-support/internal/infra/llm/chatgpt"
	"github.com/yanqian/bank-support/internal/infra/ratingarchive"
	"github.com/yanqian/bank-support/internal/infra/sessionstore"
	"github.com/yanqian/bank-support/internal/infra/supportrepo"
	httpiface "github.com/yanqian/bank-support/internal/interface/http"
	"github.com/yanqian/bank-support/pkg/metrics"
	"github.com/yanqian/bank-support/pkg/util"
)

const (
	defaultOpenAIEmbeddingModel = "text-embedding-3-small"
	defaultOllamaEmbeddingModel = "nomic-embed-text"
	defaultTrigramDimensions    = 2048
)

var errMissingAPIKey = errors.New("embedding provider openai requires llm.apiKey")

// modelEmbedder is an embedder that names its embedding space.
type modelEmbedder interface {
	knowledge.Embedder
	Model() string
}

// sessionBackend stores sessions and guards the operator desk.
type sessionBackend interface {
	support.SessionStore
	support.OperatorDesk
}

// supportRepository persists tickets and ratings.
type supportRepository interface {
	support.TicketRepository
	support.RatingRepository
}

// knowledgeRuntime is what the build and search commands need.
type knowledgeRuntime struct {
	cfg   *config.Config
	store *knowledge.Store
	gate  *knowledge.Gate
}

func newKnowledgeRuntime(cfg *config.Config, store *knowledge.Store, gate *knowledge.Gate) *knowledgeRuntime {
	return &knowledgeRuntime{cfg: cfg, store: store, gate: gate}
}

func provideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// provideChatGPTClient returns nil when no API key is configured; the
// providers that need it fall back or fail with a clear error.
func provideChatGPTClient(cfg *config.Config, logger *slog.Logger) *chatgpt.Client {
	if strings.TrimSpace(cfg.LLM.APIKey) == "" {
		logger.Info("llm api key not set, openai backends disabled")
		return nil
	}
	client, err := chatgpt.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL)
	if err != nil {
		logger.Error("failed to create chatgpt client", "error", err)
		return nil
	}
	return client
}

func provideEmbedder(cfg *config.Config, client *chatgpt.Client, logger *slog.Logger) (modelEmbedder, error) {
	model := strings.TrimSpace(cfg.Embedding.Model)
	switch cfg.Embedding.Provider {
	case "openai":
		if client == nil {
			return nil, errMissingAPIKey
		}
		if model == "" {
			model = defaultOpenAIEmbeddingModel
		}
		logger.Info("openai embeddings enabled", "model", model)
		return embedder.NewChatGPT(client, model, logger), nil
	case "ollama":
		if model == "" {
			model = defaultOllamaEmbeddingModel
		}
		logger.Info("ollama embeddings enabled", "host", cfg.Embedding.OllamaHost, "model", model)
		return embedder.NewOllama(cfg.Embedding.OllamaHost, model), nil
	default:
		dim := cfg.Embedding.Dimensions
		if dim <= 0 {
			dim = defaultTrigramDimensions
		}
		logger.Info("trigram embeddings enabled", "dimensions", dim)
		return embedder.NewTrigram(dim), nil
	}
}

func provideKnowledgeIndex(cfg *config.Config, logger *slog.Logger) (knowledge.Index, func()) {
	switch cfg.Knowledge.Index.Backend {
	case "postgres":
		if index, cleanup, ok := openPostgresIndex(cfg.Knowledge.Index.Postgres, logger); ok {
			return index, cleanup
		}
	case "qdrant":
		q := cfg.Knowledge.Index.Qdrant
		index, err := knowledgeindex.NewQdrant(knowledgeindex.QdrantConfig{
			Host:       q.Host,
			Port:       q.Port,
			Collection: q.Collection,
			APIKey:     q.APIKey,
			UseTLS:     q.UseTLS,
		})
		if err != nil {
			logger.Error("failed to connect to qdrant, using memory index", "error", err)
			break
		}
		logger.Info("qdrant knowledge index enabled", "host", q.Host, "collection", q.Collection)
		return index, func() { _ = index.Close() }
	}
	logger.Info("using memory knowledge index")
	return knowledgeindex.NewMemory(), func() {}
}

func openPostgresIndex(cfg config.PostgresConfig, logger *slog.Logger) (knowledge.Index, func(), bool) {
	poolConfig, err := pgxpool.ParseConfig(strings.TrimSpace(cfg.DSN))
	if err != nil {
		logger.Error("invalid postgres dsn, using memory index", "error", err)
		return nil, nil, false
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Error("failed to initialize postgres pool, using memory index", "error", err)
		return nil, nil, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("postgres ping failed, using memory index", "error", err)
		pool.Close()
		return nil, nil, false
	}
	index := knowledgeindex.NewPostgres(pool)
	if err := index.Migrate(ctx); err != nil {
		logger.Error("postgres migration failed, using memory index", "error", err)
		pool.Close()
		return nil, nil, false
	}
	logger.Info("postgres knowledge index enabled")
	return index, pool.Close, true
}

func provideStore(index knowledge.Index, emb modelEmbedder, logger *slog.Logger, recorder *metrics.Recorder) *knowledge.Store {
	return knowledge.NewStore(index, emb, emb.Model(), logger, recorder)
}

func provideGateConfig(cfg *config.Config) knowledge.Config {
	return knowledge.Config{
		TopK:         cfg.Knowledge.TopK,
		Threshold:    cfg.Knowledge.Threshold,
		QueryTimeout: cfg.Knowledge.QueryTimeout,
	}
}

func provideLLM(cfg *config.Config, client *chatgpt.Client, logger *slog.Logger) support.LLM {
	switch cfg.LLM.Provider {
	case "openai":
		if client == nil {
			logger.Warn("llm provider openai without api key, answering from the knowledge base only")
			return nil
		}
		return llm.NewChatGPTLLM(client, cfg.LLM.Model, cfg.LLM.Temperature)
	case "ollama":
		logger.Info("ollama chat enabled", "host", cfg.LLM.OllamaHost, "model", cfg.LLM.Model)
		return llm.NewOllamaLLM(cfg.LLM.OllamaHost, cfg.LLM.Model)
	default:
		return nil
	}
}

func provideSessions(cfg *config.Config, logger *slog.Logger) (sessionBackend, func()) {
	if cfg.Sessions.Valkey.Enabled {
		opt, err := buildValkeyOptions(cfg.Sessions.Valkey.Addr)
		if err != nil {
			logger.Error("invalid valkey configuration, falling back to memory sessions", "error", err)
			return sessionstore.NewMemoryStore(), func() {}
		}
		client, err := valkey.NewClient(opt)
		if err != nil {
			logger.Error("failed to create valkey client, falling back to memory sessions", "error", err)
			return sessionstore.NewMemoryStore(), func() {}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
			logger.Error("valkey ping failed, falling back to memory sessions", "error", err)
			client.Close()
		} else {
			logger.Info("valkey sessions enabled", "addr", cfg.Sessions.Valkey.Addr)
			return sessionstore.NewValkeyStore(client, cfg.Sessions.Prefix, cfg.Sessions.TTL), client.Close
		}
	}
	return sessionstore.NewMemoryStore(), func() {}
}

func buildValkeyOptions(addr string) (valkey.ClientOption, error) {
	if strings.Contains(addr, "://") {
		return valkey.ParseURL(addr)
	}
	return valkey.ClientOption{InitAddress: []string{addr}}, nil
}

func provideSupportRepository(cfg *config.Config, logger *slog.Logger) (supportRepository, func()) {
	path := strings.TrimSpace(cfg.Storage.SQLitePath)
	if path == "" {
		logger.Info("sqlite path not set, using memory support repository")
		return supportrepo.NewMemoryRepository(), func() {}
	}
	repo, err := supportrepo.OpenSQLite(path)
	if err != nil {
		logger.Error("failed to open sqlite, using memory support repository", "path", path, "error", err)
		return supportrepo.NewMemoryRepository(), func() {}
	}
	logger.Info("sqlite support repository enabled", "path", path)
	return repo, func() { _ = repo.Close() }
}

func provideRatingArchive(cfg *config.Config, logger *slog.Logger) support.RatingArchive {
	a := cfg.Storage.Archive
	if !a.Enabled {
		return nil
	}
	archive, err := ratingarchive.NewS3Archive(ratingarchive.Config{
		Endpoint:  a.Endpoint,
		AccessKey: a.AccessKey,
		SecretKey: a.SecretKey,
		Bucket:    a.Bucket,
		Region:    a.Region,
		Prefix:    a.Prefix,
	}, logger)
	if err != nil {
		logger.Error("failed to initialize rating archive, ratings stay local only", "error", err)
		return nil
	}
	logger.Info("rating archive enabled", "bucket", a.Bucket)
	return archive
}

func provideSupportConfig(cfg *config.Config) support.Config {
	s := cfg.Support
	out := support.Config{
		Policy: support.Policy{
			Classification:  s.Classification,
			Recommendations: s.Recommendations,
			Ratings:         s.Ratings,
			OperatorHandoff: s.OperatorHandoff,
		},
		SystemPrompt: s.SystemPrompt,
	}
	if len(s.Links) > 0 {
		out.Links = make(map[string]support.Link, len(s.Links))
		for tag, link := range s.Links {
			out.Links[tag] = support.Link{Title: link.Title, URL: link.URL}
		}
	}
	return out
}

func provideSupportDependencies(
	gate *knowledge.Gate,
	chat support.LLM,
	sessions sessionBackend,
	repo supportRepository,
	archive support.RatingArchive,
	recorder *metrics.Recorder,
) support.Dependencies {
	return support.Dependencies{
		Retriever: gate,
		LLM:       chat,
		Sessions:  sessions,
		Desk:      sessions,
		Tickets:   repo,
		Ratings:   repo,
		Archive:   archive,
		Metrics:   recorder,
		Clock:     util.NowUTC,
	}
}

func provideHandler(cfg *config.Config, gate *knowledge.Gate, store *knowledge.Store, svc support.Service, logger *slog.Logger) *httpiface.Handler {
	return httpiface.NewHandler(gate, store, svc, cfg.Knowledge.CorpusPath, logger)
}

func provideCorpusWatcher(cfg *config.Config, store *knowledge.Store, logger *slog.Logger) *corpuswatch.Watcher {
	if !cfg.Knowledge.Watch {
		return nil
	}
	path := cfg.Knowledge.CorpusPath
	return corpuswatch.New(path, cfg.Knowledge.WatchDebounce, func(ctx context.Context) error {
		_, err := store.BuildFromFile(ctx, path)
		return err
	}, logger)
}
