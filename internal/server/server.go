package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/agenthands/padi/internal/config"
	"github.com/agenthands/padi/internal/core"
	"github.com/agenthands/padi/internal/core/dedupe"
	"github.com/agenthands/padi/internal/core/engine"
	"github.com/agenthands/padi/internal/core/solution"
	"github.com/agenthands/padi/internal/driver"
	"github.com/agenthands/padi/internal/kb"
	"github.com/agenthands/padi/internal/llm"
	"github.com/agenthands/padi/internal/logging"
	"github.com/agenthands/padi/internal/store"
	"github.com/agenthands/padi/internal/store/memstore"
	"github.com/agenthands/padi/internal/store/sqlite"
)

type Server struct {
	Expert  *core.Expert
	Backend store.Backend
	KB      *kb.Cache

	cfg     *config.Config
	logger  *zap.Logger
	closers []func() error
}

// New assembles a server from already built parts.
func New(cfg *config.Config, backend store.Backend, cache *kb.Cache, expert *core.Expert, logger *zap.Logger) *Server {
	return &Server{
		Expert:  expert,
		Backend: backend,
		KB:      cache,
		cfg:     cfg,
		logger:  logging.OrNop(logger),
	}
}

// NewServer opens the configured backend, seeds it when empty and wires the
// diagnosis service.
func NewServer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	logger = logging.OrNop(logger)

	backend, err := OpenBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := Bootstrap(ctx, backend, cfg.Store.SeedFile, logger); err != nil {
		backend.Close(ctx)
		return nil, err
	}

	llmClient, err := llm.NewClient(ctx, cfg.LLM, logger)
	if err != nil {
		backend.Close(ctx)
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}

	var solutions *solution.Generator
	if cfg.Solution.Enabled {
		solutions, err = solution.NewGenerator(llmClient, cfg.Solution.Prompt, cfg.LLM.Timeout(), logger)
		if err != nil {
			backend.Close(ctx)
			return nil, err
		}
	}

	cache := kb.NewCache(backend, cfg.Cache.TTL())
	expert := core.NewExpert(
		cache,
		backend,
		engine.New(cfg.Engine.ToEngine()),
		solutions,
		dedupe.NewDeduplicator(backend, cfg.Limits.DuplicateWindow()),
		core.Options{
			MinSelectedSymptoms: cfg.Engine.MinSelectedSymptoms,
			MaxDiagnosesPerDay:  cfg.Limits.MaxDiagnosesPerDay,
			Retention:           cfg.Limits.Retention(),
		},
		logger,
	)

	s := New(cfg, backend, cache, expert, logger)
	if c, ok := llmClient.(interface{ Close() error }); ok {
		s.closers = append(s.closers, c.Close)
	}
	logger.Info("diagnosis service ready",
		zap.String("store", cfg.Store.Driver),
		zap.String("llm", llm.ProviderName(llmClient)),
		zap.Bool("solutions", cfg.Solution.Enabled))
	return s, nil
}

// OpenBackend connects the store named by cfg.Store.Driver.
func OpenBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Backend, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.SQLitePath
		if path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
			}
		}
		return sqlite.Open(ctx, path, logger)
	case "memgraph":
		d, err := driver.NewMemgraphDriver(ctx, cfg.Memgraph.URI, cfg.Memgraph.User, cfg.Memgraph.Password, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to memgraph: %w", err)
		}
		if err := d.BuildIndices(ctx); err != nil {
			logger.Warn("failed to build memgraph indices", zap.Error(err))
		}
		return driver.NewGraphStore(d, logger), nil
	case "memory":
		return memstore.New(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// Bootstrap loads seedFile into backend when the backend has no active
// symptoms yet. An empty seedFile skips seeding.
func Bootstrap(ctx context.Context, backend store.Backend, seedFile string, logger *zap.Logger) error {
	if seedFile == "" {
		return nil
	}
	symptoms, err := backend.ActiveSymptoms(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", engine.ErrKnowledgeBaseUnavailable, err)
	}
	if len(symptoms) > 0 {
		return nil
	}

	seed, err := kb.LoadSeedFile(seedFile)
	if err != nil {
		return err
	}
	if err := backend.Seed(ctx, seed); err != nil {
		return fmt.Errorf("failed to seed knowledge base: %w", err)
	}
	logging.OrNop(logger).Info("knowledge base seeded",
		zap.String("file", seedFile),
		zap.Int("symptoms", len(seed.Symptoms)),
		zap.Int("diseases", len(seed.Diseases)),
		zap.Int("rules", len(seed.Rules)))
	return nil
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.New()
	r.Use(
		RequestID(),
		AccessLog(s.logger),
		gin.Recovery(),
		BodyLimit(s.cfg.Server.BodyLimitBytes),
	)
	if cc, ok := corsConfig(s.cfg.Server.CORSAllowedOrigins); ok {
		r.Use(cors.New(cc))
	}

	r.GET("/health", s.Health)
	r.GET("/ready", s.Ready)

	for _, prefix := range []string{"", "/api"} {
		g := r.Group(prefix)
		g.POST("/diagnosis/start", s.StartDiagnosis)
		g.GET("/symptoms", s.ListSymptoms)
		g.GET("/diseases", s.ListDiseases)
		g.GET("/diseases/:id", s.GetDisease)
		g.GET("/history", s.ListHistory)
		g.GET("/history/:id", s.GetHistory)
	}
	return r
}

// corsConfig reports false when no origin is allowed. "*" allows every origin.
func corsConfig(origins []string) (cors.Config, bool) {
	if len(origins) == 0 {
		return cors.Config{}, false
	}
	cc := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", HeaderUserID, HeaderRequestID},
		ExposeHeaders: []string{HeaderRequestID},
		MaxAge:        12 * time.Hour,
	}
	if slices.Contains(origins, "*") {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = origins
		cc.AllowCredentials = true
	}
	return cc, true
}

// Close releases the backend and any LLM client resources.
func (s *Server) Close(ctx context.Context) error {
	errs := []error{s.Backend.Close(ctx)}
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}
