package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"go.uber.org/zap"

	"github.com/BaSui01/agenthub/agent"
	"github.com/BaSui01/agenthub/api"
	"github.com/BaSui01/agenthub/api/handlers"
	"github.com/BaSui01/agenthub/config"
	"github.com/BaSui01/agenthub/internal/history"
	"github.com/BaSui01/agenthub/internal/metrics"
	"github.com/BaSui01/agenthub/internal/server"
	"github.com/BaSui01/agenthub/internal/telemetry"
	"github.com/BaSui01/agenthub/llm"
	"github.com/BaSui01/agenthub/mcp"
	"github.com/BaSui01/agenthub/memory"
	"github.com/BaSui01/agenthub/providers"
	"github.com/BaSui01/agenthub/store"
	"github.com/BaSui01/agenthub/types"
)

// Server assembles the stores, the MCP supervisor, the executor, and
// the HTTP surface, and owns their lifecycles.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger
	otel   *telemetry.Providers

	agents       *store.AgentStore
	servers      *store.ServerStore
	agentMetrics *store.MetricsStore
	memory       *memory.Manager
	mcpManager   *mcp.Manager
	executor     *agent.Executor
	history      *history.Store
	collector    *metrics.Collector

	httpManager    *server.Manager
	metricsManager *server.Manager

	// backgroundCtx scopes the MCP health loop and rate limiter cleanup
	backgroundCtx    context.Context
	backgroundCancel context.CancelFunc
}

// NewServer creates an unstarted server.
func NewServer(cfg *config.Config, logger *zap.Logger, otel *telemetry.Providers) *Server {
	return &Server{cfg: cfg, logger: logger, otel: otel}
}

// Start brings up storage, supervision, and both HTTP listeners.
func (s *Server) Start() error {
	s.collector = metrics.NewCollector("agenthub", s.logger)
	s.backgroundCtx, s.backgroundCancel = context.WithCancel(context.Background())

	if err := s.initStores(); err != nil {
		return err
	}
	if err := s.initMemory(); err != nil {
		return err
	}
	s.initMCP()
	if err := s.initHistory(); err != nil {
		return err
	}
	s.initExecutor()

	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("all servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
	)
	return nil
}

func (s *Server) initStores() error {
	if err := os.MkdirAll(s.cfg.Storage.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	var err error
	if s.agents, err = store.NewAgentStore(s.cfg.AgentsPath(), s.logger); err != nil {
		return fmt.Errorf("failed to open agent store: %w", err)
	}
	if s.servers, err = store.NewServerStore(s.cfg.ServersPath(), s.logger); err != nil {
		return fmt.Errorf("failed to open server store: %w", err)
	}
	if s.agentMetrics, err = store.NewMetricsStore(s.cfg.MetricsPath(), s.logger); err != nil {
		return fmt.Errorf("failed to open metrics store: %w", err)
	}
	return nil
}

func (s *Server) initMemory() error {
	var (
		backing memory.Store
		err     error
	)
	switch s.cfg.Memory.Backend {
	case "redis":
		backing, err = memory.NewRedisStore(context.Background(), s.cfg.Redis, s.logger)
	default:
		backing, err = memory.NewFileStore(s.cfg.MemoryDir(), s.logger)
	}
	if err != nil {
		return fmt.Errorf("failed to open %s memory backend: %w", s.cfg.Memory.Backend, err)
	}

	s.memory = memory.NewManager(backing, s.newSummarizer(), s.logger)
	return nil
}

// newSummarizer builds the summary-policy model client from the service
// defaults. Agents with a summary memory policy degrade to the buffer
// policy when no service credentials are configured.
func (s *Server) newSummarizer() memory.Summarizer {
	if s.cfg.LLM.APIKey == "" {
		s.logger.Info("no service LLM credentials, memory summarization disabled")
		return nil
	}

	llmCfg := types.DefaultLLMConfig()
	if s.cfg.LLM.DefaultProvider != "" {
		llmCfg.Provider = types.LLMProvider(s.cfg.LLM.DefaultProvider)
	}

	provider, err := providers.New(llmCfg, s.cfg.LLM, s.logger)
	if err != nil {
		s.logger.Warn("failed to create summarizer provider", zap.Error(err))
		return nil
	}
	return agent.NewProviderSummarizer(provider, llmCfg.Model)
}

func (s *Server) initMCP() {
	s.mcpManager = mcp.NewManager(s.servers, s.cfg.MCP, Version, s.logger)

	if err := s.mcpManager.AutoStart(s.backgroundCtx); err != nil {
		s.logger.Warn("some MCP servers failed to auto-start", zap.Error(err))
	}
	go s.mcpManager.RunHealthLoop(s.backgroundCtx)
}

func (s *Server) initHistory() error {
	if !s.cfg.History.Enabled {
		s.logger.Info("execution history disabled")
		return nil
	}
	hist, err := history.Open(s.cfg.HistoryPath(), s.cfg.History.MaxRecords, s.logger)
	if err != nil {
		return fmt.Errorf("failed to open execution history: %w", err)
	}
	s.history = hist
	return nil
}

func (s *Server) initExecutor() {
	serviceLLM := s.cfg.LLM
	factory := func(llmCfg types.LLMConfig) (llm.Provider, error) {
		return providers.New(llmCfg, serviceLLM, s.logger)
	}

	opts := agent.Options{
		Agents:    s.agents,
		Memory:    s.memory,
		Metrics:   s.agentMetrics,
		Bridge:    s.mcpManager,
		Providers: factory,
		Observer:  s.collector,
		Logger:    s.logger,
	}
	if s.history != nil {
		opts.History = s.history
	}
	s.executor = agent.NewExecutor(opts)
}

func (s *Server) startHTTPServer() error {
	health := handlers.NewHealthHandler(s.logger)
	if s.history != nil {
		health.RegisterCheck(handlers.CheckFunc{
			CheckName: "history",
			Fn:        s.history.Ping,
		})
	}

	mcpTools := func() []api.ToolInfo {
		tools := s.mcpManager.AllTools()
		infos := make([]api.ToolInfo, 0, len(tools))
		for _, tool := range tools {
			infos = append(infos, api.ToolInfo{
				Name:        tool.Name,
				Description: tool.Description,
				Source:      "mcp",
				Server:      tool.Server,
			})
		}
		return infos
	}

	routerHandlers := api.Handlers{
		Health:    health,
		Agents:    handlers.NewAgentHandler(s.agents, s.agentMetrics, s.logger),
		Execute:   handlers.NewExecuteHandler(s.executor, s.logger),
		Tools:     handlers.NewToolsHandler(mcpTools, s.logger),
		Memory:    handlers.NewMemoryHandler(s.agents, s.memory, s.logger),
		MCP:       handlers.NewMCPHandler(s.servers, s.mcpManager, s.logger),
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
	}
	if s.history != nil {
		routerHandlers.History = handlers.NewHistoryHandler(s.history, s.logger)
	}

	mux := api.NewRouter(routerHandlers)

	skipAuthPaths := []string{"/health", "/healthz", "/ready", "/version"}
	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.collector),
		CORS(s.cfg.Server.CORSAllowedOrigins),
	}
	if s.cfg.Server.RateLimitRPS > 0 {
		middlewares = append(middlewares,
			RateLimiter(s.backgroundCtx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger))
	}
	if s.cfg.Auth.Enabled {
		middlewares = append(middlewares,
			Auth(s.cfg.Auth, skipAuthPaths, s.logger))
	}

	handler := Chain(mux, middlewares...)

	serverConfig := server.Config{
		Addr:            fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}
	s.httpManager = server.NewManager(handler, serverConfig, s.logger)
	return s.httpManager.Start()
}

func (s *Server) startMetricsServer() error {
	if s.cfg.Server.MetricsPort == 0 {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", s.collector.Handler())

	serverConfig := server.Config{
		Addr:            fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}
	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)
	return s.metricsManager.Start()
}

// WaitForShutdown blocks until a shutdown signal arrives, then tears
// everything down in dependency order.
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

// Shutdown stops the listeners, the MCP subprocesses, and storage.
func (s *Server) Shutdown() {
	s.logger.Info("starting graceful shutdown")
	ctx := context.Background()

	if s.backgroundCancel != nil {
		s.backgroundCancel()
	}
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("metrics server shutdown error", zap.Error(err))
		}
	}
	if s.mcpManager != nil {
		s.mcpManager.Shutdown(ctx)
	}
	if s.history != nil {
		if err := s.history.Close(); err != nil {
			s.logger.Error("history close error", zap.Error(err))
		}
	}
	if s.otel != nil {
		if err := s.otel.Shutdown(ctx); err != nil {
			s.logger.Warn("telemetry shutdown error", zap.Error(err))
		}
	}

	s.logger.Info("graceful shutdown completed")
}
