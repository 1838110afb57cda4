package mcp

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/agenthub/config"
	"github.com/BaSui01/agenthub/store"
	"github.com/BaSui01/agenthub/types"
)

// =============================================================================
// MCP server manager
// =============================================================================

// clientName identifies this service in the MCP handshake.
const clientName = "agenthub"

// instance is the runtime state of one managed server.
type instance struct {
	config          types.MCPServerConfig
	status          types.ServerStatus
	lastError       string
	startedAt       *time.Time
	lastHealthCheck *time.Time

	// stdio runtime
	cmd    *exec.Cmd
	client *StdioClient
	waitCh chan error
	exited atomic.Bool

	// http runtime
	proxy *HTTPProxy

	// discovered capabilities
	tools     []types.MCPTool
	resources []types.MCPResource
}

// Manager supervises the lifecycle of registered MCP servers and proxies
// tool calls and resource reads to them.
type Manager struct {
	mu        sync.RWMutex
	store     *store.ServerStore
	instances map[string]*instance
	cfg       config.MCPConfig
	version   string
	logger    *zap.Logger
}

// NewManager creates a manager over the given server store.
func NewManager(st *store.ServerStore, cfg config.MCPConfig, version string, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:     st,
		instances: make(map[string]*instance),
		cfg:       cfg,
		version:   version,
		logger:    logger.With(zap.String("component", "mcp_manager")),
	}
}

// Start brings the named server to running state. Starting an already
// running server is a no-op.
func (m *Manager) Start(ctx context.Context, name string) error {
	cfg, err := m.store.Get(name)
	if err != nil {
		return err
	}
	if !cfg.Enabled {
		return types.NewError(types.ErrServerDisabled,
			fmt.Sprintf("server is disabled: %s", name))
	}

	m.mu.Lock()
	if inst, ok := m.instances[name]; ok {
		switch inst.status {
		case types.StatusRunning:
			m.mu.Unlock()
			return nil
		case types.StatusStarting:
			m.mu.Unlock()
			return types.NewError(types.ErrConflict,
				fmt.Sprintf("server is already starting: %s", name))
		}
	}
	cfg.ExpandEnv()
	inst := &instance{config: cfg, status: types.StatusStarting}
	m.instances[name] = inst
	m.mu.Unlock()

	m.logger.Info("starting mcp server",
		zap.String("server", name), zap.String("transport", string(cfg.Transport)))

	startCtx, cancel := context.WithTimeout(ctx, m.startTimeout(cfg))
	defer cancel()

	var startErr error
	switch cfg.Transport {
	case types.TransportStdio:
		startErr = m.startStdio(startCtx, inst)
	case types.TransportHTTP, types.TransportStreamableHTTP, types.TransportSSE:
		startErr = m.startHTTP(startCtx, inst)
	default:
		startErr = types.NewError(types.ErrTransportUnsupported,
			fmt.Sprintf("unsupported transport: %s", cfg.Transport))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if startErr != nil {
		inst.status = types.StatusError
		inst.lastError = startErr.Error()
		m.logger.Error("mcp server failed to start",
			zap.String("server", name), zap.Error(startErr))
		return startErr
	}

	now := time.Now().UTC()
	inst.status = types.StatusRunning
	inst.startedAt = &now
	inst.lastError = ""
	m.logger.Info("mcp server running",
		zap.String("server", name),
		zap.Int("tools", len(inst.tools)),
		zap.Int("resources", len(inst.resources)))
	return nil
}

// startStdio spawns the subprocess and performs the JSON-RPC handshake.
func (m *Manager) startStdio(ctx context.Context, inst *instance) error {
	cfg := inst.config

	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Env = os.Environ()
	for k, v := range cfg.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return types.NewError(types.ErrExecutionFailed,
			fmt.Sprintf("failed to spawn %s", cfg.Command)).WithCause(err)
	}

	inst.cmd = cmd
	inst.client = NewStdioClient(stdout, stdin, m.logger.With(zap.String("server", cfg.Name)))
	inst.waitCh = make(chan error, 1)
	go func() {
		err := cmd.Wait()
		inst.exited.Store(true)
		inst.waitCh <- err
	}()

	if _, err := inst.client.Initialize(ctx, clientName, m.version); err != nil {
		m.killProcess(inst)
		return err
	}

	m.discover(ctx, inst)
	return nil
}

// startHTTP verifies the external endpoint and discovers capabilities.
func (m *Manager) startHTTP(ctx context.Context, inst *instance) error {
	inst.proxy = NewHTTPProxy(inst.config.URL(), m.callTimeout(inst.config))
	if err := inst.proxy.Health(ctx); err != nil {
		return err
	}
	m.discover(ctx, inst)
	return nil
}

// discover caches the server's advertised tools and resources. Discovery
// failures are logged but do not fail the start.
func (m *Manager) discover(ctx context.Context, inst *instance) {
	tools, err := m.listToolsOn(ctx, inst)
	if err != nil {
		m.logger.Warn("tool discovery failed",
			zap.String("server", inst.config.Name), zap.Error(err))
	} else {
		inst.tools = tools
	}
	resources, err := m.listResourcesOn(ctx, inst)
	if err != nil {
		m.logger.Warn("resource discovery failed",
			zap.String("server", inst.config.Name), zap.Error(err))
	} else {
		inst.resources = resources
	}
}

// Stop brings the named server to stopped state. Stdio subprocesses get
// SIGTERM, then SIGKILL after the stop timeout. HTTP servers are only
// untracked since their process is externally managed.
func (m *Manager) Stop(ctx context.Context, name string) error {
	m.mu.Lock()
	inst, ok := m.instances[name]
	if !ok || inst.status == types.StatusStopped {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	m.logger.Info("stopping mcp server", zap.String("server", name))

	if inst.config.Transport == types.TransportStdio && inst.cmd != nil {
		m.terminateProcess(inst)
	}

	m.mu.Lock()
	inst.status = types.StatusStopped
	inst.startedAt = nil
	inst.tools = nil
	inst.resources = nil
	inst.cmd = nil
	inst.client = nil
	inst.proxy = nil
	inst.waitCh = nil
	m.mu.Unlock()
	return nil
}

// terminateProcess sends SIGTERM and escalates to SIGKILL.
func (m *Manager) terminateProcess(inst *instance) {
	if inst.client != nil {
		inst.client.Close()
	}
	if err := inst.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return
	}
	select {
	case <-inst.waitCh:
	case <-time.After(m.cfg.StopTimeout):
		m.logger.Warn("mcp server did not exit, killing",
			zap.String("server", inst.config.Name))
		m.killProcess(inst)
	}
}

func (m *Manager) killProcess(inst *instance) {
	if inst.client != nil {
		inst.client.Close()
	}
	if inst.cmd != nil && inst.cmd.Process != nil {
		_ = inst.cmd.Process.Kill()
	}
	if inst.waitCh != nil {
		select {
		case <-inst.waitCh:
		case <-time.After(time.Second):
		}
	}
}

// Restart stops and starts the named server.
func (m *Manager) Restart(ctx context.Context, name string) error {
	if err := m.Stop(ctx, name); err != nil {
		return err
	}
	return m.Start(ctx, name)
}

// Remove stops the server if needed and forgets its runtime state.
// The stored definition is untouched.
func (m *Manager) Remove(ctx context.Context, name string) error {
	if err := m.Stop(ctx, name); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.instances, name)
	m.mu.Unlock()
	return nil
}

// Status returns the lifecycle snapshot of one server. Registered servers
// that were never started report stopped.
func (m *Manager) Status(name string) (types.ServerState, error) {
	cfg, err := m.store.Get(name)
	if err != nil {
		return types.ServerState{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot(cfg, m.instances[name]), nil
}

// StatusAll returns snapshots for every registered server.
func (m *Manager) StatusAll() []types.ServerState {
	configs := m.store.List()
	m.mu.RLock()
	defer m.mu.RUnlock()
	states := make([]types.ServerState, 0, len(configs))
	for _, cfg := range configs {
		states = append(states, m.snapshot(cfg, m.instances[cfg.Name]))
	}
	return states
}

// snapshot assembles a ServerState. Callers must hold at least a read lock.
func (m *Manager) snapshot(cfg types.MCPServerConfig, inst *instance) types.ServerState {
	state := types.ServerState{
		Name:      cfg.Name,
		Status:    types.StatusStopped,
		Transport: cfg.Transport,
		Enabled:   cfg.Enabled,
	}
	if cfg.Transport != types.TransportStdio {
		state.URL = cfg.URL()
	}
	if inst == nil {
		return state
	}
	state.Status = inst.status
	state.Error = inst.lastError
	state.StartedAt = inst.startedAt
	state.LastHealthCheck = inst.lastHealthCheck
	state.Tools = len(inst.tools)
	state.Resources = len(inst.resources)
	if inst.cmd != nil && inst.cmd.Process != nil {
		state.PID = inst.cmd.Process.Pid
	}
	return state
}

// running returns the instance if it is in running state.
func (m *Manager) running(name string) (*instance, error) {
	if _, err := m.store.Get(name); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.instances[name]
	if !ok || inst.status != types.StatusRunning {
		return nil, types.NewError(types.ErrServerNotRunning,
			fmt.Sprintf("server is not running: %s", name))
	}
	return inst, nil
}

// CallTool proxies a tool invocation to the named server.
func (m *Manager) CallTool(ctx context.Context, server, tool string, args map[string]any) (any, error) {
	inst, err := m.running(server)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, m.callTimeout(inst.config))
	defer cancel()

	start := time.Now()
	var result any
	switch inst.config.Transport {
	case types.TransportStdio:
		result, err = inst.client.CallTool(ctx, tool, args)
	default:
		result, err = inst.proxy.CallTool(ctx, tool, args)
	}
	m.logger.Debug("mcp tool call",
		zap.String("server", server),
		zap.String("tool", tool),
		zap.Duration("duration", time.Since(start)),
		zap.Bool("success", err == nil))
	return result, err
}

// ReadResource proxies a resource read to the named server.
func (m *Manager) ReadResource(ctx context.Context, server, uri string) (any, error) {
	inst, err := m.running(server)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, m.callTimeout(inst.config))
	defer cancel()

	switch inst.config.Transport {
	case types.TransportStdio:
		return inst.client.ReadResource(ctx, uri)
	default:
		return inst.proxy.ReadResource(ctx, uri)
	}
}

// ListServerTools returns a live tool listing from the named server and
// refreshes the cached discovery.
func (m *Manager) ListServerTools(ctx context.Context, server string) ([]types.MCPTool, error) {
	inst, err := m.running(server)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, m.callTimeout(inst.config))
	defer cancel()

	tools, err := m.listToolsOn(ctx, inst)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	inst.tools = tools
	m.mu.Unlock()
	return tools, nil
}

// ListServerResources returns a live resource listing from the named server.
func (m *Manager) ListServerResources(ctx context.Context, server string) ([]types.MCPResource, error) {
	inst, err := m.running(server)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, m.callTimeout(inst.config))
	defer cancel()

	resources, err := m.listResourcesOn(ctx, inst)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	inst.resources = resources
	m.mu.Unlock()
	return resources, nil
}

// AllTools aggregates cached tools across all running servers, each tagged
// with its server name.
func (m *Manager) AllTools() []types.MCPTool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var tools []types.MCPTool
	for name, inst := range m.instances {
		if inst.status != types.StatusRunning {
			continue
		}
		for _, t := range inst.tools {
			t.Server = name
			tools = append(tools, t)
		}
	}
	return tools
}

// AllResources aggregates cached resources across all running servers.
func (m *Manager) AllResources() []types.MCPResource {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var resources []types.MCPResource
	for name, inst := range m.instances {
		if inst.status != types.StatusRunning {
			continue
		}
		for _, r := range inst.resources {
			r.Server = name
			resources = append(resources, r)
		}
	}
	return resources
}

func (m *Manager) listToolsOn(ctx context.Context, inst *instance) ([]types.MCPTool, error) {
	switch inst.config.Transport {
	case types.TransportStdio:
		return inst.client.ListTools(ctx)
	default:
		return inst.proxy.ListTools(ctx)
	}
}

func (m *Manager) listResourcesOn(ctx context.Context, inst *instance) ([]types.MCPResource, error) {
	switch inst.config.Transport {
	case types.TransportStdio:
		return inst.client.ListResources(ctx)
	default:
		return inst.proxy.ListResources(ctx)
	}
}

// AutoStart starts every enabled server marked auto_start, concurrently.
// Individual failures are logged, the first error is returned after all
// attempts finish.
func (m *Manager) AutoStart(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, cfg := range m.store.List() {
		if !cfg.Enabled || !cfg.AutoStart {
			continue
		}
		name := cfg.Name
		g.Go(func() error {
			if err := m.Start(ctx, name); err != nil {
				m.logger.Warn("auto start failed",
					zap.String("server", name), zap.Error(err))
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// RunHealthLoop probes running servers until the context is cancelled.
func (m *Manager) RunHealthLoop(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.HealthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.checkHealth(ctx)
		}
	}
}

// checkHealth verifies each running instance and demotes failures to error.
func (m *Manager) checkHealth(ctx context.Context) {
	m.mu.RLock()
	candidates := make(map[string]*instance, len(m.instances))
	for name, inst := range m.instances {
		if inst.status == types.StatusRunning || inst.status == types.StatusError {
			candidates[name] = inst
		}
	}
	m.mu.RUnlock()

	for name, inst := range candidates {
		m.updateHealth(name, inst, m.probe(ctx, inst))
	}
}

// updateHealth records a probe outcome. An errored http instance that
// answers again is promoted back to running; a dead stdio subprocess
// stays in error until it is explicitly restarted.
func (m *Manager) updateHealth(name string, inst *instance, healthy bool) {
	now := time.Now().UTC()
	m.mu.Lock()
	defer m.mu.Unlock()
	inst.lastHealthCheck = &now
	switch {
	case !healthy && inst.status == types.StatusRunning:
		inst.status = types.StatusError
		inst.lastError = "health check failed"
		m.logger.Warn("mcp server unhealthy", zap.String("server", name))
	case healthy && inst.status == types.StatusError &&
		inst.config.Transport != types.TransportStdio:
		inst.status = types.StatusRunning
		inst.lastError = ""
		m.logger.Info("mcp server recovered", zap.String("server", name))
	}
}

// HealthCheck probes the named server on demand and returns the updated
// snapshot. Servers that are neither running nor errored are reported
// as-is without probing.
func (m *Manager) HealthCheck(ctx context.Context, name string) (types.ServerState, error) {
	cfg, err := m.store.Get(name)
	if err != nil {
		return types.ServerState{}, err
	}

	m.mu.RLock()
	inst := m.instances[name]
	m.mu.RUnlock()

	if inst != nil && (inst.status == types.StatusRunning || inst.status == types.StatusError) {
		m.updateHealth(name, inst, m.probe(ctx, inst))
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot(cfg, inst), nil
}

// probe checks one instance. Stdio health is process liveness, http health
// is the health endpoint.
func (m *Manager) probe(ctx context.Context, inst *instance) bool {
	switch inst.config.Transport {
	case types.TransportStdio:
		return inst.cmd != nil && !inst.exited.Load()
	default:
		if inst.proxy == nil {
			return false
		}
		probeCtx, cancel := context.WithTimeout(ctx, m.callTimeout(inst.config))
		defer cancel()
		return inst.proxy.Health(probeCtx) == nil
	}
}

// Reload stops every managed server, re-reads the registry file, and
// forgets all runtime state. Servers are not restarted automatically.
func (m *Manager) Reload(ctx context.Context) error {
	m.Shutdown(ctx)
	m.mu.Lock()
	m.instances = make(map[string]*instance)
	m.mu.Unlock()
	return m.store.Reload()
}

// Shutdown stops all running servers.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.RLock()
	names := make([]string, 0, len(m.instances))
	for name := range m.instances {
		names = append(names, name)
	}
	m.mu.RUnlock()

	for _, name := range names {
		if err := m.Stop(ctx, name); err != nil {
			m.logger.Warn("failed to stop mcp server",
				zap.String("server", name), zap.Error(err))
		}
	}
}

func (m *Manager) startTimeout(cfg types.MCPServerConfig) time.Duration {
	if cfg.Timeout > 0 {
		return cfg.Timeout
	}
	return m.cfg.StartTimeout
}

func (m *Manager) callTimeout(cfg types.MCPServerConfig) time.Duration {
	if cfg.Timeout > 0 {
		return cfg.Timeout
	}
	return m.cfg.CallTimeout
}
