package mcpmgr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vikashloomba/mcp-tool-gateway-go/pkg/paths"
	"github.com/vikashloomba/mcp-tool-gateway-go/pkg/servers"
)

// ConnectionStatus represents the lifecycle of a managed connection.
type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
)

// shutdownTimeout bounds the cleanup of partially started servers after a
// failed Initialize.
const shutdownTimeout = 5 * time.Second

// ServerSummary aggregates status information for a managed server.
type ServerSummary struct {
	Key    string
	Name   string
	Status ConnectionStatus
	Tools  []string
}

// Manager is the connection registry: one entry per configured server, each
// holding the Channel used for tool calls.
type Manager struct {
	mu sync.RWMutex

	options ManagerOptions
	logger  *slog.Logger

	order  []string
	states map[string]*managedState

	initialized bool
	ready       bool
}

type managedState struct {
	desc servers.ServerDescriptor

	status  ConnectionStatus
	session *mcp.ClientSession
	channel *sessionChannel

	// closing is set while the manager itself is tearing the session down,
	// so the monitor does not report the exit as a failure.
	closing bool
}

// NewManager constructs an empty Manager. Callers can provide nil options to
// fall back to defaults.
func NewManager(opts *ManagerOptions) *Manager {
	options := opts.normalized()
	return &Manager{
		options: options,
		logger:  options.Logger,
		states:  make(map[string]*managedState),
	}
}

// Initialize launches and connects every descriptor in order. It succeeds
// only if all servers connect and advertise their declared tools; otherwise
// it closes whatever it opened and returns the first failure, usually an
// *InitError. Initialize may be called once.
func (m *Manager) Initialize(ctx context.Context, descriptors []servers.ServerDescriptor) error {
	registry, err := servers.NewRegistry(descriptors...)
	if err != nil {
		return fmt.Errorf("mcpmgr: %w", err)
	}

	m.mu.Lock()
	if m.initialized {
		m.mu.Unlock()
		return ErrAlreadyInitialized
	}
	m.initialized = true
	for _, desc := range registry.Descriptors() {
		m.order = append(m.order, desc.Key)
		m.states[desc.Key] = &managedState{desc: desc, status: StatusDisconnected}
	}
	m.mu.Unlock()

	for _, desc := range registry.Descriptors() {
		if err := m.connect(ctx, desc); err != nil {
			m.logInitError(desc, err)
			m.abortInitialize()
			return err
		}
	}

	m.mu.Lock()
	m.ready = true
	m.mu.Unlock()
	m.logger.Info("all servers connected", "count", registry.Len())
	return nil
}

func (m *Manager) connect(ctx context.Context, desc servers.ServerDescriptor) error {
	path, err := m.options.Resolver.Resolve(desc)
	if err != nil {
		return &InitError{ServerKey: desc.Key, Stage: StageResolve, Err: err}
	}

	connectCtx, cancel := context.WithTimeout(ctx, m.options.ConnectTimeout)
	defer cancel()

	transport, err := m.options.Launcher.Launch(connectCtx, desc, path)
	if err != nil {
		return &InitError{ServerKey: desc.Key, Stage: StageLaunch, Err: err}
	}
	if logger := m.rpcLogger(); logger != nil {
		transport = &loggingTransport{serverKey: desc.Key, delegate: transport, logger: logger}
	}

	clientOpts := m.options.ClientOptions
	client := mcp.NewClient(&mcp.Implementation{
		Name:    desc.Name + "-client",
		Version: m.effectiveClientVersion(desc),
	}, &clientOpts)
	capabilities := servers.Capabilities(desc.Tools)

	m.setStatus(desc.Key, StatusConnecting)
	session, err := client.Connect(connectCtx, transport, nil)
	if err != nil {
		m.setStatus(desc.Key, StatusDisconnected)
		return &InitError{ServerKey: desc.Key, Stage: StageConnect, Err: err}
	}
	if err := verifyCapabilities(connectCtx, session, capabilities); err != nil {
		_ = session.Close()
		m.setStatus(desc.Key, StatusDisconnected)
		return &InitError{ServerKey: desc.Key, Stage: StageCapabilities, Err: err}
	}

	m.mu.Lock()
	state := m.states[desc.Key]
	state.session = session
	state.channel = &sessionChannel{key: desc.Key, session: session}
	state.status = StatusConnected
	m.mu.Unlock()

	go m.monitorSession(desc.Key, session)
	m.logger.Info("connected to server", "server", desc.Key, "name", desc.Name, "path", path)
	return nil
}

func verifyCapabilities(ctx context.Context, session *mcp.ClientSession, capabilities servers.CapabilitySet) error {
	var (
		advertised []string
		cursor     string
	)
	for {
		res, err := session.ListTools(ctx, &mcp.ListToolsParams{Cursor: cursor})
		if err != nil {
			return fmt.Errorf("list tools: %w", err)
		}
		for _, tool := range res.Tools {
			advertised = append(advertised, tool.Name)
		}
		if res.NextCursor == "" {
			break
		}
		cursor = res.NextCursor
	}
	if missing := capabilities.Missing(advertised); len(missing) > 0 {
		return fmt.Errorf("declared tools not advertised: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (m *Manager) logInitError(desc servers.ServerDescriptor, err error) {
	var pathErr *paths.ServerPathError
	if errors.As(err, &pathErr) {
		m.logger.Error("server path error", "server", desc.Key, "error", pathErr.Message)
		return
	}
	m.logger.Error("failed to initialize server", "server", desc.Key, "error", err)
}

func (m *Manager) abortInitialize() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := m.DisconnectAllServers(ctx); err != nil {
		m.logger.Warn("closing servers after failed initialization", "error", err)
	}
}

func (m *Manager) monitorSession(key string, session *mcp.ClientSession) {
	waitErr := session.Wait()

	m.mu.Lock()
	expected := true
	if st, ok := m.states[key]; ok && st.session == session {
		expected = st.closing
		st.session = nil
		st.channel = nil
		st.closing = false
		st.status = StatusDisconnected
	}
	m.mu.Unlock()

	if expected {
		return
	}
	err := waitErr
	if err == nil {
		err = fmt.Errorf("mcpmgr: session for %q ended", key)
	}
	m.logger.Warn("server session ended", "server", key, "error", err)
	if m.options.OnError != nil {
		m.options.OnError(key, err)
	}
}

func (m *Manager) effectiveClientVersion(desc servers.ServerDescriptor) string {
	if m.options.ClientVersion != "" {
		return m.options.ClientVersion
	}
	if desc.Version != "" {
		return desc.Version
	}
	return "1.0.0"
}

func (m *Manager) setStatus(key string, status ConnectionStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.states[key]; ok {
		st.status = status
	}
}

// Ready reports whether Initialize has completed successfully.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ready
}

// Lookup returns the Channel for key. It reports false before Initialize
// has succeeded, for unknown keys, and for servers whose session has ended.
func (m *Manager) Lookup(key string) (Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.ready {
		return nil, false
	}
	st, ok := m.states[key]
	if !ok || st.channel == nil || st.status != StatusConnected {
		return nil, false
	}
	return st.channel, true
}

// Status returns the connection status of key. Unknown keys are reported
// as disconnected.
func (m *Manager) Status(key string) ConnectionStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if st, ok := m.states[key]; ok {
		return st.status
	}
	return StatusDisconnected
}

// ListServers returns the configured server keys in declaration order.
func (m *Manager) ListServers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...)
}

// Descriptor returns the descriptor registered under key.
func (m *Manager) Descriptor(key string) (servers.ServerDescriptor, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.states[key]
	if !ok {
		return servers.ServerDescriptor{}, false
	}
	return st.desc, true
}

// GetServerSummaries returns status snapshots for all configured servers in
// declaration order.
func (m *Manager) GetServerSummaries() []ServerSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ServerSummary, 0, len(m.order))
	for _, key := range m.order {
		st := m.states[key]
		out = append(out, ServerSummary{
			Key:    key,
			Name:   st.desc.Name,
			Status: st.status,
			Tools:  st.desc.ToolNames(),
		})
	}
	return out
}

// DisconnectServer closes the session for the given server key.
func (m *Manager) DisconnectServer(ctx context.Context, key string) error {
	m.mu.Lock()
	state, ok := m.states[key]
	if !ok || state.session == nil {
		m.mu.Unlock()
		return nil
	}
	session := state.session
	state.closing = true
	state.channel = nil
	state.status = StatusDisconnected
	m.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}
	done := make(chan struct{})
	var closeErr error
	go func() {
		closeErr = session.Close()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		if closeErr != nil {
			return fmt.Errorf("mcpmgr: close %s: %w", key, closeErr)
		}
		return nil
	}
}

// DisconnectAllServers closes sessions for all servers.
func (m *Manager) DisconnectAllServers(ctx context.Context) error {
	ids := m.ListServers()
	var errs []error
	for _, id := range ids {
		if err := m.DisconnectServer(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
