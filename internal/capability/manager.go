package capability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/Cyclone1070/agentcore/internal/config"
	"github.com/Cyclone1070/agentcore/internal/tool"
)

// ServerState summarizes one configured server.
type ServerState struct {
	Name      string
	Status    Status
	Tools     []ToolInfo
	Resources []ResourceInfo
	Prompts   []PromptInfo
}

// Manager owns one Client per configured server name.
type Manager struct {
	servers map[string]config.ServerConfig
	opts    ClientOptions
	logger  *slog.Logger

	mu          sync.Mutex
	clients     map[string]*Client
	subscribers []func(Notification)
}

// NewManager creates a manager for the given server configurations.
// Nothing is spawned until Connect.
func NewManager(servers map[string]config.ServerConfig, opts ClientOptions) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cp := make(map[string]config.ServerConfig, len(servers))
	for name, s := range servers {
		cp[name] = s
	}
	return &Manager{
		servers: cp,
		opts:    opts,
		logger:  logger,
		clients: make(map[string]*Client),
	}
}

// Names returns the configured server names, sorted.
func (m *Manager) Names() []string {
	names := make([]string, 0, len(m.servers))
	for n := range m.servers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Connect connects the named server. A connected or connecting server
// yields ErrAlreadyConnected; disconnect it first.
func (m *Manager) Connect(ctx context.Context, name string) error {
	cfg, ok := m.servers[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownServer, name)
	}

	m.mu.Lock()
	c, exists := m.clients[name]
	if exists {
		if s := c.Status(); s == StatusConnected || s == StatusConnecting {
			m.mu.Unlock()
			return fmt.Errorf("%s: %w", name, ErrAlreadyConnected)
		}
	} else {
		c = NewClient(name, cfg, m.opts)
		for _, fn := range m.subscribers {
			c.Subscribe(fn)
		}
		m.clients[name] = c
	}
	m.mu.Unlock()

	return c.Connect(ctx)
}

// ConnectAll connects every configured server that is not already connected.
// One server failing does not stop the others; failures are joined.
func (m *Manager) ConnectAll(ctx context.Context) error {
	var errs []error
	for _, name := range m.Names() {
		if c, ok := m.Client(name); ok && c.Status() == StatusConnected {
			continue
		}
		if err := m.Connect(ctx, name); err != nil {
			m.logger.Warn("capability server failed to connect", "server", name, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Disconnect disconnects the named server.
func (m *Manager) Disconnect(name string) error {
	c, ok := m.Client(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownServer, name)
	}
	return c.Disconnect()
}

// DisconnectAll disconnects every server.
func (m *Manager) DisconnectAll() {
	m.mu.Lock()
	clients := make([]*Client, 0, len(m.clients))
	for _, c := range m.clients {
		clients = append(clients, c)
	}
	m.mu.Unlock()

	for _, c := range clients {
		_ = c.Disconnect()
	}
}

// Subscribe registers fn for notifications from every server, including
// servers connected later. fn runs on a reader goroutine and must not block.
func (m *Manager) Subscribe(fn func(Notification)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, fn)
	for _, c := range m.clients {
		c.Subscribe(fn)
	}
}

// RefreshTools re-discovers the tools of a connected server.
func (m *Manager) RefreshTools(ctx context.Context, name string) error {
	c, err := m.connected(name)
	if err != nil {
		return err
	}
	return c.RefreshTools(ctx)
}

// GetPrompt expands a prompt template of a connected server.
func (m *Manager) GetPrompt(ctx context.Context, server, name string, args map[string]string) (*GetPromptResult, error) {
	c, err := m.connected(server)
	if err != nil {
		return nil, err
	}
	return c.GetPrompt(ctx, name, args)
}

// Client returns the client for name if one has been created.
func (m *Manager) Client(name string) (*Client, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[name]
	return c, ok
}

// States reports every configured server, connected or not.
func (m *Manager) States() []ServerState {
	names := m.Names()
	out := make([]ServerState, 0, len(names))
	for _, n := range names {
		st := ServerState{Name: n, Status: StatusDisconnected}
		if c, ok := m.Client(n); ok {
			st.Status = c.Status()
			st.Tools = c.Tools()
			st.Resources = c.Resources()
			st.Prompts = c.Prompts()
		}
		out = append(out, st)
	}
	return out
}

// Tools returns a tool for every tool discovered on a connected server,
// plus the resource tools when any server exposes resources.
func (m *Manager) Tools() []tool.Tool {
	var out []tool.Tool
	var withResources bool
	for _, n := range m.Names() {
		c, ok := m.Client(n)
		if !ok || c.Status() != StatusConnected {
			continue
		}
		for _, info := range c.Tools() {
			out = append(out, newRemoteTool(c, info))
		}
		if len(c.Resources()) > 0 {
			withResources = true
		}
	}
	if withResources {
		out = append(out, newListResourcesTool(m), newReadResourceTool(m))
	}
	return out
}

func (m *Manager) connected(name string) (*Client, error) {
	c, ok := m.Client(name)
	if !ok || c.Status() != StatusConnected {
		return nil, fmt.Errorf("%s: %w", name, ErrNotConnected)
	}
	return c, nil
}
