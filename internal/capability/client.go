package capability

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/Cyclone1070/agentcore/internal/config"
)

// DefaultRequestTimeout bounds every request without its own deadline.
const DefaultRequestTimeout = 30 * time.Second

// DefaultProtocolVersion is sent in initialize when none is configured.
const DefaultProtocolVersion = "2024-11-05"

// disconnectWait bounds how long Disconnect waits for the reader to finish
// after killing the server.
const disconnectWait = 5 * time.Second

// maxLineSize caps one inbound line.
const maxLineSize = 16 * 1024 * 1024

// Status is the lifecycle state of a Client.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusError        Status = "error"
)

// ClientInfo identifies this client in initialize.
var ClientInfo = Implementation{Name: "agentcore", Version: "0.1.0"}

// ClientOptions configures a Client. Zero values select defaults.
type ClientOptions struct {
	Spawner         Spawner
	Timeout         time.Duration
	ProtocolVersion string
	Logger          *slog.Logger
}

type reply struct {
	msg *inbound
	err error
}

// Client speaks newline-delimited JSON-RPC to one server process over its
// stdio. Requests are correlated by strictly increasing ids; a request is
// settled exactly once, by its response, its timeout, cancellation or
// process exit, whichever removes it from the pending table first.
type Client struct {
	name    string
	cfg     config.ServerConfig
	spawn   Spawner
	timeout time.Duration
	version string
	logger  *slog.Logger

	writeMu sync.Mutex // serializes lines on stdin

	mu          sync.Mutex
	status      Status
	proc        Process
	done        chan struct{} // closed when the current reader exits
	nextID      int64
	pending     map[int64]chan reply
	subscribers map[int]func(Notification)
	nextSub     int
	server      InitializeResult
	tools       []ToolInfo
	resources   []ResourceInfo
	prompts     []PromptInfo
}

// NewClient creates a disconnected client for the named server.
func NewClient(name string, cfg config.ServerConfig, opts ClientOptions) *Client {
	c := &Client{
		name:        name,
		cfg:         cfg,
		spawn:       opts.Spawner,
		timeout:     opts.Timeout,
		version:     opts.ProtocolVersion,
		logger:      opts.Logger,
		status:      StatusDisconnected,
		pending:     make(map[int64]chan reply),
		subscribers: make(map[int]func(Notification)),
	}
	if c.spawn == nil {
		c.spawn = ExecSpawner
	}
	if c.timeout <= 0 {
		c.timeout = DefaultRequestTimeout
	}
	if c.version == "" {
		c.version = DefaultProtocolVersion
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	c.logger = c.logger.With("server", name)
	return c
}

// Name returns the server name.
func (c *Client) Name() string {
	return c.name
}

// Status returns the current lifecycle state.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Connect spawns the server, performs the initialize handshake and discovers
// tools, resources and prompts. Discovery failures leave that list empty.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.status == StatusConnected || c.status == StatusConnecting {
		c.mu.Unlock()
		return fmt.Errorf("%s: %w", c.name, ErrAlreadyConnected)
	}
	c.status = StatusConnecting
	c.tools, c.resources, c.prompts = nil, nil, nil
	c.mu.Unlock()
	c.logger.Info("connecting capability server", "command", c.cfg.Command)

	proc, err := c.spawn(ctx, c.cfg)
	if err != nil {
		c.setStatus(StatusError)
		return &SpawnError{Server: c.name, Command: c.cfg.Command, Cause: err}
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.proc = proc
	c.done = done
	c.mu.Unlock()

	go c.readLoop(proc, done)
	go c.drainStderr(proc.Stderr())

	var init InitializeResult
	err = c.call(ctx, MethodInitialize, initializeParams{
		ProtocolVersion: c.version,
		Capabilities:    map[string]any{},
		ClientInfo:      ClientInfo,
	}, &init)
	if err != nil {
		c.teardown(proc, StatusError)
		return fmt.Errorf("initialize %s: %w", c.name, err)
	}

	if err := c.Notify(MethodInitialized, nil); err != nil {
		c.teardown(proc, StatusError)
		return fmt.Errorf("initialized notification %s: %w", c.name, err)
	}

	var tl toolsListResult
	if err := c.call(ctx, MethodToolsList, nil, &tl); err != nil {
		c.logger.Debug("tools/list unavailable", "error", err)
	}
	var rl resourcesListResult
	if err := c.call(ctx, MethodResourcesList, nil, &rl); err != nil {
		c.logger.Debug("resources/list unavailable", "error", err)
	}
	var pl promptsListResult
	if err := c.call(ctx, MethodPromptsList, nil, &pl); err != nil {
		c.logger.Debug("prompts/list unavailable", "error", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.proc != proc {
		// Exited or disconnected during discovery.
		return fmt.Errorf("connect %s: %w", c.name, ErrDisconnected)
	}
	c.server = init
	c.tools = tl.Tools
	c.resources = rl.Resources
	c.prompts = pl.Prompts
	c.status = StatusConnected
	c.logger.Info("capability server connected",
		"server_name", init.ServerInfo.Name, "protocol", init.ProtocolVersion,
		"tools", len(c.tools), "resources", len(c.resources), "prompts", len(c.prompts))
	return nil
}

// Disconnect rejects pending requests with ErrDisconnected and terminates
// the process. Disconnecting a disconnected client is a no-op.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	proc, done := c.proc, c.done
	c.mu.Unlock()
	if proc == nil {
		return nil
	}
	c.teardown(proc, StatusDisconnected)
	select {
	case <-done:
	case <-time.After(disconnectWait):
		c.logger.Warn("capability server output still open after kill", "waited", disconnectWait)
	}
	c.logger.Info("capability server disconnected")
	return nil
}

// teardown detaches proc, rejects everything pending and kills it. It is a
// no-op if proc is no longer the current process.
func (c *Client) teardown(proc Process, status Status) {
	c.mu.Lock()
	if c.proc != proc {
		c.mu.Unlock()
		return
	}
	c.proc = nil
	c.status = status
	pending := c.takeAllLocked()
	c.mu.Unlock()

	rejectAll(pending, ErrDisconnected)
	_ = proc.Stdin().Close()
	if err := proc.Kill(); err != nil {
		c.logger.Debug("kill capability server", "error", err)
	}
}

// Notify sends a notification. No response is expected.
func (c *Client) Notify(method string, params any) error {
	return c.write(notification{JSONRPC: jsonrpcVersion, Method: method, Params: params})
}

// Subscribe registers fn for server notifications and returns a function
// that removes it. fn runs on the reader goroutine and must not block.
func (c *Client) Subscribe(fn func(Notification)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subscribers[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subscribers, id)
	}
}

// CallTool invokes a server tool. A result with IsError set is returned
// without error; protocol and transport failures are errors.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*CallToolResult, error) {
	if args == nil {
		args = map[string]any{}
	}
	var res CallToolResult
	if err := c.call(ctx, MethodToolsCall, callToolParams{Name: name, Arguments: args}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ReadResource fetches a resource by URI.
func (c *Client) ReadResource(ctx context.Context, uri string) (*ReadResourceResult, error) {
	var res ReadResourceResult
	if err := c.call(ctx, MethodResourcesRead, readResourceParams{URI: uri}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetPrompt expands a prompt template.
func (c *Client) GetPrompt(ctx context.Context, name string, args map[string]string) (*GetPromptResult, error) {
	var res GetPromptResult
	if err := c.call(ctx, MethodPromptsGet, getPromptParams{Name: name, Arguments: args}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// RefreshTools lists the server's tools again and replaces the known set.
func (c *Client) RefreshTools(ctx context.Context) error {
	var tl toolsListResult
	if err := c.call(ctx, MethodToolsList, nil, &tl); err != nil {
		return fmt.Errorf("tools/list %s: %w", c.name, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != StatusConnected {
		return fmt.Errorf("%s: %w", c.name, ErrNotConnected)
	}
	c.tools = tl.Tools
	c.logger.Info("capability tools refreshed", "tools", len(c.tools))
	return nil
}

// Tools returns the most recently discovered tools.
func (c *Client) Tools() []ToolInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ToolInfo(nil), c.tools...)
}

func (c *Client) Resources() []ResourceInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ResourceInfo(nil), c.resources...)
}

func (c *Client) Prompts() []PromptInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]PromptInfo(nil), c.prompts...)
}

// ServerInfo returns the initialize result of the current connection.
func (c *Client) ServerInfo() InitializeResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.server
}

// PendingCount returns the number of requests awaiting a response.
func (c *Client) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// call sends a request and waits for its response, decoding the result
// into out when out is non-nil.
func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	c.mu.Lock()
	if c.proc == nil {
		c.mu.Unlock()
		return fmt.Errorf("%s %s: %w", c.name, method, ErrNotConnected)
	}
	c.nextID++
	id := c.nextID
	ch := make(chan reply, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.write(request{JSONRPC: jsonrpcVersion, ID: id, Method: method, Params: params}); err != nil {
		c.take(id)
		return fmt.Errorf("%s %s: %w", c.name, method, err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	var r reply
	select {
	case r = <-ch:
	case <-timer.C:
		if c.take(id) != nil {
			c.logger.Warn("capability request timed out", "method", method, "id", id, "timeout", c.timeout)
			return fmt.Errorf("%s %s: %w after %v", c.name, method, ErrRequestTimeout, c.timeout)
		}
		// Settled concurrently; the reply is already buffered.
		r = <-ch
	case <-ctx.Done():
		if c.take(id) != nil {
			return ctx.Err()
		}
		r = <-ch
	}

	if r.err != nil {
		return fmt.Errorf("%s %s: %w", c.name, method, r.err)
	}
	if r.msg.Error != nil {
		return r.msg.Error
	}
	if out != nil && len(r.msg.Result) > 0 {
		if err := json.Unmarshal(r.msg.Result, out); err != nil {
			return fmt.Errorf("%s %s: decode result: %w", c.name, method, err)
		}
	}
	return nil
}

func (c *Client) write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	data = append(data, '\n')

	c.mu.Lock()
	proc := c.proc
	c.mu.Unlock()
	if proc == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := proc.Stdin().Write(data); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// take removes and returns the pending channel for id, or nil if another
// path already settled it.
func (c *Client) take(id int64) chan reply {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.pending[id]
	if !ok {
		return nil
	}
	delete(c.pending, id)
	return ch
}

func (c *Client) takeAllLocked() map[int64]chan reply {
	pending := c.pending
	c.pending = make(map[int64]chan reply)
	return pending
}

func rejectAll(pending map[int64]chan reply, err error) {
	for _, ch := range pending {
		ch <- reply{err: err}
	}
}

func (c *Client) setStatus(s Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = s
}

func (c *Client) readLoop(proc Process, done chan struct{}) {
	defer close(done)

	scanner := bufio.NewScanner(proc.Stdout())
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var msg inbound
		if err := json.Unmarshal(line, &msg); err != nil {
			c.logger.Debug("discarding unparsable line", "error", err)
			continue
		}
		c.dispatch(&msg)
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.ErrClosedPipe) && !errors.Is(err, os.ErrClosed) {
		c.logger.Debug("capability stdout closed", "error", err)
	}

	c.handleExit(proc)
}

func (c *Client) dispatch(msg *inbound) {
	switch {
	case msg.hasID() && msg.Method != "":
		// Server-initiated requests are not supported.
		err := c.write(errorReply{
			JSONRPC: jsonrpcVersion,
			ID:      msg.ID,
			Error:   &RPCError{Code: CodeMethodNotFound, Message: "method not found: " + msg.Method},
		})
		if err != nil {
			c.logger.Debug("reply to server request failed", "method", msg.Method, "error", err)
		}
	case msg.hasID():
		id, err := strconv.ParseInt(string(msg.ID), 10, 64)
		if err != nil {
			c.logger.Debug("discarding response with foreign id", "id", string(msg.ID))
			return
		}
		ch := c.take(id)
		if ch == nil {
			c.logger.Debug("discarding late or unknown response", "id", id)
			return
		}
		ch <- reply{msg: msg}
	case msg.Method != "":
		c.mu.Lock()
		subs := make([]func(Notification), 0, len(c.subscribers))
		for _, fn := range c.subscribers {
			subs = append(subs, fn)
		}
		c.mu.Unlock()
		n := Notification{Server: c.name, Method: msg.Method, Params: msg.Params}
		for _, fn := range subs {
			fn(n)
		}
	default:
		c.logger.Debug("discarding message without id or method")
	}
}

// handleExit runs when proc's stdout closes. If proc is still current the
// exit was unexpected: pending requests are rejected and the client moves
// to disconnected, or to error if the handshake had not finished.
func (c *Client) handleExit(proc Process) {
	c.mu.Lock()
	current := c.proc == proc
	var pending map[int64]chan reply
	if current {
		c.proc = nil
		if c.status == StatusConnecting {
			c.status = StatusError
		} else {
			c.status = StatusDisconnected
		}
		pending = c.takeAllLocked()
	}
	c.mu.Unlock()

	if current {
		c.logger.Warn("capability server exited", "pending", len(pending))
		rejectAll(pending, ErrDisconnected)
		// Output ended; make sure nothing of the server is left running.
		if err := proc.Kill(); err != nil {
			c.logger.Debug("kill capability server", "error", err)
		}
	}
	if err := proc.Wait(); err != nil {
		c.logger.Debug("capability server wait", "error", err)
	}
}

func (c *Client) drainStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		c.logger.Debug("capability server stderr", "line", scanner.Text())
	}
}
