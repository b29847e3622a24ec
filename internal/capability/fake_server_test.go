package capability

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/Cyclone1070/agentcore/internal/config"
)

// fakeProcess is an in-memory server process built from pipes.
type fakeProcess struct {
	stdinR  *io.PipeReader
	stdinW  *io.PipeWriter
	stdoutR *io.PipeReader
	stdoutW *io.PipeWriter
	stderrR *io.PipeReader
	stderrW *io.PipeWriter

	once sync.Once
}

func newFakeProcess() *fakeProcess {
	p := &fakeProcess{}
	p.stdinR, p.stdinW = io.Pipe()
	p.stdoutR, p.stdoutW = io.Pipe()
	p.stderrR, p.stderrW = io.Pipe()
	return p
}

func (p *fakeProcess) Stdin() io.WriteCloser { return p.stdinW }
func (p *fakeProcess) Stdout() io.Reader     { return p.stdoutR }
func (p *fakeProcess) Stderr() io.Reader     { return p.stderrR }
func (p *fakeProcess) Wait() error           { return nil }

func (p *fakeProcess) Kill() error {
	p.exit()
	_ = p.stdinR.Close()
	return nil
}

// exit simulates the server process ending on its own.
func (p *fakeProcess) exit() {
	p.once.Do(func() {
		_ = p.stdoutW.Close()
		_ = p.stderrW.Close()
	})
}

// serverMsg is a line the fake server received.
type serverMsg struct {
	Raw    string
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// fakeServer answers requests read from a fakeProcess. handlers are keyed by
// method; a nil handler result means "do not answer".
type fakeServer struct {
	proc     *fakeProcess
	handlers map[string]func(msg serverMsg) (result any, rpcErr *RPCError, answer bool)

	writeMu sync.Mutex

	mu       sync.Mutex
	received []serverMsg
	gotLine  chan serverMsg
}

func newFakeServer() *fakeServer {
	s := &fakeServer{
		proc:    newFakeProcess(),
		gotLine: make(chan serverMsg, 100),
		handlers: map[string]func(serverMsg) (any, *RPCError, bool){
			MethodInitialize: func(serverMsg) (any, *RPCError, bool) {
				return InitializeResult{
					ProtocolVersion: DefaultProtocolVersion,
					ServerInfo:      Implementation{Name: "fake", Version: "1.0"},
				}, nil, true
			},
			MethodToolsList: func(serverMsg) (any, *RPCError, bool) {
				return toolsListResult{Tools: []ToolInfo{{
					Name:        "echo",
					Description: "Echo the input",
					InputSchema: map[string]any{
						"type":       "object",
						"properties": map[string]any{"text": map[string]any{"type": "string"}},
						"required":   []any{"text"},
					},
				}}}, nil, true
			},
			MethodResourcesList: func(serverMsg) (any, *RPCError, bool) {
				return nil, &RPCError{Code: CodeMethodNotFound, Message: "no resources"}, true
			},
			MethodPromptsList: func(serverMsg) (any, *RPCError, bool) {
				return promptsListResult{Prompts: []PromptInfo{{Name: "review"}}}, nil, true
			},
			MethodToolsCall: func(msg serverMsg) (any, *RPCError, bool) {
				var p callToolParams
				_ = json.Unmarshal(msg.Params, &p)
				text, _ := p.Arguments["text"].(string)
				return CallToolResult{Content: []Content{{Type: "text", Text: text}}}, nil, true
			},
		},
	}
	go s.serve()
	return s
}

func (s *fakeServer) spawner() Spawner {
	return func(ctx context.Context, cfg config.ServerConfig) (Process, error) {
		return s.proc, nil
	}
}

func (s *fakeServer) serve() {
	scanner := bufio.NewScanner(s.proc.stdinR)
	for scanner.Scan() {
		line := scanner.Text()
		var msg serverMsg
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			continue
		}
		msg.Raw = line
		s.mu.Lock()
		s.received = append(s.received, msg)
		s.mu.Unlock()
		s.gotLine <- msg

		if len(msg.ID) == 0 || msg.Method == "" {
			continue
		}
		h, ok := s.handlers[msg.Method]
		if !ok {
			s.send(map[string]any{"jsonrpc": "2.0", "id": msg.ID, "error": RPCError{Code: CodeMethodNotFound, Message: "nope"}})
			continue
		}
		result, rpcErr, answer := h(msg)
		if !answer {
			continue
		}
		if rpcErr != nil {
			s.send(map[string]any{"jsonrpc": "2.0", "id": msg.ID, "error": rpcErr})
		} else {
			s.send(map[string]any{"jsonrpc": "2.0", "id": msg.ID, "result": result})
		}
	}
}

func (s *fakeServer) send(v any) {
	data, _ := json.Marshal(v)
	s.sendRaw(string(data))
}

func (s *fakeServer) sendRaw(line string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, _ = s.proc.stdoutW.Write([]byte(line + "\n"))
}

func (s *fakeServer) messages(method string) []serverMsg {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []serverMsg
	for _, m := range s.received {
		if m.Method == method {
			out = append(out, m)
		}
	}
	return out
}
