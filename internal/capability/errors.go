package capability

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyConnected is returned by Connect when the server is connected
	// or a connection is in progress. Disconnect first.
	ErrAlreadyConnected = errors.New("capability server already connected")

	// ErrNotConnected is returned when a request is made without a live process.
	ErrNotConnected = errors.New("capability server not connected")

	// ErrRequestTimeout is returned when no response arrives in time.
	ErrRequestTimeout = errors.New("capability request timed out")

	// ErrDisconnected rejects requests still pending when the process exits
	// or the client disconnects.
	ErrDisconnected = errors.New("capability server disconnected")

	// ErrUnknownServer is returned by the Manager for unconfigured names.
	ErrUnknownServer = errors.New("unknown capability server")
)

// JSON-RPC error codes used by the client.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// RPCError is an error object returned by a capability server.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("rpc error %d: %s (%v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// SpawnError is returned when the server process cannot be started.
type SpawnError struct {
	Server  string
	Command string
	Cause   error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start capability server %s (%s): %v", e.Server, e.Command, e.Cause)
}

func (e *SpawnError) Unwrap() error {
	return e.Cause
}
