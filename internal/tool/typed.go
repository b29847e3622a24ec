package tool

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Handler executes a tool with a decoded, typed request.
type Handler[Req any] func(ctx context.Context, req Req) (Result, error)

// validator is implemented by request types that can check themselves.
type validator interface {
	Validate() error
}

// permissionKeyer is implemented by request types that scope session grants.
type permissionKeyer interface {
	PermissionKey() string
}

// Typed adapts a typed handler to the Tool interface.
// Arguments from the backend are decoded into Req with mapstructure using the
// request's json tags. Req should implement fmt.Stringer for display and may
// implement Validate() error and PermissionKey() string.
type Typed[Req any] struct {
	decl    Declaration
	handler Handler[Req]
}

// NewTyped creates a Tool from a declaration and a typed handler.
func NewTyped[Req any](decl Declaration, handler Handler[Req]) *Typed[Req] {
	if handler == nil {
		panic("handler is required")
	}
	return &Typed[Req]{decl: decl, handler: handler}
}

func (t *Typed[Req]) Name() string {
	return t.decl.Name
}

func (t *Typed[Req]) Declaration() Declaration {
	return t.decl
}

func (t *Typed[Req]) PermissionKey(args map[string]any) string {
	req, err := Decode[Req](args)
	if err != nil {
		return ""
	}
	if k, ok := any(&req).(permissionKeyer); ok {
		return k.PermissionKey()
	}
	return ""
}

func (t *Typed[Req]) Describe(args map[string]any) string {
	req, err := Decode[Req](args)
	if err != nil {
		return t.decl.Name
	}
	if s, ok := any(&req).(fmt.Stringer); ok {
		return s.String()
	}
	return t.decl.Name
}

func (t *Typed[Req]) Execute(ctx context.Context, args map[string]any) (Result, error) {
	req, err := Decode[Req](args)
	if err != nil {
		return Failf("invalid arguments for %s: %v", t.decl.Name, err), nil
	}
	if v, ok := any(&req).(validator); ok {
		if err := v.Validate(); err != nil {
			return Failf("%s validation failed: %v", t.decl.Name, err), nil
		}
	}
	return t.handler(ctx, req)
}

// Decode converts a backend argument map into a typed request.
func Decode[Req any](args map[string]any) (Req, error) {
	var req Req
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           &req,
	})
	if err != nil {
		return req, err
	}
	if err := decoder.Decode(args); err != nil {
		return req, err
	}
	return req, nil
}
