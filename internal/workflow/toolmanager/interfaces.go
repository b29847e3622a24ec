package toolmanager

import (
	"context"

	"github.com/Cyclone1070/agentcore/internal/permission"
)

// permissionChecker decides whether an invocation may run.
type permissionChecker interface {
	Check(ctx context.Context, req permission.Request) (permission.Decision, error)
}
