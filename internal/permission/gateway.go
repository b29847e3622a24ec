package permission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrPermissionDenied is the failure reported for denied invocations.
var ErrPermissionDenied = errors.New("permission denied")

// Answer is the user's reply to a permission prompt.
type Answer string

const (
	AnswerYes    Answer = "yes"
	AnswerNo     Answer = "no"
	AnswerAlways Answer = "always"
)

// Request describes one invocation awaiting a decision.
type Request struct {
	Tool        string
	Args        map[string]any
	Key         string // tool-specific grant key, "" when one grant covers all calls
	Description string // human-readable summary, e.g. "Write a.txt"
}

// Prompter asks the user about a request. It is owned by the presentation layer.
type Prompter interface {
	RequestPermission(ctx context.Context, req Request) (Answer, error)
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(ctx context.Context, req Request) (Answer, error)

func (f PrompterFunc) RequestPermission(ctx context.Context, req Request) (Answer, error) {
	return f(ctx, req)
}

// Source records which step of the decision algorithm decided.
type Source string

const (
	SourceSafe    Source = "safe"
	SourceRule    Source = "rule"
	SourceSession Source = "session"
	SourceUser    Source = "user"
	SourceNone    Source = "no_prompter"
)

// Decision is the outcome of Check.
type Decision struct {
	Allowed bool
	Source  Source
	Rule    *Rule // the deciding rule when Source is SourceRule
}

// Options configures a Gateway.
type Options struct {
	SafeTools      []string
	RequireForSafe bool
	Store          RuleStore // nil means rules live in memory only
	Prompter       Prompter  // nil denies anything that needs a prompt
	Logger         *slog.Logger
}

// Gateway decides whether tool invocations may run.
//
// The decision order is: safe set, permanent rules (first match wins),
// session grants, then the prompter. A prompt answer is recorded in the
// session table before Check returns, so the tool never runs ahead of it.
type Gateway struct {
	safe           map[string]bool
	requireForSafe bool
	store          RuleStore
	prompter       Prompter
	logger         *slog.Logger

	mu     sync.RWMutex // protects rules and grants
	rules  []Rule
	grants map[string]bool

	// promptMu serializes prompts so concurrent callers with the same key
	// are asked once.
	promptMu sync.Mutex
}

// NewGateway creates a gateway, loading permanent rules from the store.
func NewGateway(opts Options) (*Gateway, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	store := opts.Store
	if store == nil {
		store = NewMemoryRuleStore()
	}

	g := &Gateway{
		safe:           make(map[string]bool, len(opts.SafeTools)),
		requireForSafe: opts.RequireForSafe,
		store:          store,
		prompter:       opts.Prompter,
		logger:         logger,
		grants:         make(map[string]bool),
	}
	for _, name := range opts.SafeTools {
		g.safe[name] = true
	}

	rules, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load permission rules: %w", err)
	}
	for i := range rules {
		if err := rules[i].Compile(); err != nil {
			return nil, err
		}
	}
	g.rules = rules
	return g, nil
}

// SessionKey builds the session table key for a tool and its grant key.
func SessionKey(toolName, key string) string {
	return toolName + "\x00" + key
}

// Check decides whether req may run. An error means no decision could be
// made, e.g. the prompt was cancelled; callers treat it as a denial.
func (g *Gateway) Check(ctx context.Context, req Request) (Decision, error) {
	if g.IsSafe(req.Tool) {
		return Decision{Allowed: true, Source: SourceSafe}, nil
	}

	canonical := CanonicalArgs(req.Args)
	if d, ok := g.resolve(req, canonical); ok {
		g.logDecision(req, d)
		return d, nil
	}

	g.promptMu.Lock()
	defer g.promptMu.Unlock()

	// Another caller may have answered for this key while we waited.
	if d, ok := g.resolve(req, canonical); ok {
		g.logDecision(req, d)
		return d, nil
	}

	if g.prompter == nil {
		d := Decision{Allowed: false, Source: SourceNone}
		g.logDecision(req, d)
		return d, nil
	}

	answer, err := g.prompter.RequestPermission(ctx, req)
	if err != nil {
		return Decision{}, fmt.Errorf("permission prompt for %s: %w", req.Tool, err)
	}

	var d Decision
	switch answer {
	case AnswerYes:
		g.grant(req, true)
		d = Decision{Allowed: true, Source: SourceUser}
	case AnswerNo:
		g.grant(req, false)
		d = Decision{Allowed: false, Source: SourceUser}
	case AnswerAlways:
		g.grant(req, true)
		rule := Rule{
			ToolPattern: escapeGlob(req.Tool),
			Key:         req.Key,
			Scope:       ScopeAlways,
			Description: req.Description,
		}
		if err := g.AddRule(rule); err != nil {
			// The session grant still holds; only persistence failed.
			g.logger.Warn("failed to persist permission rule", "tool", req.Tool, "error", err)
		}
		d = Decision{Allowed: true, Source: SourceUser}
	default:
		return Decision{}, fmt.Errorf("invalid permission answer %q", answer)
	}
	g.logDecision(req, d)
	return d, nil
}

// resolve applies permanent rules then session grants.
func (g *Gateway) resolve(req Request, canonical string) (Decision, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for i := range g.rules {
		if g.rules[i].Matches(req.Tool, req.Key, canonical) {
			rule := g.rules[i]
			return Decision{Allowed: rule.Scope == ScopeAlways, Source: SourceRule, Rule: &rule}, true
		}
	}
	if granted, ok := g.grants[SessionKey(req.Tool, req.Key)]; ok {
		return Decision{Allowed: granted, Source: SourceSession}, true
	}
	return Decision{}, false
}

func (g *Gateway) grant(req Request, allowed bool) {
	g.mu.Lock()
	g.grants[SessionKey(req.Tool, req.Key)] = allowed
	g.mu.Unlock()
}

func (g *Gateway) logDecision(req Request, d Decision) {
	g.logger.Debug("permission decision",
		"tool", req.Tool, "key", req.Key, "allowed", d.Allowed, "source", d.Source)
}

// IsSafe reports whether toolName is auto-approved.
func (g *Gateway) IsSafe(toolName string) bool {
	return !g.requireForSafe && g.safe[toolName]
}

// AddRule compiles and appends a permanent rule, then persists all rules.
// The rule is active even if persisting fails.
func (g *Gateway) AddRule(rule Rule) error {
	if err := rule.Compile(); err != nil {
		return err
	}
	g.mu.Lock()
	g.rules = append(g.rules, rule)
	snapshot := append([]Rule(nil), g.rules...)
	g.mu.Unlock()

	return g.store.Save(snapshot)
}

// Rules returns a copy of the permanent rules in evaluation order.
func (g *Gateway) Rules() []Rule {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]Rule(nil), g.rules...)
}

// SessionGrants returns a copy of the session table.
func (g *Gateway) SessionGrants() map[string]bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[string]bool, len(g.grants))
	for k, v := range g.grants {
		out[k] = v
	}
	return out
}

// ResetSession clears all session grants. Permanent rules are kept.
func (g *Gateway) ResetSession() {
	g.mu.Lock()
	g.grants = make(map[string]bool)
	g.mu.Unlock()
}
