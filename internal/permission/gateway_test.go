package permission

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// spyPrompter records calls and answers with a fixed answer.
type spyPrompter struct {
	mu      sync.Mutex
	answer  Answer
	err     error
	calls   []Request
	counter atomic.Int32
}

func (s *spyPrompter) RequestPermission(ctx context.Context, req Request) (Answer, error) {
	s.counter.Add(1)
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()
	return s.answer, s.err
}

func newGateway(t *testing.T, opts Options) *Gateway {
	t.Helper()
	g, err := NewGateway(opts)
	require.NoError(t, err)
	return g
}

func TestCheck_SafeToolAutoApproved(t *testing.T) {
	spy := &spyPrompter{answer: AnswerNo}
	g := newGateway(t, Options{
		SafeTools: []string{"read_file"},
		Store:     NewMemoryRuleStore(Rule{ToolPattern: "*", Scope: ScopeNever}),
		Prompter:  spy,
	})

	d, err := g.Check(context.Background(), Request{Tool: "read_file"})

	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, SourceSafe, d.Source)
	assert.Zero(t, spy.counter.Load())
}

func TestCheck_RequireForSafe_SkipsSafeSet(t *testing.T) {
	spy := &spyPrompter{answer: AnswerYes}
	g := newGateway(t, Options{SafeTools: []string{"read_file"}, RequireForSafe: true, Prompter: spy})

	d, err := g.Check(context.Background(), Request{Tool: "read_file"})

	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, SourceUser, d.Source)
	assert.EqualValues(t, 1, spy.counter.Load())
}

func TestCheck_NeverRuleDenies(t *testing.T) {
	spy := &spyPrompter{answer: AnswerYes}
	g := newGateway(t, Options{
		Store:    NewMemoryRuleStore(Rule{ToolPattern: "run_shell", ArgumentPattern: `"command":"rm `, Scope: ScopeNever}),
		Prompter: spy,
	})

	d, err := g.Check(context.Background(), Request{Tool: "run_shell", Key: "rm", Args: map[string]any{"command": "rm -rf /"}})

	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, SourceRule, d.Source)
	require.NotNil(t, d.Rule)
	assert.Equal(t, ScopeNever, d.Rule.Scope)
	assert.Zero(t, spy.counter.Load())
}

func TestCheck_FirstMatchingRuleWins(t *testing.T) {
	g := newGateway(t, Options{Store: NewMemoryRuleStore(
		Rule{ToolPattern: "mcp__github__*", Scope: ScopeAlways},
		Rule{ToolPattern: "mcp__*", Scope: ScopeNever},
	)})

	d, err := g.Check(context.Background(), Request{Tool: "mcp__github__search"})
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = g.Check(context.Background(), Request{Tool: "mcp__slack__post"})
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, SourceRule, d.Source)
}

func TestCheck_RuleBeforeSessionGrant(t *testing.T) {
	spy := &spyPrompter{answer: AnswerYes}
	g := newGateway(t, Options{Prompter: spy})

	_, err := g.Check(context.Background(), Request{Tool: "write_file", Key: "a.txt"})
	require.NoError(t, err)

	require.NoError(t, g.AddRule(Rule{ToolPattern: "write_file", Scope: ScopeNever}))

	d, err := g.Check(context.Background(), Request{Tool: "write_file", Key: "a.txt"})
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, SourceRule, d.Source)
}

func TestCheck_SessionGrantsAreIdempotentPerKey(t *testing.T) {
	spy := &spyPrompter{answer: AnswerYes}
	g := newGateway(t, Options{Prompter: spy})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := g.Check(ctx, Request{Tool: "edit_file", Key: "main.go"})
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
	assert.EqualValues(t, 1, spy.counter.Load())

	// A different key prompts again.
	_, err := g.Check(ctx, Request{Tool: "edit_file", Key: "other.go"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, spy.counter.Load())

	d, err := g.Check(ctx, Request{Tool: "edit_file", Key: "main.go"})
	require.NoError(t, err)
	assert.Equal(t, SourceSession, d.Source)
}

func TestCheck_DenialIsRememberedForSession(t *testing.T) {
	spy := &spyPrompter{answer: AnswerNo}
	g := newGateway(t, Options{Prompter: spy})

	for i := 0; i < 2; i++ {
		d, err := g.Check(context.Background(), Request{Tool: "run_shell", Key: "curl"})
		require.NoError(t, err)
		assert.False(t, d.Allowed)
	}
	assert.EqualValues(t, 1, spy.counter.Load())
	assert.Equal(t, map[string]bool{SessionKey("run_shell", "curl"): false}, g.SessionGrants())
}

func TestCheck_ConcurrentSameKeyPromptsOnce(t *testing.T) {
	spy := &spyPrompter{answer: AnswerYes}
	g := newGateway(t, Options{Prompter: spy})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := g.Check(context.Background(), Request{Tool: "run_shell", Key: "go"})
			assert.NoError(t, err)
			assert.True(t, d.Allowed)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, spy.counter.Load())
}

func TestCheck_ConcurrentDifferentKeysAllRecorded(t *testing.T) {
	spy := &spyPrompter{answer: AnswerYes}
	g := newGateway(t, Options{Prompter: spy})
	keys := []string{"docker", "git", "npm", "go", "python"}

	var wg sync.WaitGroup
	for _, k := range keys {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			_, err := g.Check(context.Background(), Request{Tool: "run_shell", Key: key})
			assert.NoError(t, err)
		}(k)
	}
	wg.Wait()

	grants := g.SessionGrants()
	assert.Len(t, grants, len(keys))
	for _, k := range keys {
		assert.True(t, grants[SessionKey("run_shell", k)])
	}
}

func TestCheck_AlwaysAddsPermanentRule(t *testing.T) {
	store := NewMemoryRuleStore()
	spy := &spyPrompter{answer: AnswerAlways}
	g := newGateway(t, Options{Store: store, Prompter: spy})

	d, err := g.Check(context.Background(), Request{Tool: "write_file", Key: "a.txt", Description: "Write a.txt"})
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	rules := g.Rules()
	require.Len(t, rules, 1)
	assert.Equal(t, "write_file", rules[0].ToolPattern)
	assert.Equal(t, "a.txt", rules[0].Key)
	assert.Equal(t, ScopeAlways, rules[0].Scope)
	assert.Equal(t, 1, store.Saves())

	// Survives a session reset.
	g.ResetSession()
	d, err = g.Check(context.Background(), Request{Tool: "write_file", Key: "a.txt"})
	require.NoError(t, err)
	assert.Equal(t, SourceRule, d.Source)

	// Scoped to the key.
	spy.answer = AnswerNo
	d, err = g.Check(context.Background(), Request{Tool: "write_file", Key: "b.txt"})
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestCheck_PromptErrorYieldsNoDecision(t *testing.T) {
	spy := &spyPrompter{err: context.Canceled}
	g := newGateway(t, Options{Prompter: spy})

	_, err := g.Check(context.Background(), Request{Tool: "run_shell", Key: "ls"})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, g.SessionGrants())
}

func TestCheck_InvalidAnswer(t *testing.T) {
	g := newGateway(t, Options{Prompter: &spyPrompter{answer: "maybe"}})

	_, err := g.Check(context.Background(), Request{Tool: "x"})

	assert.Error(t, err)
}

func TestCheck_NoPrompterDenies(t *testing.T) {
	g := newGateway(t, Options{})

	d, err := g.Check(context.Background(), Request{Tool: "write_file"})

	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, SourceNone, d.Source)
}

func TestResetSession_ClearsGrants(t *testing.T) {
	spy := &spyPrompter{answer: AnswerYes}
	g := newGateway(t, Options{Prompter: spy})

	_, _ = g.Check(context.Background(), Request{Tool: "run_shell", Key: "ls"})
	g.ResetSession()
	_, _ = g.Check(context.Background(), Request{Tool: "run_shell", Key: "ls"})

	assert.EqualValues(t, 2, spy.counter.Load())
}

func TestPrompterFunc(t *testing.T) {
	var got Request
	g := newGateway(t, Options{Prompter: PrompterFunc(func(ctx context.Context, req Request) (Answer, error) {
		got = req
		return AnswerYes, nil
	})})

	_, err := g.Check(context.Background(), Request{Tool: "write_file", Key: "a", Description: "Write a"})

	require.NoError(t, err)
	assert.Equal(t, "Write a", got.Description)
}

func TestNewGateway_InvalidStoredRule(t *testing.T) {
	_, err := NewGateway(Options{Store: NewMemoryRuleStore(Rule{ToolPattern: "[", Scope: ScopeAlways})})
	assert.Error(t, err)

	_, err = NewGateway(Options{Store: NewMemoryRuleStore(Rule{ToolPattern: "x", Scope: "sometimes"})})
	assert.Error(t, err)
}

type failingStore struct{ MemoryRuleStore }

func (f *failingStore) Save([]Rule) error { return errors.New("disk full") }

func TestCheck_AlwaysWithFailingStoreStillAllows(t *testing.T) {
	g := newGateway(t, Options{Store: &failingStore{}, Prompter: &spyPrompter{answer: AnswerAlways}})

	d, err := g.Check(context.Background(), Request{Tool: "run_shell", Key: "make"})

	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Len(t, g.Rules(), 1)
}

func TestFileRuleStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "permissions.json")
	store := NewFileRuleStore(path)

	rules, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, rules)

	g := newGateway(t, Options{Store: store, Prompter: &spyPrompter{answer: AnswerAlways}})
	_, err = g.Check(context.Background(), Request{Tool: "edit_file", Key: "x.go"})
	require.NoError(t, err)

	// A new gateway over the same file sees the rule without prompting.
	spy := &spyPrompter{answer: AnswerNo}
	g2 := newGateway(t, Options{Store: NewFileRuleStore(path), Prompter: spy})
	d, err := g2.Check(context.Background(), Request{Tool: "edit_file", Key: "x.go"})
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Zero(t, spy.counter.Load())
}
