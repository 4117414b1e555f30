package threadmesh

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/threadmesh/checkpoint"
	"github.com/hupe1980/threadmesh/core"
	"github.com/hupe1980/threadmesh/internal/testutil"
	"github.com/hupe1980/threadmesh/reconcile"
	"github.com/hupe1980/threadmesh/tool"
)

func newService(t *testing.T, llm *testutil.ScriptedModel, optFns ...func(o *Options)) *Service {
	t.Helper()
	g, err := NewDefaultGraph(llm, func(o *GraphOptions) { o.Stream = false })
	require.NoError(t, err)
	return New(g, optFns...)
}

func TestService_CreateThread(t *testing.T) {
	svc := newService(t, testutil.NewScriptedModel())
	ctx := context.Background()

	id, err := svc.CreateThread(ctx, "", "")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	state, ok, err := svc.State(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, DefaultContextType, state.Context.Type)
	assert.Equal(t, DefaultTaskType, state.Context.Task)
	assert.Empty(t, state.Messages)

	history, err := svc.History(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, history)

	other, err := svc.CreateThread(ctx, "blog", "draft")
	require.NoError(t, err)
	assert.NotEqual(t, id, other)
	state, _, err = svc.State(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, "blog", state.Context.Type)
	assert.Equal(t, "draft", state.Context.Task)
}

func TestService_ChatKeepsHistory(t *testing.T) {
	llm := testutil.NewScriptedModel(testutil.Reply("Hello!"), testutil.Reply("Still here."))
	svc := newService(t, llm)
	ctx := context.Background()

	id, err := svc.CreateThread(ctx, "", "")
	require.NoError(t, err)

	res, err := svc.ChatSync(ctx, id, "hi", reconcile.Overrides{})
	require.NoError(t, err)
	assert.Equal(t, "Hello!", res.Response)
	assert.Empty(t, res.ToolOutputs)

	res, err = svc.ChatSync(ctx, id, "are you there?", reconcile.Overrides{})
	require.NoError(t, err)
	assert.Equal(t, "Still here.", res.Response)

	history, err := svc.History(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []HistoryMessage{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "Hello!"},
		{Role: "user", Content: "are you there?"},
		{Role: "assistant", Content: "Still here."},
	}, history)

	// The second request carried the whole conversation plus the system instruction.
	reqs := llm.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, core.KindSystem, reqs[1].Messages[0].Kind)
	assert.Len(t, reqs[1].Messages, 4)
}

func TestService_ChatUnknownThreadUsesLookup(t *testing.T) {
	svc := newService(t, testutil.NewScriptedModel(testutil.Reply("ok")), func(o *Options) {
		o.Lookup = StaticLookup{ContextType: "support", TaskType: "triage"}
	})
	ctx := context.Background()

	_, err := svc.ChatSync(ctx, "fresh", "hello", reconcile.Overrides{TaskType: "billing"})
	require.NoError(t, err)

	state, ok, err := svc.State(ctx, "fresh")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "support", state.Context.Type)
	assert.Equal(t, "billing", state.Context.Task)
}

func TestService_OverridesReplaceStoredContext(t *testing.T) {
	svc := newService(t, testutil.NewScriptedModel(testutil.Reply("ok")))
	ctx := context.Background()

	id, err := svc.CreateThread(ctx, "blog", "draft")
	require.NoError(t, err)

	_, err = svc.ChatSync(ctx, id, "hello", reconcile.Overrides{ContextType: "news"})
	require.NoError(t, err)

	state, _, err := svc.State(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "news", state.Context.Type)
	assert.Equal(t, "draft", state.Context.Task)
}

func TestService_Reset(t *testing.T) {
	svc := newService(t, testutil.NewScriptedModel(testutil.Reply("Hello!")))
	ctx := context.Background()

	id, err := svc.CreateThread(ctx, "blog", "draft")
	require.NoError(t, err)
	_, err = svc.ChatSync(ctx, id, "hi", reconcile.Overrides{})
	require.NoError(t, err)

	existed, err := svc.Reset(ctx, id)
	require.NoError(t, err)
	assert.True(t, existed)

	history, err := svc.History(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, history)

	state, ok, err := svc.State(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, DefaultContextType, state.Context.Type)

	existed, err = svc.Reset(ctx, "never-seen")
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestService_EmptyThreadID(t *testing.T) {
	svc := newService(t, testutil.NewScriptedModel())
	ctx := context.Background()

	_, err := svc.Chat(ctx, "", "hi", reconcile.Overrides{})
	assert.ErrorIs(t, err, checkpoint.ErrEmptyThreadID)
	_, err = svc.History(ctx, "")
	assert.ErrorIs(t, err, checkpoint.ErrEmptyThreadID)
	_, err = svc.Reset(ctx, "")
	assert.ErrorIs(t, err, checkpoint.ErrEmptyThreadID)
}

func TestService_HistoryOfUnknownThread(t *testing.T) {
	svc := newService(t, testutil.NewScriptedModel())

	history, err := svc.History(context.Background(), "missing")
	require.NoError(t, err)
	assert.NotNil(t, history)
	assert.Empty(t, history)
}

func TestService_ResearchTurn(t *testing.T) {
	var queries []string
	searcher := tool.SearcherFunc(func(_ context.Context, query string) (*tool.SearchResponse, error) {
		queries = append(queries, query)
		return &tool.SearchResponse{Results: []tool.SearchResult{{Title: "Go 1.25", Link: "https://go.dev/blog", Snippet: "released"}}}, nil
	})
	llm := testutil.NewScriptedModel(
		testutil.CallTools(core.ToolCall{ID: "s1", Name: tool.WebSearchName, Arguments: `{"query":"go release"}`}),
		testutil.Reply("Go 1.25 was released."),
		testutil.Reply("Go 1.25 is the latest release."),
	)
	g, err := NewDefaultGraph(llm, func(o *GraphOptions) {
		o.Searcher = searcher
		o.Stream = false
	})
	require.NoError(t, err)
	svc := New(g)
	ctx := context.Background()

	id, err := svc.CreateThread(ctx, "", "")
	require.NoError(t, err)

	res, err := svc.ChatSync(ctx, id, "What is the latest Go release?", reconcile.Overrides{})
	require.NoError(t, err)

	assert.Equal(t, []string{"go release"}, queries)
	assert.Equal(t, []string{"delegating to research"}, res.Statuses)
	require.Len(t, res.ToolOutputs, 1)
	assert.Contains(t, res.ToolOutputs[0], tool.SearchResultsStart)
	assert.Equal(t, "Go 1.25 is the latest release.", res.Response)
	assert.Zero(t, llm.Remaining())

	history, err := svc.History(ctx, id)
	require.NoError(t, err)
	roles := make([]string, 0, len(history))
	for _, m := range history {
		roles = append(roles, m.Role)
	}
	assert.Equal(t, []string{"user", "tool", "user", "assistant"}, roles)
	assert.Equal(t, "research", history[2].Author)

	state, _, err := svc.State(ctx, id)
	require.NoError(t, err)
	assert.True(t, state.Flag("research"))
}

type failingLookup struct{}

func (failingLookup) ThreadDefaults(context.Context, string) (string, string, error) {
	return "", "", errors.New("directory offline")
}

func TestService_LookupFailure(t *testing.T) {
	svc := newService(t, testutil.NewScriptedModel(), func(o *Options) { o.Lookup = failingLookup{} })

	_, err := svc.CreateThread(context.Background(), "", "")
	assert.ErrorContains(t, err, "directory offline")

	id, err := svc.CreateThread(context.Background(), "blog", "draft")
	require.NoError(t, err)
	_, err = svc.Reset(context.Background(), id)
	assert.ErrorContains(t, err, "directory offline")
}

func TestNewDefaultGraph(t *testing.T) {
	_, err := NewDefaultGraph(nil)
	assert.Error(t, err)

	g, err := NewDefaultGraph(testutil.NewScriptedModel())
	require.NoError(t, err)
	assert.Equal(t, "supervisor", g.Supervisor())
}
