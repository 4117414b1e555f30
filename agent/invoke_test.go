package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/threadmesh/core"
	"github.com/hupe1980/threadmesh/graph"
	"github.com/hupe1980/threadmesh/internal/testutil"
	"github.com/hupe1980/threadmesh/model"
)

// mockModel replays the responses configured through testify expectations.
type mockModel struct{ mock.Mock }

func (m *mockModel) Generate(_ context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	args := m.Called(req)
	resps, _ := args.Get(0).([]model.Response)

	respCh := make(chan model.Response, len(resps))
	errCh := make(chan error, 1)
	for _, r := range resps {
		respCh <- r
	}
	if err := args.Error(1); err != nil {
		errCh <- err
	}
	close(respCh)
	close(errCh)
	return respCh, errCh
}

func (m *mockModel) Info() model.Info { return model.Info{Name: "mock-model", Provider: "mock"} }

// blockingModel never answers before its context ends.
type blockingModel struct{}

func (blockingModel) Generate(ctx context.Context, _ model.Request) (<-chan model.Response, <-chan error) {
	respCh := make(chan model.Response)
	errCh := make(chan error, 1)
	go func() {
		defer close(respCh)
		defer close(errCh)
		<-ctx.Done()
		errCh <- ctx.Err()
	}()
	return respCh, errCh
}

func (blockingModel) Info() model.Info { return model.Info{Name: "blocking"} }

func nodeContext(state *core.State) (*graph.NodeContext, *[]string) {
	var partials []string
	nc := graph.NewNodeContext(context.Background(), "test", state, nil, func(m core.Message) {
		partials = append(partials, m.Content)
	})
	return nc, &partials
}

func TestPrepareMessages(t *testing.T) {
	msgs := testutil.NewStateBuilder("general_chat", "chat").
		Human("hi").
		Assistant("   ").
		ToolCalls(core.ToolCall{ID: "c1", Name: "write_blog"}).
		Tool("c1", "write_blog", "").
		Human("").
		Build().Messages

	out := prepareMessages(msgs, "be brief")
	require.Len(t, out, 4)
	assert.Equal(t, core.NewSystemMessage("be brief"), out[0])
	assert.Equal(t, "hi", out[1].Content)
	assert.True(t, out[2].HasToolCalls())
	assert.Equal(t, emptyToolResult, out[3].Content)
	assert.Equal(t, "", msgs[3].Content, "input must not be modified")

	withSystem := append([]core.Message{core.NewSystemMessage("custom")}, msgs...)
	out = prepareMessages(withSystem, "be brief")
	assert.Equal(t, "custom", out[0].Content)
	assert.Equal(t, core.KindHuman, out[1].Kind)

	assert.Len(t, prepareMessages(msgs, "  "), 3)
}

func TestInvokeModel_StreamsAccumulatedContent(t *testing.T) {
	llm := &mockModel{}
	llm.On("Generate", mock.Anything).Return([]model.Response{
		{Partial: true, Message: core.NewAssistantMessage("Hi")},
		{Partial: true, Message: core.NewAssistantMessage(" there")},
		{Message: core.NewAssistantMessage("Hi there"), FinishReason: "stop"},
	}, nil).Once()

	nc, partials := nodeContext(testutil.NewStateBuilder("", "").Human("hello").Build())
	msg, err := invokeModel(nc, modelCall{node: "supervisor", llm: llm, instruction: "sys", stream: true}, nc.State().Messages)

	require.NoError(t, err)
	assert.Equal(t, core.NewAssistantMessage("Hi there"), msg)
	assert.Equal(t, []string{"Hi", "Hi there"}, *partials)

	req := llm.Calls[0].Arguments.Get(0).(model.Request)
	assert.True(t, req.Stream)
	assert.Equal(t, core.KindSystem, req.Messages[0].Kind)
	llm.AssertExpectations(t)
}

func TestInvokeModel_NoStreamingWhenDisabled(t *testing.T) {
	llm := &mockModel{}
	llm.On("Generate", mock.Anything).Return([]model.Response{
		{Partial: true, Message: core.NewAssistantMessage("partial")},
		{Message: core.NewAssistantMessage("partial answer")},
	}, nil).Once()

	nc, partials := nodeContext(testutil.NewStateBuilder("", "").Human("hello").Build())
	_, err := invokeModel(nc, modelCall{node: "n", llm: llm}, nc.State().Messages)
	require.NoError(t, err)
	assert.Empty(t, *partials)
}

func TestInvokeModel_ErrorBecomesVisibleMessage(t *testing.T) {
	llm := &mockModel{}
	llm.On("Generate", mock.Anything).Return(nil, errors.New("rate limited")).Once()

	nc, _ := nodeContext(testutil.NewStateBuilder("", "").Human("hello").Build())
	msg, err := invokeModel(nc, modelCall{node: "supervisor", llm: llm}, nc.State().Messages)

	var mie *core.ModelInvocationError
	require.ErrorAs(t, err, &mie)
	assert.Equal(t, "supervisor", mie.Node)
	assert.Equal(t, core.KindAssistant, msg.Kind)
	assert.Contains(t, msg.Content, "rate limited")
}

func TestInvokeModel_CoercesResult(t *testing.T) {
	llm := &mockModel{}
	llm.On("Generate", mock.Anything).Return([]model.Response{
		{Partial: true, Message: core.NewAssistantMessage("streamed text")},
		{Message: core.Message{Kind: core.KindHuman}},
	}, nil).Once()
	llm.On("Generate", mock.Anything).Return([]model.Response{
		{Message: core.Message{Kind: core.KindAssistant, ToolCalls: []core.ToolCall{
			{Name: "write_blog"},
			{ID: "keep", Name: ""},
		}}},
	}, nil).Once()

	nc, _ := nodeContext(testutil.NewStateBuilder("", "").Human("hello").Build())

	msg, err := invokeModel(nc, modelCall{node: "n", llm: llm}, nc.State().Messages)
	require.NoError(t, err)
	assert.Equal(t, core.NewAssistantMessage("streamed text"), msg)

	msg, err = invokeModel(nc, modelCall{node: "n", llm: llm}, nc.State().Messages)
	require.NoError(t, err)
	require.Len(t, msg.ToolCalls, 1)
	assert.True(t, strings.HasPrefix(msg.ToolCalls[0].ID, "call_"))
	assert.Equal(t, "{}", msg.ToolCalls[0].Arguments)
}

func TestInvokeModel_EmptyConversation(t *testing.T) {
	llm := &mockModel{}

	nc, _ := nodeContext(testutil.NewStateBuilder("", "").Human("  ").Build())
	_, err := invokeModel(nc, modelCall{node: "n", llm: llm, instruction: "sys"}, nc.State().Messages)

	assert.ErrorIs(t, err, errEmptyConversation)
	llm.AssertNotCalled(t, "Generate", mock.Anything)
}

func TestInvokeModel_Timeout(t *testing.T) {
	nc, _ := nodeContext(testutil.NewStateBuilder("", "").Human("hello").Build())
	_, err := invokeModel(nc, modelCall{node: "n", llm: blockingModel{}, timeout: 10 * time.Millisecond}, nc.State().Messages)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
