package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/threadmesh/core"
	"github.com/hupe1980/threadmesh/model"
)

func TestBuildMessages_GroupsToolResults(t *testing.T) {
	msgs := []core.Message{
		core.NewSystemMessage("be brief"),
		core.NewHumanMessage("write two posts"),
		{Kind: core.KindAssistant, ToolCalls: []core.ToolCall{
			{ID: "a", Name: "write_blog", Arguments: `{"topic":"go"}`},
			{ID: "b", Name: "write_blog", Arguments: `{"topic":"rust"}`},
		}},
		core.NewToolMessage("a", "write_blog", "post a"),
		core.NewToolMessage("b", "write_blog", "post b"),
		core.NewAssistantMessage("done"),
	}

	out := buildMessages(msgs)
	require.Len(t, out, 4)
	assert.Equal(t, "user", string(out[0].Role))
	assert.Equal(t, "assistant", string(out[1].Role))
	assert.Len(t, out[1].Content, 2)
	assert.Equal(t, "user", string(out[2].Role))
	assert.Len(t, out[2].Content, 2)
	assert.Equal(t, "assistant", string(out[3].Role))

	system := systemBlocks(msgs)
	require.Len(t, system, 1)
	assert.Equal(t, "be brief", system[0].Text)
}

func TestBuildTools(t *testing.T) {
	tools := buildTools([]model.ToolDefinition{{
		Type: "function",
		Function: model.FunctionDefinition{
			Name:        "web_search",
			Description: "search the web",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"query": map[string]any{"type": "string"}},
				"required":   []any{"query"},
			},
		},
	}})

	require.Len(t, tools, 1)
	require.NotNil(t, tools[0].OfTool)
	assert.Equal(t, "web_search", tools[0].OfTool.Name)
	assert.Equal(t, []string{"query"}, tools[0].OfTool.InputSchema.Required)
}
