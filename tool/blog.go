package tool

import (
	"context"
	"strings"

	"github.com/hupe1980/threadmesh/internal/util"
)

// BlogWriterName is the tool name exposed to the supervisor.
const BlogWriterName = "write_blog"

const blogTemplate = `# The Ultimate Guide to {{ title .Topic }}

## Introduction
Welcome to our comprehensive guide about {{ .Topic }}. In this blog post, we'll explore everything you need to know about this fascinating topic.

## Main Points
1. History and background of {{ .Topic }}
2. Why {{ .Topic }} matters in today's world
3. How to get started with {{ .Topic }}

## Conclusion
We hope you enjoyed learning about {{ .Topic }}. Stay tuned for more content!

[This is a simulated blog post created by the write_blog tool]
`

type blogArgs struct {
	Query string `json:"query" description:"Topic of the blog post"`
}

// NewBlogWriterTool drafts a templated blog post about the requested topic.
func NewBlogWriterTool() *FunctionTool {
	return NewFunctionToolFromStruct(
		BlogWriterName,
		"Draft a blog post or article about a topic.",
		blogArgs{},
		func(_ context.Context, args map[string]any) (any, error) {
			topic, _ := args["query"].(string)
			topic = strings.TrimSpace(topic)
			if topic == "" {
				return nil, NewToolError(BlogWriterName, "query must not be empty", "VALIDATION_ERROR")
			}
			return util.RenderTemplate(blogTemplate, map[string]any{"Topic": topic})
		},
	)
}
