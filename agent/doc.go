// Package agent contains the graph nodes of a conversation turn:
//
//  1. Supervisor: the entry node answering the user, optionally with tools
//  2. Research: a specialist gathering fresh information through web search
//  3. ToolExecutor: the node answering pending tool calls via a tool.Registry
//
// Model-backed nodes share one defensive call path. Blank turns are stripped
// before a request is sent (assistant tool-call requests are kept), a
// default system instruction is injected when the conversation has none,
// odd results are coerced into well-formed assistant messages and model
// failures are turned into visible assistant messages instead of aborting
// the run.
package agent
