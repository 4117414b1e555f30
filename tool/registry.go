package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/threadmesh/core"
	"github.com/hupe1980/threadmesh/logging"
	"github.com/hupe1980/threadmesh/model"
)

// Registry is a closed name to tool mapping. Requests for names that were
// never registered fail with *UnknownToolError.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	logger logging.Logger
}

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	Logger logging.Logger
}

// NewRegistry creates a registry holding tools.
func NewRegistry(tools []Tool, optFns ...func(o *RegistryOptions)) (*Registry, error) {
	opts := RegistryOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	r := &Registry{tools: make(map[string]Tool, len(tools)), logger: opts.Logger}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a tool. Names must be unique.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := t.Name()
	if name == "" {
		return fmt.Errorf("tool name must not be empty")
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	r.tools[name] = t
	return nil
}

// Get returns the named tool.
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return nil, &UnknownToolError{Name: name}
	}
	return t, nil
}

// Names lists the registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Definitions returns model-facing declarations for the named tools, or for
// every tool when names is empty.
func (r *Registry) Definitions(names ...string) []model.ToolDefinition {
	if len(names) == 0 {
		names = r.Names()
	}
	defs := make([]model.ToolDefinition, 0, len(names))
	for _, n := range names {
		if t, err := r.Get(n); err == nil {
			defs = append(defs, Definition(t))
		}
	}
	return defs
}

// Execute runs one tool call and always returns the tool message answering
// it. On failure the message content is the error text and the error is a
// *core.ToolExecutionError.
func (r *Registry) Execute(ctx context.Context, call core.ToolCall) (core.Message, error) {
	start := time.Now()
	r.logger.Debug("tool.call.start", "tool", call.Name, "tool_call_id", call.ID)

	result, err := r.execute(ctx, call)
	logging.ToolCall(r.logger, call.Name, call.ID, time.Since(start), err)
	if err != nil {
		return core.NewToolMessage(call.ID, call.Name, fmt.Sprintf("Error executing %s: %v", call.Name, err)),
			&core.ToolExecutionError{Tool: call.Name, ToolCallID: call.ID, Err: err}
	}
	return core.NewToolMessage(call.ID, call.Name, result), nil
}

func (r *Registry) execute(ctx context.Context, call core.ToolCall) (string, error) {
	t, err := r.Get(call.Name)
	if err != nil {
		return "", err
	}
	args, err := parseArguments(call.Arguments)
	if err != nil {
		return "", &ToolError{Tool: call.Name, Message: err.Error(), Code: "VALIDATION_ERROR"}
	}
	out, err := t.Call(ctx, args)
	if err != nil {
		return "", err
	}
	return stringify(out)
}

func parseArguments(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

func stringify(v any) (string, error) {
	switch r := v.(type) {
	case nil:
		return "", nil
	case string:
		return r, nil
	case fmt.Stringer:
		return r.String(), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode tool result: %w", err)
	}
	return string(b), nil
}
