// Package logging provides a minimal logging interface and adapters for threadmesh.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the graph executor, nodes, runner and stores use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - StructuredLogger, a slog based Logger with component and thread scoping
//   - With and WithThread to scope any Logger
//   - NodeStep, ModelCall, ToolCall and Checkpoint event helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	g := graph.New(supervisor, graph.WithLogger(logger.WithComponent("graph")))
package logging
