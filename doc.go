// Package threadmesh runs multi-turn, multi-agent conversations over
// durable threads.
//
// A conversation lives in a thread identified by an opaque id. Each turn
// loads the thread's checkpoint, appends the user message, runs the
// conversation graph (a supervisor that answers directly or delegates to
// specialists, plus a tool node) and streams events back to the caller
// while the updated state is persisted after every step.
//
// Most applications:
//  1. Build a graph with NewDefaultGraph (or graph.New for custom nodes)
//  2. Create a Service with New, supplying a durable checkpoint.Store
//  3. Call CreateThread once per conversation and Chat once per user turn
//
// Service methods are safe for concurrent use. Turns on the same thread
// must be serialized by the caller; the last checkpoint written wins.
package threadmesh
