// Package graph runs one conversation turn as a small state machine.
//
// A Graph has a supervisor entry node, any number of specialist nodes and an
// optional tool node. Every step hands a node the full conversation state and
// merges the returned core.NodeResult before the next transition is decided.
// At each supervisor step the routing policy decides whether to delegate to a
// specialist or to let the supervisor answer directly; specialists always
// hand control back to the supervisor, and pending tool calls are executed by
// the tool node before control returns to the node that requested them.
//
// Node failures, including panics, become visible assistant messages so a
// run always reaches the terminal state. The only fatal conditions are the
// step ceiling (*core.RoutingCycleError), a routing decision naming an
// unknown node (*core.UnknownNodeError) and context cancellation.
package graph
