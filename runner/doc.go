// Package runner streams conversation turns to clients.
//
// A Runner executes the graph for one thread and converts the ordered
// steps into the external event stream: tool outputs are forwarded as soon
// as they exist, response content replaces (never appends to) the client's
// response buffer, specialist delegation is announced, and the turn ends
// with exactly one event whose Complete flag marks the end of the turn.
// After every merged step the thread state is written to the checkpoint
// store, so an interrupted turn resumes from its last completed step.
//
// Failures anywhere in the pipeline, including the step ceiling and
// panics, collapse into a single error event.
package runner
