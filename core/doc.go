// Package core provides the foundational domain types shared by every
// threadmesh component:
//
//   - Message (the canonical conversation turn) and its tolerant codec, which
//     accepts every historical checkpoint shape ever written
//   - State (messages + thread context + monotonic task flags)
//   - NodeResult (the delta a graph node produces in one step)
//   - StreamEvent (the externally consumed event wire format)
//   - The typed error taxonomy used across the engine
//
// The package has no knowledge of persistence backends, model providers or
// routing; those live in their own packages and depend on core.
package core
