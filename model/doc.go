// Package model defines the provider-agnostic abstractions and concrete
// helpers for interacting with language models inside threadmesh.
//
// Core goals:
//   - Unify streaming + non-streaming generation behind a single interface
//   - Carry conversation messages and tool calls as core.Message values
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (OpenAI, Anthropic) implement the Model interface from this
// package so graph nodes remain decoupled from vendor SDKs.
package model
