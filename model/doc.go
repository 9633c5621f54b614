// Package model defines the provider-agnostic abstraction used by
// model-backed agents and by the model-graded quality judge.
//
// Core goals:
//   - Unify streaming and non-streaming generation behind a single interface
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (model/openai, model/anthropic) implement Model so agents stay
// decoupled from vendor SDKs.
package model
