// Package testutil contains helper builders and fakes used across tests to
// reduce boilerplate when constructing conversation states and driving
// graph nodes with deterministic model output. They are not intended for
// production usage.
package testutil
