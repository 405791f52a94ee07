// Package algorithm defines the configurable transform wrapped by every pipeline step
// and the typed parameters it exposes to the presentation layer.
package algorithm
