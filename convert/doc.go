// Package convert resolves, once per (source type, target field) pair, how a raw value read from a
// tabular source is turned into a value of the target field's type, and synthesizes a reusable
// Routine that performs that conversion and the assignment.
//
// Routines are cached by a Cache, which is safe for concurrent use and never evicts.
package convert
