// Package model defines the record types read and written by the matcher.
//
//   - Record: identity, dense or sparse embedding, tags and ranked matches
//   - Match: a target record plus scores keyed by metric name
//   - SparseVector: index/value pairs for sparse embeddings
//
// A Match never holds a record whose own match list is non-empty; targets
// that could re-enter the query side are attached as detached copies.
package model
