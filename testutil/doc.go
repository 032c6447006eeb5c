// Package testutil provides testing utilities for vecmatch.
//
// This package is intended for use in tests and benchmarks only.
//
// # Random Data
//
//	rng := testutil.NewRNG(seed)
//	vecs := rng.UniformVectors(100, 16)
//	records := testutil.Records("doc", vecs)
//
// # Ground Truth
//
//	want := testutil.ExactTopK(queries, targets, k, distance.EuclideanDistance)
package testutil
