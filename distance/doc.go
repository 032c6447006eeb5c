// Package distance provides the metric registry and pairwise distance
// providers used by the matching engine.
//
// Dense kernels are backed by github.com/viterin/vek, which dispatches to
// AVX2/NEON implementations when the CPU supports them.
//
// # Supported Metrics
//
//   - cosine: 1 - cosine similarity
//   - euclidean: L2 distance
//   - sqeuclidean: squared L2 distance
//   - cityblock: L1 distance
//   - chebyshev: L-infinity distance
//
// Every metric is available for dense and sparse (CSR) operands.
//
// # Usage
//
//	cdist, err := distance.Pairwise(distance.Euclidean)
//	d, err := cdist(x, y) // [x.Rows, y.Rows]
package distance
