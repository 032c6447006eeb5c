package testutil

import (
	"cmp"
	"fmt"
	"math"
	"math/rand"
	"slices"
	"sync"

	"github.com/hupe1980/vecmatch/distance"
	"github.com/hupe1980/vecmatch/model"
	"github.com/viterin/vek/vek32"
)

// Neighbor is an exact nearest-neighbor result.
type Neighbor struct {
	Index    int
	Distance float32
}

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand = rand.New(rand.NewSource(r.seed))
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float32 returns, as a float32, a pseudo-random number in [0.0,1.0).
func (r *RNG) Float32() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float32()
}

// FillUniform fills dst with random values in range [0, 1).
func (r *RNG) FillUniform(dst []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = r.rand.Float32()
	}
}

// UniformVectors generates random vectors with values in range [0, 1).
// Uses a single backing array for efficiency.
func (r *RNG) UniformVectors(num int, dimensions int) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dimensions)
	vectors := make([][]float32, num)

	for i := range num {
		vec := data[i*dimensions : (i+1)*dimensions : (i+1)*dimensions]
		for j := range vec {
			vec[j] = r.rand.Float32()
		}
		vectors[i] = vec
	}

	return vectors
}

// UniformRangeVectors generates random vectors with values in range [-1, 1).
func (r *RNG) UniformRangeVectors(num int, dimensions int) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dimensions)
	vectors := make([][]float32, num)

	for i := range num {
		vec := data[i*dimensions : (i+1)*dimensions : (i+1)*dimensions]
		for j := range vec {
			vec[j] = r.rand.Float32()*2 - 1
		}
		vectors[i] = vec
	}

	return vectors
}

// UnitVectors generates L2-normalized random vectors (on the hypersphere).
func (r *RNG) UnitVectors(num int, dimensions int) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	vectors := make([][]float32, num)
	for i := range num {
		vec := make([]float32, dimensions)
		var norm float64
		for j := range vec {
			v := r.rand.NormFloat64()
			vec[j] = float32(v)
			norm += v * v
		}
		if norm == 0 {
			norm = 1
		}
		vek32.MulNumber_Inplace(vec, float32(1.0/math.Sqrt(norm)))
		vectors[i] = vec
	}

	return vectors
}

// ClusteredVectors generates vectors clustered around random centroids.
// Clusters produce many near-ties, which stress top-k boundaries.
func (r *RNG) ClusteredVectors(num, dim, clusters int, spread float32) [][]float32 {
	centroids := r.UniformVectors(clusters, dim)

	r.mu.Lock()
	defer r.mu.Unlock()

	vectors := make([][]float32, num)
	for i := range num {
		c := centroids[r.rand.Intn(clusters)]
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = c[j] + float32(r.rand.NormFloat64())*spread
		}
		vectors[i] = vec
	}
	return vectors
}

// SparseVectors generates sparse vectors where each coordinate is non-zero
// with the given probability.
func (r *RNG) SparseVectors(num, dim int, density float64) []*model.SparseVector {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*model.SparseVector, num)
	for i := range num {
		v := &model.SparseVector{Dim: dim}
		for j := range dim {
			if r.rand.Float64() < density {
				v.Indices = append(v.Indices, j)
				v.Values = append(v.Values, r.rand.Float32()*2-1)
			}
		}
		out[i] = v
	}
	return out
}

// Records wraps vectors into records with ids prefix0, prefix1, ...
func Records(prefix string, vectors [][]float32) []*model.Record {
	out := make([]*model.Record, len(vectors))
	for i, v := range vectors {
		out[i] = model.NewRecord(fmt.Sprintf("%s%d", prefix, i), v)
	}
	return out
}

// SparseRecords wraps sparse vectors into records with ids prefix0, prefix1, ...
func SparseRecords(prefix string, vectors []*model.SparseVector) []*model.Record {
	out := make([]*model.Record, len(vectors))
	for i, v := range vectors {
		out[i] = &model.Record{ID: fmt.Sprintf("%s%d", prefix, i), Sparse: v}
	}
	return out
}

// ExactTopK computes ground truth by fully sorting every query's distances.
// Ties are broken by the lower target index.
func ExactTopK(queries, targets [][]float32, k int, fn distance.Func) [][]Neighbor {
	out := make([][]Neighbor, len(queries))
	for q, query := range queries {
		all := make([]Neighbor, len(targets))
		for i, t := range targets {
			all[i] = Neighbor{Index: i, Distance: fn(query, t)}
		}
		slices.SortFunc(all, func(a, b Neighbor) int {
			if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
				return c
			}
			return cmp.Compare(a.Index, b.Index)
		})
		out[q] = all[:min(k, len(all))]
	}
	return out
}
