package vecmatch_bench_test

import (
	"fmt"
	"testing"

	"github.com/hupe1980/vecmatch/collection"
	"github.com/hupe1980/vecmatch/testutil"
)

func formatDim(dim int) string { return fmt.Sprintf("dim=%d", dim) }

func formatCount(n int) string { return fmt.Sprintf("n=%d", n) }

func newArray(b testing.TB, rng *testutil.RNG, prefix string, n, dim int) *collection.Array {
	b.Helper()
	a, err := collection.NewArray(testutil.Records(prefix, rng.UniformVectors(n, dim))...)
	if err != nil {
		b.Fatal(err)
	}
	return a
}

// recallAtK is the fraction of truth ids present in ids.
func recallAtK(ids []string, truth []string) float64 {
	if len(truth) == 0 {
		return 0
	}

	set := make(map[string]struct{}, len(truth))
	for _, id := range truth {
		set[id] = struct{}{}
	}
	var hit int
	for _, id := range ids {
		if _, ok := set[id]; ok {
			hit++
		}
	}
	return float64(hit) / float64(len(truth))
}
