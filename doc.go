// Package vecmatch computes exact k-nearest-neighbor matches between two
// collections of embedded records.
//
// For every record of a source collection, Match finds the closest records
// of a target collection under a distance metric and stores them, ranked by
// ascending distance, as the record's match list.
//
// # Quick Start
//
//	source, _ := collection.NewArray(queries...)
//	target, _ := collection.NewArray(documents...)
//	err := vecmatch.Match(ctx, source, target, vecmatch.Named("cosine"), vecmatch.WithLimit(10))
//	for _, r := range source.Records() {
//	    fmt.Println(r.ID, r.MatchIDs())
//	}
//
// # Matching Modes
//
// By default the full source-by-target distance matrix is computed at once.
// WithBatchSize streams the target in chunks and keeps a running best-k per
// source row instead, so targets larger than memory can be matched:
//
//	store := blobstore.NewLocalStore("./data")
//	target, _ := collection.OpenStored(ctx, store, "documents")
//	err := vecmatch.Match(ctx, source, target, vecmatch.Named("euclidean"),
//	    vecmatch.WithBatchSize(4096),
//	    vecmatch.WithParallelism(4),
//	)
//
// Both modes return the same matches. Exact ties are broken by the lower
// target position.
//
// # Scores
//
// A match's score is its raw distance, stored under the metric name or the
// name given with WithMetricName. WithNormalization rescales distances into
// a chosen range using each row's observed distance range; an inverted range
// such as (1, 0) turns distances into similarities. In batched mode the
// observed range is per chunk by default (PerBatch) or over the whole target
// (Global, see WithOnlineNormalization).
//
// # Self Matches and Cycles
//
// WithExcludeSelf removes a record's own id from its matches, which is the
// usual setup when a collection is matched against itself. Attached target
// records never carry match lists of their own: targets that also occur in
// the source, or that already hold matches, are attached as detached copies.
package vecmatch
