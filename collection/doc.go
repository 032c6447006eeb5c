// Package collection defines the record collections consumed by the matcher.
//
// Two implementations are provided:
//
//   - Array: an in-memory collection of shared record pointers. Sources are
//     always Arrays because matching rewrites their match lists.
//   - Stored: a read-only collection persisted in a blobstore.Store as a
//     manifest blob plus a vector blob of fixed-row blocks, optionally LZ4 or
//     ZSTD compressed. Slices of the embedding matrix are decoded on demand
//     through an LRU block cache, which lets the online matcher stream
//     targets that do not fit in memory.
//
// A stored collection is created with WriteStored and opened with
// OpenStored:
//
//	err := collection.WriteStored(ctx, store, "products", records,
//	    collection.WithCompression("zstd"),
//	)
//	target, err := collection.OpenStored(ctx, store, "products")
//	defer target.Close()
package collection
