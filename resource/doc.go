// Package resource bounds the memory, concurrency and IO used by matching.
//
// A single Controller may be shared by many concurrent match calls:
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes:   512 << 20,
//	    MaxWorkers:         4,
//	    IOLimitBytesPerSec: 64 << 20,
//	})
//
// Memory is reserved for every distance block and decoded target chunk
// before it is allocated and released once the block has been reduced to
// its top-k. AcquireMemory blocks while the limit is reached. Worker slots
// cap the number of batches scored concurrently. The IO limiter is a token
// bucket charged for every byte read from a blob store.
package resource
