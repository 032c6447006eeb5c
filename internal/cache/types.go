package cache

// Key identifies a decoded block of a stored collection.
type Key struct {
	// Blob is the name of the vector blob, unique per store.
	Blob string
	// Block is the block index within the blob.
	Block int
}
