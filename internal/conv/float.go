package conv

import "unsafe"

// Float32Bytes returns the in-memory byte view of v without copying.
// Stored collections are written in host byte order, which is little endian
// on every supported platform.
func Float32Bytes(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&v[0])), len(v)*4) //nolint:gosec
}
