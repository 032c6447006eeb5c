// Package mmap provides read-only memory-mapped file access.
//
// The local blob store maps stored-collection vector blobs so that batched
// matching reads blocks straight from the page cache.
//
//	m, err := mmap.Open("vectors.bin")
//	if err != nil { ... }
//	defer m.Close()
//	_ = m.Advise(mmap.AccessSequential)
//	data := m.Bytes()
//
// Unix uses mmap(2)/madvise(2); Windows uses CreateFileMapping and ignores
// access hints.
package mmap
