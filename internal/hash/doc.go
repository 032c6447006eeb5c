// Package hash provides the checksum used for stored collection blocks.
//
// Every encoded vector block carries a CRC32-Castagnoli (CRC32C) checksum
// in the manifest; readers verify it before decoding:
//
//	ref.Checksum = hash.CRC32C(block)
//	...
//	if hash.CRC32C(buf) != ref.Checksum { /* corrupt */ }
package hash
