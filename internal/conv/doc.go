// Package conv provides checked integer conversions and float32 byte views.
//
// The checked conversions validate untrusted values read from stored
// collection manifests (counts, offsets, header lengths).
package conv
