// Package cache provides the LRU cache for decoded blocks of stored
// collections.
//
// Online matching walks a stored target once per batch of source rows, so
// recently decoded blocks are likely to be reused. Cached bytes are charged
// to the resource.Controller and returned to it on eviction.
package cache
