// Package cache keeps loaded voice models in memory between synthesis calls.
//
// A ModelCache is an LRU keyed by model identifier and bounded twice: by the
// number of entries and by the estimated memory footprint of the loaded
// models. Evicted models are shut down before they leave the cache.
package cache
