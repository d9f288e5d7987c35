// Package cache provides the response cache abstraction used by the
// dispatcher for read-path caching, plus an expirable-LRU
// implementation bounding both entry count and entry age.
package cache
