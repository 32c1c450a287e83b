// Package cache provides a generic LRU cache safe for concurrent use.
//
//	runs := cache.New[string, []int](256)
//	v := runs.GetOrCreate("hello", func() []int { return shape("hello") })
//
// Cache hits move the entry to the front; inserting past the capacity
// evicts the least recently used entry.
package cache
