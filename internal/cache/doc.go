// Package cache provides a small generic LRU cache.
//
// The renderer keeps the geometry of recent pass shapes here so that
// switching between nearby depths or viewport sizes does not rebuild
// instance batches:
//
//	c := cache.New[batchKey, flame.InstanceBatch](16)
//	b := c.GetOrCreate(key, func() flame.InstanceBatch { return build(key) })
//
// Cache is safe for concurrent use and must not be copied after creation.
package cache
