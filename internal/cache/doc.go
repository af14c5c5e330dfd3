// Package cache provides a generic LRU cache with an eviction callback.
//
// Values are usually GPU objects (image views) that must be destroyed when
// they leave the cache, so every removal path (eviction, Delete, Clear)
// reports the value to the callback:
//
//	c := cache.New[key, gpucore.ViewHandle](64, func(_ key, v gpucore.ViewHandle) {
//		dev.DestroyView(v)
//	})
//	v, err := c.GetOrCreate(k, func() (gpucore.ViewHandle, error) {
//		return dev.CreateView(desc)
//	})
//
// # Thread Safety
//
// Cache is safe for concurrent use. It must not be copied after creation
// (it contains a mutex). The eviction callback runs with the lock held and
// must not call back into the cache.
package cache
