package cache

import (
	"errors"
	"time"
)

// LayeredCache checks memory first and falls back to disk
type LayeredCache struct {
	memory Cache
	disk   Cache
}

// NewLayeredCache creates a memory cache backed by disk. An empty diskDir
// yields a memory-only cache.
func NewLayeredCache(memoryTTL time.Duration, diskDir string, diskTTL time.Duration) *LayeredCache {
	c := &LayeredCache{
		memory: NewMemoryCache(memoryTTL, 10*time.Minute),
	}
	if diskDir != "" {
		c.disk = NewDiskCache(diskDir, diskTTL)
	}
	return c
}

// Get retrieves a value, promoting disk hits to memory
func (c *LayeredCache) Get(key string) ([]byte, bool) {
	if val, found := c.memory.Get(key); found {
		return val, true
	}

	if c.disk == nil {
		return nil, false
	}

	if val, found := c.disk.Get(key); found {
		_ = c.memory.Set(key, val, 0)
		return val, true
	}

	return nil, false
}

// Set stores a value in every layer
func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	if err := c.memory.Set(key, value, ttl); err != nil {
		return err
	}
	if c.disk == nil {
		return nil
	}
	return c.disk.Set(key, value, ttl)
}

// Delete removes a value from every layer
func (c *LayeredCache) Delete(key string) error {
	err := c.memory.Delete(key)
	if c.disk != nil {
		err = errors.Join(err, c.disk.Delete(key))
	}
	return err
}

// Clear removes all values from every layer
func (c *LayeredCache) Clear() error {
	err := c.memory.Clear()
	if c.disk != nil {
		err = errors.Join(err, c.disk.Clear())
	}
	return err
}
