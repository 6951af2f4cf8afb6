package javaparser

import (
	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// cache is the LRU-with-TTL AST cache: at most CacheSize entries, each
// valid for CacheTTL after insertion. The expirable LRU evicts both by
// capacity (LRU) and by age (TTL sweep) internally, which gives the same
// observable behavior as a capacity-triggered "evict up to 100 expired
// entries" sweep without hand-rolling one.
type cache struct {
	lru *lru.LRU[string, *Result]
}

func newCache() *cache {
	return &cache{lru: lru.NewLRU[string, *Result](CacheSize, nil, CacheTTL)}
}

func (c *cache) get(path string) (*Result, bool) {
	return c.lru.Get(path)
}

func (c *cache) set(path string, r *Result) {
	c.lru.Add(path, r)
}
