// Copyright (c) 2026 Shipmaster Team
// Shipmaster - application build and deployment orchestrator
// This source code is licensed under the MIT license found in the LICENSE file.

// Package state holds transient secrets that live for one invocation, such
// as key passphrases typed once and reused by every server sharing the key.
package state

import "sync"

// Passphrases caches private key passphrases by key fingerprint.
var Passphrases = NewPassphraseCache()

// PassphraseCache is a concurrency-safe map of byte slices. Values are copied
// in and out so they can be zeroed independently.
type PassphraseCache struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewPassphraseCache returns an empty cache.
func NewPassphraseCache() *PassphraseCache {
	return &PassphraseCache{values: map[string][]byte{}}
}

// Set stores a copy of pass under id. A nil pass removes the entry.
func (c *PassphraseCache) Set(id string, pass []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	wipe(c.values[id])
	if pass == nil {
		delete(c.values, id)
		return
	}
	c.values[id] = append([]byte(nil), pass...)
}

// Get returns a copy of the passphrase stored under id, or nil.
// The caller should zero the returned slice after use.
func (c *PassphraseCache) Get(id string) []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.values[id]
	if !ok {
		return nil
	}
	return append([]byte(nil), v...)
}

// Clear zeroes and drops every entry.
func (c *PassphraseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, v := range c.values {
		wipe(v)
		delete(c.values, id)
	}
}

// Len reports the number of cached passphrases.
func (c *PassphraseCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.values)
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
