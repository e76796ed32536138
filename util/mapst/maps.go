// Copyright (c) 2026 Shipmaster Team
// Shipmaster - application build and deployment orchestrator
// This source code is licensed under the MIT license found in the LICENSE file.

// Package mapst holds generic helpers for maps.
package mapst

import (
	"cmp"
	"slices"
)

// Keys returns the keys of m in unspecified order.
func Keys[K comparable, V any, M ~map[K]V](m M) []K {
	result := make([]K, 0, len(m))
	for k := range m {
		result = append(result, k)
	}
	return result
}

// SortedKeys returns the keys of m in ascending order. The result is never
// nil.
func SortedKeys[K cmp.Ordered, V any, M ~map[K]V](m M) []K {
	keys := Keys(m)
	slices.Sort(keys)
	return keys
}
