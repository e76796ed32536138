// Copyright (c) 2026 Shipmaster Team
// Shipmaster - application build and deployment orchestrator
// This source code is licensed under the MIT license found in the LICENSE file.

// Package security holds types for handling credential material.
package security

import "encoding/json"

const redacted = "[SECRET]"

// Secret is credential material, such as a private key or a password. It
// never prints its content through fmt or encoding/json.
type Secret []byte

// FromString copies s into a Secret.
func FromString(s string) Secret { return Secret(s) }

// FromBytes copies b into a Secret.
func FromBytes(b []byte) Secret { return append(Secret(nil), b...) }

// Bytes exposes the raw content.
func (s Secret) Bytes() []byte { return s }

// Reveal returns the content as a string.
func (s Secret) Reveal() string { return string(s) }

// IsEmpty reports whether the secret has no content.
func (s Secret) IsEmpty() bool { return len(s) == 0 }

func (s Secret) String() string { return redacted }

// GoString keeps %#v from leaking the content.
func (s Secret) GoString() string { return redacted }

// MarshalJSON writes the redacted marker instead of the content.
func (s Secret) MarshalJSON() ([]byte, error) { return json.Marshal(redacted) }

// Zero overwrites the content in place.
func (s *Secret) Zero() {
	if s == nil {
		return
	}
	for i := range *s {
		(*s)[i] = 0
	}
}
