// Copyright (c) 2026 Shipmaster Team
// Shipmaster - application build and deployment orchestrator
// This source code is licensed under the MIT license found in the LICENSE file.

package deploy

import (
	"fmt"
	"strings"
)

func errContains(err error, needles ...string) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, n := range needles {
		if strings.Contains(msg, n) {
			return true
		}
	}
	return false
}

// IsConnectionTimeoutError reports whether err looks like a dial or
// handshake timeout.
func IsConnectionTimeoutError(err error) bool {
	return errContains(err, "timeout", "deadline exceeded", "timed out")
}

// IsConnectionRefusedError reports whether the host was unreachable.
func IsConnectionRefusedError(err error) bool {
	return errContains(err, "connection refused", "no route to host", "network is unreachable")
}

// IsAuthenticationError reports whether the server rejected the credentials.
func IsAuthenticationError(err error) bool {
	return errContains(err, "authentication failed", "unable to authenticate", "permission denied")
}

// IsHostKeyError reports whether host key verification failed.
func IsHostKeyError(err error) bool {
	return errContains(err, "host key mismatch", "unknown host key", "host key verification failed", "key is unknown", "key mismatch")
}

// ClassifyConnectionError wraps err with a message naming host and the kind
// of failure. It returns nil for a nil err.
func ClassifyConnectionError(host string, err error) error {
	switch {
	case err == nil:
		return nil
	case IsHostKeyError(err):
		return fmt.Errorf("host key verification failed for %s: %w", host, err)
	case IsConnectionTimeoutError(err):
		return fmt.Errorf("connection to %s timed out: %w", host, err)
	case IsConnectionRefusedError(err):
		return fmt.Errorf("connection to %s refused: %w", host, err)
	case IsAuthenticationError(err):
		return fmt.Errorf("authentication failed for %s: %w", host, err)
	default:
		return fmt.Errorf("failed to connect to %s: %w", host, err)
	}
}
