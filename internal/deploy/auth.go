// Copyright (c) 2026 Shipmaster Team
// Shipmaster - application build and deployment orchestrator
// This source code is licensed under the MIT license found in the LICENSE file.

package deploy

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/toeirei/shipmaster/internal/security"
	"github.com/toeirei/shipmaster/internal/state"
	"golang.org/x/crypto/ssh"
	"golang.org/x/term"
)

// agentDialer and passphrasePrompt are swapped in tests.
var (
	agentDialer = dialAgent

	passphrasePrompt = func(name string) ([]byte, error) {
		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			return nil, ErrPassphraseRequired
		}
		fmt.Fprintf(os.Stderr, "Enter passphrase for the key of %s: ", name)
		defer fmt.Fprintln(os.Stderr)
		return term.ReadPassword(fd)
	}
)

// authMethods builds the SSH auth methods for t. The returned closer, when
// non-nil, releases an agent connection.
func authMethods(t Target) ([]ssh.AuthMethod, func() error, error) {
	switch t.Auth.Method() {
	case "pem":
		signer, err := parseSigner(t.Name, t.Auth.PEM)
		if err != nil {
			return nil, nil, err
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil, nil

	case "password":
		pw := t.Auth.Password.Reveal()
		return []ssh.AuthMethod{
			ssh.Password(pw),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = pw
				}
				return answers, nil
			}),
		}, nil, nil

	case "agent":
		ag, closer, err := agentDialer(t.Auth.AgentSocket)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to ssh-agent at %s: %w", t.Auth.AgentSocket, err)
		}
		return []ssh.AuthMethod{ssh.PublicKeysCallback(ag.Signers)}, closer, nil
	}
	return nil, nil, ErrNoAuthMethod
}

// promptMu serializes passphrase prompts of sessions connecting in parallel.
var promptMu sync.Mutex

// parseSigner parses a private key. For an encrypted key it first tries a
// passphrase cached for the same key, then asks for one.
func parseSigner(name string, key []byte) (ssh.Signer, error) {
	signer, err := ssh.ParsePrivateKey(key)
	if err == nil {
		return signer, nil
	}
	var missing *ssh.PassphraseMissingError
	if !errors.As(err, &missing) {
		return nil, fmt.Errorf("failed to parse private key for %s: %w", name, err)
	}

	promptMu.Lock()
	defer promptMu.Unlock()

	id := keyID(key)
	if cached := security.Secret(state.Passphrases.Get(id)); !cached.IsEmpty() {
		signer, err := ssh.ParsePrivateKeyWithPassphrase(key, cached.Bytes())
		cached.Zero()
		if err == nil {
			return signer, nil
		}
		state.Passphrases.Set(id, nil)
	}

	raw, err := passphrasePrompt(name)
	if err != nil {
		return nil, err
	}
	passphrase := security.Secret(raw)
	defer passphrase.Zero()
	if passphrase.IsEmpty() {
		return nil, ErrPassphraseRequired
	}
	signer, err = ssh.ParsePrivateKeyWithPassphrase(key, passphrase.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt private key for %s: %w", name, err)
	}
	state.Passphrases.Set(id, passphrase.Bytes())
	return signer, nil
}

func keyID(key []byte) string {
	sum := sha256.Sum256(key)
	return hex.EncodeToString(sum[:])
}
