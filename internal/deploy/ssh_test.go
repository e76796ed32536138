// Copyright (c) 2026 Shipmaster Team
// Shipmaster - application build and deployment orchestrator
// This source code is licensed under the MIT license found in the LICENSE file.

package deploy

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/pkg/sftp"
	"github.com/toeirei/shipmaster/internal/config"
	"github.com/toeirei/shipmaster/internal/security"
	"github.com/toeirei/shipmaster/internal/state"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// testServer is a minimal SSH server answering "exec" requests and the sftp
// subsystem. Commands of the form "exit N" exit with status N; anything else
// is echoed back on stdout.
type testServer struct {
	addr    string
	hostKey ssh.Signer
}

func newTestServer(t *testing.T, cfg *ssh.ServerConfig) *testServer {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate host key: %v", err)
	}
	hostKey, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("host signer: %v", err)
	}
	cfg.AddHostKey(hostKey)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serveConn(conn, cfg)
		}
	}()
	return &testServer{addr: ln.Addr().String(), hostKey: hostKey}
}

func serveConn(conn net.Conn, cfg *ssh.ServerConfig) {
	_, chans, reqs, err := ssh.NewServerConn(conn, cfg)
	if err != nil {
		conn.Close()
		return
	}
	go ssh.DiscardRequests(reqs)
	for nc := range chans {
		if nc.ChannelType() != "session" {
			_ = nc.Reject(ssh.UnknownChannelType, "unsupported")
			continue
		}
		ch, chReqs, err := nc.Accept()
		if err != nil {
			continue
		}
		go serveSession(ch, chReqs)
	}
}

func serveSession(ch ssh.Channel, reqs <-chan *ssh.Request) {
	for req := range reqs {
		switch req.Type {
		case "exec":
			var payload struct{ Command string }
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
				_ = req.Reply(false, nil)
				continue
			}
			_ = req.Reply(true, nil)
			status := 0
			if code, ok := strings.CutPrefix(payload.Command, "exit "); ok {
				status, _ = strconv.Atoi(code)
				_, _ = ch.Stderr().Write([]byte("failing\n"))
			} else {
				_, _ = ch.Write([]byte(payload.Command + "\n"))
			}
			_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{uint32(status)}))
			ch.Close()
			return
		case "subsystem":
			var payload struct{ Name string }
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil || payload.Name != "sftp" {
				_ = req.Reply(false, nil)
				continue
			}
			_ = req.Reply(true, nil)
			go ssh.DiscardRequests(reqs)
			srv, err := sftp.NewServer(ch)
			if err != nil {
				ch.Close()
				return
			}
			_ = srv.Serve()
			srv.Close()
			return
		default:
			_ = req.Reply(false, nil)
		}
	}
}

func passwordServerConfig(password string) *ssh.ServerConfig {
	return &ssh.ServerConfig{
		PasswordCallback: func(_ ssh.ConnMetadata, p []byte) (*ssh.Permissions, error) {
			if string(p) == password {
				return nil, nil
			}
			return nil, errors.New("permission denied")
		},
	}
}

func targetFor(t *testing.T, srv *testServer, auth Auth) Target {
	t.Helper()
	host, port, err := net.SplitHostPort(srv.addr)
	if err != nil {
		t.Fatal(err)
	}
	p, _ := strconv.Atoi(port)
	return Target{Name: "one", Host: host, Auth: auth, Opts: config.SSHOptions{Port: p}}
}

func openSession(t *testing.T, target Target) Session {
	t.Helper()
	s, err := NewSSHBroker().NewSession(target)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAuthMethod(t *testing.T) {
	tests := []struct {
		name string
		auth Auth
		want string
	}{
		{"pem wins", Auth{PEM: security.FromString("k"), Password: security.FromString("p"), AgentSocket: "/s"}, "pem"},
		{"password over agent", Auth{Password: security.FromString("p"), AgentSocket: "/s"}, "password"},
		{"agent", Auth{AgentSocket: "/s"}, "agent"},
		{"none", Auth{Username: "root"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.auth.Method(); got != tt.want {
				t.Errorf("Method() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTargetAddrDefaultsPort(t *testing.T) {
	if got := (Target{Host: "1.2.3.4"}).Addr(); got != "1.2.3.4:22" {
		t.Errorf("Addr() = %q", got)
	}
	tgt := Target{Host: "::1", Opts: config.SSHOptions{Port: 2222}}
	if got := tgt.Addr(); got != "[::1]:2222" {
		t.Errorf("Addr() = %q", got)
	}
}

func TestNewSessionRejectsIncompleteTargets(t *testing.T) {
	b := NewSSHBroker()
	if _, err := b.NewSession(Target{Name: "x", Auth: Auth{Password: security.FromString("p")}}); !errors.Is(err, ErrNoHost) {
		t.Errorf("expected ErrNoHost, got %v", err)
	}
	if _, err := b.NewSession(Target{Name: "x", Host: "h"}); !errors.Is(err, ErrNoAuthMethod) {
		t.Errorf("expected ErrNoAuthMethod, got %v", err)
	}
}

func TestNewSessionAppliesTimeout(t *testing.T) {
	b := NewSSHBroker()
	s, err := b.NewSession(Target{Host: "h", Auth: Auth{Password: security.FromString("p")}})
	if err != nil {
		t.Fatal(err)
	}
	if got := s.(*SSHSession).timeout; got != DefaultConnectionTimeout {
		t.Errorf("timeout = %v, want %v", got, DefaultConnectionTimeout)
	}
	s, err = b.NewSession(Target{Host: "h", Auth: Auth{Password: security.FromString("p")}, Opts: config.SSHOptions{Timeout: 3 * time.Second}})
	if err != nil {
		t.Fatal(err)
	}
	if got := s.(*SSHSession).timeout; got != 3*time.Second {
		t.Errorf("timeout = %v, want 3s", got)
	}
}

func TestDialErrorsAreClassified(t *testing.T) {
	orig := sshDial
	defer func() { sshDial = orig }()

	sshDial = func(_, _ string, _ *ssh.ClientConfig) (*ssh.Client, error) {
		return nil, errors.New("dial tcp: i/o timeout")
	}
	s := openSession(t, Target{Name: "one", Host: "10.0.0.1", Auth: Auth{Password: security.FromString("p")}})
	_, err := s.Run(context.Background(), "true")
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("expected timeout classification, got %v", err)
	}
}

func TestRunWithPassword(t *testing.T) {
	srv := newTestServer(t, passwordServerConfig("secret"))
	s := openSession(t, targetFor(t, srv, Auth{Username: "root", Password: security.FromString("secret")}))

	res, err := s.Run(context.Background(), "uname -a")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Stdout != "uname -a\n" || res.ExitCode != 0 {
		t.Errorf("unexpected result %+v", res)
	}

	// The connection is reused.
	if _, err := s.Run(context.Background(), "true"); err != nil {
		t.Fatalf("second Run: %v", err)
	}
}

func TestRunReportsExitStatus(t *testing.T) {
	srv := newTestServer(t, passwordServerConfig("secret"))
	s := openSession(t, targetFor(t, srv, Auth{Username: "root", Password: security.FromString("secret")}))

	res, err := s.Run(context.Background(), "exit 3")
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}
	if res == nil || res.ExitCode != 3 || res.Stderr != "failing\n" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestRunWrongPassword(t *testing.T) {
	srv := newTestServer(t, passwordServerConfig("secret"))
	s := openSession(t, targetFor(t, srv, Auth{Username: "root", Password: security.FromString("wrong")}))

	_, err := s.Run(context.Background(), "true")
	if err == nil || !strings.Contains(err.Error(), "authentication failed") {
		t.Fatalf("expected authentication failure, got %v", err)
	}
}

func newKeyPair(t *testing.T, passphrase string) (ssh.PublicKey, []byte) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	var block *pem.Block
	if passphrase == "" {
		block, err = ssh.MarshalPrivateKey(priv, "test")
	} else {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, "test", []byte(passphrase))
	}
	if err != nil {
		t.Fatal(err)
	}
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		t.Fatal(err)
	}
	return sshPub, pem.EncodeToMemory(block)
}

func publicKeyServerConfig(allowed ssh.PublicKey) *ssh.ServerConfig {
	return &ssh.ServerConfig{
		PublicKeyCallback: func(_ ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if string(key.Marshal()) == string(allowed.Marshal()) {
				return nil, nil
			}
			return nil, errors.New("unknown key")
		},
	}
}

func TestRunWithPEM(t *testing.T) {
	pub, key := newKeyPair(t, "")
	srv := newTestServer(t, publicKeyServerConfig(pub))
	s := openSession(t, targetFor(t, srv, Auth{Username: "root", PEM: key}))

	if _, err := s.Run(context.Background(), "true"); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestEncryptedPEMPromptsForPassphrase(t *testing.T) {
	orig := passphrasePrompt
	defer func() { passphrasePrompt = orig }()

	pub, key := newKeyPair(t, "hunter2")
	var asked string
	passphrasePrompt = func(name string) ([]byte, error) {
		asked = name
		return []byte("hunter2"), nil
	}

	srv := newTestServer(t, publicKeyServerConfig(pub))
	s := openSession(t, targetFor(t, srv, Auth{Username: "root", PEM: key}))
	if _, err := s.Run(context.Background(), "true"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if asked != "one" {
		t.Errorf("prompt asked for %q, want %q", asked, "one")
	}
}

func TestEncryptedPEMWithoutPassphrase(t *testing.T) {
	orig := passphrasePrompt
	defer func() { passphrasePrompt = orig }()
	passphrasePrompt = func(string) ([]byte, error) { return nil, nil }

	_, key := newKeyPair(t, "hunter2")
	if _, err := parseSigner("one", key); !errors.Is(err, ErrPassphraseRequired) {
		t.Fatalf("expected ErrPassphraseRequired, got %v", err)
	}
}

func TestEncryptedPEMPassphraseIsReused(t *testing.T) {
	orig := passphrasePrompt
	defer func() { passphrasePrompt = orig }()
	t.Cleanup(state.Passphrases.Clear)

	_, key := newKeyPair(t, "hunter2")
	prompts := 0
	passphrasePrompt = func(string) ([]byte, error) {
		prompts++
		return []byte("hunter2"), nil
	}

	for _, name := range []string{"one", "two"} {
		if _, err := parseSigner(name, key); err != nil {
			t.Fatalf("parseSigner(%s): %v", name, err)
		}
	}
	if prompts != 1 {
		t.Fatalf("expected one prompt for a shared key, got %d", prompts)
	}
}

func TestStalePassphraseIsDropped(t *testing.T) {
	orig := passphrasePrompt
	defer func() { passphrasePrompt = orig }()
	t.Cleanup(state.Passphrases.Clear)

	_, key := newKeyPair(t, "hunter2")
	state.Passphrases.Set(keyID(key), []byte("wrong"))
	prompts := 0
	passphrasePrompt = func(string) ([]byte, error) {
		prompts++
		return []byte("hunter2"), nil
	}

	if _, err := parseSigner("one", key); err != nil {
		t.Fatalf("parseSigner: %v", err)
	}
	if prompts != 1 {
		t.Fatalf("expected a prompt after the cached passphrase failed, got %d", prompts)
	}
	if got := string(state.Passphrases.Get(keyID(key))); got != "hunter2" {
		t.Fatalf("cache holds %q, want the working passphrase", got)
	}
}

func TestInvalidPEM(t *testing.T) {
	_, err := parseSigner("one", []byte("not a key"))
	if err == nil || !strings.Contains(err.Error(), "one") {
		t.Fatalf("expected parse error naming the server, got %v", err)
	}
}

func TestRunWithAgent(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	keyring := agent.NewKeyring()
	if err := keyring.Add(agent.AddedKey{PrivateKey: priv}); err != nil {
		t.Fatal(err)
	}
	signers, err := keyring.Signers()
	if err != nil || len(signers) != 1 {
		t.Fatalf("keyring signers: %v", err)
	}

	orig := agentDialer
	defer func() { agentDialer = orig }()
	var dialed string
	closed := false
	agentDialer = func(sock string) (agent.Agent, func() error, error) {
		dialed = sock
		return keyring, func() error { closed = true; return nil }, nil
	}

	srv := newTestServer(t, publicKeyServerConfig(signers[0].PublicKey()))
	s, err := NewSSHBroker().NewSession(targetFor(t, srv, Auth{Username: "root", AgentSocket: "/tmp/agent.sock"}))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Run(context.Background(), "true"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if dialed != "/tmp/agent.sock" {
		t.Errorf("dialed %q", dialed)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !closed {
		t.Error("agent connection was not closed")
	}
}

func TestKnownHostsRejectsUnknownHost(t *testing.T) {
	srv := newTestServer(t, passwordServerConfig("secret"))
	kh := filepath.Join(t.TempDir(), "known_hosts")
	if err := os.WriteFile(kh, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	target := targetFor(t, srv, Auth{Username: "root", Password: security.FromString("secret")})
	target.Opts.KnownHosts = kh

	s := openSession(t, target)
	_, err := s.Run(context.Background(), "true")
	if err == nil || !strings.Contains(err.Error(), "host key verification failed") {
		t.Fatalf("expected host key failure, got %v", err)
	}
}

func TestUpload(t *testing.T) {
	srv := newTestServer(t, passwordServerConfig("secret"))
	s := openSession(t, targetFor(t, srv, Auth{Username: "root", Password: security.FromString("secret")}))

	local := filepath.Join(t.TempDir(), "bundle.tar.gz")
	if err := os.WriteFile(local, []byte("payload"), 0o600); err != nil {
		t.Fatal(err)
	}
	remote := filepath.ToSlash(filepath.Join(t.TempDir(), "app", "tmp", "bundle.tar.gz"))

	for i := 0; i < 2; i++ {
		if err := s.Upload(context.Background(), local, remote); err != nil {
			t.Fatalf("Upload #%d: %v", i+1, err)
		}
	}
	got, err := os.ReadFile(remote)
	if err != nil {
		t.Fatalf("read uploaded file: %v", err)
	}
	if string(got) != "payload" {
		t.Errorf("uploaded content = %q", got)
	}
	entries, err := os.ReadDir(filepath.Dir(remote))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the final file, found %d entries", len(entries))
	}
}

func TestUploadCancelled(t *testing.T) {
	srv := newTestServer(t, passwordServerConfig("secret"))
	s := openSession(t, targetFor(t, srv, Auth{Username: "root", Password: security.FromString("secret")}))

	local := filepath.Join(t.TempDir(), "bundle.tar.gz")
	if err := os.WriteFile(local, []byte("payload"), 0o600); err != nil {
		t.Fatal(err)
	}
	remoteDir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Upload(ctx, local, filepath.ToSlash(filepath.Join(remoteDir, "bundle.tar.gz"))); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	entries, _ := os.ReadDir(remoteDir)
	if len(entries) != 0 {
		t.Errorf("cancelled upload left %d files behind", len(entries))
	}
}
