// Copyright (c) 2026 Shipmaster Team
// Shipmaster - application build and deployment orchestrator
// This source code is licensed under the MIT license found in the LICENSE file.

package deploy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/sftp"
	"github.com/toeirei/shipmaster/internal/config"
	"github.com/toeirei/shipmaster/internal/logging"
	"github.com/toeirei/shipmaster/internal/security"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const (
	// DefaultPort is used when a server has no opts.port.
	DefaultPort = 22
	// DefaultConnectionTimeout bounds the TCP connect and SSH handshake.
	DefaultConnectionTimeout = 10 * time.Second
)

var (
	ErrNoAuthMethod       = errors.New("no authentication method available")
	ErrPassphraseRequired = errors.New("private key is encrypted and no passphrase was provided")
	ErrNoHost             = errors.New("target has no host")
)

// Auth is the credential chosen for one server. Exactly one of PEM,
// Password and AgentSocket is expected to be set.
type Auth struct {
	Username    string
	PEM         security.Secret
	Password    security.Secret
	AgentSocket string
}

// Method names the credential in use: "pem", "password", "agent" or "".
func (a Auth) Method() string {
	switch {
	case len(a.PEM) > 0:
		return "pem"
	case !a.Password.IsEmpty():
		return "password"
	case a.AgentSocket != "":
		return "agent"
	default:
		return ""
	}
}

// Target is everything needed to open a session to one server.
type Target struct {
	Name string
	Host string
	Auth Auth
	Opts config.SSHOptions
}

// Addr is host:port with the default port applied.
func (t Target) Addr() string {
	port := t.Opts.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(t.Host, strconv.Itoa(port))
}

// Result is the outcome of a remote command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Session is a handle to one remote host. Implementations connect lazily
// and may be shared by several callers.
type Session interface {
	Name() string
	Host() string
	Run(ctx context.Context, cmd string) (*Result, error)
	Upload(ctx context.Context, localPath, remotePath string) error
	Close() error
}

// Broker turns a target into a session.
type Broker interface {
	NewSession(t Target) (Session, error)
}

// SSHBroker creates sessions backed by golang.org/x/crypto/ssh and SFTP.
type SSHBroker struct {
	ConnectionTimeout time.Duration
}

// NewSSHBroker returns a broker with default timeouts.
func NewSSHBroker() *SSHBroker {
	return &SSHBroker{ConnectionTimeout: DefaultConnectionTimeout}
}

// NewSession validates t and returns a session that has not connected yet.
func (b *SSHBroker) NewSession(t Target) (Session, error) {
	if t.Host == "" {
		return nil, ErrNoHost
	}
	if t.Auth.Method() == "" {
		return nil, ErrNoAuthMethod
	}
	timeout := t.Opts.Timeout
	if timeout == 0 {
		timeout = b.ConnectionTimeout
	}
	return &SSHSession{target: t, timeout: timeout}, nil
}

// sshDial is swapped in tests.
var sshDial = func(network, addr string, cfg *ssh.ClientConfig) (*ssh.Client, error) {
	return ssh.Dial(network, addr, cfg)
}

// SSHSession is a lazily connected SSH/SFTP session.
type SSHSession struct {
	target  Target
	timeout time.Duration

	mu      sync.Mutex
	client  *ssh.Client
	sftp    *sftp.Client
	closers []func() error
}

func (s *SSHSession) Name() string { return s.target.Name }
func (s *SSHSession) Host() string { return s.target.Host }

// connect establishes the SSH connection on first use.
func (s *SSHSession) connect() (*ssh.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return s.client, nil
	}

	auth, closer, err := authMethods(s.target)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		s.closers = append(s.closers, closer)
	}

	hostKeyCallback, err := hostKeyCallbackFor(s.target.Opts)
	if err != nil {
		return nil, err
	}

	cfg := &ssh.ClientConfig{
		User:            s.target.Auth.Username,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         s.timeout,
	}

	addr := s.target.Addr()
	logging.Debugf("connecting to %s (%s) as %s using %s", s.target.Name, addr, cfg.User, s.target.Auth.Method())
	client, err := sshDial("tcp", addr, cfg)
	if err != nil {
		return nil, ClassifyConnectionError(addr, err)
	}
	s.client = client
	return client, nil
}

func (s *SSHSession) sftpClient() (*sftp.Client, error) {
	client, err := s.connect()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sftp == nil {
		s.sftp, err = sftp.NewClient(client)
		if err != nil {
			return nil, fmt.Errorf("failed to create sftp client: %w", err)
		}
	}
	return s.sftp, nil
}

// Run executes cmd on the remote host. A non-zero exit status is reported
// through Result.ExitCode together with an error.
func (s *SSHSession) Run(ctx context.Context, cmd string) (*Result, error) {
	client, err := s.connect()
	if err != nil {
		return nil, err
	}
	session, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to open ssh session on %s: %w", s.target.Name, err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() { done <- session.Run(cmd) }()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		_ = session.Close()
		return nil, ctx.Err()
	case err = <-done:
	}

	result := &Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitStatus()
		} else {
			result.ExitCode = -1
		}
		return result, fmt.Errorf("command failed on %s: %w", s.target.Name, err)
	}
	return result, nil
}

// Upload copies a local file to remotePath. The content is written to a
// temporary file next to the destination and renamed into place, so a
// partially transferred file is never visible under the final name.
func (s *SSHSession) Upload(ctx context.Context, localPath, remotePath string) error {
	src, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer src.Close()

	client, err := s.sftpClient()
	if err != nil {
		return err
	}

	dir := path.Dir(remotePath)
	if err := client.MkdirAll(dir); err != nil {
		return fmt.Errorf("failed to create %s on %s: %w", dir, s.target.Name, err)
	}

	tmpPath := path.Join(dir, fmt.Sprintf(".%s.%s", path.Base(remotePath), uuid.NewString()))
	dst, err := client.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary file on %s: %w", s.target.Name, err)
	}

	if _, err := io.Copy(dst, &ctxReader{ctx: ctx, r: src}); err != nil {
		dst.Close()
		_ = client.Remove(tmpPath)
		return fmt.Errorf("failed to upload %s to %s: %w", localPath, s.target.Name, err)
	}
	if err := dst.Close(); err != nil {
		_ = client.Remove(tmpPath)
		return fmt.Errorf("failed to finish upload to %s: %w", s.target.Name, err)
	}
	if err := client.Chmod(tmpPath, 0o644); err != nil {
		_ = client.Remove(tmpPath)
		return fmt.Errorf("failed to chmod temporary file: %w", err)
	}
	if err := client.PosixRename(tmpPath, remotePath); err != nil {
		// Servers without the posix-rename extension refuse to overwrite.
		_ = client.Remove(remotePath)
		if err := client.Rename(tmpPath, remotePath); err != nil {
			_ = client.Remove(tmpPath)
			return fmt.Errorf("failed to move upload into place on %s: %w", s.target.Name, err)
		}
	}
	return nil
}

// Close closes the SFTP and SSH clients and any agent connection.
func (s *SSHSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.sftp != nil {
		errs = append(errs, s.sftp.Close())
		s.sftp = nil
	}
	if s.client != nil {
		errs = append(errs, s.client.Close())
		s.client = nil
	}
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	s.closers = nil
	return errors.Join(errs...)
}

func hostKeyCallbackFor(opts config.SSHOptions) (ssh.HostKeyCallback, error) {
	if opts.KnownHosts == "" {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	cb, err := knownhosts.New(opts.KnownHosts)
	if err != nil {
		return nil, fmt.Errorf("failed to load known hosts from %s: %w", opts.KnownHosts, err)
	}
	return cb, nil
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
