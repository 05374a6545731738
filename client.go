package sftpdeploy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/sftp"
	sshagent "github.com/xanzy/ssh-agent"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SFTP status codes the client classifies itself (draft-ietf-secsh-filexfer).
const (
	sshFxFailure           = 4
	sshFxFileAlreadyExists = 11
)

// Client wraps SSH and SFTP connections and implements Transport.
type Client struct {
	sshClient  *ssh.Client
	sftpClient SFTPClientInterface
	agent      io.Closer // nil unless agent auth was used
}

// SFTPClientInterface abstracts SFTP operations for testing.
type SFTPClientInterface interface {
	Create(path string) (SFTPFile, error)
	Stat(path string) (os.FileInfo, error)
	Mkdir(path string) error
	Close() error
}

// SFTPFile abstracts file operations for testing.
type SFTPFile interface {
	io.Writer
	io.Closer
}

// SFTPClientWrapper wraps the real sftp.Client to implement SFTPClientInterface.
type SFTPClientWrapper struct {
	client *sftp.Client
}

var _ SFTPClientInterface = (*SFTPClientWrapper)(nil)

func (w *SFTPClientWrapper) Create(path string) (SFTPFile, error)    { return w.client.Create(path) }
func (w *SFTPClientWrapper) Stat(path string) (os.FileInfo, error) { return w.client.Stat(path) }
func (w *SFTPClientWrapper) Mkdir(path string) error               { return w.client.Mkdir(path) }
func (w *SFTPClientWrapper) Close() error                          { return w.client.Close() }

// Dial is the default Dialer. It opens a Client with a nop logger.
func Dial(ctx context.Context, spec ConnectionSpec) (Transport, error) {
	return NewClient(ctx, spec, nil)
}

// NewDialer returns a Dialer whose clients log host key warnings to logger.
func NewDialer(logger *zap.Logger) Dialer {
	return func(ctx context.Context, spec ConnectionSpec) (Transport, error) {
		return NewClient(ctx, spec, logger)
	}
}

// NewClient connects to spec.Address and starts the SFTP subsystem.
func NewClient(ctx context.Context, spec ConnectionSpec, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	spec = spec.WithDefaults()

	authMethods, agentConn, err := buildAuthMethods(spec)
	if err != nil {
		return nil, err
	}
	closeAgent := func() {
		if agentConn != nil {
			agentConn.Close()
		}
	}

	hostKeyCallback, err := buildHostKeyCallback(spec, logger)
	if err != nil {
		closeAgent()
		return nil, fmt.Errorf("%w: failed to configure host key verification: %v", ErrConnect, err)
	}

	sshConfig := &ssh.ClientConfig{
		User:            spec.Username,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         spec.Timeout,
	}

	addr := spec.Address()
	dialer := net.Dialer{Timeout: spec.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		closeAgent()
		return nil, fmt.Errorf("%w: failed to connect to %s: %w", ErrConnect, addr, err)
	}

	ncc, chans, reqs, err := ssh.NewClientConn(conn, addr, sshConfig)
	if err != nil {
		conn.Close()
		closeAgent()
		if strings.Contains(err.Error(), "unable to authenticate") {
			return nil, fmt.Errorf("%w: %s@%s: %w", ErrAuth, spec.Username, addr, err)
		}
		return nil, fmt.Errorf("%w: ssh handshake with %s: %w", ErrConnect, addr, err)
	}
	sshClient := ssh.NewClient(ncc, chans, reqs)

	rawSftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		closeAgent()
		return nil, fmt.Errorf("%w: failed to create SFTP client: %w", ErrConnect, err)
	}

	return &Client{
		sshClient:  sshClient,
		sftpClient: &SFTPClientWrapper{client: rawSftpClient},
		agent:      agentConn,
	}, nil
}

// NewClientWithSFTP creates a Client with a custom SFTP client implementation.
// This is primarily used for testing with mock SFTP clients.
func NewClientWithSFTP(sftpClient SFTPClientInterface, sshClient *ssh.Client) *Client {
	return &Client{
		sshClient:  sshClient,
		sftpClient: sftpClient,
	}
}

// Close closes the SFTP and SSH connections and returns the first failure.
func (c *Client) Close() error {
	var firstErr error
	if c.sftpClient != nil {
		if err := c.sftpClient.Close(); err != nil {
			firstErr = fmt.Errorf("failed to close SFTP client: %w", err)
		}
	}
	if c.sshClient != nil {
		if err := c.sshClient.Close(); err != nil && firstErr == nil && !errors.Is(err, net.ErrClosed) {
			firstErr = fmt.Errorf("failed to close SSH connection: %w", err)
		}
	}
	if c.agent != nil {
		c.agent.Close()
	}
	return firstErr
}

// Stat returns information about a remote path.
func (c *Client) Stat(ctx context.Context, remotePath string) (os.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("operation cancelled: %w", err)
	}

	info, err := c.sftpClient.Stat(remotePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, remotePath)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", remotePath, err)
	}
	return info, nil
}

// Mkdir creates one remote directory. Servers report an existing directory
// either as FILE_ALREADY_EXISTS or as a generic FAILURE; the latter is
// confirmed with a stat before it is reported as ErrAlreadyExists.
func (c *Client) Mkdir(ctx context.Context, remotePath string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("operation cancelled: %w", err)
	}

	err := c.sftpClient.Mkdir(remotePath)
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrExist) || statusCode(err) == sshFxFileAlreadyExists {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, remotePath)
	}
	if statusCode(err) == sshFxFailure {
		if info, statErr := c.sftpClient.Stat(remotePath); statErr == nil && info.IsDir() {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, remotePath)
		}
	}
	return fmt.Errorf("failed to create remote directory %s: %w", remotePath, err)
}

// Put uploads a local file to the remote host, replacing any existing file.
func (c *Client) Put(ctx context.Context, localPath, remotePath string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("operation cancelled: %w", err)
	}

	localFile, err := os.Open(localPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open local file: %w", err)
	}
	defer localFile.Close()

	remoteFile, err := c.sftpClient.Create(remotePath)
	if err != nil {
		return 0, fmt.Errorf("failed to create remote file %s: %w", remotePath, err)
	}

	type copyResult struct {
		n   int64
		err error
	}
	done := make(chan copyResult, 1)
	go func() {
		n, err := io.Copy(remoteFile, localFile)
		done <- copyResult{n, err}
	}()

	select {
	case <-ctx.Done():
		remoteFile.Close()
		return 0, fmt.Errorf("upload cancelled: %w", ctx.Err())
	case r := <-done:
		closeErr := remoteFile.Close()
		if r.err != nil {
			return r.n, fmt.Errorf("failed to copy file content: %w", r.err)
		}
		if closeErr != nil {
			return r.n, fmt.Errorf("failed to finalize remote file %s: %w", remotePath, closeErr)
		}
		return r.n, nil
	}
}

// Helper functions

func statusCode(err error) uint32 {
	var se *sftp.StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

func buildHostKeyCallback(spec ConnectionSpec, logger *zap.Logger) (ssh.HostKeyCallback, error) {
	if spec.InsecureIgnoreHostKey {
		logger.Warn("SSH host key verification disabled, this is insecure", zap.String("host", spec.Address()))
		return ssh.InsecureIgnoreHostKey(), nil
	}

	if spec.KnownHostsFile != "" {
		expandedPath := ExpandPath(spec.KnownHostsFile)
		callback, err := knownhosts.New(expandedPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load known_hosts file %s: %w", expandedPath, err)
		}
		return callback, nil
	}

	homeDir, err := homedir.Dir()
	if err == nil {
		defaultKnownHosts := filepath.Join(homeDir, ".ssh", "known_hosts")
		if _, err := os.Stat(defaultKnownHosts); err == nil {
			callback, err := knownhosts.New(defaultKnownHosts)
			if err == nil {
				return callback, nil
			}
			logger.Warn("could not parse known_hosts file", zap.String("path", defaultKnownHosts), zap.Error(err))
		}
	}

	logger.Warn("no known_hosts file found, host key verification disabled", zap.String("host", spec.Address()))
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		return nil
	}, nil
}

// buildAuthMethods offers the private key first, then the password. With
// neither configured it falls back to the running ssh-agent, whose connection
// is returned so the caller can close it with the session.
func buildAuthMethods(spec ConnectionSpec) ([]ssh.AuthMethod, io.Closer, error) {
	var authMethods []ssh.AuthMethod

	if spec.PrivateKeyPath != "" {
		keyAuth, err := buildPrivateKeyAuth(spec)
		if err != nil {
			return nil, nil, err
		}
		authMethods = append(authMethods, keyAuth)
	}
	if spec.Password != "" {
		authMethods = append(authMethods, ssh.Password(spec.Password))
	}
	if len(authMethods) > 0 {
		return authMethods, nil, nil
	}

	if !sshagent.Available() {
		return nil, nil, fmt.Errorf("%w: no SSH authentication method configured (set password or privateKeyPath, or run ssh-agent)", ErrAuth)
	}
	agentClient, conn, err := sshagent.New()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: couldn't connect to ssh-agent: %v", ErrAuth, err)
	}
	authMethods = append(authMethods, ssh.PublicKeysCallback(agentClient.Signers))
	if conn == nil {
		return authMethods, nil, nil
	}
	return authMethods, conn, nil
}

func buildPrivateKeyAuth(spec ConnectionSpec) (ssh.AuthMethod, error) {
	keyData, err := os.ReadFile(ExpandPath(spec.PrivateKeyPath))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read SSH key file: %v", ErrAuth, err)
	}

	var signer ssh.Signer
	if spec.Passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(keyData, []byte(spec.Passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(keyData)
	}
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) {
			return nil, fmt.Errorf("%w: SSH private key is encrypted, set passphrase", ErrAuth)
		}
		return nil, fmt.Errorf("%w: failed to parse SSH private key: %v", ErrAuth, err)
	}

	return ssh.PublicKeys(signer), nil
}

// ExpandPath expands a leading ~ to the home directory.
func ExpandPath(path string) string {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return path
	}
	return expanded
}
