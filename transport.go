package sftpdeploy

import (
	"context"
	"os"
)

// Transport is the set of remote operations a deploy needs. Implementations
// only see one call at a time.
type Transport interface {
	// Stat returns metadata for remotePath, or an error wrapping ErrNotFound.
	Stat(ctx context.Context, remotePath string) (os.FileInfo, error)
	// Mkdir creates a single directory. An existing path yields ErrAlreadyExists.
	Mkdir(ctx context.Context, remotePath string) error
	// Put copies localPath to remotePath and reports the bytes written.
	Put(ctx context.Context, localPath, remotePath string) (int64, error)
	// Close releases the session.
	Close() error
}

// Dialer opens a Transport for a connection spec.
type Dialer func(ctx context.Context, spec ConnectionSpec) (Transport, error)

// Ensure Client implements Transport.
var _ Transport = (*Client)(nil)
