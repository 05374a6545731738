package sftpdeploy

import "errors"

var (
	// ErrConfig is returned when the deploy configuration is unusable.
	ErrConfig = errors.New("invalid configuration")

	// ErrConnect is returned when the remote host cannot be reached or the
	// SFTP subsystem cannot be started.
	ErrConnect = errors.New("connection failed")

	// ErrAuth is returned when no credential is accepted by the remote host.
	ErrAuth = errors.New("authentication failed")

	// ErrNotFound is returned by Transport.Stat for a missing remote path.
	ErrNotFound = errors.New("remote path not found")

	// ErrAlreadyExists is returned by Transport.Mkdir for an existing remote path.
	ErrAlreadyExists = errors.New("remote path already exists")

	// ErrUpload wraps every failed file transfer. It always aborts the run.
	ErrUpload = errors.New("upload failed")
)
