package sftpdeploy

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

type deployOptions struct {
	dialer      Dialer
	logger      *zap.Logger
	retryConfig RetryConfig
	dryRun      bool
	ignore      Matcher
}

// DeployOption configures Deploy.
type DeployOption func(*deployOptions)

// WithDialer replaces the SFTP dialer, mainly for tests.
func WithDialer(d Dialer) DeployOption {
	return func(o *deployOptions) {
		o.dialer = d
	}
}

// WithLogger sets the logger for the whole run.
func WithLogger(logger *zap.Logger) DeployOption {
	return func(o *deployOptions) {
		o.logger = logger
	}
}

// WithRetryConfig sets the retry policy for opening the session.
func WithRetryConfig(config RetryConfig) DeployOption {
	return func(o *deployOptions) {
		o.retryConfig = config
	}
}

// WithDryRun logs every mkdir and put instead of issuing it.
func WithDryRun(dryRun bool) DeployOption {
	return func(o *deployOptions) {
		o.dryRun = dryRun
	}
}

// WithIgnoreMatcher excludes matching paths below uploaded directories.
func WithIgnoreMatcher(m Matcher) DeployOption {
	return func(o *deployOptions) {
		o.ignore = m
	}
}

// Deploy opens a session for cfg, uploads the manifest under cfg.RemoteRoot
// and closes the session exactly once. A connect failure returns before any
// upload is attempted. Close failures are logged and never replace the
// result of the upload phase.
func Deploy(ctx context.Context, cfg Config, opts ...DeployOption) error {
	o := deployOptions{retryConfig: DefaultRetryConfig()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.dialer == nil {
		o.dialer = NewDialer(o.logger)
	}

	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	spec := cfg.Connection()

	o.logger.Info("sftp deploy", zap.Bool("dry", o.dryRun), zap.String("target", spec.Address()))

	var transport Transport
	err := Retry(ctx, o.retryConfig, o.logger, "connect", func() error {
		t, err := o.dialer(ctx, spec)
		if err != nil {
			return err
		}
		transport = t
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to open session to %s: %w", spec.Address(), err)
	}

	summary, err := runSession(ctx, transport, cfg, o)
	if err != nil {
		return err
	}

	o.logger.Info("done",
		zap.Int("uploaded", summary.Uploaded),
		zap.Int("planned", summary.Planned),
		zap.String("bytes", humanize.Bytes(uint64(summary.Bytes))),
		zap.Int("dirs_created", summary.DirsCreated),
		zap.Int("skipped", summary.Skipped),
	)
	return nil
}

// runSession owns transport for the duration of the upload phase.
func runSession(ctx context.Context, transport Transport, cfg Config, o deployOptions) (Summary, error) {
	defer func() {
		if err := transport.Close(); err != nil {
			o.logger.Warn("failed to close session", zap.Error(err))
		}
	}()

	uploader := NewUploader(transport, o.dryRun, o.ignore, o.logger)
	return NewSyncer(uploader, cfg.LocalRoot, o.logger).Run(ctx, cfg.Sync, cfg.RemoteRoot)
}
