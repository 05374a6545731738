package sftpdeploy

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// DirOutcome records what happened to one directory while ensuring a path.
type DirOutcome int

const (
	// DirExisted means the stat found the directory.
	DirExisted DirOutcome = iota
	// DirCreated means mkdir succeeded.
	DirCreated
	// DirAlreadyExists means mkdir reported the directory as already present.
	DirAlreadyExists
	// DirIgnored means mkdir failed for another reason. The error is kept on
	// the result and the walk continues; a real problem surfaces on the put.
	DirIgnored
	// DirPlanned means a dry run would have created the directory.
	DirPlanned
)

func (o DirOutcome) String() string {
	switch o {
	case DirExisted:
		return "existed"
	case DirCreated:
		return "created"
	case DirAlreadyExists:
		return "already-exists"
	case DirIgnored:
		return "ignored"
	case DirPlanned:
		return "planned"
	default:
		return "unknown"
	}
}

// DirResult is the outcome for one accumulated prefix of an ensured path.
type DirResult struct {
	Path    string
	Outcome DirOutcome
	Err     error
}

// DirEnsurer makes remote directory chains exist.
type DirEnsurer struct {
	transport Transport
	dryRun    bool
	logger    *zap.Logger
}

// NewDirEnsurer returns an ensurer issuing calls on t. A nil logger discards output.
func NewDirEnsurer(t Transport, dryRun bool, logger *zap.Logger) *DirEnsurer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirEnsurer{transport: t, dryRun: dryRun, logger: logger}
}

// EnsureDir walks remoteDir from its first segment down, creating each prefix
// the stat cannot find. It has no failure path: mkdir errors are recorded in
// the results and the walk continues. In dry-run mode nothing is created and
// each missing prefix is logged instead.
func (e *DirEnsurer) EnsureDir(ctx context.Context, remoteDir string) []DirResult {
	segments := Segments(remoteDir)
	if len(segments) == 0 {
		return nil
	}

	cur := ""
	if len(remoteDir) > 0 && (remoteDir[0] == '/' || remoteDir[0] == '\\') {
		cur = "/"
	}

	results := make([]DirResult, 0, len(segments))
	for _, seg := range segments {
		switch cur {
		case "":
			cur = seg
		case "/":
			cur = "/" + seg
		default:
			cur = cur + "/" + seg
		}
		results = append(results, e.ensureOne(ctx, cur))
	}
	return results
}

func (e *DirEnsurer) ensureOne(ctx context.Context, dir string) DirResult {
	if _, err := e.transport.Stat(ctx, dir); err == nil {
		return DirResult{Path: dir, Outcome: DirExisted}
	}

	if e.dryRun {
		e.logger.Info("[dry] mkdir", zap.String("remote", dir))
		return DirResult{Path: dir, Outcome: DirPlanned}
	}

	err := e.transport.Mkdir(ctx, dir)
	switch {
	case err == nil:
		e.logger.Debug("mkdir", zap.String("remote", dir))
		return DirResult{Path: dir, Outcome: DirCreated}
	case errors.Is(err, ErrAlreadyExists):
		return DirResult{Path: dir, Outcome: DirAlreadyExists, Err: err}
	default:
		e.logger.Debug("mkdir failed, continuing", zap.String("remote", dir), zap.Error(err))
		return DirResult{Path: dir, Outcome: DirIgnored, Err: err}
	}
}
