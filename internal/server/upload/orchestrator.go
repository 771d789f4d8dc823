// Package upload runs the staging, scanning and storing of uploaded mod
// files. It never touches the database; callers tie the returned key to a
// record.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/dmitrijs2005/modzart/internal/common"
	"github.com/dmitrijs2005/modzart/internal/filex"
	"github.com/dmitrijs2005/modzart/internal/logging"
	"github.com/dmitrijs2005/modzart/internal/server/blobstore"
	"github.com/dmitrijs2005/modzart/internal/server/metrics"
	"github.com/dmitrijs2005/modzart/internal/server/scanner"
)

// Orchestrator stages uploads in a temp directory, runs them through the
// scanner and stores clean files in the blob store.
type Orchestrator struct {
	store   blobstore.Store
	scanner scanner.Scanner
	tempDir string
	maxSize int64
	log     logging.Logger
	metrics *metrics.Metrics
}

// Options tune an Orchestrator. A zero MaxSize means unlimited.
type Options struct {
	TempDir string
	MaxSize int64
	Metrics *metrics.Metrics
}

// New prepares the temp directory and returns an Orchestrator.
func New(store blobstore.Store, scan scanner.Scanner, opts Options, log logging.Logger) (*Orchestrator, error) {
	dir, err := filex.EnsureDir(opts.TempDir)
	if err != nil {
		return nil, fmt.Errorf("prepare temp dir: %w", err)
	}
	return &Orchestrator{
		store:   store,
		scanner: scan,
		tempDir: dir,
		maxSize: opts.MaxSize,
		log:     log,
		metrics: opts.Metrics,
	}, nil
}

// Staged is an upload persisted to a local temp file. Whoever holds it must
// call Remove once done.
type Staged struct {
	Path     string
	Filename string
	Size     int64
}

// Remove deletes the temp file. Removing twice is harmless.
func (s *Staged) Remove() error {
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Stage streams r into a uniquely named temp file. On any failure the
// partial file is removed and the error wraps common.ErrStaging, or
// common.ErrorValidation when the upload exceeds the size limit.
func (o *Orchestrator) Stage(ctx context.Context, r io.Reader, filename string) (*Staged, error) {
	f, err := filex.CreateUnique(o.tempDir, filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrStaging, err)
	}
	staged := &Staged{Path: f.Name(), Filename: filename}

	src := io.Reader(&ctxReader{ctx: ctx, r: r})
	if o.maxSize > 0 {
		src = io.LimitReader(src, o.maxSize+1)
	}

	n, werr := io.Copy(f, src)
	cerr := f.Close()

	switch {
	case werr != nil:
		err = fmt.Errorf("%w: write: %w", common.ErrStaging, werr)
	case cerr != nil:
		err = fmt.Errorf("%w: flush: %w", common.ErrStaging, cerr)
	case o.maxSize > 0 && n > o.maxSize:
		err = fmt.Errorf("%w: file exceeds %d bytes", common.ErrorValidation, o.maxSize)
	}
	if err != nil {
		o.removeStaged(ctx, staged)
		return nil, err
	}

	staged.Size = n
	o.log.Debug(ctx, "upload staged", "path", staged.Path, "size", n)
	return staged, nil
}

// Process scans staged and, when clean, stores it under keyOverride or the
// key derived from modID and the staged file name. It does not remove the
// staged file. A refused scan wraps common.ErrScanRejected and nothing is
// written.
func (o *Orchestrator) Process(ctx context.Context, staged *Staged, modID int64, keyOverride string) (string, error) {
	started := time.Now()
	res := o.scanner.Scan(ctx, staged.Path, filex.BaseName(staged.Filename))
	o.metrics.ScanFinished(res.Verdict.String(), time.Since(started))

	if !res.Clean() {
		o.log.Warn(ctx, "upload rejected by scanner",
			"mod_id", modID,
			"verdict", res.Verdict.String(),
			"malicious", res.Malicious,
			"suspicious", res.Suspicious,
			"reason", res.Reason,
		)
		o.metrics.UploadOutcome(metrics.OutcomeRejected)
		return "", &RejectedError{Result: res}
	}

	key := keyOverride
	if key == "" {
		key = ObjectKey(modID, staged.Filename)
	}

	stored, err := o.store.Put(ctx, staged.Path, key)
	if err != nil {
		o.log.Error(ctx, "store failed", "mod_id", modID, "key", key, "error", err)
		o.metrics.UploadOutcome(metrics.OutcomeFailed)
		return "", err
	}

	o.log.Info(ctx, "upload stored", "mod_id", modID, "key", stored, "size", staged.Size)
	o.metrics.UploadOutcome(metrics.OutcomeStored)
	return stored, nil
}

// SubmitUpload stages r, scans it and stores it, returning the object key.
// The temp file is removed on every path.
func (o *Orchestrator) SubmitUpload(ctx context.Context, r io.Reader, filename string, modID int64, keyOverride string) (string, error) {
	staged, err := o.Stage(ctx, r, filename)
	if err != nil {
		return "", err
	}
	defer o.removeStaged(ctx, staged)

	return o.Process(ctx, staged, modID, keyOverride)
}

// Discard removes a stored object as compensation for a later failure. The
// outcome is logged and never returned: the caller reports the original error.
func (o *Orchestrator) Discard(ctx context.Context, key string) {
	if err := o.store.Delete(context.WithoutCancel(ctx), key); err != nil {
		o.log.Error(ctx, "compensating delete failed, object may be orphaned", "key", key, "error", err)
		o.metrics.Compensation(false)
		return
	}
	o.log.Info(ctx, "compensating delete done", "key", key)
	o.metrics.Compensation(true)
}

func (o *Orchestrator) removeStaged(ctx context.Context, s *Staged) {
	if err := s.Remove(); err != nil {
		o.log.Error(ctx, "failed to remove staged file", "path", s.Path, "error", err)
	}
}

// ObjectKey is the storage key of a mod's primary file:
// "mods/{id}/{name}" with directory components stripped from name.
func ObjectKey(modID int64, filename string) string {
	base := filex.BaseName(filename)
	if base == "" {
		base = "mod_" + strconv.FormatInt(modID, 10) + "_file"
	}
	return "mods/" + strconv.FormatInt(modID, 10) + "/" + base
}

// VersionKey is the storage key of an uploaded version:
// "versions/{id}/{version}/{attempt}/{name}". attempt keeps concurrent
// uploads of the same version on distinct objects.
func VersionKey(modID int64, version, attempt, filename string) string {
	base := filex.BaseName(filename)
	if base == "" {
		base = "mod_" + strconv.FormatInt(modID, 10) + "_file"
	}
	return "versions/" + strconv.FormatInt(modID, 10) + "/" + filex.BaseName(version) + "/" + filex.BaseName(attempt) + "/" + base
}

// RejectedError reports a non-clean scan. It matches common.ErrScanRejected.
type RejectedError struct {
	Result scanner.Result
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s: %s", common.ErrScanRejected, e.Result.Verdict)
}

func (e *RejectedError) Unwrap() error { return common.ErrScanRejected }

// ctxReader fails reads once ctx is done, so a client disconnect stops
// staging.
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
