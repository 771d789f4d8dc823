// Package services contains server-side business logic. This file implements
// ModService, which keeps mod records and their stored files consistent:
// a placeholder row is committed first, the file goes through the upload
// pipeline, and only then is the row pointed at the stored object.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/modzart/internal/common"
	"github.com/dmitrijs2005/modzart/internal/dbx"
	"github.com/dmitrijs2005/modzart/internal/filex"
	"github.com/dmitrijs2005/modzart/internal/logging"
	"github.com/dmitrijs2005/modzart/internal/server/blobstore"
	"github.com/dmitrijs2005/modzart/internal/server/metrics"
	"github.com/dmitrijs2005/modzart/internal/server/models"
	"github.com/dmitrijs2005/modzart/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/modzart/internal/server/upload"
	"github.com/google/uuid"
)

// MaxListLimit caps the page size of List.
const MaxListLimit = 100

// versionAttemptBytes sizes the random segment of version object keys.
const versionAttemptBytes = 6

// UploadTask is a staged upload handed to the background workers. The
// receiver owns Staged and must remove it.
type UploadTask struct {
	JobID  string
	ModID  int64
	Staged *upload.Staged
}

// Queue accepts upload tasks without blocking.
type Queue interface {
	Enqueue(task UploadTask) error
}

// ModInput carries the user editable fields of a mod.
type ModInput struct {
	Title       string
	Description string
	Visibility  string
}

// ModPatch is a partial update of a mod.
type ModPatch struct {
	Title       *string
	Description *string
}

// ProjectInput describes a project entry: a mod that links to an external
// page instead of owning a file.
type ProjectInput struct {
	Name       string
	URL        string
	Visibility string
	Summary    string
}

// VersionInput describes an uploaded version.
type VersionInput struct {
	Number    string
	Changelog string
}

// ModServiceOptions tune a ModService. A nil Queue disables EnqueueMod.
type ModServiceOptions struct {
	DownloadURLTTL time.Duration
	Queue          Queue
	Metrics        *metrics.Metrics
}

// ModService implements the mod record lifecycle on top of the upload
// orchestrator and the blob store.
type ModService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	uploads     *upload.Orchestrator
	store       blobstore.Store
	urlTTL      time.Duration
	queue       Queue
	metrics     *metrics.Metrics
	log         logging.Logger
}

// NewModService constructs a ModService.
func NewModService(db *sql.DB, m repomanager.RepositoryManager, uploads *upload.Orchestrator,
	store blobstore.Store, opts ModServiceOptions, log logging.Logger) *ModService {
	ttl := opts.DownloadURLTTL
	if ttl <= 0 {
		ttl = blobstore.DefaultURLTTL
	}
	return &ModService{
		db:          db,
		repomanager: m,
		uploads:     uploads,
		store:       store,
		urlTTL:      ttl,
		queue:       opts.Queue,
		metrics:     opts.Metrics,
		log:         log,
	}
}

// Async reports whether uploads are handed to background workers.
func (s *ModService) Async() bool { return s.queue != nil }

// CreateMod runs the whole upload inside the call: placeholder row, scan,
// store, then the row is switched from pending to the stored key. Any
// failure removes the placeholder; a failure after the store also deletes
// the written object.
func (s *ModService) CreateMod(ctx context.Context, userID int64, in ModInput, file io.Reader, filename string) (*models.Mod, error) {
	if err := validateModInput(&in); err != nil {
		return nil, err
	}

	repo := s.repomanager.Mods(s.db)
	mod, err := repo.Create(ctx, newPlaceholder(userID, in))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrRecordCreate, err)
	}
	s.log.Info(ctx, "placeholder created", "mod_id", mod.ID, "user_id", userID)

	key, err := s.uploads.SubmitUpload(ctx, file, filename, mod.ID, "")
	if err != nil {
		s.dropPlaceholder(ctx, mod.ID)
		return nil, err
	}

	if err := s.finalize(ctx, mod.ID, key); err != nil {
		return nil, err
	}

	if fresh, err := repo.GetByID(ctx, mod.ID); err == nil {
		return fresh, nil
	}
	mod.File = models.StoredRef(key)
	return mod, nil
}

// EnqueueMod stages the upload, commits the placeholder together with a
// queued job and hands the staged file to the workers. The returned job is
// advanced by ProcessJob.
func (s *ModService) EnqueueMod(ctx context.Context, userID int64, in ModInput, file io.Reader, filename string) (*models.UploadJob, error) {
	if s.queue == nil {
		return nil, fmt.Errorf("%w: background uploads are disabled", common.ErrorInternal)
	}
	if err := validateModInput(&in); err != nil {
		return nil, err
	}

	staged, err := s.uploads.Stage(ctx, file, filename)
	if err != nil {
		return nil, err
	}

	job := &models.UploadJob{
		ID:       uuid.NewString(),
		UserID:   userID,
		Filename: staged.Filename,
		Status:   models.UploadJobQueued,
	}
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		mod, err := s.repomanager.Mods(tx).Create(ctx, newPlaceholder(userID, in))
		if err != nil {
			return fmt.Errorf("%w: %w", common.ErrRecordCreate, err)
		}
		job.ModID = mod.ID
		if err := s.repomanager.UploadJobs(tx).Create(ctx, job); err != nil {
			return fmt.Errorf("%w: %w", common.ErrRecordCreate, err)
		}
		return nil
	})
	if err != nil {
		s.removeStaged(ctx, staged)
		return nil, err
	}

	if err := s.queue.Enqueue(UploadTask{JobID: job.ID, ModID: job.ModID, Staged: staged}); err != nil {
		s.log.Error(ctx, "enqueue failed", "job_id", job.ID, "mod_id", job.ModID, "error", err)
		s.removeStaged(ctx, staged)
		s.setJobStatus(ctx, job.ID, models.UploadJobFailed, "upload queue unavailable")
		s.dropPlaceholder(ctx, job.ModID)
		return nil, fmt.Errorf("enqueue upload: %w", err)
	}

	s.log.Info(ctx, "upload queued", "job_id", job.ID, "mod_id", job.ModID)
	return job, nil
}

// ProcessJob is the worker side of EnqueueMod. It always removes the staged
// file and leaves the job in a terminal state.
func (s *ModService) ProcessJob(ctx context.Context, task UploadTask) {
	bg := context.WithoutCancel(ctx)
	defer s.removeStaged(bg, task.Staged)

	if ctx.Err() != nil {
		s.setJobStatus(bg, task.JobID, models.UploadJobFailed, "server shutting down")
		s.dropPlaceholder(bg, task.ModID)
		return
	}

	s.setJobStatus(ctx, task.JobID, models.UploadJobScanning, "")

	key, err := s.uploads.Process(ctx, task.Staged, task.ModID, "")
	if err != nil {
		status, reason := models.UploadJobFailed, "storage failure"
		var rejected *upload.RejectedError
		switch {
		case ctx.Err() != nil:
			reason = "server shutting down"
		case errors.As(err, &rejected):
			status = models.UploadJobRejected
			reason = common.ErrScanRejected.Error() + ": " + rejected.Result.Verdict.String()
			if rejected.Result.Reason != "" {
				reason += " (" + rejected.Result.Reason + ")"
			}
		}
		s.setJobStatus(bg, task.JobID, status, reason)
		s.dropPlaceholder(bg, task.ModID)
		return
	}

	if err := s.finalize(bg, task.ModID, key); err != nil {
		s.setJobStatus(bg, task.JobID, models.UploadJobFailed, "record update failed")
		return
	}
	s.setJobStatus(bg, task.JobID, models.UploadJobCompleted, "")
}

// GetJob returns an upload job to its owner.
func (s *ModService) GetJob(ctx context.Context, userID int64, jobID string) (*models.UploadJob, error) {
	job, err := s.repomanager.UploadJobs(s.db).Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, common.ErrorForbidden
	}
	return job, nil
}

// CreateProject stores a project entry. No blob is involved.
func (s *ModService) CreateProject(ctx context.Context, userID int64, in ProjectInput) (*models.Mod, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", common.ErrorValidation)
	}
	if err := validateProjectURL(in.URL); err != nil {
		return nil, err
	}
	visibility := in.Visibility
	if visibility == "" {
		visibility = common.DefaultVisibility
	}

	mod, err := s.repomanager.Mods(s.db).Create(ctx, &models.Mod{
		Title:       name,
		Description: in.Summary,
		File:        models.ProjectRef(in.URL),
		Visibility:  visibility,
		UserID:      userID,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrRecordCreate, err)
	}
	s.log.Info(ctx, "project created", "mod_id", mod.ID, "user_id", userID)
	return mod, nil
}

// Get returns a mod by id.
func (s *ModService) Get(ctx context.Context, id int64) (*models.Mod, error) {
	return s.repomanager.Mods(s.db).GetByID(ctx, id)
}

// List returns a page of the catalog. Limit is clamped to MaxListLimit.
func (s *ModService) List(ctx context.Context, filter models.ModFilter) ([]*models.Mod, error) {
	if filter.Limit <= 0 || filter.Limit > MaxListLimit {
		filter.Limit = MaxListLimit
	}
	if filter.Skip < 0 {
		filter.Skip = 0
	}
	filter.Search = strings.TrimSpace(filter.Search)
	return s.repomanager.Mods(s.db).List(ctx, filter)
}

// Update applies a partial change to a mod owned by userID. Nil fields are
// left as they are.
func (s *ModService) Update(ctx context.Context, userID, id int64, patch ModPatch) (*models.Mod, error) {
	mod, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: title is required", common.ErrorValidation)
		}
		mod.Title = title
	}
	if patch.Description != nil {
		mod.Description = *patch.Description
	}
	if err := s.repomanager.Mods(s.db).UpdateDetails(ctx, mod); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrRecordUpdate, err)
	}
	return mod, nil
}

// DeleteMod removes the stored objects of a mod before its rows. Version
// objects go first, then the primary file. If any object cannot be deleted
// the call stops and the mod row stays, so nothing is orphaned. Pending and
// project references have no object and skip the storage step.
func (s *ModService) DeleteMod(ctx context.Context, userID, id int64) error {
	mod, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}

	versionsRepo := s.repomanager.Versions(s.db)
	versions, err := versionsRepo.ListByMod(ctx, id)
	if err != nil {
		return err
	}
	for _, v := range versions {
		if err := s.store.Delete(ctx, v.StorageKey); err != nil {
			s.log.Error(ctx, "version object delete failed, keeping mod", "mod_id", id, "key", v.StorageKey, "error", err)
			return err
		}
		if err := versionsRepo.Delete(ctx, v.ID); err != nil && !errors.Is(err, common.ErrorNotFound) {
			return err
		}
	}

	if mod.File.IsStored() {
		if err := s.store.Delete(ctx, mod.File.Key); err != nil {
			s.log.Error(ctx, "object delete failed, keeping mod", "mod_id", id, "key", mod.File.Key, "error", err)
			return err
		}
	} else {
		s.log.Debug(ctx, "no stored object, skipping storage delete", "mod_id", id, "file", mod.File.Kind.String())
	}

	if err := s.repomanager.Mods(s.db).Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info(ctx, "mod deleted", "mod_id", id, "user_id", userID)
	return nil
}

// Download returns a retrieval URL for the mod's file and bumps its download
// counter. The counter update is best effort: a failure is logged and the
// URL is still returned.
func (s *ModService) Download(ctx context.Context, id int64) (string, error) {
	repo := s.repomanager.Mods(s.db)
	mod, err := repo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if !mod.File.IsStored() {
		return "", fmt.Errorf("%w: mod %d has no file", common.ErrorNotFound, id)
	}

	link, err := s.store.URL(ctx, mod.File.Key, s.urlTTL)
	if err != nil {
		return "", err
	}

	if _, err := repo.IncrementDownloads(ctx, id); err != nil {
		s.log.Warn(ctx, "download counter not updated", "mod_id", id, "error", err)
	}
	s.metrics.Download()
	return link, nil
}

// UploadVersion stores a new version of a mod owned by userID under
// "versions/{mod}/{version}/{attempt}/{file}". The row is inserted only after
// the object is stored; if the insert fails the object is deleted again.
// Each call writes its own object, so losing a race on the version number
// never removes the winner's file.
func (s *ModService) UploadVersion(ctx context.Context, userID, modID int64, in VersionInput, file io.Reader, filename string) (*models.Version, error) {
	number := strings.TrimSpace(in.Number)
	if number == "" || filex.BaseName(number) != number {
		return nil, fmt.Errorf("%w: invalid version number %q", common.ErrorValidation, in.Number)
	}

	if _, err := s.owned(ctx, userID, modID); err != nil {
		return nil, err
	}

	repo := s.repomanager.Versions(s.db)
	switch _, err := repo.GetByNumber(ctx, modID, number); {
	case err == nil:
		return nil, fmt.Errorf("%w: version %s", common.ErrorAlreadyExists, number)
	case !errors.Is(err, common.ErrorNotFound):
		return nil, err
	}

	attempt, err := common.MakeRandHexString(versionAttemptBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}

	key, err := s.uploads.SubmitUpload(ctx, file, filename, modID, upload.VersionKey(modID, number, attempt, filename))
	if err != nil {
		return nil, err
	}

	v, err := repo.Create(context.WithoutCancel(ctx), &models.Version{
		ModID:         modID,
		VersionNumber: number,
		Changelog:     in.Changelog,
		StorageKey:    key,
	})
	if err != nil {
		s.log.Error(ctx, "version insert failed after store", "mod_id", modID, "key", key, "error", err)
		s.uploads.Discard(ctx, key)
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", common.ErrRecordCreate, err)
	}
	s.log.Info(ctx, "version stored", "mod_id", modID, "version", number, "key", key)
	return v, nil
}

// ListVersions returns the versions of an existing mod, newest first.
func (s *ModService) ListVersions(ctx context.Context, modID int64) ([]*models.Version, error) {
	if _, err := s.repomanager.Mods(s.db).GetByID(ctx, modID); err != nil {
		return nil, err
	}
	return s.repomanager.Versions(s.db).ListByMod(ctx, modID)
}

// --- helpers below ---

// finalize points the placeholder at key. On failure the object is deleted
// and, unless another writer already changed the row, the placeholder too.
func (s *ModService) finalize(ctx context.Context, modID int64, key string) error {
	err := s.repomanager.Mods(s.db).SetFile(context.WithoutCancel(ctx), modID, models.PendingRef(), models.StoredRef(key))
	if err == nil {
		s.log.Info(ctx, "mod finalized", "mod_id", modID, "key", key)
		return nil
	}

	s.log.Error(ctx, "finalize failed, compensating", "mod_id", modID, "key", key, "error", err)
	s.uploads.Discard(ctx, key)
	if !errors.Is(err, common.ErrVersionConflict) {
		s.dropPlaceholder(ctx, modID)
	}
	return fmt.Errorf("%w: %w", common.ErrRecordUpdate, err)
}

func (s *ModService) dropPlaceholder(ctx context.Context, modID int64) {
	err := s.repomanager.Mods(s.db).Delete(context.WithoutCancel(ctx), modID)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		s.log.Error(ctx, "failed to drop placeholder", "mod_id", modID, "error", err)
		return
	}
	s.log.Debug(ctx, "placeholder dropped", "mod_id", modID)
}

func (s *ModService) setJobStatus(ctx context.Context, jobID string, status models.UploadJobStatus, reason string) {
	err := s.repomanager.UploadJobs(s.db).SetStatus(context.WithoutCancel(ctx), jobID, status, reason)
	if err != nil {
		s.log.Error(ctx, "failed to update upload job", "job_id", jobID, "status", string(status), "error", err)
		return
	}
	s.log.Info(ctx, "upload job updated", "job_id", jobID, "status", string(status), "reason", reason)
}

func (s *ModService) removeStaged(ctx context.Context, staged *upload.Staged) {
	if err := staged.Remove(); err != nil {
		s.log.Error(ctx, "failed to remove staged file", "path", staged.Path, "error", err)
	}
}

func (s *ModService) owned(ctx context.Context, userID, id int64) (*models.Mod, error) {
	mod, err := s.repomanager.Mods(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if mod.UserID != userID {
		return nil, common.ErrorForbidden
	}
	return mod, nil
}

func newPlaceholder(userID int64, in ModInput) *models.Mod {
	return &models.Mod{
		Title:       in.Title,
		Description: in.Description,
		File:        models.PendingRef(),
		Visibility:  in.Visibility,
		UserID:      userID,
	}
}

func validateModInput(in *ModInput) error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return fmt.Errorf("%w: title is required", common.ErrorValidation)
	}
	if in.Visibility == "" {
		in.Visibility = common.DefaultVisibility
	}
	return nil
}

func validateProjectURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: project url must be an absolute http(s) url", common.ErrorValidation)
	}
	return nil
}
