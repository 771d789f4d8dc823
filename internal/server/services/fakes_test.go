package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/modzart/internal/common"
	"github.com/dmitrijs2005/modzart/internal/dbx"
	"github.com/dmitrijs2005/modzart/internal/server/blobstore"
	"github.com/dmitrijs2005/modzart/internal/server/models"
	"github.com/dmitrijs2005/modzart/internal/server/repositories/mods"
	"github.com/dmitrijs2005/modzart/internal/server/repositories/uploadjobs"
	usersrepo "github.com/dmitrijs2005/modzart/internal/server/repositories/users"
	"github.com/dmitrijs2005/modzart/internal/server/repositories/versions"
	"github.com/dmitrijs2005/modzart/internal/server/scanner"
)

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

// --- mods ---

type fakeModsRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*models.Mod

	createErr error
	setErr    error
	incErr    error
	deleteErr error
	deleted   []int64
}

func newFakeModsRepo() *fakeModsRepo {
	return &fakeModsRepo{nextID: 41, rows: map[int64]*models.Mod{}}
}

func (f *fakeModsRepo) Create(_ context.Context, m *models.Mod) (*models.Mod, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	m.ID = f.nextID
	m.CreatedAt = time.Now()
	m.UpdatedAt = m.CreatedAt
	cp := *m
	f.rows[m.ID] = &cp
	return m, nil
}

func (f *fakeModsRepo) GetByID(_ context.Context, id int64) (*models.Mod, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *m
	return &cp, nil
}

func (f *fakeModsRepo) List(_ context.Context, filter models.ModFilter) ([]*models.Mod, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Mod, 0)
	for _, m := range f.rows {
		if filter.UserID != 0 && m.UserID != filter.UserID {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if filter.Skip >= len(out) {
		return []*models.Mod{}, nil
	}
	out = out[filter.Skip:]
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (f *fakeModsRepo) UpdateDetails(_ context.Context, m *models.Mod) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[m.ID]
	if !ok {
		return common.ErrorNotFound
	}
	row.Title, row.Description = m.Title, m.Description
	row.UpdatedAt = time.Now()
	m.UpdatedAt = row.UpdatedAt
	return nil
}

func (f *fakeModsRepo) SetFile(_ context.Context, id int64, expected, next models.FileRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	row, ok := f.rows[id]
	if !ok || row.File != expected {
		return common.ErrVersionConflict
	}
	row.File = next
	return nil
}

func (f *fakeModsRepo) IncrementDownloads(_ context.Context, id int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.incErr != nil {
		return 0, f.incErr
	}
	row, ok := f.rows[id]
	if !ok {
		return 0, common.ErrorNotFound
	}
	row.DownloadCount++
	return row.DownloadCount, nil
}

func (f *fakeModsRepo) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.rows[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.rows, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeModsRepo) put(m models.Mod) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[m.ID] = &m
}

func (f *fakeModsRepo) has(id int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.rows[id]
	return ok
}

// --- versions ---

type fakeVersionsRepo struct {
	mu        sync.Mutex
	nextID    int64
	rows      []*models.Version
	createErr error
}

func (f *fakeVersionsRepo) Create(_ context.Context, v *models.Version) (*models.Version, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	for _, r := range f.rows {
		if r.ModID == v.ModID && r.VersionNumber == v.VersionNumber {
			return nil, common.ErrorAlreadyExists
		}
	}
	f.nextID++
	v.ID = f.nextID
	v.CreatedAt = time.Now()
	cp := *v
	f.rows = append(f.rows, &cp)
	return v, nil
}

func (f *fakeVersionsRepo) GetByNumber(_ context.Context, modID int64, number string) (*models.Version, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ModID == modID && r.VersionNumber == number {
			cp := *r
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeVersionsRepo) ListByMod(_ context.Context, modID int64) ([]*models.Version, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Version, 0)
	for i := len(f.rows) - 1; i >= 0; i-- {
		if f.rows[i].ModID == modID {
			cp := *f.rows[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeVersionsRepo) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.rows {
		if r.ID == id {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return nil
		}
	}
	return common.ErrorNotFound
}

// --- upload jobs ---

type fakeJobsRepo struct {
	mu        sync.Mutex
	rows      map[string]*models.UploadJob
	history   map[string][]models.UploadJobStatus
	createErr error
}

func newFakeJobsRepo() *fakeJobsRepo {
	return &fakeJobsRepo{rows: map[string]*models.UploadJob{}, history: map[string][]models.UploadJobStatus{}}
}

func (f *fakeJobsRepo) Create(_ context.Context, job *models.UploadJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	cp := *job
	f.rows[job.ID] = &cp
	f.history[job.ID] = append(f.history[job.ID], job.Status)
	return nil
}

func (f *fakeJobsRepo) Get(_ context.Context, id string) (*models.UploadJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *j
	return &cp, nil
}

func (f *fakeJobsRepo) SetStatus(_ context.Context, id string, status models.UploadJobStatus, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.rows[id]
	if !ok {
		return common.ErrorNotFound
	}
	j.Status, j.Reason = status, reason
	f.history[id] = append(f.history[id], status)
	return nil
}

// --- users ---

type fakeUsersRepo struct {
	createOut *models.User
	createErr error

	getOut *models.User
	getErr error
}

func (f *fakeUsersRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.createOut != nil {
		return f.createOut, nil
	}
	u.ID = 1
	return u, nil
}

func (f *fakeUsersRepo) GetByUserName(context.Context, string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.getOut, nil
}

func (f *fakeUsersRepo) GetByID(context.Context, int64) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.getOut, nil
}

// --- manager ---

type fakeRepoManager struct {
	u *fakeUsersRepo
	m *fakeModsRepo
	v *fakeVersionsRepo
	j *fakeJobsRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		u: &fakeUsersRepo{},
		m: newFakeModsRepo(),
		v: &fakeVersionsRepo{},
		j: newFakeJobsRepo(),
	}
}

func (rm *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (rm *fakeRepoManager) Users(dbx.DBTX) usersrepo.Repository          { return rm.u }
func (rm *fakeRepoManager) Mods(dbx.DBTX) mods.Repository                { return rm.m }
func (rm *fakeRepoManager) Versions(dbx.DBTX) versions.Repository        { return rm.v }
func (rm *fakeRepoManager) UploadJobs(dbx.DBTX) uploadjobs.Repository    { return rm.j }

// --- storage and scanning ---

type fakeScanner struct {
	res scanner.Result
}

func (f *fakeScanner) Scan(context.Context, string, string) scanner.Result { return f.res }

// flakyStore is a local store whose writes and deletes can be made to fail.
type flakyStore struct {
	*blobstore.Local
	putErr    error
	deleteErr error
	deleted   []string
}

func (s *flakyStore) Put(ctx context.Context, localPath, key string) (string, error) {
	if s.putErr != nil {
		return "", s.putErr
	}
	return s.Local.Put(ctx, localPath, key)
}

func (s *flakyStore) Delete(ctx context.Context, key string) error {
	s.deleted = append(s.deleted, key)
	if s.deleteErr != nil {
		return s.deleteErr
	}
	return s.Local.Delete(ctx, key)
}

type fakeQueue struct {
	tasks []UploadTask
	err   error
}

func (q *fakeQueue) Enqueue(task UploadTask) error {
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, task)
	return nil
}
