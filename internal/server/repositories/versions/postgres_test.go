package versions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/modzart/internal/common"
	"github.com/dmitrijs2005/modzart/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

const insertQuery = `(?s)^INSERT\s+INTO\s+mod_versions\s*\(mod_id,\s*version_number,\s*changelog,\s*storage_key\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4\)\s*RETURNING\s+id,\s*created_at$`

func TestCreate(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr error
		wantMsg string
	}{
		{name: "ok"},
		{name: "duplicate version", err: &pgconn.PgError{Code: "23505"}, wantErr: common.ErrorAlreadyExists},
		{name: "db error", err: errors.New("db down"), wantMsg: "db error: db down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newRepoWithMock(t)
			exp := mock.ExpectQuery(insertQuery).WithArgs(int64(42), "1.0.0", "first", "versions/42/1.0.0/a.zip")
			if tt.err != nil {
				exp.WillReturnError(tt.err)
			} else {
				exp.WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(9), time.Now()))
			}

			got, err := repo.Create(context.Background(), &models.Version{
				ModID: 42, VersionNumber: "1.0.0", Changelog: "first", StorageKey: "versions/42/1.0.0/a.zip",
			})
			switch {
			case tt.wantErr != nil:
				require.ErrorIs(t, err, tt.wantErr)
			case tt.wantMsg != "":
				require.EqualError(t, err, tt.wantMsg)
			default:
				require.NoError(t, err)
				assert.Equal(t, int64(9), got.ID)
			}
		})
	}
}

func TestListByMod(t *testing.T) {
	q := `(?s)^SELECT\s+id,\s*mod_id,\s*version_number,\s*changelog,\s*storage_key,\s*created_at\s+FROM\s+mod_versions\s+WHERE\s+mod_id\s*=\s*\$1\s+ORDER\s+BY\s+created_at\s+DESC,\s*id\s+DESC$`

	repo, mock := newRepoWithMock(t)
	now := time.Now()
	mock.ExpectQuery(q).WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "mod_id", "version_number", "changelog", "storage_key", "created_at"}).
			AddRow(int64(2), int64(42), "1.1.0", "", "versions/42/1.1.0/a.zip", now).
			AddRow(int64(1), int64(42), "1.0.0", "", "versions/42/1.0.0/a.zip", now))

	got, err := repo.ListByMod(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "1.1.0", got[0].VersionNumber)

	mock.ExpectQuery(q).WithArgs(int64(43)).WillReturnError(errors.New("boom"))
	_, err = repo.ListByMod(context.Background(), 43)
	require.ErrorContains(t, err, "failed to select versions")
}

func TestGetByNumber(t *testing.T) {
	q := `(?s)^SELECT\s+id,\s*mod_id,\s*version_number,\s*changelog,\s*storage_key,\s*created_at\s+FROM\s+mod_versions\s+WHERE\s+mod_id\s*=\s*\$1\s+AND\s+version_number\s*=\s*\$2$`
	cols := []string{"id", "mod_id", "version_number", "changelog", "storage_key", "created_at"}

	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(q).WithArgs(int64(42), "1.0.0").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(int64(1), int64(42), "1.0.0", "c", "versions/42/1.0.0/a.zip", time.Now()))

	got, err := repo.GetByNumber(context.Background(), 42, "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, "versions/42/1.0.0/a.zip", got.StorageKey)

	mock.ExpectQuery(q).WithArgs(int64(42), "2.0.0").WillReturnRows(sqlmock.NewRows(cols))
	_, err = repo.GetByNumber(context.Background(), 42, "2.0.0")
	require.ErrorIs(t, err, common.ErrorNotFound)

	mock.ExpectQuery(q).WithArgs(int64(42), "3.0.0").WillReturnError(errors.New("boom"))
	_, err = repo.GetByNumber(context.Background(), 42, "3.0.0")
	require.EqualError(t, err, "db error: boom")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete(t *testing.T) {
	q := `^DELETE FROM mod_versions WHERE id = \$1$`

	repo, mock := newRepoWithMock(t)
	mock.ExpectExec(q).WithArgs(int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), 1))

	mock.ExpectExec(q).WithArgs(int64(2)).WillReturnResult(sqlmock.NewResult(0, 0))
	require.ErrorIs(t, repo.Delete(context.Background(), 2), common.ErrorNotFound)

	mock.ExpectExec(q).WithArgs(int64(3)).WillReturnError(errors.New("boom"))
	require.EqualError(t, repo.Delete(context.Background(), 3), "db error: boom")
	require.NoError(t, mock.ExpectationsWereMet())
}
