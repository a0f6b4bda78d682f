package db

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RezaEskandarii/cronfire/internal/lock"
)

type mockLockManager struct {
	acquireErr error
	releaseErr error
	acquired   []int
	released   []int
}

func (m *mockLockManager) Acquire(_ context.Context, lockID int) error {
	m.acquired = append(m.acquired, lockID)
	return m.acquireErr
}

func (m *mockLockManager) Release(_ context.Context, lockID int) error {
	m.released = append(m.released, lockID)
	return m.releaseErr
}

var _ lock.DistributedLockManager = (*mockLockManager)(nil)

func TestReadSQLScripts(t *testing.T) {
	scripts, err := readSQLScripts()
	require.NoError(t, err)
	require.Len(t, scripts, 3) // jobs, job_executions, reports
	assert.Equal(t, "001_jobs.sql", scripts[0].name)
	assert.Contains(t, scripts[0].sql, "cronfire_schema.jobs")
	assert.Equal(t, "003_reports.sql", scripts[2].name)
}

func TestInit_LockAcquireFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	lockMgr := &mockLockManager{acquireErr: errors.New("lock busy")}

	err = Init(context.Background(), db, lockMgr, zerolog.Nop())
	assert.Error(t, err)
	assert.Empty(t, lockMgr.released)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInit_AppliesMigrationsUnderLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE SCHEMA IF NOT EXISTS cronfire_schema")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS cronfire_schema.jobs").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS cronfire_schema.job_executions").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS cronfire_schema.saved_reports").
		WillReturnResult(sqlmock.NewResult(0, 0))

	lockMgr := &mockLockManager{}
	require.NoError(t, Init(context.Background(), db, lockMgr, zerolog.Nop()))

	assert.Equal(t, []int{1}, lockMgr.acquired)
	assert.Equal(t, []int{1}, lockMgr.released)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInit_MigrationErrorReleasesLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE SCHEMA").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS cronfire_schema.jobs").
		WillReturnError(errors.New("permission denied"))

	lockMgr := &mockLockManager{}
	err = Init(context.Background(), db, lockMgr, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "001_jobs.sql")
	assert.Len(t, lockMgr.released, 1)
}
