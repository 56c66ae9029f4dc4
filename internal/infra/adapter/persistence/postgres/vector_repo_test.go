package postgres_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planetcf/internal/infra/adapter/persistence/postgres"
)

func TestVectorRepo_Upsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec(`INSERT INTO entry_vectors`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := postgres.NewVectorRepo(db)
	err = repo.Upsert(context.Background(), 1, make([]float32, 1536), "hello world")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVectorRepo_Upsert_DatabaseError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec(`INSERT INTO entry_vectors`).
		WillReturnError(errors.New("connection lost"))

	repo := postgres.NewVectorRepo(db)
	err = repo.Upsert(context.Background(), 1, make([]float32, 1536), "hello")
	assert.Error(t, err)
}

func TestVectorRepo_DeleteByEntryIDs_Empty(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	repo := postgres.NewVectorRepo(db)
	err = repo.DeleteByEntryIDs(context.Background(), nil)
	require.NoError(t, err)
}

func TestVectorRepo_DeleteByEntryIDs(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec(`DELETE FROM entry_vectors WHERE entry_id IN`).
		WithArgs(int64(1), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	repo := postgres.NewVectorRepo(db)
	err = repo.DeleteByEntryIDs(context.Background(), []int64{1, 2})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVectorRepo_SearchSimilar(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	rows := sqlmock.NewRows([]string{"entry_id", "similarity"}).
		AddRow(1, 0.98).
		AddRow(2, 0.91)
	mock.ExpectQuery(`FROM entry_vectors`).WillReturnRows(rows)

	repo := postgres.NewVectorRepo(db)
	matches, err := repo.SearchSimilar(context.Background(), make([]float32, 1536), 10)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, int64(1), matches[0].EntryID)
	assert.InDelta(t, 0.98, matches[0].Score, 0.0001)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVectorRepo_SearchSimilar_ZeroTopK(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	repo := postgres.NewVectorRepo(db)
	matches, err := repo.SearchSimilar(context.Background(), make([]float32, 1536), 0)
	require.NoError(t, err)
	assert.Nil(t, matches)
}

func TestVectorRepo_SearchSimilar_ClampsTopK(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(`FROM entry_vectors`).
		WithArgs(sqlmock.AnyArg(), 100).
		WillReturnRows(sqlmock.NewRows([]string{"entry_id", "similarity"}))

	repo := postgres.NewVectorRepo(db)
	_, err = repo.SearchSimilar(context.Background(), make([]float32, 1536), 10000)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
