package state

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/leapgrt/internal/testutil"
	"github.com/leapstack-labs/leapgrt/pkg/structs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore_DriverErrors(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		run       func(t *testing.T, store *SQLiteStore) error
		errIs     error
		errMsg    string
	}{
		{
			name: "list query fails",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("FROM documents d ORDER BY d.name").WillReturnError(assert.AnError)
			},
			run: func(t *testing.T, store *SQLiteStore) error {
				_, err := store.ListDocuments(context.Background())
				return err
			},
			errIs:  assert.AnError,
			errMsg: "failed to list documents",
		},
		{
			name: "get finds nothing",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("FROM documents d WHERE").
					WithArgs("nope", "nope").
					WillReturnRows(sqlmock.NewRows([]string{"id", "name", "root_id", "root_class", "created_at", "updated_at", "count"}))
			},
			run: func(t *testing.T, store *SQLiteStore) error {
				_, err := store.GetDocument(context.Background(), "nope")
				return err
			},
			errIs: ErrNotFound,
		},
		{
			name: "delete finds nothing",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec("DELETE FROM objects").WithArgs("nope", "nope").WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectExec("DELETE FROM documents").WithArgs("nope", "nope").WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectRollback()
			},
			run: func(t *testing.T, store *SQLiteStore) error {
				return store.DeleteDocument(context.Background(), "nope")
			},
			errIs: ErrNotFound,
		},
		{
			name: "save rolls back when an object insert fails",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(regexp.QuoteMeta("SELECT id, created_at FROM documents WHERE name = ?")).
					WithArgs("press").
					WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}))
				mock.ExpectExec("INSERT INTO documents").WillReturnResult(sqlmock.NewResult(1, 1))
				mock.ExpectPrepare("INSERT INTO objects").ExpectExec().WillReturnError(assert.AnError)
				mock.ExpectRollback()
			},
			run: func(t *testing.T, store *SQLiteStore) error {
				rt := newRuntime(t)
				pub, err := structs.BuildSamplePublisher(rt)
				require.NoError(t, err)
				_, err = store.SaveDocument(context.Background(), "press", pub.Object)
				return err
			},
			errIs:  assert.AnError,
			errMsg: "failed to insert object",
		},
		{
			name: "save fails to begin",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin().WillReturnError(assert.AnError)
			},
			run: func(t *testing.T, store *SQLiteStore) error {
				rt := newRuntime(t)
				table, err := structs.NewTable(rt, "t")
				require.NoError(t, err)
				_, err = store.SaveDocument(context.Background(), "t", table.Object)
				return err
			},
			errIs:  assert.AnError,
			errMsg: "failed to begin transaction",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer func() { _ = db.Close() }()
			tt.setupMock(mock)

			store := NewSQLiteStoreWithDB(db, testutil.NewTestLogger(t))
			err = tt.run(t, store)
			require.Error(t, err)
			if tt.errIs != nil {
				assert.ErrorIs(t, err, tt.errIs)
			}
			if tt.errMsg != "" {
				assert.Contains(t, err.Error(), tt.errMsg)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSaveDocumentRejectsNilRoot(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	_, err = NewSQLiteStoreWithDB(db, nil).SaveDocument(context.Background(), "x", nil)
	assert.Error(t, err)
}
