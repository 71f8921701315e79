package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newMockOverridesRepo(t *testing.T) (*OverridesRepositoryImpl, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewOverridesRepository(sqlx.NewDb(db, "mysql")), mock
}

func TestApplyUpsertsAllKeysInOneTx(t *testing.T) {
	repo, mock := newMockOverridesRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO feature_cost_overrides").
		WithArgs("ai_text_chat", int64(3)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO plan_credit_overrides").
		WithArgs("pro", int64(750)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.Apply(context.Background(),
		map[string]int64{"ai_text_chat": 3},
		map[string]int64{"pro": 750},
	)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyRollsBackOnFailure(t *testing.T) {
	repo, mock := newMockOverridesRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO feature_cost_overrides").
		WithArgs("ai_text_chat", int64(3)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO plan_credit_overrides").
		WithArgs("pro", int64(750)).
		WillReturnError(errors.New("db down"))
	mock.ExpectRollback()

	err := repo.Apply(context.Background(),
		map[string]int64{"ai_text_chat": 3},
		map[string]int64{"pro": 750},
	)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet(), "no commit after a failed key")
}
