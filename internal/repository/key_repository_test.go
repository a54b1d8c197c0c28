package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "AAAA1111-BBBB2222-CCCC3333-DDDD4444"

const redeemUpdate = `UPDATE keys_ledger SET is_redeemed = 1, redeemed_by = ?, redeemed_at = UTC_TIMESTAMP()
		 WHERE key_code = ? AND is_redeemed = 0`

func TestRedeemTxConsumesUnusedKey(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewKeyRepo(db)
	tx := beginTx(t, db, mock)

	mock.ExpectExec(regexp.QuoteMeta(redeemUpdate)).
		WithArgs("user-1", testKey).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT duration_days FROM keys_ledger WHERE key_code = ?`)).
		WithArgs(testKey).
		WillReturnRows(sqlmock.NewRows([]string{"duration_days"}).AddRow(30))

	duration, err := repo.RedeemTx(context.Background(), tx, testKey, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 30, duration)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedeemTxRejectsConsumedKey(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewKeyRepo(db)
	tx := beginTx(t, db, mock)

	mock.ExpectExec(regexp.QuoteMeta(redeemUpdate)).
		WithArgs("user-2", testKey).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT is_redeemed FROM keys_ledger WHERE key_code = ?`)).
		WithArgs(testKey).
		WillReturnRows(sqlmock.NewRows([]string{"is_redeemed"}).AddRow(true))

	_, err := repo.RedeemTx(context.Background(), tx, testKey, "user-2")
	assert.ErrorIs(t, err, ErrKeyRedeemed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedeemTxUnknownKey(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewKeyRepo(db)
	tx := beginTx(t, db, mock)

	mock.ExpectExec(regexp.QuoteMeta(redeemUpdate)).
		WithArgs("user-1", "NOPE").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT is_redeemed FROM keys_ledger WHERE key_code = ?`)).
		WithArgs("NOPE").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.RedeemTx(context.Background(), tx, "NOPE", "user-1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIssueMapsDuplicateToConflict(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewKeyRepo(db)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO keys_ledger (key_code, duration_days) VALUES (?, ?)`)).
		WithArgs(testKey, 30).
		WillReturnError(errors.New("Error 1062 (23000): Duplicate entry"))

	err := repo.Issue(context.Background(), testKey, 30)
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByCodeRedeemedKey(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewKeyRepo(db)

	redeemedAt := time.Now().UTC()
	mock.ExpectQuery("SELECT (.+) FROM keys_ledger WHERE key_code").
		WithArgs(testKey).
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "key_code", "duration_days", "is_redeemed", "redeemed_by", "redeemed_at", "created_at"}).
			AddRow(1, testKey, 30, true, "user-1", redeemedAt, redeemedAt.Add(-time.Hour)))

	k, err := repo.GetByCode(context.Background(), testKey)
	require.NoError(t, err)
	assert.True(t, k.IsRedeemed)
	require.NotNil(t, k.RedeemedBy)
	assert.Equal(t, "user-1", *k.RedeemedBy)
	require.NotNil(t, k.RedeemedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByCodeUnknownKey(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewKeyRepo(db)

	mock.ExpectQuery("SELECT (.+) FROM keys_ledger WHERE key_code").
		WithArgs("NOPE").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByCode(context.Background(), "NOPE")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteUnknownKey(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewKeyRepo(db)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM keys_ledger WHERE key_code = ?`)).
		WithArgs("NOPE").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "NOPE")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
