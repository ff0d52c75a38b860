// internal/services/payout_service_test.go
package services

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugoapp/hugo-backend/internal/models"
	"github.com/hugoapp/hugo-backend/internal/utils"
)

func expectBalanceQueries(mock sqlmock.Sqlmock, earned, held, paidOut int64) {
	mock.ExpectQuery(`SELECT COALESCE\(SUM\(transactions.seller_net`).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(earned))
	mock.ExpectQuery(`SELECT COALESCE\(SUM\(escrows.held_amount`).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(held))
	mock.ExpectQuery(`SELECT COALESCE\(SUM\(amount`).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(paidOut))
}

// expectLockedSeller requires the seller load to carry a row lock; the lock is
// what serializes concurrent payout requests.
func expectLockedSeller(mock sqlmock.Sqlmock, rows *sqlmock.Rows) {
	mock.ExpectQuery(`SELECT (.+) FROM "users"(.+)FOR UPDATE`).WillReturnRows(rows)
}

func sellerRow(id uuid.UUID, stripeAccountID string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "username", "earner_category", "stripe_account_id"}).
		AddRow(id, "seller", models.EarnerCategoryVendor, stripeAccountID)
}

func TestAvailableBalance(t *testing.T) {
	db, mock := newTestDB(t)
	svc := NewPayoutService(db, testPaymentConfig(), nil, nil)

	expectBalanceQueries(mock, 12480, 4000, 5000)

	balance, err := svc.AvailableBalance(uuid.New())
	require.NoError(t, err)
	assert.Equal(t, int64(12480), balance.TotalEarned)
	assert.Equal(t, int64(4000), balance.HeldInEscrow)
	assert.Equal(t, int64(5000), balance.PaidOut)
	assert.Equal(t, int64(7480), balance.AvailableBalance)
	assert.Equal(t, "usd", balance.Currency)
}

func TestCreatePayout_FullBalance(t *testing.T) {
	db, mock := newTestDB(t)
	provider := &stubPayoutProvider{externalID: "tr_test_456"}
	svc := NewPayoutService(db, testPaymentConfig(), provider, nil)

	sellerID := uuid.New()

	mock.ExpectBegin()
	expectLockedSeller(mock, sellerRow(sellerID, "acct_123"))
	expectBalanceQueries(mock, 12480, 0, 5000)
	mock.ExpectQuery(`INSERT INTO "payouts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.New()))
	mock.ExpectCommit()

	result, err := svc.CreatePayout(sellerID, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(7480), result.Amount, "nil amount withdraws the full available balance")
	assert.Equal(t, models.PayoutStatusPending, result.Status)
	assert.Equal(t, int64(7480), provider.lastAmount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePayout_InsufficientBalance(t *testing.T) {
	db, mock := newTestDB(t)
	provider := &stubPayoutProvider{externalID: "tr_never"}
	svc := NewPayoutService(db, testPaymentConfig(), provider, nil)

	sellerID := uuid.New()
	requested := int64(8000)

	mock.ExpectBegin()
	expectLockedSeller(mock, sellerRow(sellerID, "acct_123"))
	expectBalanceQueries(mock, 12480, 0, 5000)
	mock.ExpectRollback()

	_, err := svc.CreatePayout(sellerID, &requested)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Zero(t, provider.calls, "no transfer may be opened without cover")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Two withdrawals racing for the same balance: the second request acquires the
// row lock only after the first commits, so its balance read already includes
// the first payout and the cover check fails instead of double-spending.
func TestCreatePayout_ConcurrentRequestLosesCover(t *testing.T) {
	db, mock := newTestDB(t)
	provider := &stubPayoutProvider{externalID: "tr_test_first"}
	svc := NewPayoutService(db, testPaymentConfig(), provider, nil)

	sellerID := uuid.New()
	requested := int64(7480)

	mock.ExpectBegin()
	expectLockedSeller(mock, sellerRow(sellerID, "acct_123"))
	expectBalanceQueries(mock, 12480, 0, 5000)
	mock.ExpectQuery(`INSERT INTO "payouts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.New()))
	mock.ExpectCommit()

	mock.ExpectBegin()
	expectLockedSeller(mock, sellerRow(sellerID, "acct_123"))
	expectBalanceQueries(mock, 12480, 0, 12480)
	mock.ExpectRollback()

	first, err := svc.CreatePayout(sellerID, &requested)
	require.NoError(t, err)
	assert.Equal(t, int64(7480), first.Amount)

	_, err = svc.CreatePayout(sellerID, &requested)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, 1, provider.calls, "only the first request reaches the rail")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePayout_BelowMinimum(t *testing.T) {
	db, mock := newTestDB(t)
	provider := &stubPayoutProvider{externalID: "tr_never"}
	svc := NewPayoutService(db, testPaymentConfig(), provider, nil)

	sellerID := uuid.New()
	requested := int64(500) // minimum is 1000

	mock.ExpectBegin()
	expectLockedSeller(mock, sellerRow(sellerID, "acct_123"))
	expectBalanceQueries(mock, 12480, 0, 5000)
	mock.ExpectRollback()

	_, err := svc.CreatePayout(sellerID, &requested)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Zero(t, provider.calls)
}

func TestCreatePayout_NoDestination(t *testing.T) {
	db, mock := newTestDB(t)
	provider := &stubPayoutProvider{externalID: "tr_never"}
	svc := NewPayoutService(db, testPaymentConfig(), provider, nil)

	sellerID := uuid.New()

	mock.ExpectBegin()
	expectLockedSeller(mock, sellerRow(sellerID, ""))
	mock.ExpectRollback()

	_, err := svc.CreatePayout(sellerID, nil)
	assert.ErrorIs(t, err, ErrNoPayoutDestination)
	assert.Zero(t, provider.calls)
}

func TestCreatePayout_ReconciliationOnLocalWriteFailure(t *testing.T) {
	db, mock := newTestDB(t)
	provider := &stubPayoutProvider{externalID: "tr_test_789"}
	svc := NewPayoutService(db, testPaymentConfig(), provider, nil)

	sellerID := uuid.New()

	mock.ExpectBegin()
	expectLockedSeller(mock, sellerRow(sellerID, "acct_123"))
	expectBalanceQueries(mock, 12480, 0, 5000)
	mock.ExpectQuery(`INSERT INTO "payouts"`).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectQuery(`INSERT INTO "reconciliation_alerts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.New()))
	mock.ExpectRollback()

	_, err := svc.CreatePayout(sellerID, nil)
	assert.ErrorIs(t, err, ErrReconciliationRequired)
	assert.Equal(t, 1, provider.calls, "the transfer went out exactly once; no retry after the local failure")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePayout_ProviderRejection(t *testing.T) {
	db, mock := newTestDB(t)
	provider := &stubPayoutProvider{err: errors.New("account disabled")}
	svc := NewPayoutService(db, testPaymentConfig(), provider, nil)

	sellerID := uuid.New()

	mock.ExpectBegin()
	expectLockedSeller(mock, sellerRow(sellerID, "acct_123"))
	expectBalanceQueries(mock, 12480, 0, 5000)
	mock.ExpectRollback()

	_, err := svc.CreatePayout(sellerID, nil)
	assert.ErrorIs(t, err, ErrProviderRejected)
	assert.NoError(t, mock.ExpectationsWereMet(), "nothing persisted when the provider rejects")
}

func TestResolveAlert(t *testing.T) {
	db, mock := newTestDB(t)
	svc := NewPayoutService(db, testPaymentConfig(), nil, nil)

	alertID := uuid.New()
	actor := uuid.New()

	mock.ExpectExec(`UPDATE "reconciliation_alerts"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, svc.ResolveAlert(alertID, actor))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveAlert_AlreadyResolved(t *testing.T) {
	db, mock := newTestDB(t)
	svc := NewPayoutService(db, testPaymentConfig(), nil, nil)

	alertID := uuid.New()

	mock.ExpectExec(`UPDATE "reconciliation_alerts"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT (.+) FROM "reconciliation_alerts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow(alertID, models.AlertStatusResolved))

	err := svc.ResolveAlert(alertID, uuid.New())
	assert.ErrorIs(t, err, ErrConflictingState)
}

func TestResolveAlert_NotFound(t *testing.T) {
	db, mock := newTestDB(t)
	svc := NewPayoutService(db, testPaymentConfig(), nil, nil)

	mock.ExpectExec(`UPDATE "reconciliation_alerts"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT (.+) FROM "reconciliation_alerts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	err := svc.ResolveAlert(uuid.New(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpenAlerts(t *testing.T) {
	db, mock := newTestDB(t)
	svc := NewPayoutService(db, testPaymentConfig(), nil, nil)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "reconciliation_alerts"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT (.+) FROM "reconciliation_alerts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "resource_type", "external_ref", "status"}).
			AddRow(uuid.New(), "payout", "tr_test_789", models.AlertStatusOpen))

	alerts, total, err := svc.OpenAlerts(utils.PaginationParams{Page: 1, Limit: 20, Sort: "created_at", Order: "desc"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertStatusOpen, alerts[0].Status)
}
