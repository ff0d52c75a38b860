// internal/services/commission_service_test.go
package services

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/hugoapp/hugo-backend/internal/models"
)

func clickRow(id, campaignID uuid.UUID, converted bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "campaign_id", "affiliate_id", "converted"}).
		AddRow(id, campaignID, uuid.New(), converted)
}

func campaignRow(id uuid.UUID, commissionType models.CommissionType, rateBps, fixedAmount int64, active bool, maxConversions interface{}, totalConversions int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "affiliate_id", "item_id", "commission_type", "rate_bps",
		"fixed_amount", "is_active", "max_conversions", "total_conversions",
	}).AddRow(id, uuid.New(), uuid.New(), commissionType, rateBps, fixedAmount, active, maxConversions, totalConversions)
}

func transactionRow(id uuid.UUID, status models.TransactionStatus, grossAmount int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "status", "gross_amount"}).
		AddRow(id, status, grossAmount)
}

func TestCalculateCommission_Percentage(t *testing.T) {
	db, mock := newTestDB(t)
	svc := NewCommissionService(db, nil)

	clickID := uuid.New()
	campaignID := uuid.New()
	transactionID := uuid.New()
	conversionID := uuid.New()

	mock.ExpectQuery(`SELECT (.+) FROM "clicks"`).
		WillReturnRows(clickRow(clickID, campaignID, false))
	mock.ExpectQuery(`SELECT (.+) FROM "campaigns"`).
		WillReturnRows(campaignRow(campaignID, models.CommissionTypePercentage, 1000, 0, true, nil, 0))
	mock.ExpectQuery(`SELECT (.+) FROM "transactions"`).
		WillReturnRows(transactionRow(transactionID, models.TransactionStatusSucceeded, 5000))
	mock.ExpectQuery(`INSERT INTO "conversions"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(conversionID))
	mock.ExpectExec(`UPDATE "clicks"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "campaigns"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	result, err := svc.CalculateCommission(clickID, transactionID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), result.CommissionAmount) // 10% of 5000
	assert.Equal(t, models.CommissionPayoutStatusPending, result.PayoutStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCalculateCommission_Fixed(t *testing.T) {
	db, mock := newTestDB(t)
	svc := NewCommissionService(db, nil)

	clickID := uuid.New()
	campaignID := uuid.New()
	transactionID := uuid.New()

	mock.ExpectQuery(`SELECT (.+) FROM "clicks"`).
		WillReturnRows(clickRow(clickID, campaignID, false))
	mock.ExpectQuery(`SELECT (.+) FROM "campaigns"`).
		WillReturnRows(campaignRow(campaignID, models.CommissionTypeFixed, 0, 750, true, nil, 0))
	mock.ExpectQuery(`SELECT (.+) FROM "transactions"`).
		WillReturnRows(transactionRow(transactionID, models.TransactionStatusSucceeded, 5000))
	mock.ExpectQuery(`INSERT INTO "conversions"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.New()))
	mock.ExpectExec(`UPDATE "clicks"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "campaigns"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	result, err := svc.CalculateCommission(clickID, transactionID)
	require.NoError(t, err)
	assert.Equal(t, int64(750), result.CommissionAmount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCalculateCommission_AlreadyConvertedLatch(t *testing.T) {
	db, mock := newTestDB(t)
	svc := NewCommissionService(db, nil)

	clickID := uuid.New()
	mock.ExpectQuery(`SELECT (.+) FROM "clicks"`).
		WillReturnRows(clickRow(clickID, uuid.New(), true))

	_, err := svc.CalculateCommission(clickID, uuid.New())
	assert.ErrorIs(t, err, ErrAlreadyConverted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCalculateCommission_DuplicateConversionBackstop(t *testing.T) {
	db, mock := newTestDB(t)
	svc := NewCommissionService(db, nil)

	clickID := uuid.New()
	campaignID := uuid.New()
	transactionID := uuid.New()

	// Click latch not yet visible, but another writer got the conversion in
	// first: the unique click_id constraint rejects the insert.
	mock.ExpectQuery(`SELECT (.+) FROM "clicks"`).
		WillReturnRows(clickRow(clickID, campaignID, false))
	mock.ExpectQuery(`SELECT (.+) FROM "campaigns"`).
		WillReturnRows(campaignRow(campaignID, models.CommissionTypePercentage, 1000, 0, true, nil, 0))
	mock.ExpectQuery(`SELECT (.+) FROM "transactions"`).
		WillReturnRows(transactionRow(transactionID, models.TransactionStatusSucceeded, 5000))
	mock.ExpectQuery(`INSERT INTO "conversions"`).
		WillReturnError(gorm.ErrDuplicatedKey)

	_, err := svc.CalculateCommission(clickID, transactionID)
	assert.ErrorIs(t, err, ErrAlreadyConverted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCalculateCommission_CampaignInactive(t *testing.T) {
	db, mock := newTestDB(t)
	svc := NewCommissionService(db, nil)

	clickID := uuid.New()
	campaignID := uuid.New()

	mock.ExpectQuery(`SELECT (.+) FROM "clicks"`).
		WillReturnRows(clickRow(clickID, campaignID, false))
	mock.ExpectQuery(`SELECT (.+) FROM "campaigns"`).
		WillReturnRows(campaignRow(campaignID, models.CommissionTypePercentage, 1000, 0, false, nil, 0))

	_, err := svc.CalculateCommission(clickID, uuid.New())
	assert.ErrorIs(t, err, ErrCampaignInactive)
}

func TestCalculateCommission_ConversionLimitReached(t *testing.T) {
	db, mock := newTestDB(t)
	svc := NewCommissionService(db, nil)

	clickID := uuid.New()
	campaignID := uuid.New()

	mock.ExpectQuery(`SELECT (.+) FROM "clicks"`).
		WillReturnRows(clickRow(clickID, campaignID, false))
	mock.ExpectQuery(`SELECT (.+) FROM "campaigns"`).
		WillReturnRows(campaignRow(campaignID, models.CommissionTypePercentage, 1000, 0, true, int64(100), 100))

	_, err := svc.CalculateCommission(clickID, uuid.New())
	assert.ErrorIs(t, err, ErrConversionLimitReached)
}

func TestCalculateCommission_TransactionNotSucceeded(t *testing.T) {
	db, mock := newTestDB(t)
	svc := NewCommissionService(db, nil)

	clickID := uuid.New()
	campaignID := uuid.New()
	transactionID := uuid.New()

	for _, status := range []models.TransactionStatus{models.TransactionStatusPending, models.TransactionStatusFailed} {
		mock.ExpectQuery(`SELECT (.+) FROM "clicks"`).
			WillReturnRows(clickRow(clickID, campaignID, false))
		mock.ExpectQuery(`SELECT (.+) FROM "campaigns"`).
			WillReturnRows(campaignRow(campaignID, models.CommissionTypePercentage, 1000, 0, true, nil, 0))
		mock.ExpectQuery(`SELECT (.+) FROM "transactions"`).
			WillReturnRows(transactionRow(transactionID, status, 5000))

		_, err := svc.CalculateCommission(clickID, transactionID)
		assert.ErrorIs(t, err, ErrTransactionNotSucceeded, "status %s", status)
	}
}

func TestCalculateCommission_BoundsRejected(t *testing.T) {
	tests := []struct {
		name           string
		commissionType models.CommissionType
		rateBps        int64
		fixedAmount    int64
		gross          int64
		wantErr        error
	}{
		{"zero percentage yields zero", models.CommissionTypePercentage, 0, 0, 5000, ErrInvalidCommission},
		{"fixed exceeds gross", models.CommissionTypeFixed, 0, 6000, 5000, ErrInvalidCommission},
		{"fixed zero", models.CommissionTypeFixed, 0, 0, 5000, ErrInvalidCommission},
		{"unknown type hard-fails", models.CommissionType("tiered"), 1000, 0, 5000, ErrUnknownCommissionType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newTestDB(t)
			svc := NewCommissionService(db, nil)

			clickID := uuid.New()
			campaignID := uuid.New()
			transactionID := uuid.New()

			mock.ExpectQuery(`SELECT (.+) FROM "clicks"`).
				WillReturnRows(clickRow(clickID, campaignID, false))
			mock.ExpectQuery(`SELECT (.+) FROM "campaigns"`).
				WillReturnRows(campaignRow(campaignID, tt.commissionType, tt.rateBps, tt.fixedAmount, true, nil, 0))
			mock.ExpectQuery(`SELECT (.+) FROM "transactions"`).
				WillReturnRows(transactionRow(transactionID, models.TransactionStatusSucceeded, tt.gross))

			_, err := svc.CalculateCommission(clickID, transactionID)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.NoError(t, mock.ExpectationsWereMet(), "nothing may be persisted on a rejected commission")
		})
	}
}

func TestCalculateCommission_ClickNotFound(t *testing.T) {
	db, mock := newTestDB(t)
	svc := NewCommissionService(db, nil)

	mock.ExpectQuery(`SELECT (.+) FROM "clicks"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := svc.CalculateCommission(uuid.New(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTrackClick_FingerprintFallback(t *testing.T) {
	db, mock := newTestDB(t)
	svc := NewCommissionService(db, nil)

	campaignID := uuid.New()

	mock.ExpectQuery(`SELECT (.+) FROM "campaigns"`).
		WillReturnRows(campaignRow(campaignID, models.CommissionTypePercentage, 1000, 0, true, nil, 0))
	mock.ExpectQuery(`INSERT INTO "clicks"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.New()))

	click, err := svc.TrackClick(&TrackClickRequest{CampaignID: campaignID}, "203.0.113.9", "test-agent")
	require.NoError(t, err)
	assert.NotEmpty(t, click.VisitorKey, "visitor key falls back to a fingerprint")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrackClick_InactiveCampaign(t *testing.T) {
	db, mock := newTestDB(t)
	svc := NewCommissionService(db, nil)

	campaignID := uuid.New()
	mock.ExpectQuery(`SELECT (.+) FROM "campaigns"`).
		WillReturnRows(campaignRow(campaignID, models.CommissionTypePercentage, 1000, 0, false, nil, 0))

	_, err := svc.TrackClick(&TrackClickRequest{CampaignID: campaignID}, "203.0.113.9", "test-agent")
	assert.ErrorIs(t, err, ErrCampaignInactive)
}
