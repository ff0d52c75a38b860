// internal/services/testutil_test.go
package services

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB wires gorm onto a sqlmock connection. SkipDefaultTransaction keeps
// single-statement writes out of Begin/Commit so expectations stay readable;
// WithTransaction blocks still produce explicit Begin/Commit expectations.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: conn}), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	return db, mock
}

// stubPaymentProvider records calls and returns canned intents.
type stubPaymentProvider struct {
	intent *PaymentIntent
	err    error
	calls  int
}

func (s *stubPaymentProvider) CreateIntent(amount int64, currency, paymentMethod string, metadata map[string]string) (*PaymentIntent, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.intent, nil
}

// stubPayoutProvider records transfers and returns a canned external id.
type stubPayoutProvider struct {
	externalID string
	err        error
	calls      int
	lastAmount int64
}

func (s *stubPayoutProvider) CreateTransfer(amount int64, currency, destination string, metadata map[string]string) (string, error) {
	s.calls++
	s.lastAmount = amount
	if s.err != nil {
		return "", s.err
	}
	return s.externalID, nil
}
