// internal/database/connection.go
package database

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/hugoapp/hugo-backend/internal/config"
	"github.com/hugoapp/hugo-backend/internal/models"
)

func Initialize(cfg config.DatabaseConfig) (*gorm.DB, error) {
	logMode := logger.Info
	if cfg.LogLevel == "silent" {
		logMode = logger.Silent
	}

	// TranslateError turns driver unique-violation errors into
	// gorm.ErrDuplicatedKey, which the settlement core relies on as its
	// idempotency backstop.
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:         logger.Default.LogMode(logMode),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.Info("Database connection established")
	return db, nil
}

func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		logrus.WithError(err).Error("Error getting underlying sql.DB")
		return
	}

	if err := sqlDB.Close(); err != nil {
		logrus.WithError(err).Error("Error closing database connection")
	}
}

func RunMigrations(db *gorm.DB) error {
	logrus.Info("Running database migrations...")

	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS \"uuid-ossp\"").Error; err != nil {
		return fmt.Errorf("failed to create UUID extension: %w", err)
	}

	err := db.AutoMigrate(
		&models.User{},
		&models.Item{},
		&models.Transaction{},
		&models.Escrow{},
		&models.Campaign{},
		&models.Click{},
		&models.Conversion{},
		&models.Payout{},
		&models.Subscription{},
		&models.AuditLog{},
		&models.ReconciliationAlert{},
	)

	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	logrus.Info("Database migrations completed")
	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []string{
		// User indexes
		"CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)",
		"CREATE INDEX IF NOT EXISTS idx_users_category_status ON users(earner_category, status)",

		// Item indexes
		"CREATE INDEX IF NOT EXISTS idx_items_seller ON items(seller_id)",
		"CREATE INDEX IF NOT EXISTS idx_items_category_status ON items(category, status)",

		// Transaction indexes: payment_reference is the webhook idempotency
		// anchor and must stay unique.
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_payment_reference ON transactions(payment_reference) WHERE payment_reference <> ''",
		"CREATE INDEX IF NOT EXISTS idx_transactions_seller_status ON transactions(seller_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_transactions_buyer ON transactions(buyer_id)",
		"CREATE INDEX IF NOT EXISTS idx_transactions_created_at ON transactions(created_at DESC)",

		// Escrow / affiliate indexes
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_escrows_transaction ON escrows(transaction_id)",
		"CREATE INDEX IF NOT EXISTS idx_campaigns_item_active ON campaigns(item_id, is_active)",
		"CREATE INDEX IF NOT EXISTS idx_clicks_campaign ON clicks(campaign_id, converted)",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_conversions_click ON conversions(click_id)",

		// Payout / subscription indexes
		"CREATE INDEX IF NOT EXISTS idx_payouts_seller_status ON payouts(seller_id, status)",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_subscriptions_external ON subscriptions(external_subscription_id)",

		// Operational indexes
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_user_action ON audit_logs(user_id, action)",
		"CREATE INDEX IF NOT EXISTS idx_reconciliation_alerts_status ON reconciliation_alerts(status, created_at DESC)",
	}

	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			logrus.WithError(err).Warnf("Failed to create index: %s", index)
			// Continue with other indexes instead of failing completely
		}
	}

	return nil
}

// Transaction helper
func WithTransaction(db *gorm.DB, fn func(*gorm.DB) error) error {
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}
