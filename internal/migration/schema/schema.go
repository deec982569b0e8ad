// Package schema holds the credit ledger DDL for the dialects that do not go
// through the versioned postgres migrations. Every statement is idempotent.
package schema

import (
	"fmt"

	"gorm.io/gorm"
)

// SQLite stores decimals as TEXT so shopspring/decimal round-trips exactly.
var SQLite = []string{
	`CREATE TABLE IF NOT EXISTS subscription_tiers (
		id INTEGER PRIMARY KEY,
		tier_name TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL,
		monthly_credits TEXT NOT NULL DEFAULT '0',
		monthly_price TEXT NOT NULL DEFAULT '0',
		yearly_price TEXT,
		yearly_discount TEXT,
		features TEXT NOT NULL DEFAULT '{}',
		enabled BOOLEAN NOT NULL DEFAULT 1,
		sort_order INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS user_subscriptions (
		id INTEGER PRIMARY KEY,
		user_id INTEGER NOT NULL UNIQUE,
		tier TEXT NOT NULL,
		subscription_type TEXT NOT NULL,
		monthly_credits TEXT NOT NULL,
		current_credits TEXT NOT NULL,
		used_credits TEXT NOT NULL,
		purchased_credits TEXT NOT NULL,
		subscription_start_date DATETIME NOT NULL,
		billing_cycle_start DATETIME NOT NULL,
		billing_cycle_end DATETIME NOT NULL,
		next_grant_date DATETIME,
		status TEXT NOT NULL,
		auto_renew BOOLEAN NOT NULL DEFAULT 1,
		cancelled_at DATETIME,
		version INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE INDEX IF NOT EXISTS ix_user_subscriptions_renewal ON user_subscriptions (status, billing_cycle_end)`,
	`CREATE INDEX IF NOT EXISTS ix_user_subscriptions_grant ON user_subscriptions (subscription_type, next_grant_date)`,
	`CREATE TABLE IF NOT EXISTS credit_transactions (
		id INTEGER PRIMARY KEY,
		user_id INTEGER NOT NULL,
		subscription_id INTEGER NOT NULL,
		transaction_type TEXT NOT NULL,
		credits TEXT NOT NULL,
		balance_before TEXT NOT NULL,
		balance_after TEXT NOT NULL,
		reference_id TEXT,
		reference_type TEXT,
		description TEXT,
		extra_data TEXT,
		created_at DATETIME
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_credit_transactions_reference
		ON credit_transactions (user_id, reference_id, transaction_type)`,
	`CREATE INDEX IF NOT EXISTS ix_credit_transactions_user_order ON credit_transactions (user_id, created_at, id)`,
	`CREATE TRIGGER IF NOT EXISTS trg_credit_transactions_no_update BEFORE UPDATE ON credit_transactions
		BEGIN SELECT RAISE(ABORT, 'credit_transactions is append-only'); END`,
	`CREATE TRIGGER IF NOT EXISTS trg_credit_transactions_no_delete BEFORE DELETE ON credit_transactions
		BEGIN SELECT RAISE(ABORT, 'credit_transactions is append-only'); END`,
	`CREATE TABLE IF NOT EXISTS model_credit_rates (
		id INTEGER PRIMARY KEY,
		model_id TEXT NOT NULL UNIQUE,
		base_credit_per_1k_tokens TEXT NOT NULL,
		input_multiplier TEXT NOT NULL,
		output_multiplier TEXT NOT NULL,
		enabled BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS credit_packages (
		id INTEGER PRIMARY KEY,
		package_name TEXT NOT NULL UNIQUE,
		credits TEXT NOT NULL,
		bonus_credits TEXT NOT NULL DEFAULT '0',
		price TEXT NOT NULL,
		description TEXT,
		enabled BOOLEAN NOT NULL DEFAULT 1,
		sort_order INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id INTEGER PRIMARY KEY,
		actor_type TEXT NOT NULL,
		actor_id TEXT,
		action TEXT NOT NULL,
		target_type TEXT NOT NULL,
		target_id TEXT,
		metadata TEXT,
		ip_address TEXT,
		user_agent TEXT,
		created_at DATETIME
	)`,
	`CREATE INDEX IF NOT EXISTS ix_audit_logs_created ON audit_logs (created_at, id)`,
	`CREATE INDEX IF NOT EXISTS ix_audit_logs_target ON audit_logs (target_type, target_id)`,
}

// MySQL needs bounded VARCHAR keys; indexes are declared inline because
// CREATE INDEX has no IF NOT EXISTS there. Triggers need MySQL 8.0.29+.
var MySQL = []string{
	`CREATE TABLE IF NOT EXISTS subscription_tiers (
		id BIGINT PRIMARY KEY,
		tier_name VARCHAR(64) NOT NULL,
		display_name VARCHAR(255) NOT NULL,
		monthly_credits DECIMAL(20,2) NOT NULL DEFAULT 0,
		monthly_price DECIMAL(20,2) NOT NULL DEFAULT 0,
		yearly_price DECIMAL(20,2) NULL,
		yearly_discount DECIMAL(5,2) NULL,
		features JSON NOT NULL,
		enabled BOOLEAN NOT NULL DEFAULT TRUE,
		sort_order INT NOT NULL DEFAULT 0,
		created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		updated_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		UNIQUE KEY ux_subscription_tiers_name (tier_name)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS user_subscriptions (
		id BIGINT PRIMARY KEY,
		user_id BIGINT NOT NULL,
		tier VARCHAR(64) NOT NULL,
		subscription_type VARCHAR(16) NOT NULL,
		monthly_credits DECIMAL(20,2) NOT NULL DEFAULT 0,
		current_credits DECIMAL(20,2) NOT NULL DEFAULT 0,
		used_credits DECIMAL(20,2) NOT NULL DEFAULT 0,
		purchased_credits DECIMAL(20,2) NOT NULL DEFAULT 0,
		subscription_start_date DATETIME(6) NOT NULL,
		billing_cycle_start DATETIME(6) NOT NULL,
		billing_cycle_end DATETIME(6) NOT NULL,
		next_grant_date DATETIME(6) NULL,
		status VARCHAR(16) NOT NULL,
		auto_renew BOOLEAN NOT NULL DEFAULT TRUE,
		cancelled_at DATETIME(6) NULL,
		version BIGINT NOT NULL DEFAULT 1,
		created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		updated_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		UNIQUE KEY ux_user_subscriptions_user (user_id),
		KEY ix_user_subscriptions_renewal (status, billing_cycle_end),
		KEY ix_user_subscriptions_grant (subscription_type, next_grant_date)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS credit_transactions (
		id BIGINT PRIMARY KEY,
		user_id BIGINT NOT NULL,
		subscription_id BIGINT NOT NULL,
		transaction_type VARCHAR(32) NOT NULL,
		credits DECIMAL(20,2) NOT NULL,
		balance_before DECIMAL(20,2) NOT NULL,
		balance_after DECIMAL(20,2) NOT NULL,
		reference_id VARCHAR(255) NULL,
		reference_type VARCHAR(64) NULL,
		description TEXT NULL,
		extra_data JSON NULL,
		created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		UNIQUE KEY ux_credit_transactions_reference (user_id, reference_id, transaction_type),
		KEY ix_credit_transactions_user_order (user_id, created_at, id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TRIGGER IF NOT EXISTS trg_credit_transactions_no_update BEFORE UPDATE ON credit_transactions
		FOR EACH ROW SIGNAL SQLSTATE '45000' SET MESSAGE_TEXT = 'credit_transactions is append-only'`,
	`CREATE TRIGGER IF NOT EXISTS trg_credit_transactions_no_delete BEFORE DELETE ON credit_transactions
		FOR EACH ROW SIGNAL SQLSTATE '45000' SET MESSAGE_TEXT = 'credit_transactions is append-only'`,
	`CREATE TABLE IF NOT EXISTS model_credit_rates (
		id BIGINT PRIMARY KEY,
		model_id VARCHAR(128) NOT NULL,
		base_credit_per_1k_tokens DECIMAL(12,4) NOT NULL,
		input_multiplier DECIMAL(8,4) NOT NULL DEFAULT 1,
		output_multiplier DECIMAL(8,4) NOT NULL DEFAULT 1,
		enabled BOOLEAN NOT NULL DEFAULT TRUE,
		created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		updated_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		UNIQUE KEY ux_model_credit_rates_model (model_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS credit_packages (
		id BIGINT PRIMARY KEY,
		package_name VARCHAR(128) NOT NULL,
		credits DECIMAL(20,2) NOT NULL,
		bonus_credits DECIMAL(20,2) NOT NULL DEFAULT 0,
		price DECIMAL(20,2) NOT NULL,
		description TEXT NULL,
		enabled BOOLEAN NOT NULL DEFAULT TRUE,
		sort_order INT NOT NULL DEFAULT 0,
		created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		updated_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		UNIQUE KEY ux_credit_packages_name (package_name)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id BIGINT PRIMARY KEY,
		actor_type VARCHAR(32) NOT NULL,
		actor_id VARCHAR(255) NULL,
		action VARCHAR(128) NOT NULL,
		target_type VARCHAR(64) NOT NULL,
		target_id VARCHAR(255) NULL,
		metadata JSON NULL,
		ip_address VARCHAR(64) NULL,
		user_agent TEXT NULL,
		created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		KEY ix_audit_logs_created (created_at, id),
		KEY ix_audit_logs_target (target_type, target_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Apply runs the statements in order on conn.
func Apply(conn *gorm.DB, stmts []string) error {
	for i, stmt := range stmts {
		if err := conn.Exec(stmt).Error; err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
