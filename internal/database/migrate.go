package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
)

// Migration is one forward-only schema step.  Versions are applied in
// ascending order and recorded in schema_migrations.
type Migration struct {
	Version    int
	Name       string
	Statements []string
}

// Migrations lists the MySQL schema of the application.
var Migrations = []Migration{
	{
		Version: 1,
		Name:    "init_auth",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS users (
				id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
				username VARCHAR(150) NOT NULL,
				email VARCHAR(254) NULL,
				password_hash VARCHAR(255) NOT NULL DEFAULT '',
				is_active TINYINT(1) NOT NULL DEFAULT 1,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				UNIQUE KEY uq_users_username (username),
				UNIQUE KEY uq_users_email (email)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS refresh_tokens (
				id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
				user_id BIGINT UNSIGNED NOT NULL,
				token_hash CHAR(64) NOT NULL,
				expires_at DATETIME NOT NULL,
				revoked_at DATETIME NULL,
				created_at DATETIME NOT NULL,
				UNIQUE KEY uq_refresh_tokens_hash (token_hash),
				KEY idx_refresh_tokens_user (user_id),
				CONSTRAINT fk_refresh_tokens_user FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		},
	},
	{
		Version: 2,
		Name:    "init_todos",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS todos (
				id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
				owner_id BIGINT UNSIGNED NOT NULL,
				content TEXT NOT NULL,
				created_at DATETIME(6) NOT NULL,
				completed_at DATETIME(6) NULL,
				deleted_at DATETIME(6) NULL,
				KEY idx_todos_owner_deleted (owner_id, deleted_at, created_at),
				CONSTRAINT fk_todos_owner FOREIGN KEY (owner_id) REFERENCES users (id) ON DELETE CASCADE
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		},
	},
	{
		Version: 3,
		Name:    "init_providers",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS sites (
				id BIGINT UNSIGNED NOT NULL PRIMARY KEY,
				domain VARCHAR(100) NOT NULL,
				name VARCHAR(50) NOT NULL
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS provider_registrations (
				id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
				provider VARCHAR(30) NOT NULL,
				name VARCHAR(40) NOT NULL,
				client_id VARCHAR(191) NOT NULL,
				secret VARCHAR(191) NOT NULL,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				UNIQUE KEY uq_provider_registrations_provider (provider)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS provider_sites (
				provider_registration_id BIGINT UNSIGNED NOT NULL,
				site_id BIGINT UNSIGNED NOT NULL,
				PRIMARY KEY (provider_registration_id, site_id),
				CONSTRAINT fk_provider_sites_registration FOREIGN KEY (provider_registration_id) REFERENCES provider_registrations (id) ON DELETE CASCADE,
				CONSTRAINT fk_provider_sites_site FOREIGN KEY (site_id) REFERENCES sites (id) ON DELETE CASCADE
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS social_accounts (
				id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
				user_id BIGINT UNSIGNED NOT NULL,
				provider VARCHAR(30) NOT NULL,
				uid VARCHAR(191) NOT NULL,
				extra_data JSON NULL,
				created_at DATETIME NOT NULL,
				UNIQUE KEY uq_social_accounts_provider_uid (provider, uid),
				KEY idx_social_accounts_user (user_id),
				CONSTRAINT fk_social_accounts_user FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		},
	},
}

// Migrate applies every migration newer than the recorded version.  Each
// migration's statements and its bookkeeping row share one transaction;
// MySQL commits DDL implicitly, so the IF NOT EXISTS guards keep a
// partially applied step re-runnable.
func Migrate(ctx context.Context, db *sql.DB) error {
	const qInit = `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INT NOT NULL PRIMARY KEY,
		name VARCHAR(100) NOT NULL
	)`
	if _, err := db.ExecContext(ctx, qInit); err != nil {
		return fmt.Errorf("failed to init migrations: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	applied := 0
	for _, m := range Migrations {
		if m.Version <= current {
			continue
		}
		if err := apply(ctx, db, m); err != nil {
			return fmt.Errorf("failed to migrate %d_%s: %w", m.Version, m.Name, err)
		}
		log.Printf("migrate: applied %d_%s", m.Version, m.Name)
		applied++
	}
	if applied == 0 {
		log.Println("migrate: database is up to date")
	}
	return nil
}

func apply(ctx context.Context, db *sql.DB, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range m.Statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.Version, m.Name); err != nil {
		return err
	}
	return tx.Commit()
}
