package database

import (
	"database/sql"
	"fmt"

	"github.com/lopezator/migrator"
)

func execsql(name, raw string) *migrator.MigrationNoTx {
	return &migrator.MigrationNoTx{
		Name: name,
		Func: func(db *sql.DB) error {
			_, err := db.Exec(raw)
			return err
		},
	}
}

var postgresMigrations = migrator.Migrations(
	execsql(
		"create_users",
		`CREATE TABLE IF NOT EXISTS users (
			guid           VARCHAR(20) PRIMARY KEY,
			username       VARCHAR(50) NOT NULL,
			password_hash  TEXT NOT NULL,
			roles          TEXT[] NOT NULL DEFAULT '{USER}',
			is_deleted     BOOLEAN NOT NULL DEFAULT FALSE,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT users_username_key UNIQUE (username)
		);`,
	),
	execsql(
		"create_account_types",
		`CREATE TABLE IF NOT EXISTS account_types (
			guid        VARCHAR(20) PRIMARY KEY,
			name        VARCHAR(100) NOT NULL,
			interest    NUMERIC(6,3) NOT NULL DEFAULT 0 CHECK (interest >= 0),
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT account_types_name_key UNIQUE (name)
		);`,
	),
	execsql(
		"create_clients",
		`CREATE TABLE IF NOT EXISTS clients (
			guid           VARCHAR(20) PRIMARY KEY,
			dni            VARCHAR(9) NOT NULL,
			name           VARCHAR(100) NOT NULL,
			surname        VARCHAR(100) NOT NULL,
			email          VARCHAR(255) NOT NULL,
			phone          VARCHAR(9) NOT NULL,
			street         VARCHAR(100) NOT NULL,
			number         VARCHAR(10) NOT NULL,
			postal_code    VARCHAR(5) NOT NULL,
			floor          VARCHAR(10) NOT NULL DEFAULT '',
			door           VARCHAR(10) NOT NULL DEFAULT '',
			profile_photo  TEXT NOT NULL DEFAULT '',
			dni_photo      TEXT NOT NULL DEFAULT '',
			user_guid      VARCHAR(20) NOT NULL REFERENCES users(guid),
			is_deleted     BOOLEAN NOT NULL DEFAULT FALSE,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT clients_dni_key UNIQUE (dni),
			CONSTRAINT clients_email_key UNIQUE (email),
			CONSTRAINT clients_phone_key UNIQUE (phone),
			CONSTRAINT clients_user_guid_key UNIQUE (user_guid)
		);`,
	),
	execsql(
		"create_cards",
		`CREATE TABLE IF NOT EXISTS cards (
			guid           VARCHAR(20) PRIMARY KEY,
			number         VARCHAR(16) NOT NULL,
			expiry_date    DATE NOT NULL,
			cvv            INTEGER NOT NULL,
			pin            VARCHAR(4) NOT NULL,
			daily_limit    NUMERIC(15,2) NOT NULL,
			weekly_limit   NUMERIC(15,2) NOT NULL,
			monthly_limit  NUMERIC(15,2) NOT NULL,
			card_type      VARCHAR(10) NOT NULL,
			is_deleted     BOOLEAN NOT NULL DEFAULT FALSE,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT cards_number_key UNIQUE (number)
		);`,
	),
	execsql(
		"create_accounts",
		`CREATE TABLE IF NOT EXISTS accounts (
			guid               VARCHAR(20) PRIMARY KEY,
			iban               VARCHAR(34) NOT NULL,
			balance            NUMERIC(15,2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
			account_type_guid  VARCHAR(20) NOT NULL REFERENCES account_types(guid),
			card_guid          VARCHAR(20) REFERENCES cards(guid),
			client_guid        VARCHAR(20) NOT NULL REFERENCES clients(guid),
			is_deleted         BOOLEAN NOT NULL DEFAULT FALSE,
			created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT accounts_iban_key UNIQUE (iban),
			CONSTRAINT accounts_card_guid_key UNIQUE (card_guid)
		);`,
	),
	execsql(
		"create_accounts_client_index",
		`CREATE INDEX IF NOT EXISTS accounts_client_guid_idx ON accounts (client_guid);`,
	),
)

// Migrate applies every pending schema migration.
func Migrate(db *sql.DB) error {
	m, err := migrator.New(postgresMigrations)
	if err != nil {
		return fmt.Errorf("failed to prepare migrations: %w", err)
	}
	if err := m.Migrate(db); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}
