package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"agri_inspection/internal/config"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const uniqueViolation = "23505"

func NewDB(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// isUniqueViolation reports whether err is a unique constraint failure, optionally on a named constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id SERIAL PRIMARY KEY,
		username VARCHAR(150) NOT NULL,
		password_hash VARCHAR(128) NOT NULL,
		role VARCHAR(20) NOT NULL DEFAULT 'normal_user',
		is_superuser BOOLEAN NOT NULL DEFAULT FALSE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		phone VARCHAR(20) NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT users_username_key UNIQUE (username)
	)`,
	`CREATE TABLE IF NOT EXISTS system_configs (
		id SERIAL PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		provider VARCHAR(30) NOT NULL,
		access_key_id VARCHAR(200) NOT NULL DEFAULT '',
		access_key_secret TEXT NOT NULL,
		region VARCHAR(50) NOT NULL DEFAULT '',
		remark TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS inspection_record (
		id SERIAL PRIMARY KEY,
		license_plate_number VARCHAR(20) NOT NULL,
		vehicle_type VARCHAR(50) NOT NULL DEFAULT '',
		owner VARCHAR(50) NOT NULL DEFAULT '',
		address VARCHAR(200) NOT NULL DEFAULT '',
		chassis_number VARCHAR(50) NOT NULL DEFAULT '',
		trailer_frame_number VARCHAR(50) NOT NULL DEFAULT '',
		engine_number VARCHAR(50) NOT NULL DEFAULT '',
		brand VARCHAR(50) NOT NULL DEFAULT '',
		model_name VARCHAR(50) NOT NULL DEFAULT '',
		registration_date DATE,
		issue_date DATE,
		issue_authority VARCHAR(100) NOT NULL DEFAULT '',
		tractor_min_weight VARCHAR(50) NOT NULL DEFAULT '',
		harvester_weight VARCHAR(50) NOT NULL DEFAULT '',
		tractor_max_load VARCHAR(50) NOT NULL DEFAULT '',
		passenger_capacity VARCHAR(20) NOT NULL DEFAULT '',
		overall_dimension VARCHAR(50) NOT NULL DEFAULT '',
		inspection_record VARCHAR(200) NOT NULL DEFAULT '',
		brake_report_image VARCHAR(255) NOT NULL DEFAULT '',
		headlight_report_image VARCHAR(255) NOT NULL DEFAULT '',
		license_front_image VARCHAR(255) NOT NULL DEFAULT '',
		license_back_image VARCHAR(255) NOT NULL DEFAULT '',
		plate_image VARCHAR(255) NOT NULL DEFAULT '',
		plate_ocr_result VARCHAR(50) NOT NULL DEFAULT '',
		body_color VARCHAR(50) NOT NULL DEFAULT '',
		production_date DATE,
		ocr_raw_data JSONB,
		created_by INTEGER REFERENCES users(id) ON DELETE SET NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_inspection_plate ON inspection_record (license_plate_number)`,
	`CREATE INDEX IF NOT EXISTS idx_inspection_created_by ON inspection_record (created_by, created_at DESC)`,
}

// EnsureSchema creates missing tables and indexes.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("EnsureSchema (statement %d): %w", i+1, err)
		}
	}
	return nil
}
