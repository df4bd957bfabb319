package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"agri_inspection/internal/domain"
	"agri_inspection/internal/repository"
)

type pgSystemConfigRepository struct {
	db *sql.DB
}

func NewPgSystemConfigRepository(db *sql.DB) repository.SystemConfigRepository {
	return &pgSystemConfigRepository{db: db}
}

const systemConfigColumns = `id, name, provider, access_key_id, access_key_secret, region, remark, is_active, created_at, updated_at`

func scanSystemConfig(row interface{ Scan(...any) error }, cfg *domain.SystemConfig) error {
	var provider string
	err := row.Scan(&cfg.ID, &cfg.Name, &provider, &cfg.AccessKeyID, &cfg.AccessKeySecret,
		&cfg.Region, &cfg.Remark, &cfg.IsActive, &cfg.CreatedAt, &cfg.UpdatedAt)
	if err != nil {
		return err
	}
	cfg.Provider = domain.OCRProvider(provider)
	cfg.CreatedAt = cfg.CreatedAt.In(time.UTC)
	cfg.UpdatedAt = cfg.UpdatedAt.In(time.UTC)
	return nil
}

// Create inserts cfg. An active config deactivates every other one in the same transaction.
func (r *pgSystemConfigRepository) Create(ctx context.Context, cfg *domain.SystemConfig) (*domain.SystemConfig, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("SystemConfigRepository.Create (begin): %w", err)
	}
	defer tx.Rollback()

	if cfg.IsActive {
		if _, err := tx.ExecContext(ctx, `UPDATE system_configs SET is_active = FALSE, updated_at = CURRENT_TIMESTAMP WHERE is_active`); err != nil {
			return nil, fmt.Errorf("SystemConfigRepository.Create (deactivate): %w", err)
		}
	}

	query := `INSERT INTO system_configs (name, provider, access_key_id, access_key_secret, region, remark, is_active, created_at, updated_at)
	           VALUES ($1, $2, $3, $4, $5, $6, $7, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	           RETURNING id, created_at, updated_at`
	err = tx.QueryRowContext(ctx, query, cfg.Name, string(cfg.Provider), cfg.AccessKeyID, cfg.AccessKeySecret,
		cfg.Region, cfg.Remark, cfg.IsActive).Scan(&cfg.ID, &cfg.CreatedAt, &cfg.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("SystemConfigRepository.Create: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("SystemConfigRepository.Create (commit): %w", err)
	}
	cfg.CreatedAt = cfg.CreatedAt.In(time.UTC)
	cfg.UpdatedAt = cfg.UpdatedAt.In(time.UTC)
	return cfg, nil
}

func (r *pgSystemConfigRepository) FindAll(ctx context.Context) ([]domain.SystemConfig, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+systemConfigColumns+` FROM system_configs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("SystemConfigRepository.FindAll: %w", err)
	}
	defer rows.Close()

	var configs []domain.SystemConfig
	for rows.Next() {
		var cfg domain.SystemConfig
		if err := scanSystemConfig(rows, &cfg); err != nil {
			return nil, fmt.Errorf("SystemConfigRepository.FindAll (scanning row): %w", err)
		}
		configs = append(configs, cfg)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("SystemConfigRepository.FindAll (rows error): %w", err)
	}
	return configs, nil
}

func (r *pgSystemConfigRepository) FindActive(ctx context.Context) (*domain.SystemConfig, error) {
	cfg := &domain.SystemConfig{}
	query := `SELECT ` + systemConfigColumns + ` FROM system_configs WHERE is_active ORDER BY updated_at DESC LIMIT 1`
	if err := scanSystemConfig(r.db.QueryRowContext(ctx, query), cfg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("SystemConfigRepository.FindActive: %w", err)
	}
	return cfg, nil
}

func (r *pgSystemConfigRepository) Activate(ctx context.Context, id int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("SystemConfigRepository.Activate (begin): %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `UPDATE system_configs SET is_active = TRUE, updated_at = CURRENT_TIMESTAMP WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("SystemConfigRepository.Activate: %w", err)
	}
	if err := requireAffected(result, "SystemConfigRepository.Activate"); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE system_configs SET is_active = FALSE, updated_at = CURRENT_TIMESTAMP WHERE id <> $1 AND is_active`, id); err != nil {
		return fmt.Errorf("SystemConfigRepository.Activate (deactivate others): %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("SystemConfigRepository.Activate (commit): %w", err)
	}
	return nil
}
