package repository

import (
	"context"
	"errors"

	"agri_inspection/internal/domain"
)

var ErrNotFound = errors.New("记录不存在")
var ErrDuplicateEntry = errors.New("记录已存在")

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	FindByID(ctx context.Context, id int) (*domain.User, error)
	FindAll(ctx context.Context) ([]domain.User, error)
}

type InspectionRepository interface {
	Create(ctx context.Context, rec *domain.InspectionRecord) (*domain.InspectionRecord, error)
	FindByID(ctx context.Context, id int) (*domain.InspectionRecord, error)
	FindByIDs(ctx context.Context, ids []int, createdBy *int) ([]domain.InspectionRecord, error)
	Find(ctx context.Context, filter domain.InspectionFilter) ([]domain.InspectionRecord, int, error)
	Update(ctx context.Context, rec *domain.InspectionRecord) (*domain.InspectionRecord, error)
	UpdateImage(ctx context.Context, id int, field domain.ImageField, path string) error
	Delete(ctx context.Context, id int) error
}

type SystemConfigRepository interface {
	Create(ctx context.Context, cfg *domain.SystemConfig) (*domain.SystemConfig, error)
	FindAll(ctx context.Context) ([]domain.SystemConfig, error)
	// FindActive returns the newest active config or ErrNotFound.
	FindActive(ctx context.Context) (*domain.SystemConfig, error)
	// Activate marks id as the only active config.
	Activate(ctx context.Context, id int) error
}
