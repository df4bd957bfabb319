package service

import (
	"context"
	"fmt"
	"strings"

	"agri_inspection/internal/domain"
	"agri_inspection/internal/repository"

	"go.uber.org/zap"
)

// OCRConfigService manages OCR provider credentials. Every method requires a superuser.
type OCRConfigService struct {
	repo repository.SystemConfigRepository
	log  *zap.Logger
}

func NewOCRConfigService(repo repository.SystemConfigRepository, log *zap.Logger) *OCRConfigService {
	return &OCRConfigService{repo: repo, log: log}
}

func (s *OCRConfigService) List(ctx context.Context, actor *domain.Principal) ([]domain.SystemConfig, error) {
	if !actor.IsSuperuser {
		return nil, ErrForbidden
	}
	configs, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("OCRConfigService.List: %w", err)
	}
	if configs == nil {
		configs = []domain.SystemConfig{}
	}
	return configs, nil
}

func (s *OCRConfigService) Create(ctx context.Context, actor *domain.Principal, dto domain.SystemConfigDTO) (*domain.SystemConfig, error) {
	if !actor.IsSuperuser {
		return nil, ErrForbidden
	}
	if !dto.Provider.Valid() {
		return nil, fmt.Errorf("%w: 不支持的OCR服务商 %q", ErrInvalidInput, dto.Provider)
	}
	if dto.Provider == domain.ProviderAWSRekognition && strings.TrimSpace(dto.Region) == "" {
		return nil, fmt.Errorf("%w: AWS Rekognition 需要配置区域", ErrInvalidInput)
	}
	cfg := &domain.SystemConfig{
		Name:            strings.TrimSpace(dto.Name),
		Provider:        dto.Provider,
		AccessKeyID:     strings.TrimSpace(dto.AccessKeyID),
		AccessKeySecret: strings.TrimSpace(dto.AccessKeySecret),
		Region:          strings.TrimSpace(dto.Region),
		Remark:          dto.Remark,
		IsActive:        dto.IsActive,
	}
	created, err := s.repo.Create(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("OCRConfigService.Create: %w", err)
	}
	s.log.Info("OCR config created", zap.Int("id", created.ID), zap.String("provider", string(created.Provider)),
		zap.Bool("active", created.IsActive))
	return created, nil
}

// Activate makes id the only active config.
func (s *OCRConfigService) Activate(ctx context.Context, actor *domain.Principal, id int) error {
	if !actor.IsSuperuser {
		return ErrForbidden
	}
	if err := s.repo.Activate(ctx, id); err != nil {
		return fmt.Errorf("OCRConfigService.Activate: %w", err)
	}
	s.log.Info("OCR config activated", zap.Int("id", id))
	return nil
}
