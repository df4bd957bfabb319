// Package ocr turns license and plate photos into structured values.
// Engines only report text lines; the parsing in this package is engine agnostic.
package ocr

import (
	"context"
	"errors"
	"fmt"

	"agri_inspection/internal/domain"
)

var ErrUnknownProvider = errors.New("不支持的OCR服务商")

// TextDetector reports the text lines found in an image.
type TextDetector interface {
	DetectText(ctx context.Context, image []byte) ([]domain.TextLine, error)
	Close() error
}

// NewDetector builds the engine described by an OCR provider config.
func NewDetector(ctx context.Context, cfg domain.SystemConfig) (TextDetector, error) {
	switch cfg.Provider {
	case domain.ProviderAWSRekognition:
		return NewRekognitionDetector(ctx, cfg)
	case domain.ProviderGoogleVision:
		return NewVisionDetector(ctx, cfg)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
}
