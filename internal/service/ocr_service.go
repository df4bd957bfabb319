package service

import (
	"context"
	"errors"
	"fmt"

	"agri_inspection/internal/domain"
	"agri_inspection/internal/ocr"
	"agri_inspection/internal/repository"

	"go.uber.org/zap"
)

// DetectorFactory builds a text detector for an OCR provider config.
type DetectorFactory func(ctx context.Context, cfg domain.SystemConfig) (ocr.TextDetector, error)

type OCRService struct {
	configRepo  repository.SystemConfigRepository
	newDetector DetectorFactory
	log         *zap.Logger
}

func NewOCRService(configRepo repository.SystemConfigRepository, newDetector DetectorFactory, log *zap.Logger) *OCRService {
	return &OCRService{configRepo: configRepo, newDetector: newDetector, log: log}
}

// detector builds the engine of the active provider config. Callers close it.
func (s *OCRService) detector(ctx context.Context) (ocr.TextDetector, error) {
	cfg, err := s.configRepo.FindActive(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrOCRNotConfigured
		}
		return nil, fmt.Errorf("OCRService.detector: %w", err)
	}
	d, err := s.newDetector(ctx, *cfg)
	if err != nil {
		return nil, fmt.Errorf("OCRService.detector (%s): %w", cfg.Provider, err)
	}
	return d, nil
}

func (s *OCRService) withDetector(ctx context.Context, fn func(ocr.TextDetector) error) error {
	d, err := s.detector(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := d.Close(); cerr != nil {
			s.log.Warn("closing OCR detector", zap.Error(cerr))
		}
	}()
	return fn(d)
}

func recognizeLicense(ctx context.Context, d ocr.TextDetector, image []byte) (*domain.LicenseRecognition, error) {
	lines, err := d.DetectText(ctx, image)
	if err != nil {
		return nil, err
	}
	return &domain.LicenseRecognition{License: ocr.ParseVehicleLicense(lines), Lines: lines}, nil
}

func recognizePlate(ctx context.Context, d ocr.TextDetector, image []byte) (*domain.PlateRecognition, error) {
	lines, err := d.DetectText(ctx, image)
	if err != nil {
		return nil, err
	}
	plate, found := ocr.ExtractPlate(lines)
	return &domain.PlateRecognition{Plate: plate, Found: found, Lines: lines}, nil
}

// RecognizeVehicleLicense reads one license page, front or back.
func (s *OCRService) RecognizeVehicleLicense(ctx context.Context, image []byte) (*domain.LicenseRecognition, error) {
	var out *domain.LicenseRecognition
	err := s.withDetector(ctx, func(d ocr.TextDetector) error {
		var err error
		out, err = recognizeLicense(ctx, d, image)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *OCRService) RecognizeCarNumber(ctx context.Context, image []byte) (*domain.PlateRecognition, error) {
	var out *domain.PlateRecognition
	err := s.withDetector(ctx, func(d ocr.TextDetector) error {
		var err error
		out, err = recognizePlate(ctx, d, image)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FormUploads are the images of one record editor recognize call; nil means not uploaded.
type FormUploads struct {
	LicenseFront []byte
	LicenseBack  []byte
	Plate        []byte
}

func (u FormUploads) Empty() bool {
	return u.LicenseFront == nil && u.LicenseBack == nil && u.Plate == nil
}

// Raw data keys under ocr_raw_data.
const (
	rawLicenseFront = "license_front"
	rawLicenseBack  = "license_back"
	rawPlate        = "plate"
)

// RecognizeForForm merges the recognitions of up to three images:
// the front page fills every license field, the back page only overrides
// back-page fields, and the plate photo sets plate_ocr_result and the plate
// number when the license did not provide one. The first failing image aborts the call.
func (s *OCRService) RecognizeForForm(ctx context.Context, uploads FormUploads) (*domain.FormRecognition, error) {
	if uploads.Empty() {
		return nil, ErrNoImage
	}

	out := &domain.FormRecognition{
		Fields:  make(map[domain.OCRField]string),
		RawData: make(map[string]any),
	}
	err := s.withDetector(ctx, func(d ocr.TextDetector) error {
		if uploads.LicenseFront != nil {
			rec, err := recognizeLicense(ctx, d, uploads.LicenseFront)
			if err != nil {
				return fmt.Errorf("行驶证正面识别失败: %w", err)
			}
			for field, v := range rec.License.Fields() {
				if v != "" {
					out.Fields[field] = v
				}
			}
			out.RawData[rawLicenseFront] = rec.Lines
		}

		if uploads.LicenseBack != nil {
			rec, err := recognizeLicense(ctx, d, uploads.LicenseBack)
			if err != nil {
				return fmt.Errorf("行驶证副页识别失败: %w", err)
			}
			values := rec.License.Fields()
			for _, field := range domain.LicenseBackFields {
				if v := values[field]; v != "" {
					out.Fields[field] = v
				}
			}
			out.RawData[rawLicenseBack] = rec.Lines
		}

		if uploads.Plate != nil {
			rec, err := recognizePlate(ctx, d, uploads.Plate)
			if err != nil {
				return fmt.Errorf("车牌识别失败: %w", err)
			}
			if rec.Found {
				out.Fields[domain.FieldPlateOCRResult] = rec.Plate.Plate
				if out.Fields[domain.FieldLicensePlateNumber] == "" {
					out.Fields[domain.FieldLicensePlateNumber] = rec.Plate.Plate
				}
			}
			out.RawData[rawPlate] = rec.Lines
		}
		return nil
	})
	if err != nil {
		s.log.Warn("form recognition failed", zap.Error(err))
		return nil, err
	}

	// a front page always counts as a result, even when nothing was read from it
	if uploads.LicenseFront == nil && len(out.Fields) == 0 {
		return nil, ErrNoImage
	}
	s.log.Info("form recognition done", zap.Int("fields", len(out.Fields)))
	return out, nil
}
