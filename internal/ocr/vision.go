package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"agri_inspection/internal/domain"

	vision "cloud.google.com/go/vision/apiv1"
	"google.golang.org/api/option"
)

type VisionDetector struct {
	client *vision.ImageAnnotatorClient
}

// NewVisionDetector accepts a service account JSON document or an API key in AccessKeySecret.
func NewVisionDetector(ctx context.Context, cfg domain.SystemConfig) (*VisionDetector, error) {
	secret := strings.TrimSpace(cfg.AccessKeySecret)
	if secret == "" {
		return nil, errors.New("Google Vision 需要配置密钥")
	}
	var opt option.ClientOption
	if strings.HasPrefix(secret, "{") {
		opt = option.WithCredentialsJSON([]byte(secret))
	} else {
		opt = option.WithAPIKey(secret)
	}
	client, err := vision.NewImageAnnotatorClient(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("create Vision API client: %w", err)
	}
	return &VisionDetector{client: client}, nil
}

func (d *VisionDetector) DetectText(ctx context.Context, image []byte) ([]domain.TextLine, error) {
	img, err := vision.NewImageFromReader(bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("create image object: %w", err)
	}
	annotation, err := d.client.DetectDocumentText(ctx, img, nil)
	if err != nil {
		return nil, fmt.Errorf("vision DetectDocumentText: %w", err)
	}
	if annotation == nil {
		return nil, nil
	}

	var confidence float32
	if pages := annotation.GetPages(); len(pages) > 0 {
		confidence = pages[0].GetConfidence()
	}
	return splitLines(annotation.GetText(), confidence), nil
}

func (d *VisionDetector) Close() error {
	return d.client.Close()
}

// splitLines breaks a full-text annotation into lines sharing one confidence.
func splitLines(text string, confidence float32) []domain.TextLine {
	var lines []domain.TextLine
	for _, l := range strings.Split(text, "\n") {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		lines = append(lines, domain.TextLine{Text: l, Confidence: confidence})
	}
	return lines
}
