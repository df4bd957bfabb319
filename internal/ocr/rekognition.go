package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"agri_inspection/internal/domain"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
)

type rekognitionAPI interface {
	DetectText(ctx context.Context, params *rekognition.DetectTextInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectTextOutput, error)
}

type RekognitionDetector struct {
	client rekognitionAPI
}

// NewRekognitionDetector uses the config's static IAM keys. Empty keys fall back
// to the default AWS credential chain.
func NewRekognitionDetector(ctx context.Context, cfg domain.SystemConfig) (*RekognitionDetector, error) {
	if cfg.Region == "" {
		return nil, errors.New("AWS Rekognition 需要配置区域 (region)")
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.AccessKeySecret != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.AccessKeySecret, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return &RekognitionDetector{client: rekognition.NewFromConfig(awsCfg)}, nil
}

func (d *RekognitionDetector) DetectText(ctx context.Context, image []byte) ([]domain.TextLine, error) {
	out, err := d.client.DetectText(ctx, &rekognition.DetectTextInput{
		Image: &types.Image{Bytes: image},
	})
	if err != nil {
		return nil, fmt.Errorf("rekognition DetectText: %w", err)
	}

	lines := make([]domain.TextLine, 0, len(out.TextDetections))
	for _, det := range out.TextDetections {
		if det.Type != types.TextTypesLine {
			continue
		}
		text := strings.TrimSpace(aws.ToString(det.DetectedText))
		if text == "" {
			continue
		}
		lines = append(lines, domain.TextLine{
			Text:       text,
			Confidence: aws.ToFloat32(det.Confidence) / 100,
		})
	}
	return lines, nil
}

func (d *RekognitionDetector) Close() error { return nil }
