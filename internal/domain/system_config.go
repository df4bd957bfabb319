package domain

import "time"

type OCRProvider string

const (
	ProviderAWSRekognition OCRProvider = "aws_rekognition"
	ProviderGoogleVision   OCRProvider = "google_vision"
)

func (p OCRProvider) Valid() bool {
	return p == ProviderAWSRekognition || p == ProviderGoogleVision
}

// SystemConfig stores the credentials of one OCR provider. At most one is active.
//
// For aws_rekognition AccessKeyID/AccessKeySecret are IAM keys and Region is required.
// For google_vision AccessKeySecret holds either a service account JSON document or an API key.
type SystemConfig struct {
	ID              int         `json:"id"`
	Name            string      `json:"name"`
	Provider        OCRProvider `json:"provider"`
	AccessKeyID     string      `json:"access_key_id"`
	AccessKeySecret string      `json:"-"`
	Region          string      `json:"region"`
	Remark          string      `json:"remark"`
	IsActive        bool        `json:"is_active"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

type SystemConfigDTO struct {
	Name            string      `json:"name" binding:"required,max=100"`
	Provider        OCRProvider `json:"provider" binding:"required"`
	AccessKeyID     string      `json:"access_key_id"`
	AccessKeySecret string      `json:"access_key_secret" binding:"required"`
	Region          string      `json:"region"`
	Remark          string      `json:"remark"`
	IsActive        bool        `json:"is_active"`
}
