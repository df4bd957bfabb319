package domain

import "time"

type RecordEventType string

const (
	RecordCreated      RecordEventType = "record_created"
	RecordUpdated      RecordEventType = "record_updated"
	RecordDeleted      RecordEventType = "record_deleted"
	RecordImageUpdated RecordEventType = "record_image_uploaded"
	RecordOCRQueued    RecordEventType = "record_ocr_queued"
	RecordOCRApplied   RecordEventType = "record_ocr_applied"
	RecordOCRFailed    RecordEventType = "record_ocr_failed"
)

// RecordEvent is pushed to admin dashboards over the websocket.
type RecordEvent struct {
	Type               RecordEventType `json:"type"`
	RecordID           int             `json:"record_id"`
	LicensePlateNumber string          `json:"license_plate_number,omitempty"`
	UserID             int             `json:"user_id,omitempty"`
	Fields             []OCRField      `json:"fields,omitempty"`
	Message            string          `json:"message,omitempty"`
	Timestamp          time.Time       `json:"timestamp"`
}

// OCRJob asks the background worker to recognize the stored images of a record.
type OCRJob struct {
	RecordID    int       `json:"record_id"`
	RequestedBy int       `json:"requested_by"`
	RequestedAt time.Time `json:"requested_at"`
}
