package export

import (
	"archive/zip"
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	"agri_inspection/internal/domain"

	docx "github.com/lukasjarosch/go-docx"
)

const (
	DocxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	ZipContentType  = "application/zip"
)

//go:embed templates/inspection.docx
var defaultTemplate []byte

// File is a rendered download.
type File struct {
	Name        string
	ContentType string
	Content     []byte
}

// WordExporter fills a .docx template with {placeholder} fields named after the record columns.
type WordExporter struct {
	template []byte
	now      func() time.Time
}

func NewWordExporter() *WordExporter {
	return &WordExporter{template: defaultTemplate, now: time.Now}
}

// NewWordExporterFromFile uses the template at path instead of the built-in one.
func NewWordExporterFromFile(path string) (*WordExporter, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read export template: %w", err)
	}
	doc, err := docx.OpenBytes(b)
	if err != nil {
		return nil, fmt.Errorf("open export template %s: %w", path, err)
	}
	doc.Close()
	return &WordExporter{template: b, now: time.Now}, nil
}

func placeholders(rec *domain.InspectionRecord) docx.PlaceholderMap {
	createdAt := ""
	if !rec.CreatedAt.IsZero() {
		createdAt = rec.CreatedAt.Format(domain.DateLayout)
	}
	return docx.PlaceholderMap{
		"license_plate_number": rec.LicensePlateNumber,
		"vehicle_type":         rec.VehicleType,
		"owner":                rec.Owner,
		"address":              rec.Address,
		"chassis_number":       rec.ChassisNumber,
		"trailer_frame_number": rec.TrailerFrameNumber,
		"engine_number":        rec.EngineNumber,
		"brand":                rec.Brand,
		"model_name":           rec.ModelName,
		"body_color":           rec.BodyColor,
		"overall_dimension":    rec.OverallDimension,

		"production_date":   rec.ProductionDate.String(),
		"registration_date": rec.RegistrationDate.String(),
		"issue_date":        rec.IssueDate.String(),
		"created_at":        createdAt,

		"tractor_min_weight": rec.TractorMinWeight,
		"harvester_weight":   rec.HarvesterWeight,
		"tractor_max_load":   rec.TractorMaxLoad,
		"passenger_capacity": rec.PassengerCapacity,

		"inspection_record": rec.InspectionRecord,
		"issue_authority":   rec.IssueAuthority,

		"brake_report_image":     rec.BrakeReportImage,
		"headlight_report_image": rec.HeadlightReportImage,
	}
}

// DocumentName is "<id>_<plate>_<date>.docx"; records without a plate use "null".
func DocumentName(rec *domain.InspectionRecord, now time.Time) string {
	day := now
	if !rec.CreatedAt.IsZero() {
		day = rec.CreatedAt
	}
	plate := rec.LicensePlateNumber
	if plate == "" {
		plate = "null"
	}
	return fmt.Sprintf("%d_%s_%s.docx", rec.ID, plate, day.Format(domain.DateLayout))
}

func (e *WordExporter) render(rec *domain.InspectionRecord) ([]byte, error) {
	doc, err := docx.OpenBytes(e.template)
	if err != nil {
		return nil, fmt.Errorf("open template: %w", err)
	}
	defer doc.Close()

	if err := doc.ReplaceAll(placeholders(rec)); err != nil {
		return nil, fmt.Errorf("fill record %d: %w", rec.ID, err)
	}
	var buf bytes.Buffer
	if err := doc.Write(&buf); err != nil {
		return nil, fmt.Errorf("write record %d: %w", rec.ID, err)
	}
	return buf.Bytes(), nil
}

// Document renders one record.
func (e *WordExporter) Document(rec *domain.InspectionRecord) (File, error) {
	content, err := e.render(rec)
	if err != nil {
		return File{}, err
	}
	return File{Name: DocumentName(rec, e.now()), ContentType: DocxContentType, Content: content}, nil
}

// Archive renders every record into one zip named after today's date.
func (e *WordExporter) Archive(records []domain.InspectionRecord) (File, error) {
	now := e.now()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for i := range records {
		content, err := e.render(&records[i])
		if err != nil {
			return File{}, err
		}
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     DocumentName(&records[i], now),
			Method:   zip.Deflate,
			Modified: now,
		})
		if err != nil {
			return File{}, fmt.Errorf("add record %d: %w", records[i].ID, err)
		}
		if _, err := w.Write(content); err != nil {
			return File{}, fmt.Errorf("add record %d: %w", records[i].ID, err)
		}
	}
	if err := zw.Close(); err != nil {
		return File{}, fmt.Errorf("close archive: %w", err)
	}
	return File{
		Name:        fmt.Sprintf("检验记录_%s.zip", now.Format(domain.DateLayout)),
		ContentType: ZipContentType,
		Content:     buf.Bytes(),
	}, nil
}
