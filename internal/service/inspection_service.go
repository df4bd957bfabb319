package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"agri_inspection/internal/domain"
	"agri_inspection/internal/export"
	"agri_inspection/internal/formfill"
	"agri_inspection/internal/repository"

	"go.uber.org/zap"
)

// EventPublisher fans record events out to connected dashboards.
type EventPublisher interface {
	Publish(event domain.RecordEvent)
}

// JobQueue hands OCR jobs to the background worker.
type JobQueue interface {
	Enqueue(ctx context.Context, job domain.OCRJob) error
}

// RecordExporter renders records as downloadable documents.
type RecordExporter interface {
	Document(rec *domain.InspectionRecord) (export.File, error)
	Archive(records []domain.InspectionRecord) (export.File, error)
}

// MaxExportBatch caps the records in one archive.
const MaxExportBatch = 50

type MediaStore interface {
	Save(ctx context.Context, folder, filename string, r io.Reader) (string, error)
	ReadAll(path string) ([]byte, error)
}

// ImageUpload is one file posted to a record.
type ImageUpload struct {
	Field       domain.ImageField
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

type InspectionService struct {
	repo      repository.InspectionRepository
	store     MediaStore
	ocr       *OCRService
	events    EventPublisher
	queue     JobQueue
	exporter  RecordExporter
	maxUpload int64
	log       *zap.Logger
	now       func() time.Time
}

// NewInspectionService wires the record use cases. queue may be nil when async OCR is disabled.
func NewInspectionService(repo repository.InspectionRepository, store MediaStore, ocrService *OCRService,
	events EventPublisher, queue JobQueue, exporter RecordExporter, maxUpload int64, log *zap.Logger) *InspectionService {
	return &InspectionService{
		repo:      repo,
		store:     store,
		ocr:       ocrService,
		events:    events,
		queue:     queue,
		exporter:  exporter,
		maxUpload: maxUpload,
		log:       log,
		now:       time.Now,
	}
}

func (s *InspectionService) publish(t domain.RecordEventType, rec *domain.InspectionRecord, userID int, fields []domain.OCRField, msg string) {
	if s.events == nil {
		return
	}
	s.events.Publish(domain.RecordEvent{
		Type:               t,
		RecordID:           rec.ID,
		LicensePlateNumber: rec.LicensePlateNumber,
		UserID:             userID,
		Fields:             fields,
		Message:            msg,
		Timestamp:          s.now().UTC(),
	})
}

// scope limits every API caller, superusers included, to the records they created.
func scope(actor *domain.Principal) *int {
	id := actor.UserID
	return &id
}

func (s *InspectionService) List(ctx context.Context, actor *domain.Principal, filter domain.InspectionFilter) (domain.Page[domain.InspectionListItem], error) {
	filter.Normalize()
	filter.CreatedBy = scope(actor)

	records, total, err := s.repo.Find(ctx, filter)
	if err != nil {
		return domain.Page[domain.InspectionListItem]{}, fmt.Errorf("InspectionService.List: %w", err)
	}
	items := make([]domain.InspectionListItem, 0, len(records))
	for i := range records {
		items = append(items, records[i].ListItem())
	}
	return domain.NewPage(items, total, filter.Page, filter.PageSize), nil
}

// Get returns repository.ErrNotFound for records the actor may not see.
func (s *InspectionService) Get(ctx context.Context, actor *domain.Principal, id int) (*domain.InspectionRecord, error) {
	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("InspectionService.Get: %w", err)
	}
	if !rec.OwnedBy(actor.UserID) {
		return nil, fmt.Errorf("InspectionService.Get: %w", repository.ErrNotFound)
	}
	return rec, nil
}

// GetMany returns the visible records among ids, newest first. Unknown ids are skipped.
func (s *InspectionService) GetMany(ctx context.Context, actor *domain.Principal, ids []int) ([]domain.InspectionRecord, error) {
	if len(ids) == 0 {
		return []domain.InspectionRecord{}, nil
	}
	if len(ids) > domain.MaxPageSize {
		return nil, fmt.Errorf("%w: 一次最多查询%d条记录", ErrInvalidInput, domain.MaxPageSize)
	}
	records, err := s.repo.FindByIDs(ctx, ids, scope(actor))
	if err != nil {
		return nil, fmt.Errorf("InspectionService.GetMany: %w", err)
	}
	if records == nil {
		records = []domain.InspectionRecord{}
	}
	return records, nil
}

func (s *InspectionService) Create(ctx context.Context, actor *domain.Principal, in domain.InspectionRecordInput) (*domain.InspectionRecord, error) {
	rec := &domain.InspectionRecord{}
	if err := in.ApplyTo(rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	rec.LicensePlateNumber = strings.TrimSpace(rec.LicensePlateNumber)
	if rec.LicensePlateNumber == "" {
		return nil, fmt.Errorf("%w: 号牌号码不能为空", ErrInvalidInput)
	}
	rec.CreatedBy.SetValid(int64(actor.UserID))

	created, err := s.repo.Create(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("InspectionService.Create: %w", err)
	}
	s.log.Info("inspection record created", zap.Int("id", created.ID), zap.Int("user_id", actor.UserID))
	s.publish(domain.RecordCreated, created, actor.UserID, nil, "")
	return created, nil
}

// Update applies the non-nil values of in.
func (s *InspectionService) Update(ctx context.Context, actor *domain.Principal, id int, in domain.InspectionRecordInput) (*domain.InspectionRecord, error) {
	rec, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := in.ApplyTo(rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	rec.LicensePlateNumber = strings.TrimSpace(rec.LicensePlateNumber)
	if rec.LicensePlateNumber == "" {
		return nil, fmt.Errorf("%w: 号牌号码不能为空", ErrInvalidInput)
	}
	updated, err := s.repo.Update(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("InspectionService.Update: %w", err)
	}
	s.publish(domain.RecordUpdated, updated, actor.UserID, nil, "")
	return updated, nil
}

func (s *InspectionService) Delete(ctx context.Context, actor *domain.Principal, id int) error {
	rec, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("InspectionService.Delete: %w", err)
	}
	s.log.Info("inspection record deleted", zap.Int("id", id), zap.Int("user_id", actor.UserID))
	s.publish(domain.RecordDeleted, rec, actor.UserID, nil, "")
	return nil
}

// Export renders one of the actor's records as a Word document.
func (s *InspectionService) Export(ctx context.Context, actor *domain.Principal, id int) (*export.File, error) {
	rec, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	f, err := s.exporter.Document(rec)
	if err != nil {
		s.log.Error("exporting record", zap.Int("id", id), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrExportFailed, err)
	}
	return &f, nil
}

// ExportBatch zips the Word documents of the actor's records among ids.
func (s *InspectionService) ExportBatch(ctx context.Context, actor *domain.Principal, ids []int) (*export.File, error) {
	if len(ids) == 0 {
		return nil, ErrExportNoSelection
	}
	if len(ids) > MaxExportBatch {
		return nil, ErrExportTooMany
	}
	records, err := s.repo.FindByIDs(ctx, ids, scope(actor))
	if err != nil {
		return nil, fmt.Errorf("InspectionService.ExportBatch: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrExportNoRecords
	}
	f, err := s.exporter.Archive(records)
	if err != nil {
		s.log.Error("exporting records", zap.Ints("ids", ids), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrExportFailed, err)
	}
	s.log.Info("records exported", zap.Int("count", len(records)), zap.Int("user_id", actor.UserID))
	return &f, nil
}

// CheckImage validates an upload's declared type and size.
func CheckImage(contentType string, size, max int64) error {
	if !strings.HasPrefix(contentType, "image/") {
		return ErrNotAnImage
	}
	if max > 0 && size > max {
		return ErrImageTooLarge
	}
	return nil
}

func (s *InspectionService) UploadImage(ctx context.Context, actor *domain.Principal, id int, up ImageUpload) (*domain.InspectionRecord, error) {
	if !up.Field.Valid() {
		return nil, ErrNoImage
	}
	if err := CheckImage(up.ContentType, up.Size, s.maxUpload); err != nil {
		return nil, err
	}
	rec, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	path, err := s.store.Save(ctx, up.Field.Folder(), up.Filename, up.Content)
	if err != nil {
		return nil, fmt.Errorf("InspectionService.UploadImage (saving file): %w", err)
	}
	if err := s.repo.UpdateImage(ctx, id, up.Field, path); err != nil {
		return nil, fmt.Errorf("InspectionService.UploadImage: %w", err)
	}
	rec.SetImage(up.Field, path)
	s.publish(domain.RecordImageUpdated, rec, actor.UserID, nil, string(up.Field))
	return rec, nil
}

// EnqueueOCR schedules background recognition of the record's stored license and plate images.
func (s *InspectionService) EnqueueOCR(ctx context.Context, actor *domain.Principal, id int) error {
	if !actor.CanUseOCR() {
		return ErrOCRPermission
	}
	if s.queue == nil {
		return ErrQueueDisabled
	}
	rec, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	if rec.LicenseFrontImage == "" && rec.LicenseBackImage == "" && rec.PlateImage == "" {
		return ErrNoImage
	}
	job := domain.OCRJob{RecordID: rec.ID, RequestedBy: actor.UserID, RequestedAt: s.now().UTC()}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("InspectionService.EnqueueOCR: %w", err)
	}
	s.publish(domain.RecordOCRQueued, rec, actor.UserID, nil, "")
	return nil
}

// ProcessOCRJob recognizes the stored images of a queued record and fills it in.
func (s *InspectionService) ProcessOCRJob(ctx context.Context, job domain.OCRJob) error {
	rec, err := s.repo.FindByID(ctx, job.RecordID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.Warn("OCR job for missing record dropped", zap.Int("record_id", job.RecordID))
			return nil
		}
		return fmt.Errorf("InspectionService.ProcessOCRJob: %w", err)
	}

	var uploads formUploadsBuilder
	uploads.read(s.store, rec.LicenseFrontImage, &uploads.out.LicenseFront)
	uploads.read(s.store, rec.LicenseBackImage, &uploads.out.LicenseBack)
	uploads.read(s.store, rec.PlateImage, &uploads.out.Plate)
	if uploads.err != nil {
		return fmt.Errorf("InspectionService.ProcessOCRJob (reading images): %w", uploads.err)
	}

	recognition, err := s.ocr.RecognizeForForm(ctx, uploads.out)
	if err != nil {
		s.publish(domain.RecordOCRFailed, rec, job.RequestedBy, nil, err.Error())
		if errors.Is(err, ErrNoImage) {
			return nil
		}
		return err
	}
	_, err = s.ApplyOCR(ctx, rec, recognition, job.RequestedBy)
	return err
}

type formUploadsBuilder struct {
	out FormUploads
	err error
}

func (b *formUploadsBuilder) read(store MediaStore, path string, dst *[]byte) {
	if b.err != nil || path == "" {
		return
	}
	data, err := store.ReadAll(path)
	if err != nil {
		b.err = err
		return
	}
	*dst = data
}

// ApplyOCR writes a recognition into rec with the same truthiness rules the
// record editor uses, then persists it. It returns the fields written.
func (s *InspectionService) ApplyOCR(ctx context.Context, rec *domain.InspectionRecord, recognition *domain.FormRecognition, userID int) ([]domain.OCRField, error) {
	result, err := formfill.NewResult(recognition.MarshalData())
	if err != nil {
		return nil, fmt.Errorf("InspectionService.ApplyOCR: %w", err)
	}
	bindings, raw := formfill.RecordInputs(rec)
	form, err := formfill.NewForm(bindings, raw)
	if err != nil {
		return nil, fmt.Errorf("InspectionService.ApplyOCR: %w", err)
	}
	applied := form.Fill(result)

	updated, err := s.repo.Update(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("InspectionService.ApplyOCR: %w", err)
	}
	s.log.Info("OCR result applied", zap.Int("record_id", rec.ID), zap.Int("fields", len(applied)))
	s.publish(domain.RecordOCRApplied, updated, userID, applied, "")
	return applied, nil
}
