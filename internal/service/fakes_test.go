package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"agri_inspection/internal/domain"
	"agri_inspection/internal/export"
	"agri_inspection/internal/ocr"
	"agri_inspection/internal/repository"

	"go.uber.org/zap"
)

var testLogger = zap.NewNop()

type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[int]*domain.User
	nextID int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[int]*domain.User{}, nextID: 1}
}

func (r *fakeUserRepo) Create(_ context.Context, u *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username == u.Username {
			return nil, repository.ErrDuplicateEntry
		}
	}
	u.ID = r.nextID
	r.nextID++
	cp := *u
	r.users[u.ID] = &cp
	return u, nil
}

func (r *fakeUserRepo) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) FindByID(_ context.Context, id int) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) FindAll(_ context.Context) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.User
	for _, u := range r.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeInspectionRepo struct {
	records    map[int]*domain.InspectionRecord
	nextID     int
	lastFilter domain.InspectionFilter
}

func newFakeInspectionRepo() *fakeInspectionRepo {
	return &fakeInspectionRepo{records: map[int]*domain.InspectionRecord{}, nextID: 1}
}

func (r *fakeInspectionRepo) Create(_ context.Context, rec *domain.InspectionRecord) (*domain.InspectionRecord, error) {
	rec.ID = r.nextID
	r.nextID++
	cp := *rec
	r.records[rec.ID] = &cp
	return rec, nil
}

func (r *fakeInspectionRepo) FindByID(_ context.Context, id int) (*domain.InspectionRecord, error) {
	rec, ok := r.records[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *fakeInspectionRepo) FindByIDs(_ context.Context, ids []int, createdBy *int) ([]domain.InspectionRecord, error) {
	var out []domain.InspectionRecord
	for _, id := range ids {
		rec, ok := r.records[id]
		if !ok || (createdBy != nil && !rec.OwnedBy(*createdBy)) {
			continue
		}
		out = append(out, *rec)
	}
	return out, nil
}

func (r *fakeInspectionRepo) Find(_ context.Context, f domain.InspectionFilter) ([]domain.InspectionRecord, int, error) {
	r.lastFilter = f
	var all []domain.InspectionRecord
	for _, rec := range r.records {
		if f.CreatedBy != nil && !rec.OwnedBy(*f.CreatedBy) {
			continue
		}
		if f.Keyword != "" && !strings.Contains(rec.LicensePlateNumber, f.Keyword) &&
			!strings.Contains(rec.Owner, f.Keyword) && !strings.Contains(rec.ChassisNumber, f.Keyword) {
			continue
		}
		all = append(all, *rec)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	total := len(all)
	start := f.Offset()
	if start > total {
		start = total
	}
	end := start + f.PageSize
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (r *fakeInspectionRepo) Update(_ context.Context, rec *domain.InspectionRecord) (*domain.InspectionRecord, error) {
	if _, ok := r.records[rec.ID]; !ok {
		return nil, repository.ErrNotFound
	}
	cp := *rec
	r.records[rec.ID] = &cp
	return rec, nil
}

func (r *fakeInspectionRepo) UpdateImage(_ context.Context, id int, field domain.ImageField, path string) error {
	rec, ok := r.records[id]
	if !ok {
		return repository.ErrNotFound
	}
	rec.SetImage(field, path)
	return nil
}

func (r *fakeInspectionRepo) Delete(_ context.Context, id int) error {
	if _, ok := r.records[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.records, id)
	return nil
}

type fakeConfigRepo struct {
	configs []domain.SystemConfig
	err     error
}

func (r *fakeConfigRepo) Create(_ context.Context, cfg *domain.SystemConfig) (*domain.SystemConfig, error) {
	if cfg.IsActive {
		for i := range r.configs {
			r.configs[i].IsActive = false
		}
	}
	cfg.ID = len(r.configs) + 1
	r.configs = append(r.configs, *cfg)
	return cfg, nil
}

func (r *fakeConfigRepo) FindAll(_ context.Context) ([]domain.SystemConfig, error) {
	return r.configs, r.err
}

func (r *fakeConfigRepo) FindActive(_ context.Context) (*domain.SystemConfig, error) {
	if r.err != nil {
		return nil, r.err
	}
	for i := range r.configs {
		if r.configs[i].IsActive {
			cp := r.configs[i]
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeConfigRepo) Activate(_ context.Context, id int) error {
	found := false
	for i := range r.configs {
		found = found || r.configs[i].ID == id
	}
	if !found {
		return repository.ErrNotFound
	}
	for i := range r.configs {
		r.configs[i].IsActive = r.configs[i].ID == id
	}
	return nil
}

// fakeDetector answers by image content: the bytes select a canned set of lines.
type fakeDetector struct {
	byImage map[string][]domain.TextLine
	fail    map[string]error
	closed  int
}

func (d *fakeDetector) DetectText(_ context.Context, image []byte) ([]domain.TextLine, error) {
	if err := d.fail[string(image)]; err != nil {
		return nil, err
	}
	return d.byImage[string(image)], nil
}

func (d *fakeDetector) Close() error {
	d.closed++
	return nil
}

func factoryFor(d *fakeDetector) DetectorFactory {
	return func(context.Context, domain.SystemConfig) (ocr.TextDetector, error) { return d, nil }
}

func activeConfigRepo() *fakeConfigRepo {
	return &fakeConfigRepo{configs: []domain.SystemConfig{{ID: 1, Name: "rek", Provider: domain.ProviderAWSRekognition, IsActive: true}}}
}

type fakeStore struct {
	files map[string][]byte
}

func newFakeStore() *fakeStore { return &fakeStore{files: map[string][]byte{}} }

func (s *fakeStore) Save(_ context.Context, folder, filename string, r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	p := fmt.Sprintf("%s/%d-%s", folder, len(s.files)+1, filename)
	s.files[p] = b
	return p, nil
}

func (s *fakeStore) ReadAll(path string) ([]byte, error) {
	b, ok := s.files[path]
	if !ok {
		return nil, errors.New("no such file")
	}
	return bytes.Clone(b), nil
}

type fakeEvents struct {
	events []domain.RecordEvent
}

func (e *fakeEvents) Publish(ev domain.RecordEvent) { e.events = append(e.events, ev) }

func (e *fakeEvents) types() []domain.RecordEventType {
	out := make([]domain.RecordEventType, len(e.events))
	for i, ev := range e.events {
		out[i] = ev.Type
	}
	return out
}

type fakeQueue struct {
	jobs []domain.OCRJob
	err  error
}

func (q *fakeQueue) Enqueue(_ context.Context, job domain.OCRJob) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type fakeExporter struct {
	archived []domain.InspectionRecord
	err      error
}

func (e *fakeExporter) Document(rec *domain.InspectionRecord) (export.File, error) {
	if e.err != nil {
		return export.File{}, e.err
	}
	return export.File{Name: fmt.Sprintf("%d.docx", rec.ID), ContentType: export.DocxContentType}, nil
}

func (e *fakeExporter) Archive(records []domain.InspectionRecord) (export.File, error) {
	if e.err != nil {
		return export.File{}, e.err
	}
	e.archived = records
	return export.File{Name: "records.zip", ContentType: export.ZipContentType}, nil
}
