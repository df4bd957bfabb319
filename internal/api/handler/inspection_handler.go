package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"agri_inspection/internal/domain"
	"agri_inspection/internal/export"
	"agri_inspection/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type InspectionService interface {
	List(ctx context.Context, actor *domain.Principal, filter domain.InspectionFilter) (domain.Page[domain.InspectionListItem], error)
	Get(ctx context.Context, actor *domain.Principal, id int) (*domain.InspectionRecord, error)
	GetMany(ctx context.Context, actor *domain.Principal, ids []int) ([]domain.InspectionRecord, error)
	Create(ctx context.Context, actor *domain.Principal, in domain.InspectionRecordInput) (*domain.InspectionRecord, error)
	Update(ctx context.Context, actor *domain.Principal, id int, in domain.InspectionRecordInput) (*domain.InspectionRecord, error)
	Delete(ctx context.Context, actor *domain.Principal, id int) error
	UploadImage(ctx context.Context, actor *domain.Principal, id int, up service.ImageUpload) (*domain.InspectionRecord, error)
	EnqueueOCR(ctx context.Context, actor *domain.Principal, id int) error
	Export(ctx context.Context, actor *domain.Principal, id int) (*export.File, error)
	ExportBatch(ctx context.Context, actor *domain.Principal, ids []int) (*export.File, error)
}

type InspectionHandler struct {
	inspections InspectionService
	log         *zap.Logger
}

func NewInspectionHandler(is InspectionService, log *zap.Logger) *InspectionHandler {
	return &InspectionHandler{inspections: is, log: log}
}

func parseFilter(c *gin.Context) (domain.InspectionFilter, error) {
	f := domain.InspectionFilter{Keyword: c.Query("keyword")}
	var err error
	if f.Page, err = queryInt(c, "page", 1); err != nil {
		return f, err
	}
	if f.PageSize, err = queryInt(c, "page_size", domain.DefaultPageSize); err != nil {
		return f, err
	}
	if f.StartDate, err = queryDate(c, "start_date"); err != nil {
		return f, err
	}
	if f.EndDate, err = queryDate(c, "end_date"); err != nil {
		return f, err
	}
	return f, nil
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	v := strings.TrimSpace(c.Query(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, service.ErrInvalidInput
	}
	return n, nil
}

func queryDate(c *gin.Context, key string) (*time.Time, error) {
	v := strings.TrimSpace(c.Query(key))
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(domain.DateLayout, v)
	if err != nil {
		return nil, domain.ErrInvalidDate
	}
	return &t, nil
}

// GET /api/v1/inspections/
func (h *InspectionHandler) List(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	page, err := h.inspections.List(c.Request.Context(), principal(c), filter)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, "success", page)
}

// GET /api/v1/inspections/batch/?ids=1,2,3
func (h *InspectionHandler) Batch(c *gin.Context) {
	var ids []int
	for _, part := range strings.Split(c.Query("ids"), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil || id <= 0 {
			respond(c, http.StatusBadRequest, "ID不合法", nil)
			return
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		respond(c, http.StatusBadRequest, "请选择记录", nil)
		return
	}
	records, err := h.inspections.GetMany(c.Request.Context(), principal(c), ids)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, "success", records)
}

// GET /api/v1/inspections/:id/
func (h *InspectionHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	rec, err := h.inspections.Get(c.Request.Context(), principal(c), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, "success", rec)
}

// POST /api/v1/inspections/
func (h *InspectionHandler) Create(c *gin.Context) {
	var in domain.InspectionRecordInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respond(c, http.StatusBadRequest, service.ErrInvalidInput.Error(), nil)
		return
	}
	rec, err := h.inspections.Create(c.Request.Context(), principal(c), in)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusCreated, "创建成功", gin.H{
		"id":                   rec.ID,
		"license_plate_number": rec.LicensePlateNumber,
		"created_at":           rec.CreatedAt,
	})
}

// PUT /api/v1/inspections/:id/
func (h *InspectionHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var in domain.InspectionRecordInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respond(c, http.StatusBadRequest, service.ErrInvalidInput.Error(), nil)
		return
	}
	rec, err := h.inspections.Update(c.Request.Context(), principal(c), id, in)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, "更新成功", gin.H{
		"id":                   rec.ID,
		"license_plate_number": rec.LicensePlateNumber,
		"updated_at":           rec.UpdatedAt,
	})
}

// DELETE /api/v1/inspections/:id/
func (h *InspectionHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.inspections.Delete(c.Request.Context(), principal(c), id); err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, "删除成功", nil)
}

// POST /api/v1/inspections/:id/upload-image/
// The first image field present in the form is stored.
func (h *InspectionHandler) UploadImage(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		respond(c, http.StatusBadRequest, service.ErrNoImage.Error(), nil)
		return
	}

	for _, field := range domain.UploadableImages {
		files := form.File[string(field)]
		if len(files) == 0 {
			continue
		}
		fh := files[0]
		f, err := fh.Open()
		if err != nil {
			respondError(c, h.log, err)
			return
		}
		defer f.Close()

		rec, err := h.inspections.UploadImage(c.Request.Context(), principal(c), id, service.ImageUpload{
			Field:       field,
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Content:     f,
		})
		if err != nil {
			respondError(c, h.log, err)
			return
		}
		respond(c, http.StatusOK, "上传成功", gin.H{"id": rec.ID, "field": field, "path": rec.Image(field)})
		return
	}
	respond(c, http.StatusBadRequest, service.ErrNoImage.Error(), nil)
}

// POST /api/v1/inspections/:id/ocr-jobs/
func (h *InspectionHandler) EnqueueOCR(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.inspections.EnqueueOCR(c.Request.Context(), principal(c), id); err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusAccepted, "已加入识别队列", gin.H{"id": id})
}

func attachment(c *gin.Context, f *export.File) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`, f.Name, url.PathEscape(f.Name)))
	c.Data(http.StatusOK, f.ContentType, f.Content)
}

// GET /api/v1/inspections/:id/export/
func (h *InspectionHandler) Export(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	f, err := h.inspections.Export(c.Request.Context(), principal(c), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	attachment(c, f)
}

type exportBatchRequest struct {
	IDs []int `json:"ids"`
}

// POST /api/v1/inspections/export-batch/
func (h *InspectionHandler) ExportBatch(c *gin.Context) {
	var req exportBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, http.StatusBadRequest, service.ErrInvalidInput.Error(), nil)
		return
	}
	f, err := h.inspections.ExportBatch(c.Request.Context(), principal(c), req.IDs)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	attachment(c, f)
}
