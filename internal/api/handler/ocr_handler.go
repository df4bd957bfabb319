package handler

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"agri_inspection/internal/domain"
	"agri_inspection/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// OCRService is the recognition surface used by the OCR and admin handlers.
type OCRService interface {
	RecognizeVehicleLicense(ctx context.Context, image []byte) (*domain.LicenseRecognition, error)
	RecognizeCarNumber(ctx context.Context, image []byte) (*domain.PlateRecognition, error)
	RecognizeForForm(ctx context.Context, uploads service.FormUploads) (*domain.FormRecognition, error)
}

type OCRHandler struct {
	ocrService OCRService
	maxUpload  int64
	log        *zap.Logger
}

func NewOCRHandler(ocrService OCRService, maxUpload int64, log *zap.Logger) *OCRHandler {
	return &OCRHandler{ocrService: ocrService, maxUpload: maxUpload, log: log}
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// uploadedImage reads the "image" part after checking its type and size.
func (h *OCRHandler) uploadedImage(c *gin.Context) ([]byte, bool) {
	fh, err := c.FormFile("image")
	if err != nil {
		respond(c, http.StatusBadRequest, service.ErrNoImage.Error(), nil)
		return nil, false
	}
	if err := service.CheckImage(fh.Header.Get("Content-Type"), fh.Size, h.maxUpload); err != nil {
		respond(c, http.StatusBadRequest, err.Error(), nil)
		return nil, false
	}
	data, err := readFile(fh)
	if err != nil {
		respondError(c, h.log, err)
		return nil, false
	}
	return data, true
}

func (h *OCRHandler) recognitionFailed(c *gin.Context, err error) {
	if errors.Is(err, context.Canceled) {
		c.Status(499)
		return
	}
	h.log.Error("recognition failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	_ = c.Error(err)
	respond(c, http.StatusInternalServerError, "识别失败: "+err.Error(), nil)
}

// POST /api/v1/ocr/driving-license/
func (h *OCRHandler) DrivingLicense(c *gin.Context) {
	image, ok := h.uploadedImage(c)
	if !ok {
		return
	}
	rec, err := h.ocrService.RecognizeVehicleLicense(c.Request.Context(), image)
	if err != nil {
		h.recognitionFailed(c, err)
		return
	}
	respond(c, http.StatusOK, "识别成功", rec.License)
}

// POST /api/v1/ocr/license-plate/
func (h *OCRHandler) LicensePlate(c *gin.Context) {
	image, ok := h.uploadedImage(c)
	if !ok {
		return
	}
	rec, err := h.ocrService.RecognizeCarNumber(c.Request.Context(), image)
	if err != nil {
		h.recognitionFailed(c, err)
		return
	}
	respond(c, http.StatusOK, "识别成功", gin.H{
		"plate_number": rec.Plate.Plate,
		"confidence":   rec.Plate.Confidence,
	})
}
