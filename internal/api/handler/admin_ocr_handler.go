package handler

import (
	"errors"
	"net/http"

	"agri_inspection/internal/api/middleware"
	"agri_inspection/internal/domain"
	"agri_inspection/internal/formfill"
	"agri_inspection/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	msgPostOnly       = "仅支持POST请求"
	csrfCookieMaxAge  = 365 * 24 * 3600
	maxMultipartBytes = 32 << 20
)

// AdminOCRHandler serves the recognize button of the record editor.
type AdminOCRHandler struct {
	ocrService    OCRService
	maxUpload     int64
	secureCookies bool
	log           *zap.Logger
}

func NewAdminOCRHandler(ocrService OCRService, maxUpload int64, secureCookies bool, log *zap.Logger) *AdminOCRHandler {
	return &AdminOCRHandler{ocrService: ocrService, maxUpload: maxUpload, secureCookies: secureCookies, log: log}
}

func adminFail(c *gin.Context, status int, message string) {
	c.JSON(status, domain.AdminOCRResponse{Success: false, Message: message})
}

// GET /admin/csrf/
// Reuses the caller's csrftoken cookie when present, otherwise issues a new one.
func (h *AdminOCRHandler) CSRFToken(c *gin.Context) {
	token, err := c.Cookie(middleware.CSRFCookieName)
	if err != nil || token == "" {
		token = uuid.NewString()
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.CSRFCookieName, token, csrfCookieMaxAge, "/", "", h.secureCookies, false)
	c.JSON(http.StatusOK, gin.H{formfill.TokenField: token})
}

// ANY /admin/inspection/inspectionrecord/ocr-recognize/
func (h *AdminOCRHandler) Recognize(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		adminFail(c, http.StatusMethodNotAllowed, msgPostOnly)
		return
	}
	actor := principal(c)
	if !actor.CanUseOCR() {
		adminFail(c, http.StatusForbidden, service.ErrOCRPermission.Error())
		return
	}

	var uploads service.FormUploads
	if err := c.Request.ParseMultipartForm(maxMultipartBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		adminFail(c, http.StatusBadRequest, "请求格式错误")
		return
	}
	parts := []struct {
		name string
		dst  *[]byte
	}{
		{formfill.PartLicenseFront, &uploads.LicenseFront},
		{formfill.PartLicenseBack, &uploads.LicenseBack},
		{formfill.PartPlate, &uploads.Plate},
	}
	for _, p := range parts {
		fh, err := c.FormFile(p.name)
		if err != nil {
			continue
		}
		if h.maxUpload > 0 && fh.Size > h.maxUpload {
			adminFail(c, http.StatusOK, service.ErrImageTooLarge.Error())
			return
		}
		data, err := readFile(fh)
		if err != nil {
			h.log.Error("reading upload", zap.String("part", p.name), zap.Error(err))
			adminFail(c, http.StatusBadRequest, "读取上传文件失败")
			return
		}
		*p.dst = data
	}

	recognition, err := h.ocrService.RecognizeForForm(c.Request.Context(), uploads)
	if err != nil {
		h.log.Warn("admin recognize failed", zap.Int("user_id", actor.UserID), zap.Error(err))
		_ = c.Error(err)
		adminFail(c, http.StatusOK, err.Error())
		return
	}
	h.log.Info("admin recognize succeeded", zap.Int("user_id", actor.UserID), zap.Int("fields", len(recognition.Fields)))
	c.JSON(http.StatusOK, domain.AdminOCRResponse{Success: true, Data: recognition.MarshalData()})
}
