package handler

import (
	"errors"
	"net/http"
	"strconv"

	"agri_inspection/internal/api/middleware"
	"agri_inspection/internal/domain"
	"agri_inspection/internal/repository"
	"agri_inspection/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const msgInternal = "服务器内部错误"

func respond(c *gin.Context, status int, message string, data any) {
	c.JSON(status, domain.APIResponse{Code: status, Message: message, Data: data})
}

// statusFor maps service and repository errors onto HTTP codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrNoImage),
		errors.Is(err, service.ErrNotAnImage),
		errors.Is(err, service.ErrImageTooLarge),
		errors.Is(err, service.ErrExportNoSelection),
		errors.Is(err, service.ErrExportTooMany),
		errors.Is(err, domain.ErrInvalidDate):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrTokenInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden),
		errors.Is(err, service.ErrOCRPermission),
		errors.Is(err, service.ErrUserInactive):
		return http.StatusForbidden
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, service.ErrExportNoRecords):
		return http.StatusNotFound
	case errors.Is(err, service.ErrUserAlreadyExists),
		errors.Is(err, repository.ErrDuplicateEntry):
		return http.StatusConflict
	case errors.Is(err, service.ErrQueueDisabled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondError writes err in the API envelope. Unmapped errors are logged and hidden,
// except export failures whose cause is shown to the user.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError && !errors.Is(err, service.ErrExportFailed) {
		log.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		message = msgInternal
	}
	_ = c.Error(err)
	respond(c, status, message, nil)
}

func principal(c *gin.Context) *domain.Principal {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		// Authenticate always runs first on these routes.
		panic("handler: no principal in context")
	}
	return p
}

func parseID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		respond(c, http.StatusBadRequest, "ID不合法", nil)
		return 0, false
	}
	return id, true
}
