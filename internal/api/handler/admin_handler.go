package handler

import (
	"context"
	"net/http"

	"agri_inspection/internal/domain"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type UserAdmin interface {
	CreateUser(ctx context.Context, actor *domain.Principal, dto domain.CreateUserDTO) (*domain.User, error)
	ListUsers(ctx context.Context, actor *domain.Principal) ([]domain.UserProfile, error)
}

type OCRConfigAdmin interface {
	List(ctx context.Context, actor *domain.Principal) ([]domain.SystemConfig, error)
	Create(ctx context.Context, actor *domain.Principal, dto domain.SystemConfigDTO) (*domain.SystemConfig, error)
	Activate(ctx context.Context, actor *domain.Principal, id int) error
}

// AdminHandler manages users and OCR provider configs. Routes are superuser only.
type AdminHandler struct {
	users   UserAdmin
	configs OCRConfigAdmin
	log     *zap.Logger
}

func NewAdminHandler(users UserAdmin, configs OCRConfigAdmin, log *zap.Logger) *AdminHandler {
	return &AdminHandler{users: users, configs: configs, log: log}
}

// GET /api/v1/admin/users
func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.users.ListUsers(c.Request.Context(), principal(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, "success", users)
}

// POST /api/v1/admin/users
func (h *AdminHandler) CreateUser(c *gin.Context) {
	var dto domain.CreateUserDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		respond(c, http.StatusBadRequest, "参数错误: "+err.Error(), nil)
		return
	}
	user, err := h.users.CreateUser(c.Request.Context(), principal(c), dto)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusCreated, "创建成功", user.Profile())
}

// GET /api/v1/admin/ocr-configs
func (h *AdminHandler) ListOCRConfigs(c *gin.Context) {
	configs, err := h.configs.List(c.Request.Context(), principal(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, "success", configs)
}

// POST /api/v1/admin/ocr-configs
func (h *AdminHandler) CreateOCRConfig(c *gin.Context) {
	var dto domain.SystemConfigDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		respond(c, http.StatusBadRequest, "参数错误: "+err.Error(), nil)
		return
	}
	cfg, err := h.configs.Create(c.Request.Context(), principal(c), dto)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusCreated, "创建成功", cfg)
}

// PUT /api/v1/admin/ocr-configs/:id/activate
func (h *AdminHandler) ActivateOCRConfig(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.configs.Activate(c.Request.Context(), principal(c), id); err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, "已启用", gin.H{"id": id})
}
