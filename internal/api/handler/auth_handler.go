package handler

import (
	"context"
	"net/http"
	"strings"

	"agri_inspection/internal/domain"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthService interface {
	Login(ctx context.Context, dto domain.LoginUserDTO) (*domain.AuthResponseDTO, error)
	Logout(p *domain.Principal)
	Profile(ctx context.Context, p *domain.Principal) (*domain.UserProfile, error)
}

type AuthHandler struct {
	authService AuthService
	log         *zap.Logger
}

func NewAuthHandler(as AuthService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{authService: as, log: log}
}

// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var dto domain.LoginUserDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		respond(c, http.StatusBadRequest, "请求格式错误", nil)
		return
	}
	dto.Username = strings.TrimSpace(dto.Username)
	if dto.Username == "" || dto.Password == "" {
		respond(c, http.StatusBadRequest, "用户名和密码不能为空", nil)
		return
	}

	authResponse, err := h.authService.Login(c.Request.Context(), dto)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, "登录成功", authResponse)
}

// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	h.authService.Logout(principal(c))
	respond(c, http.StatusOK, "退出成功", nil)
}

// GET /api/v1/auth/profile
func (h *AuthHandler) Profile(c *gin.Context) {
	profile, err := h.authService.Profile(c.Request.Context(), principal(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, "success", profile)
}
