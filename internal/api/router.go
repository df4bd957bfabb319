package api

import (
	"net/http"

	"agri_inspection/internal/api/handler"
	"agri_inspection/internal/api/middleware"
	"agri_inspection/internal/config"
	"agri_inspection/internal/logger"
	"agri_inspection/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Services bundles what the router exposes.
type Services struct {
	Auth        *service.AuthService
	OCR         *service.OCRService
	OCRConfigs  *service.OCRConfigService
	Inspections *service.InspectionService
	DB          handler.Pinger
	WSManager   *handler.WebSocketManager
}

func corsMiddleware(allowOrigin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", allowOrigin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, "+middleware.CSRFHeaderName+", Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func SetupRouter(cfg *config.Config, s Services, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(logger.GinMiddleware(log))
	r.Use(gin.Recovery())
	r.Use(corsMiddleware(cfg.CORSAllowOrigin))
	r.MaxMultipartMemory = cfg.MaxUploadBytes

	authMw := middleware.NewAuthMiddleware(s.Auth, log)

	r.GET("/health", handler.NewHealthHandler(s.DB).Health)

	// Dashboards subscribe without auth; events carry no record contents.
	r.GET("/ws", handler.NewWebSocketHandler(s.WSManager).HandleWebSocket)

	authHandler := handler.NewAuthHandler(s.Auth, log)
	ocrHandler := handler.NewOCRHandler(s.OCR, cfg.MaxUploadBytes, log)
	inspectionHandler := handler.NewInspectionHandler(s.Inspections, log)
	adminHandler := handler.NewAdminHandler(s.Auth, s.OCRConfigs, log)
	adminOCRHandler := handler.NewAdminOCRHandler(s.OCR, cfg.MaxUploadBytes, cfg.SecureCookies, log)

	v1 := r.Group("/api/v1")
	v1.POST("/auth/login", authHandler.Login)

	authed := v1.Group("", authMw.Authenticate(middleware.APIError))
	{
		authed.POST("/auth/logout", authHandler.Logout)
		authed.GET("/auth/profile", authHandler.Profile)

		ocrRoutes := authed.Group("/ocr", authMw.RequireOCR(middleware.APIError))
		{
			ocrRoutes.POST("/driving-license/", ocrHandler.DrivingLicense)
			ocrRoutes.POST("/license-plate/", ocrHandler.LicensePlate)
		}

		inspections := authed.Group("/inspections")
		{
			inspections.GET("/", inspectionHandler.List)
			inspections.POST("/", inspectionHandler.Create)
			inspections.GET("/batch/", inspectionHandler.Batch)
			inspections.POST("/export-batch/", inspectionHandler.ExportBatch)
			inspections.GET("/:id/", inspectionHandler.Get)
			inspections.PUT("/:id/", inspectionHandler.Update)
			inspections.DELETE("/:id/", inspectionHandler.Delete)
			inspections.POST("/:id/upload-image/", inspectionHandler.UploadImage)
			inspections.POST("/:id/ocr-jobs/", inspectionHandler.EnqueueOCR)
			inspections.GET("/:id/export/", inspectionHandler.Export)
		}

		admin := authed.Group("/admin", authMw.RequireSuperuser(middleware.APIError))
		{
			admin.GET("/users", adminHandler.ListUsers)
			admin.POST("/users", adminHandler.CreateUser)
			admin.GET("/ocr-configs", adminHandler.ListOCRConfigs)
			admin.POST("/ocr-configs", adminHandler.CreateOCRConfig)
			admin.PUT("/ocr-configs/:id/activate", adminHandler.ActivateOCRConfig)
		}
	}

	adminSite := r.Group("/admin", authMw.Authenticate(middleware.AdminError), middleware.CSRF(middleware.AdminError))
	{
		adminSite.GET("/csrf/", adminOCRHandler.CSRFToken)
		adminSite.Any("/inspection/inspectionrecord/ocr-recognize/", adminOCRHandler.Recognize)
	}
	return r
}
