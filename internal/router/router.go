// internal/router/router.go
package router

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/shareview/insights-backend/internal/config"
	"github.com/shareview/insights-backend/internal/handlers"
	"github.com/shareview/insights-backend/internal/middleware"
	"github.com/shareview/insights-backend/internal/models"
	"github.com/shareview/insights-backend/internal/services"
)

func Initialize(db *gorm.DB, cfg *config.Config, locker services.GenerationLocker) (*gin.Engine, error) {
	// Initialize services
	snapshotStore := services.NewSnapshotStore(db)
	builder := services.NewPlaceholderBuilder(snapshotStore)
	notificationService := services.NewNotificationService(db)
	storageService, err := services.NewStorageService(cfg.AWS)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize report archive: %w", err)
	}

	insightService := services.NewInsightService(db)
	jobService := services.NewJobService(db)
	retailerService := services.NewRetailerService(db, snapshotStore)
	generationService := services.NewGenerationService(db, jobService, builder, insightService, locker, notificationService, cfg.Insights.DefaultTabName)
	reportService := services.NewReportService(db, builder, insightService, retailerService, storageService, notificationService)
	accessService := services.NewAccessService(db, reportService, insightService, cfg.Access.SessionTTL)

	// Initialize handlers
	insightHandler := handlers.NewInsightHandler(generationService, jobService, insightService, cfg.Insights.JobStaleAfter)
	reportHandler := handlers.NewReportHandler(reportService, retailerService)
	accessHandler := handlers.NewAccessHandler(accessService, retailerService, cfg.Access.CookieSecure)
	accessTokenHandler := handlers.NewAccessTokenHandler(accessService, cfg.Server.PublicBaseURL)
	notificationHandler := handlers.NewNotificationHandler(notificationService)

	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	r.Use(middleware.GeneralRateLimit())
	r.Use(middleware.AuditLogMiddleware(db))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	v1 := r.Group("/v1")
	{
		authed := v1.Group("")
		authed.Use(middleware.AuthRequired())

		// Insight generation and review (staff)
		insights := authed.Group("/insights")
		insights.Use(middleware.RequireStaff())
		{
			insights.POST("/generate", insightHandler.Generate)
			insights.GET("/jobs", insightHandler.ListJobs)
			insights.GET("/jobs/:id", insightHandler.GetJob)
			insights.GET("", insightHandler.List)
			insights.GET("/:id", insightHandler.Get)
			insights.PUT("/:id", insightHandler.Update)
			insights.POST("/:id/approve", insightHandler.Approve)
			insights.POST("/:id/reject", insightHandler.Reject)
			insights.POST("/:id/publish", insightHandler.Publish)
		}

		reports := authed.Group("/reports")
		{
			reports.GET("", reportHandler.List)
			reports.GET("/:id", reportHandler.Get)

			// Client self-service
			client := reports.Group("")
			client.Use(middleware.RequireClient())
			{
				client.POST("/generate", reportHandler.GenerateClientReport)
				client.POST("/request", reportHandler.Request)
			}

			staff := reports.Group("")
			staff.Use(middleware.RequireStaff())
			{
				staff.POST("", reportHandler.Create)
				staff.POST("/draft", reportHandler.CreateDraft)
				staff.POST("/:id/regenerate", reportHandler.Regenerate)
				staff.POST("/:id/publish", reportHandler.Publish)
				staff.POST("/:id/reject", reportHandler.Reject)
				staff.GET("/:id/archive", reportHandler.ArchiveURL)
			}
		}

		retailers := authed.Group("/retailers/:id")
		retailers.Use(middleware.RetailerAccess("id"))
		{
			retailers.GET("/features", reportHandler.Features)

			tokens := retailers.Group("/access-token")
			tokens.Use(middleware.RequireRoles(models.RoleSalesTeam, models.RoleCSSAdmin))
			{
				tokens.GET("", accessTokenHandler.Current)
				tokens.POST("", accessTokenHandler.Issue)
				tokens.DELETE("", accessTokenHandler.RevokeAll)
				tokens.DELETE("/:tokenId", accessTokenHandler.RevokeOne)
			}
		}

		notifications := authed.Group("/notifications")
		notifications.Use(middleware.RequireStaff())
		{
			notifications.GET("", notificationHandler.ListUnread)
			notifications.PUT("/:id/read", notificationHandler.MarkRead)
		}

		// Guest access by capability token
		access := v1.Group("/access/:token")
		access.Use(middleware.GuestRateLimit())
		{
			access.POST("/unlock", middleware.UnlockRateLimit(), accessHandler.Unlock)
			access.GET("/reports", accessHandler.ListReports)
			access.GET("/reports/:reportId", accessHandler.GetReport)
			access.GET("/retailers/:id/insights", accessHandler.PageInsights)
			access.GET("/retailers/:id/keywords", accessHandler.Keywords)
			access.GET("/retailers/:id/products", accessHandler.Products)
		}
	}

	return r, nil
}
