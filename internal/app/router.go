// internal/app/router.go
package app

import (
	"leadcrm-service/internal/domain/auth"
	authHandler "leadcrm-service/internal/handlers/auth"
	customerHandler "leadcrm-service/internal/handlers/customer"
	teamHandler "leadcrm-service/internal/handlers/team"
	"leadcrm-service/internal/middleware"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	AuthHandler     *authHandler.AuthHandler
	CustomerHandler *customerHandler.CustomerHandler
	TeamHandler     *teamHandler.TeamHandler
	AuthMiddleware  *middleware.AuthMiddleware
}

func SetupRouter(r *gin.Engine, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": "1.0.0"})
	})

	// ==================== Public Auth Routes ====================
	authPublic := api.Group("/auth")
	{
		authPublic.POST("/register", h.AuthHandler.Register)
		authPublic.POST("/login", h.AuthHandler.Login)
	}

	// ==================== Authenticated Auth Routes ====================
	authProtected := api.Group("/auth")
	authProtected.Use(h.AuthMiddleware.Auth())
	{
		authProtected.GET("/me", h.AuthHandler.Profile)
	}

	// ==================== Customers ====================
	customers := api.Group("/customers")
	customers.Use(h.AuthMiddleware.Auth())
	elevated := h.AuthMiddleware.RequireRole(string(auth.RoleManager), string(auth.RoleAdmin))
	{
		customers.GET("", h.CustomerHandler.ListCustomers)
		customers.GET("/stats", h.CustomerHandler.GetStats)
		customers.GET("/:id", h.CustomerHandler.GetCustomer)
		customers.GET("/:id/changelog", h.CustomerHandler.GetChangeLog)

		customers.POST("", h.CustomerHandler.CreateCustomer)
		customers.PUT("/:id", h.CustomerHandler.UpdateCustomer)
		customers.DELETE("/:id", elevated, h.CustomerHandler.DeleteCustomer)

		// Bulk upload: plan first, then confirm with duplicate decisions.
		customers.POST("/upload", elevated, h.CustomerHandler.UploadCustomers)
		customers.POST("/upload/confirm", elevated, h.CustomerHandler.ConfirmUpload)
	}

	// ==================== Reference Data ====================
	reference := api.Group("")
	reference.Use(h.AuthMiddleware.Auth())
	{
		reference.GET("/teams", h.TeamHandler.ListTeams)
		reference.GET("/agents/:name", h.TeamHandler.GetAgent)
	}
}
