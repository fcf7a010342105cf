// Package admin registers the administrator API.
package admin

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/paperdesk/creditledger/internal/catalog"
	"github.com/paperdesk/creditledger/internal/credits"
	"github.com/paperdesk/creditledger/internal/http/api/admin/handlers"
	"github.com/paperdesk/creditledger/internal/models"
	"github.com/paperdesk/creditledger/internal/security"
	"gorm.io/gorm"
)

// RegisterAdminRoutes registers admin login and the authenticated management routes.
func RegisterAdminRoutes(r *gin.Engine, db *gorm.DB, signer *security.Signer, engine *credits.Engine, packages *catalog.Catalog) {
	if r == nil || db == nil || signer == nil || engine == nil || packages == nil {
		return
	}

	group := r.Group("/v0/admin")
	authHandler := handlers.NewAuthHandler(db, signer)
	group.POST("/login", authHandler.Login)

	authed := group.Group("")
	authed.Use(adminAuthMiddleware(db, signer))

	adminHandler := handlers.NewAdminHandler(db)
	authed.GET("/admins", adminHandler.List)
	authed.POST("/admins", adminHandler.Create)
	authed.GET("/admins/:id", adminHandler.Get)
	authed.POST("/admins/:id/disable", adminHandler.Disable)
	authed.POST("/admins/:id/enable", adminHandler.Enable)
	authed.PUT("/admins/:id/password", adminHandler.ChangePassword)

	dashboardHandler := handlers.NewDashboardHandler(db, engine)
	authed.GET("/dashboard/kpi", dashboardHandler.KPI)
	authed.GET("/dashboard/daily", dashboardHandler.Daily)

	packageHandler := handlers.NewPackageHandler(packages)
	authed.GET("/credit-packages", packageHandler.List)
	authed.POST("/credit-packages", packageHandler.Create)
	authed.PUT("/credit-packages/:id", packageHandler.Update)
	authed.POST("/credit-packages/:id/deactivate", packageHandler.Deactivate)
	authed.POST("/credit-packages/:id/activate", packageHandler.Activate)

	accountHandler := handlers.NewAccountHandler(engine)
	authed.GET("/credit-accounts/:user_id", accountHandler.Get)
	authed.GET("/credit-accounts/:user_id/reconcile", accountHandler.Reconcile)
	authed.POST("/credit-accounts/:user_id/topup", accountHandler.Topup)

	jobHandler := handlers.NewJobHandler(engine)
	authed.POST("/credits/reset", jobHandler.Reset)
	authed.POST("/credits/daily-bonus", jobHandler.DailyBonus)

	settingsHandler := handlers.NewSettingsHandler(db)
	authed.GET("/settings", settingsHandler.List)
	authed.PUT("/settings/:key", settingsHandler.Put)
}

// adminAuthMiddleware validates admin JWTs and loads the admin into context.
func adminAuthMiddleware(db *gorm.DB, signer *security.Signer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if authHeader == "" || token == "" || token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing admin token"})
			return
		}

		claims, errJWT := signer.ParseAdmin(token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errJWT.Error()})
			return
		}

		var admin models.Admin
		if errFind := db.WithContext(c.Request.Context()).
			Select("id", "active").
			First(&admin, claims.AdminID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin not found"})
			return
		}
		if !admin.Active {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin account is disabled"})
			return
		}

		c.Set("adminID", admin.ID)
		c.Next()
	}
}
