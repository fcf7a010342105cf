package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/paperdesk/creditledger/internal/catalog"
	"github.com/paperdesk/creditledger/internal/credits"
	adminapi "github.com/paperdesk/creditledger/internal/http/api/admin"
	adminhandlers "github.com/paperdesk/creditledger/internal/http/api/admin/handlers"
	"github.com/paperdesk/creditledger/internal/http/api/front"
	"github.com/paperdesk/creditledger/internal/http/api/webhook"
	"github.com/paperdesk/creditledger/internal/logging"
	"github.com/paperdesk/creditledger/internal/security"
	"gorm.io/gorm"
)

// Deps are the components served over HTTP.
type Deps struct {
	DB           *gorm.DB
	Engine       *credits.Engine
	Catalog      *catalog.Catalog
	Signer       *security.Signer
	WebhookToken string
	// Metrics serves /metrics when set.
	Metrics http.Handler
}

// NewRouter builds the gin engine with every route group registered.
func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(logging.RequestID(), logging.GinLogger(), gin.Recovery())

	health := adminhandlers.NewHealthHandler(deps.DB)
	r.GET("/healthz", health.Healthz)
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	front.RegisterFrontRoutes(r, deps.DB, deps.Signer, deps.Engine, deps.Catalog)
	adminapi.RegisterAdminRoutes(r, deps.DB, deps.Signer, deps.Engine, deps.Catalog)
	if deps.WebhookToken != "" {
		webhook.RegisterWebhookRoutes(r, deps.Engine, deps.WebhookToken)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	return r
}
