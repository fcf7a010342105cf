// Package webhook receives payment confirmations from the payment gateway.
package webhook

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/paperdesk/creditledger/internal/credits"
	"github.com/paperdesk/creditledger/internal/http/api"
	"github.com/paperdesk/creditledger/internal/logging"
	"github.com/paperdesk/creditledger/internal/models"
	"github.com/paperdesk/creditledger/internal/security"
	"github.com/paperdesk/creditledger/internal/settings"
	log "github.com/sirupsen/logrus"
)

// PaymentHandler credits accounts for confirmed payments.
type PaymentHandler struct {
	engine *credits.Engine
	token  string
}

// RegisterWebhookRoutes registers the payment webhook behind the shared token.
func RegisterWebhookRoutes(r *gin.Engine, engine *credits.Engine, token string) {
	if r == nil || engine == nil {
		return
	}
	h := &PaymentHandler{engine: engine, token: token}
	group := r.Group("/v0/webhooks")
	group.Use(h.requireToken)
	group.POST("/payments", h.Payment)
}

// paymentRequest is a gateway confirmation. Either PackageID or Amount is set.
type paymentRequest struct {
	UserID      uint64         `json:"user_id"`
	Type        string         `json:"type"`
	Amount      int64          `json:"amount"`
	PackageID   uint64         `json:"package_id"`
	Reference   string         `json:"reference"`
	Gateway     string         `json:"gateway"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata"`
}

func (h *PaymentHandler) requireToken(c *gin.Context) {
	presented := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
	if !security.WebhookTokenMatches(h.token, presented) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook token"})
		return
	}
	c.Next()
}

// Payment applies a confirmed payment. Redelivered confirmations return the original result.
func (h *PaymentHandler) Payment(c *gin.Context) {
	var body paymentRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	reference := strings.TrimSpace(body.Reference)
	if reference == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reference is required"})
		return
	}
	if body.UserID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	var (
		result    credits.CreditResult
		errCredit error
	)
	if body.PackageID != 0 {
		if !settings.PurchasesEnabled() {
			c.JSON(http.StatusForbidden, gin.H{"error": "purchases are disabled"})
			return
		}
		result, errCredit = h.engine.PurchasePackage(c.Request.Context(), credits.PurchaseRequest{
			UserID:    body.UserID,
			PackageID: body.PackageID,
			Reference: reference,
			Gateway:   body.Gateway,
			Extra:     body.Metadata,
		})
	} else {
		creditType := models.CreditEventType(strings.TrimSpace(body.Type))
		if creditType == "" {
			creditType = models.CreditEventTopup
		}
		if creditType == models.CreditEventDailyBonus {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid credit type"})
			return
		}
		description := strings.TrimSpace(body.Description)
		if description == "" {
			description = "Payment " + reference
		}
		result, errCredit = h.engine.Credit(c.Request.Context(), credits.CreditRequest{
			UserID:      body.UserID,
			Amount:      body.Amount,
			Type:        creditType,
			Description: description,
			Reference:   reference,
			Metadata:    credits.Metadata{Extra: body.Metadata},
		})
	}
	if errCredit != nil {
		api.WriteError(c, errCredit)
		return
	}

	logging.FromContext(c.Request.Context()).WithFields(log.Fields{
		"user_id":   body.UserID,
		"reference": reference,
		"credited":  result.Credited,
		"replayed":  result.Replayed,
	}).Info("payment webhook applied")
	c.JSON(http.StatusOK, result)
}
