package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/paperdesk/creditledger/internal/catalog"
	"github.com/paperdesk/creditledger/internal/credits"
	"github.com/paperdesk/creditledger/internal/http/api"
	"github.com/paperdesk/creditledger/internal/settings"
)

// CreditsHandler serves the balance, spend and history endpoints of the signed-in user.
type CreditsHandler struct {
	engine  *credits.Engine
	catalog *catalog.Catalog
}

// NewCreditsHandler constructs a CreditsHandler.
func NewCreditsHandler(engine *credits.Engine, packages *catalog.Catalog) *CreditsHandler {
	return &CreditsHandler{engine: engine, catalog: packages}
}

// consumeRequest defines the request body for spending credits.
type consumeRequest struct {
	Amount      int64          `json:"amount"`
	Description string         `json:"description"`
	Reference   string         `json:"reference"`
	Feature     string         `json:"feature"`
	ResourceID  string         `json:"resource_id"`
	Units       int64          `json:"units"`
	Metadata    map[string]any `json:"metadata"`
}

// Balance returns the current account snapshot.
func (h *CreditsHandler) Balance(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	account, errBalance := h.engine.GetBalance(c.Request.Context(), userID)
	if errBalance != nil {
		api.WriteError(c, errBalance)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"balance":         account.Balance,
		"daily_limit":     account.DailyLimit,
		"daily_used":      account.DailyUsed,
		"total_earned":    account.TotalEarned,
		"total_spent":     account.TotalSpent,
		"last_reset_date": account.LastResetDate,
	})
}

// Consume spends credits on behalf of the signed-in user.
func (h *CreditsHandler) Consume(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body consumeRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	metadata := credits.Metadata{Extra: body.Metadata}
	feature := strings.TrimSpace(body.Feature)
	resourceID := strings.TrimSpace(body.ResourceID)
	if feature != "" || resourceID != "" || body.Units != 0 {
		metadata.Consumption = &credits.ConsumptionMetadata{Feature: feature, ResourceID: resourceID, Units: body.Units}
	}

	result, errConsume := h.engine.Consume(c.Request.Context(), credits.ConsumeRequest{
		UserID:      userID,
		Amount:      body.Amount,
		Description: body.Description,
		Reference:   body.Reference,
		Metadata:    metadata,
	})
	if errConsume != nil {
		api.WriteError(c, errConsume)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Transactions lists the newest ledger events of the signed-in user.
func (h *CreditsHandler) Transactions(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	limit, ok := queryLimit(c, credits.DefaultTransactionsLimit, settings.TransactionsMaxLimit())
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	events, errList := h.engine.ListTransactions(c.Request.Context(), userID, limit)
	if errList != nil {
		api.WriteError(c, errList)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": events})
}

// Packages lists the packages currently on sale.
func (h *CreditsHandler) Packages(c *gin.Context) {
	packages, errList := h.catalog.ListActive(c.Request.Context())
	if errList != nil {
		api.WriteError(c, errList)
		return
	}
	c.JSON(http.StatusOK, gin.H{"packages": packages})
}
