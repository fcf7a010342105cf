package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/paperdesk/creditledger/internal/credits"
	"github.com/paperdesk/creditledger/internal/http/api"
	"github.com/paperdesk/creditledger/internal/models"
)

// AccountHandler inspects and adjusts user credit accounts.
type AccountHandler struct {
	engine *credits.Engine
}

// NewAccountHandler constructs an AccountHandler.
func NewAccountHandler(engine *credits.Engine) *AccountHandler {
	return &AccountHandler{engine: engine}
}

// topupRequest defines a manual credit by an admin.
type topupRequest struct {
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
	Reference   string `json:"reference"`
}

// Get returns an account with its latest events.
func (h *AccountHandler) Get(c *gin.Context) {
	userID, ok := parseIDParam(c, "user_id")
	if !ok {
		return
	}
	limit := credits.DefaultTransactionsLimit
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, errParse := strconv.Atoi(raw)
		if errParse != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	account, errGet := h.engine.GetAccount(c.Request.Context(), userID)
	if errGet != nil {
		api.WriteError(c, errGet)
		return
	}
	events, errList := h.engine.ListTransactions(c.Request.Context(), userID, limit)
	if errList != nil {
		api.WriteError(c, errList)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": account, "transactions": events})
}

// Reconcile checks the account against its event log.
func (h *AccountHandler) Reconcile(c *gin.Context) {
	userID, ok := parseIDParam(c, "user_id")
	if !ok {
		return
	}
	rec, errRec := h.engine.Reconcile(c.Request.Context(), userID)
	if errRec != nil {
		api.WriteError(c, errRec)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Topup credits an account manually.
func (h *AccountHandler) Topup(c *gin.Context) {
	userID, ok := parseIDParam(c, "user_id")
	if !ok {
		return
	}
	var body topupRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	description := strings.TrimSpace(body.Description)
	if description == "" {
		description = "Manual top-up"
	}
	result, errCredit := h.engine.Credit(c.Request.Context(), credits.CreditRequest{
		UserID:      userID,
		Amount:      body.Amount,
		Type:        models.CreditEventTopup,
		Description: description,
		Reference:   body.Reference,
		Metadata:    credits.Metadata{Extra: map[string]any{"admin_id": getAdminID(c)}},
	})
	if errCredit != nil {
		api.WriteError(c, errCredit)
		return
	}
	c.JSON(http.StatusOK, result)
}

// getAdminID extracts the authenticated admin ID from gin context.
func getAdminID(c *gin.Context) uint64 {
	if v, ok := c.Get("adminID"); ok {
		if id, okID := v.(uint64); okID {
			return id
		}
	}
	return 0
}
