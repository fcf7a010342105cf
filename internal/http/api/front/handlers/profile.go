package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/paperdesk/creditledger/internal/credits"
	"github.com/paperdesk/creditledger/internal/http/api"
	"github.com/paperdesk/creditledger/internal/models"
	"gorm.io/gorm"
)

// ProfileHandler handles user profile endpoints.
type ProfileHandler struct {
	db     *gorm.DB
	engine *credits.Engine
}

// NewProfileHandler constructs a ProfileHandler.
func NewProfileHandler(db *gorm.DB, engine *credits.Engine) *ProfileHandler {
	return &ProfileHandler{db: db, engine: engine}
}

// Get returns the current user's profile with plan and credit summary.
func (h *ProfileHandler) Get(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).First(&user, userID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	account, errBalance := h.engine.GetBalance(c.Request.Context(), userID)
	if errBalance != nil {
		api.WriteError(c, errBalance)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":              user.ID,
		"username":        user.Username,
		"email":           user.Email,
		"plan":            user.Plan,
		"plan_expires_at": user.PlanExpiresAt,
		"paid":            user.IsPaid(time.Now()),
		"credits":         account,
		"created_at":      user.CreatedAt,
	})
}
