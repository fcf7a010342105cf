package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/paperdesk/creditledger/internal/credits"
	"github.com/paperdesk/creditledger/internal/http/api"
	log "github.com/sirupsen/logrus"
)

// JobHandler triggers the daily jobs on demand.
type JobHandler struct {
	engine *credits.Engine
}

// NewJobHandler constructs a JobHandler.
func NewJobHandler(engine *credits.Engine) *JobHandler {
	return &JobHandler{engine: engine}
}

// jobRequest optionally pins the day; empty means today.
type jobRequest struct {
	Day string `json:"day"`
}

func bindJobDay(c *gin.Context) (credits.Day, bool) {
	var body jobRequest
	if c.Request.ContentLength != 0 {
		if errBind := c.ShouldBindJSON(&body); errBind != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return "", false
		}
	}
	return credits.Day(body.Day), true
}

// Reset resets every account due for the day.
func (h *JobHandler) Reset(c *gin.Context) {
	day, ok := bindJobDay(c)
	if !ok {
		return
	}
	summary, errRun := h.engine.ResetAllDue(c.Request.Context(), day)
	// Per-account failures still return the summary.
	if errRun != nil && summary.Scanned == 0 {
		api.WriteError(c, errRun)
		return
	}
	if errRun != nil {
		log.WithError(errRun).Warn("admin reset: some accounts failed")
	}
	c.JSON(http.StatusOK, summary)
}

// DailyBonus grants the day's bonus to paid users.
func (h *JobHandler) DailyBonus(c *gin.Context) {
	day, ok := bindJobDay(c)
	if !ok {
		return
	}
	summary, errRun := h.engine.GrantDailyBonus(c.Request.Context(), day)
	if errRun != nil && summary.Granted+summary.Replayed+summary.Failed == 0 {
		api.WriteError(c, errRun)
		return
	}
	if errRun != nil {
		log.WithError(errRun).Warn("admin daily bonus: some grants failed")
	}
	c.JSON(http.StatusOK, summary)
}
