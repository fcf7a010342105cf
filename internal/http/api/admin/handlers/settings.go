package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/paperdesk/creditledger/internal/settings"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SettingsHandler reads and writes runtime settings.
type SettingsHandler struct {
	db *gorm.DB
}

// NewSettingsHandler constructs a SettingsHandler.
func NewSettingsHandler(db *gorm.DB) *SettingsHandler {
	return &SettingsHandler{db: db}
}

// List returns the stored settings.
func (h *SettingsHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"settings": settings.All()})
}

// Put stores the raw JSON body as the value of :key.
func (h *SettingsHandler) Put(c *gin.Context) {
	key := c.Param("key")
	body, errRead := io.ReadAll(io.LimitReader(c.Request.Body, 64<<10))
	if errRead != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read body failed"})
		return
	}
	if errSave := settings.Save(c.Request.Context(), h.db, key, json.RawMessage(body)); errSave != nil {
		if errors.Is(errSave, settings.ErrUnknownKey) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown setting"})
			return
		}
		if errors.Is(errSave, settings.ErrInvalidValue) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "value must be valid json"})
			return
		}
		log.WithError(errSave).Error("save setting failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save setting failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "value": json.RawMessage(body)})
}
