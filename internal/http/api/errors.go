// Package api holds helpers shared by the front, admin and webhook route groups.
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/paperdesk/creditledger/internal/catalog"
	"github.com/paperdesk/creditledger/internal/credits"
	"github.com/paperdesk/creditledger/internal/logging"
	log "github.com/sirupsen/logrus"
)

// errorStatus maps domain errors to an HTTP status and client message.
var errorStatus = []struct {
	err     error
	status  int
	message string
}{
	{credits.ErrInsufficientCredits, http.StatusPaymentRequired, "insufficient credits"},
	{credits.ErrInvalidAmount, http.StatusBadRequest, "amount must be a positive integer"},
	{credits.ErrInvalidEventType, http.StatusBadRequest, "invalid credit type"},
	{credits.ErrInvalidMetadata, http.StatusBadRequest, "invalid metadata"},
	{credits.ErrInvalidUser, http.StatusBadRequest, "invalid user id"},
	{credits.ErrInvalidDay, http.StatusBadRequest, "day must be YYYY-MM-DD"},
	{credits.ErrReservedReference, http.StatusBadRequest, "reference is reserved"},
	{credits.ErrAccountNotFound, http.StatusNotFound, "credit account not found"},
	{credits.ErrPackageNotFound, http.StatusNotFound, "package not found"},
	{catalog.ErrPackageNotFound, http.StatusNotFound, "package not found"},
	{credits.ErrDuplicateReference, http.StatusConflict, "reference already used"},
	{credits.ErrPackageInactive, http.StatusConflict, "package is not active"},
	{catalog.ErrPackageInUse, http.StatusConflict, "package pricing is locked by existing purchases"},
}

// WriteError writes the JSON error response for err and logs server-side failures.
func WriteError(c *gin.Context, err error) {
	var validation catalog.ValidationError
	if errors.As(err, &validation) {
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Field + " " + validation.Message})
		return
	}
	for _, mapping := range errorStatus {
		if errors.Is(err, mapping.err) {
			c.JSON(mapping.status, gin.H{"error": mapping.message})
			return
		}
	}
	logging.FromContext(c.Request.Context()).
		WithError(err).
		WithFields(log.Fields{"path": c.FullPath(), "retryable": credits.IsRetryable(err)}).
		Error("credit operation failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
