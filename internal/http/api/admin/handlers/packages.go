package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/paperdesk/creditledger/internal/catalog"
	"github.com/paperdesk/creditledger/internal/http/api"
)

// PackageHandler manages the credit package catalog.
type PackageHandler struct {
	catalog *catalog.Catalog
}

// NewPackageHandler constructs a PackageHandler.
func NewPackageHandler(packages *catalog.Catalog) *PackageHandler {
	return &PackageHandler{catalog: packages}
}

// List returns every package, active ones first.
func (h *PackageHandler) List(c *gin.Context) {
	packages, errList := h.catalog.ListAll(c.Request.Context())
	if errList != nil {
		api.WriteError(c, errList)
		return
	}
	c.JSON(http.StatusOK, gin.H{"packages": packages})
}

// Create adds a new active package.
func (h *PackageHandler) Create(c *gin.Context) {
	var body catalog.CreatePackageInput
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	view, errCreate := h.catalog.Create(c.Request.Context(), body)
	if errCreate != nil {
		api.WriteError(c, errCreate)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// Update changes package fields.
func (h *PackageHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var body catalog.UpdatePackageInput
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	view, errUpdate := h.catalog.Update(c.Request.Context(), id, body)
	if errUpdate != nil {
		api.WriteError(c, errUpdate)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Deactivate stops offering a package.
func (h *PackageHandler) Deactivate(c *gin.Context) {
	h.setActive(c, false)
}

// Activate offers a package again.
func (h *PackageHandler) Activate(c *gin.Context) {
	h.setActive(c, true)
}

func (h *PackageHandler) setActive(c *gin.Context, active bool) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var errSet error
	if active {
		errSet = h.catalog.Activate(c.Request.Context(), id)
	} else {
		errSet = h.catalog.Deactivate(c.Request.Context(), id)
	}
	if errSet != nil {
		api.WriteError(c, errSet)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "is_active": active})
}

// parseIDParam reads a positive integer path parameter, writing 400 when invalid.
func parseIDParam(c *gin.Context, name string) (uint64, bool) {
	id, errParse := strconv.ParseUint(c.Param(name), 10, 64)
	if errParse != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}
