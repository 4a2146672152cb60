package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ctp-api/internal/middleware"
	"github.com/noah-isme/ctp-api/internal/models"
	"github.com/noah-isme/ctp-api/internal/service"
	"github.com/noah-isme/ctp-api/pkg/response"
)

// PermissionHandler exposes permission management.
type PermissionHandler struct {
	service *service.PermissionService
}

// NewPermissionHandler constructs a permission handler.
func NewPermissionHandler(svc *service.PermissionService) *PermissionHandler {
	return &PermissionHandler{service: svc}
}

// List godoc
// @Summary List permissions
// @Tags Permissions
// @Produce json
// @Security BearerAuth
// @Param search query string false "Name contains"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /permissions [get]
func (h *PermissionHandler) List(c *gin.Context) {
	filter := models.PermissionFilter{Search: c.Query("search")}
	filter.Page, filter.PageSize = pageParams(c)

	items, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get permission
// @Tags Permissions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Permission ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /permissions/{id} [get]
func (h *PermissionHandler) Get(c *gin.Context) {
	perm, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, perm)
}

// Create godoc
// @Summary Create permission
// @Tags Permissions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.PermissionRequest true "Permission payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /permissions [post]
func (h *PermissionHandler) Create(c *gin.Context) {
	var req service.PermissionRequest
	if !bindJSON(c, &req, "invalid permission payload") {
		return
	}
	perm, err := h.service.Create(c.Request.Context(), req, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, perm)
}

// Update godoc
// @Summary Update permission
// @Tags Permissions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Permission ID"
// @Param payload body service.PermissionRequest true "Permission payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /permissions/{id} [put]
func (h *PermissionHandler) Update(c *gin.Context) {
	var req service.PermissionRequest
	if !bindJSON(c, &req, "invalid permission payload") {
		return
	}
	perm, err := h.service.Update(c.Request.Context(), c.Param("id"), req, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, perm)
}

// Delete godoc
// @Summary Delete permission
// @Description Rejected while the permission is the only one of some role
// @Tags Permissions
// @Security BearerAuth
// @Param id path string true "Permission ID"
// @Success 204 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /permissions/{id} [delete]
func (h *PermissionHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), middleware.Actor(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
