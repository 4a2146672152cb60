package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ctp-api/internal/middleware"
	"github.com/noah-isme/ctp-api/internal/models"
	"github.com/noah-isme/ctp-api/internal/service"
	"github.com/noah-isme/ctp-api/pkg/response"
)

// ResolutionHandler exposes submissions, grading and group leaderboards.
type ResolutionHandler struct {
	service *service.ResolutionService
}

// NewResolutionHandler constructs a resolution handler.
func NewResolutionHandler(svc *service.ResolutionService) *ResolutionHandler {
	return &ResolutionHandler{service: svc}
}

// List godoc
// @Summary List resolutions
// @Description Newest submissions first
// @Tags Resolutions
// @Produce json
// @Security BearerAuth
// @Param student_id query string false "Student filter"
// @Param exercise_id query string false "Exercise filter"
// @Param status query string false "PENDING or COMPLETED"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /resolutions [get]
func (h *ResolutionHandler) List(c *gin.Context) {
	filter := models.ResolutionFilter{
		StudentID:  c.Query("student_id"),
		ExerciseID: c.Query("exercise_id"),
		Status:     models.ResolutionStatus(strings.ToUpper(c.Query("status"))),
	}
	filter.Page, filter.PageSize = pageParams(c)

	items, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get resolution
// @Tags Resolutions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Resolution ID"
// @Success 200 {object} response.Envelope
// @Router /resolutions/{id} [get]
func (h *ResolutionHandler) Get(c *gin.Context) {
	res, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// Submit godoc
// @Summary Submit resolution
// @Description Stores the next attempt for the exercise in PENDING state. student_id defaults to the caller.
// @Tags Resolutions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.SubmitResolutionRequest true "Submission"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /resolutions [post]
func (h *ResolutionHandler) Submit(c *gin.Context) {
	var req service.SubmitResolutionRequest
	if !bindJSON(c, &req, "invalid resolution payload") {
		return
	}
	res, err := h.service.Submit(c.Request.Context(), middleware.PrincipalFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// AssignPoints godoc
// @Summary Grade resolution
// @Description Sets points and marks the resolution COMPLETED. professor_id defaults to the caller.
// @Tags Resolutions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Resolution ID"
// @Param payload body service.AssignPointsRequest true "Points"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /resolutions/{id}/points [put]
func (h *ResolutionHandler) AssignPoints(c *gin.Context) {
	var req service.AssignPointsRequest
	if !bindJSON(c, &req, "invalid points payload") {
		return
	}
	res, err := h.service.AssignPoints(c.Request.Context(), middleware.PrincipalFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// Delete godoc
// @Summary Delete resolution
// @Tags Resolutions
// @Security BearerAuth
// @Param id path string true "Resolution ID"
// @Success 204 {object} response.Envelope
// @Router /resolutions/{id} [delete]
func (h *ResolutionHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Leaderboard godoc
// @Summary Group leaderboard
// @Description Top students of the group by COMPLETED points
// @Tags Leaderboard
// @Produce json
// @Security BearerAuth
// @Param name path string true "Group name"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /leaderboard/group/{name} [get]
func (h *ResolutionHandler) Leaderboard(c *gin.Context) {
	board, err := h.service.Leaderboard(c.Request.Context(), c.Param("name"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, board)
}

// ExportLeaderboard godoc
// @Summary Export group leaderboard
// @Tags Leaderboard
// @Produce octet-stream
// @Security BearerAuth
// @Param name path string true "Group name"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /leaderboard/group/{name}/export [get]
func (h *ResolutionHandler) ExportLeaderboard(c *gin.Context) {
	file, err := h.service.Export(c.Request.Context(), c.Param("name"), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", file.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Content)
}
