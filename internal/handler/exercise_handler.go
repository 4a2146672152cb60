package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ctp-api/internal/models"
	"github.com/noah-isme/ctp-api/internal/service"
	"github.com/noah-isme/ctp-api/pkg/response"
)

// ExerciseHandler exposes exercise endpoints.
type ExerciseHandler struct {
	service *service.ExerciseService
}

// NewExerciseHandler constructs an exercise handler.
func NewExerciseHandler(svc *service.ExerciseService) *ExerciseHandler {
	return &ExerciseHandler{service: svc}
}

// List godoc
// @Summary List exercises
// @Tags Exercises
// @Produce json
// @Security BearerAuth
// @Param activity_id query string false "Activity filter"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /exercises [get]
func (h *ExerciseHandler) List(c *gin.Context) {
	filter := models.ExerciseFilter{ActivityID: c.Query("activity_id")}
	filter.Page, filter.PageSize = pageParams(c)

	exercises, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, exercises, pagination)
}

// Get godoc
// @Summary Get exercise
// @Tags Exercises
// @Produce json
// @Security BearerAuth
// @Param id path string true "Exercise ID"
// @Success 200 {object} response.Envelope
// @Router /exercises/{id} [get]
func (h *ExerciseHandler) Get(c *gin.Context) {
	exercise, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, exercise)
}

// Create godoc
// @Summary Create exercise
// @Tags Exercises
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.ExerciseRequest true "Exercise payload"
// @Success 201 {object} response.Envelope
// @Router /exercises [post]
func (h *ExerciseHandler) Create(c *gin.Context) {
	var req service.ExerciseRequest
	if !bindJSON(c, &req, "invalid exercise payload") {
		return
	}
	exercise, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, exercise)
}

// Update godoc
// @Summary Update exercise
// @Tags Exercises
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Exercise ID"
// @Param payload body service.ExerciseRequest true "Exercise payload"
// @Success 200 {object} response.Envelope
// @Router /exercises/{id} [put]
func (h *ExerciseHandler) Update(c *gin.Context) {
	var req service.ExerciseRequest
	if !bindJSON(c, &req, "invalid exercise payload") {
		return
	}
	exercise, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, exercise)
}

// Delete godoc
// @Summary Delete exercise
// @Tags Exercises
// @Security BearerAuth
// @Param id path string true "Exercise ID"
// @Success 204 {object} response.Envelope
// @Router /exercises/{id} [delete]
func (h *ExerciseHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
