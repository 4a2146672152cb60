package handler

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ctp-api/internal/service"
	"github.com/noah-isme/ctp-api/pkg/response"
)

const scoreboardKeepAlive = 25 * time.Second

// ScoreboardHandler streams live activity scoreboards as server-sent events.
type ScoreboardHandler struct {
	service   *service.ScoreboardService
	keepAlive time.Duration
}

// NewScoreboardHandler constructs a scoreboard handler.
func NewScoreboardHandler(svc *service.ScoreboardService) *ScoreboardHandler {
	return &ScoreboardHandler{service: svc, keepAlive: scoreboardKeepAlive}
}

// Stream godoc
// @Summary Live activity scoreboard
// @Description Sends the current scoreboard, then every update published after grading, as text/event-stream
// @Tags Scoreboard
// @Produce text/event-stream
// @Param id path string true "Activity ID"
// @Success 200 {string} string "event stream"
// @Failure 404 {object} response.Envelope
// @Router /ws/activities/{id}/scoreboard [get]
func (h *ScoreboardHandler) Stream(c *gin.Context) {
	ctx := c.Request.Context()
	activityID := c.Param("id")

	updates, release, err := h.service.Subscribe(ctx, activityID)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer release()

	current, err := h.service.Current(ctx, activityID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("scoreboard", current)
	c.Writer.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case update, ok := <-updates:
			if !ok {
				return false
			}
			c.SSEvent("scoreboard", update)
			return true
		case <-ticker.C:
			c.SSEvent("ping", time.Now().UTC().Format(time.RFC3339))
			return true
		}
	})
}
