package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ctp-api/internal/models"
)

func readEvent(t *testing.T, reader *bufio.Reader, name string) models.ScoreboardUpdate {
	t.Helper()
	var event string
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimPrefix(line, "event:")
		case strings.HasPrefix(line, "data:") && event == name:
			var update models.ScoreboardUpdate
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data:")), &update))
			return update
		}
	}
}

func TestScoreboardStreamsGradedUpdates(t *testing.T) {
	srv := newTestServer(t)
	c := setupCourse(t, srv)
	httpSrv := httptest.NewServer(srv.router)
	defer httpSrv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, httpSrv.URL+"/api/ws/activities/"+c.activity.ID+"/scoreboard", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	first := readEvent(t, reader, "scoreboard")
	assert.Equal(t, c.activity.ID, first.ActivityID)
	assert.Empty(t, first.Entries)

	rec, env := srv.do(t, http.MethodPost, "/api/resolutions", c.student, map[string]string{"exercise_id": c.exercise.ID})
	require.Equal(t, http.StatusCreated, rec.Code)
	res := decode[models.Resolution](t, env)
	rec, _ = srv.do(t, http.MethodPut, "/api/resolutions/"+res.ID+"/points", c.professor, map[string]int{"points": 7})
	require.Equal(t, http.StatusOK, rec.Code)

	update := readEvent(t, reader, "scoreboard")
	require.Len(t, update.Entries, 1)
	assert.Equal(t, c.studentID, update.Entries[0].StudentID)
	assert.Equal(t, 7, update.Entries[0].TotalPoints)
}

func TestScoreboardUnknownActivity(t *testing.T) {
	srv := newTestServer(t)
	rec, env := srv.do(t, http.MethodGet, "/api/ws/activities/missing/scoreboard", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "Activity not found: missing", env.Error.Message)
}

func TestScoreboardIgnoresInvalidToken(t *testing.T) {
	srv := newTestServer(t)
	rec, env := srv.do(t, http.MethodGet, "/api/ws/activities/missing/scoreboard", "not-a-jwt", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "Activity not found: missing", env.Error.Message)
}
