package handler

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ctp-api/internal/models"
)

func uploadRequest(t *testing.T, token, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/images/upload", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestImageLifecycle(t *testing.T) {
	srv := newTestServer(t)
	srv.register(t, "Alice", "alice@x.com")
	token := srv.login(t, "alice@x.com", "secret123")
	content := []byte("\x89PNG fake image bytes")

	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, uploadRequest(t, token, "avatar.png", content))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	upload := decode[models.ImageUpload](t, env)
	assert.Regexp(t, `^images/[0-9a-f-]{36}\.png$`, upload.Key)

	rec, env = srv.do(t, http.MethodGet, "/api/images/"+upload.Key, token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	signed := decode[models.SignedImageURL](t, env)
	assert.Equal(t, upload.Key, signed.Key)

	rec, _ = srv.do(t, http.MethodGet, signed.URL, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, content, rec.Body.Bytes())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	rec, _ = srv.do(t, http.MethodGet, "/api/files/images/forged.token.value", "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Students may upload but not delete.
	rec, _ = srv.do(t, http.MethodDelete, "/api/images/"+upload.Key, token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	admin := srv.login(t, adminEmail, adminPassword)
	rec, _ = srv.do(t, http.MethodDelete, "/api/images/"+upload.Key, admin, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, _ = srv.do(t, http.MethodDelete, "/api/images/"+upload.Key, admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestImageUploadRejectsExtension(t *testing.T) {
	srv := newTestServer(t)
	srv.register(t, "Alice", "alice@x.com")
	token := srv.login(t, "alice@x.com", "secret123")

	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, uploadRequest(t, token, "script.exe", []byte("MZ")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `extension \"exe\" is not allowed`)
}
