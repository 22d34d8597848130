package server

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func multipartAvatar(t *testing.T, field string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(field, "avatar.png")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &body, w.FormDataContentType()
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: uint8(y), B: uint8(x), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestUploadAvatar(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.register(t, "pic@example.com", "secret1", "Pic")

	body, contentType := multipartAvatar(t, "file", pngBytes(t, 320, 200))
	req := httptest.NewRequest(http.MethodPost, "/api/upload/avatar", body)
	req.Header.Set("Content-Type", contentType)
	req.AddCookie(&http.Cookie{Name: "session", Value: token})

	resp, data := env.do(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	url := decode[map[string]string](t, data)["url"]
	require.True(t, strings.HasPrefix(url, "http://api.test/uploads/avatars/"), url)

	// The stored file is served by the static handler.
	resp, data = env.do(t, httptest.NewRequest(http.MethodGet, strings.TrimPrefix(url, "http://api.test"), nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "RIFF", string(data[:4]))
}

func TestUploadAvatar_Rejected(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.register(t, "bad@example.com", "secret1", "Bad")

	tests := []struct {
		name    string
		field   string
		content []byte
	}{
		{"missing file field", "other", pngBytes(t, 10, 10)},
		{"not an image", "file", []byte("plain text pretending to be a picture")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, contentType := multipartAvatar(t, tt.field, tt.content)
			req := httptest.NewRequest(http.MethodPost, "/api/upload/avatar", body)
			req.Header.Set("Content-Type", contentType)
			req.AddCookie(&http.Cookie{Name: "session", Value: token})

			resp, data := env.do(t, req)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(data))
		})
	}

	resp, _ := env.request(t, http.MethodPost, "/api/upload/avatar", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
