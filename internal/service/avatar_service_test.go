package service

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"calendarapp/internal/config"
	"calendarapp/internal/models"

	"github.com/chai2010/webp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tinyPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// pngHeader returns a PNG signature and IHDR chunk that claim w x h pixels.
// It carries no pixel data, so only DecodeConfig can read it.
func pngHeader(w, h uint32) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], w)
	binary.BigEndian.PutUint32(ihdr[4:], h)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 2 // truecolor

	chunk := append([]byte("IHDR"), ihdr...)
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestAvatarService_Upload(t *testing.T) {
	dir := t.TempDir()
	svc := NewAvatarService(&config.Config{UploadDir: dir, AvatarMaxUploadMB: 1, PublicBaseURL: "https://api.example.com/"})

	url, err := svc.Upload(context.Background(), UploadAvatarInput{UserID: 1, Filename: "me.png", Content: tinyPNG(t, 600, 400)})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "https://api.example.com/uploads/avatars/"), url)
	require.True(t, strings.HasSuffix(url, ".webp"))

	path := filepath.Join(dir, AvatarSubdir, filepath.Base(url))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	img, err := webp.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, AvatarSizePx, img.Bounds().Dx())
	assert.Equal(t, AvatarSizePx, img.Bounds().Dy())
}

func TestAvatarService_SmallImageKeepsSize(t *testing.T) {
	svc := NewAvatarService(&config.Config{UploadDir: t.TempDir()})
	url, err := svc.Upload(context.Background(), UploadAvatarInput{UserID: 1, Content: tinyPNG(t, 40, 90)})
	require.NoError(t, err)
	assert.Contains(t, url, "/uploads/avatars/")
}

func TestAvatarService_Rejects(t *testing.T) {
	svc := NewAvatarService(&config.Config{UploadDir: t.TempDir(), AvatarMaxUploadMB: 1})
	ctx := context.Background()

	tests := []struct {
		name string
		in   UploadAvatarInput
	}{
		{"no user", UploadAvatarInput{Content: []byte("x")}},
		{"empty", UploadAvatarInput{UserID: 1}},
		{"too large", UploadAvatarInput{UserID: 1, Content: make([]byte, 2*1024*1024)}},
		{"not an image", UploadAvatarInput{UserID: 1, Content: []byte("plain text, not a picture")}},
		{"huge dimensions", UploadAvatarInput{UserID: 1, Content: pngHeader(30000, 30000)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upload(ctx, tt.in)
			assertAppErrorCode(t, err, models.CodeValidation)
		})
	}
}
