package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"calendarapp/internal/config"
	"calendarapp/internal/models"

	"github.com/chai2010/webp"
	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultAvatarUploadDir  = "uploads"
	DefaultAvatarMaxSizeMB  = 5
	AvatarSizePx            = 256
	AvatarWebPQuality       = 80
	AvatarSubdir            = "avatars"
	UploadsRoutePrefix      = "/uploads"
	// MaxAvatarPixels caps width*height, checked before decoding.
	MaxAvatarPixels = 40_000_000
	defaultAvatarPublicBase = "http://localhost:8080"
)

type UploadAvatarInput struct {
	UserID   uint
	Filename string
	Content  []byte
}

// AvatarService normalizes uploaded avatars to square WebP files on disk.
type AvatarService struct {
	uploadDir          string
	publicBaseURL      string
	maxUploadSizeBytes int64
}

func NewAvatarService(cfg *config.Config) *AvatarService {
	uploadDir := DefaultAvatarUploadDir
	maxUploadSizeMB := DefaultAvatarMaxSizeMB
	publicBase := defaultAvatarPublicBase

	if cfg != nil {
		if cfg.UploadDir != "" {
			uploadDir = cfg.UploadDir
		}
		if cfg.AvatarMaxUploadMB > 0 {
			maxUploadSizeMB = cfg.AvatarMaxUploadMB
		}
		if cfg.PublicBaseURL != "" {
			publicBase = cfg.PublicBaseURL
		}
	}

	return &AvatarService{
		uploadDir:          uploadDir,
		publicBaseURL:      strings.TrimRight(publicBase, "/"),
		maxUploadSizeBytes: int64(maxUploadSizeMB) * 1024 * 1024,
	}
}

// UploadDir is the directory served under /uploads.
func (s *AvatarService) UploadDir() string {
	return s.uploadDir
}

// Upload stores the avatar and returns its public URL.
func (s *AvatarService) Upload(ctx context.Context, in UploadAvatarInput) (string, error) {
	if in.UserID == 0 {
		return "", models.NewValidationError("Invalid user")
	}
	if len(in.Content) == 0 {
		return "", models.NewValidationError("No file uploaded")
	}
	if int64(len(in.Content)) > s.maxUploadSizeBytes {
		return "", models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxUploadSizeBytes/(1024*1024)))
	}

	if !isAllowedAvatarMIME(http.DetectContentType(in.Content)) {
		return "", models.NewValidationError("Invalid image type")
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(in.Content))
	if err != nil {
		return "", models.NewValidationError("Invalid image file")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxAvatarPixels {
		return "", models.NewValidationError("Image dimensions too large")
	}

	decoded, _, err := image.Decode(bytes.NewReader(in.Content))
	if err != nil {
		return "", models.NewValidationError("Invalid image file")
	}

	square := resizeSquare(cropCenterSquare(decoded), AvatarSizePx)

	var buf bytes.Buffer
	if err := webp.Encode(&buf, square, &webp.Options{Quality: AvatarWebPQuality}); err != nil {
		return "", models.NewInternalError(err)
	}

	name := uuid.NewString() + ".webp"
	path := filepath.Join(s.uploadDir, AvatarSubdir, name)
	if err := writeFile(path, buf.Bytes()); err != nil {
		return "", models.NewInternalError(err)
	}

	slog.InfoContext(ctx, "avatar stored",
		slog.Uint64("user_id", uint64(in.UserID)),
		slog.String("file", name),
		slog.String("original", in.Filename),
	)
	return fmt.Sprintf("%s%s/%s/%s", s.publicBaseURL, UploadsRoutePrefix, AvatarSubdir, name), nil
}

func isAllowedAvatarMIME(contentType string) bool {
	switch contentType {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func cropCenterSquare(src image.Image) image.Image {
	b := src.Bounds()
	side := b.Dx()
	if b.Dy() < side {
		side = b.Dy()
	}
	if side <= 0 {
		return src
	}

	offset := image.Point{X: b.Min.X + (b.Dx()-side)/2, Y: b.Min.Y + (b.Dy()-side)/2}
	dst := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Draw(dst, dst.Bounds(), src, offset, draw.Src)
	return dst
}

func resizeSquare(src image.Image, size int) image.Image {
	if src.Bounds().Dx() <= size {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)
	return dst
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
