package server

import (
	"io"

	"calendarapp/internal/featureflags"
	"calendarapp/internal/models"
	"calendarapp/internal/service"

	"github.com/gofiber/fiber/v2"
)

// UploadAvatar handles POST /api/upload/avatar
// @Summary Upload avatar
// @Description Stores the image as a square WebP and returns its public URL. The profile is not changed.
// @Tags upload
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Image file"
// @Success 200 {object} object{url=string}
// @Failure 400 {object} models.ErrorResponse
// @Router /upload/avatar [post]
func (s *Server) UploadAvatar(c *fiber.Ctx) error {
	userID := currentUserID(c)
	if !s.featureFlags.Enabled(featureflags.AvatarUpload, userID) {
		return models.RespondWithError(c, fiber.StatusNotFound,
			models.NewNotFoundError("Feature", featureflags.AvatarUpload))
	}

	header, err := c.FormFile("file")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("No file uploaded"))
	}

	file, err := header.Open()
	if err != nil {
		return mapServiceError(c, models.NewInternalError(err))
	}
	defer func() { _ = file.Close() }()

	content, err := io.ReadAll(file)
	if err != nil {
		return mapServiceError(c, models.NewInternalError(err))
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	url, err := s.avatarService.Upload(ctx, service.UploadAvatarInput{
		UserID:   userID,
		Filename: header.Filename,
		Content:  content,
	})
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"url": url})
}
