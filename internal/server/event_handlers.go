package server

import (
	"calendarapp/internal/featureflags"
	"calendarapp/internal/ical"
	"calendarapp/internal/models"
	"calendarapp/internal/service"
	"calendarapp/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// ListEvents handles GET /api/events
// @Summary List events
// @Description Events of the user ordered by date. userId defaults to the signed-in user.
// @Tags events
// @Produce json
// @Param userId query int false "Owner id"
// @Success 200 {array} models.EventDTO
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /events [get]
func (s *Server) ListEvents(c *fiber.Ctx) error {
	userID := currentUserID(c)

	if raw := c.Query("userId"); raw != "" {
		requested := c.QueryInt("userId", 0)
		if requested <= 0 {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid user ID"))
		}
		if uint(requested) != userID {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Cannot list events of another user"))
		}
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	events, err := s.eventService.List(ctx, userID)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(events)
}

// CreateEvent handles POST /api/events
// @Summary Create event
// @Tags events
// @Accept json
// @Produce json
// @Param request body models.EventPayload true "Event"
// @Success 200 {object} models.EventDTO
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /events [post]
func (s *Server) CreateEvent(c *fiber.Ctx) error {
	var payload models.EventPayload
	if err := c.BodyParser(&payload); err != nil {
		return invalidBody(c)
	}
	if payload.UserID == 0 {
		payload.UserID = currentUserID(c)
	}
	if validationFailed(c, validation.Event(&payload)) {
		return nil
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	event, err := s.eventService.Create(ctx, service.CreateEventInput{
		ActorID: currentUserID(c),
		Payload: payload,
	})
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(event)
}

// UpdateEvent handles PUT /api/events/:id
// @Summary Replace event
// @Description Every mutable field is overwritten; omitted fields fall back to their defaults.
// @Tags events
// @Accept json
// @Produce json
// @Param id path int true "Event id"
// @Param request body models.EventPayload true "Event"
// @Success 200 {object} models.EventDTO
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /events/{id} [put]
func (s *Server) UpdateEvent(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var payload models.EventPayload
	if err := c.BodyParser(&payload); err != nil {
		return invalidBody(c)
	}
	if validationFailed(c, validation.Event(&payload)) {
		return nil
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	event, err := s.eventService.Update(ctx, service.UpdateEventInput{
		ActorID: currentUserID(c),
		EventID: id,
		Payload: payload,
	})
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(event)
}

// DeleteEvent handles DELETE /api/events/:id
// @Summary Delete event
// @Tags events
// @Param id path int true "Event id"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /events/{id} [delete]
func (s *Server) DeleteEvent(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := s.eventService.Delete(ctx, service.DeleteEventInput{
		ActorID: currentUserID(c),
		EventID: id,
	}); err != nil {
		return mapServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ExportEvents handles GET /api/events/export.ics
// @Summary Export events as iCalendar
// @Tags events
// @Produce text/calendar
// @Success 200 {string} string "iCalendar document"
// @Failure 404 {object} models.ErrorResponse
// @Router /events/export.ics [get]
func (s *Server) ExportEvents(c *fiber.Ctx) error {
	userID := currentUserID(c)
	if !s.featureFlags.Enabled(featureflags.ICalExport, userID) {
		return models.RespondWithError(c, fiber.StatusNotFound,
			models.NewNotFoundError("Feature", featureflags.ICalExport))
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	data, err := s.eventService.Export(ctx, userID)
	if err != nil {
		return mapServiceError(c, err)
	}

	c.Set(fiber.HeaderContentType, ical.ContentType)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="calendar.ics"`)
	return c.Send(data)
}
