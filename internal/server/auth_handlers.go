package server

import (
	"errors"
	"time"

	"calendarapp/internal/cache"
	"calendarapp/internal/featureflags"
	"calendarapp/internal/models"
	"calendarapp/internal/service"
	"calendarapp/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/mo"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

type googleLoginRequest struct {
	Credential string `json:"credential"`
}

type updateProfileRequest struct {
	DisplayName *string `json:"displayName"`
	AvatarURL   *string `json:"avatarUrl"`
}

func invalidBody(c *fiber.Ctx) error {
	return models.RespondWithError(c, fiber.StatusBadRequest,
		models.NewValidationError("Invalid request body"))
}

// Login handles POST /api/auth/login
// @Summary User login
// @Description Authenticate with email and password. Failures are returned with status 200 and only a message.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body loginRequest true "Login credentials"
// @Success 200 {object} models.AuthResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 429 {object} object{error=string}
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}
	if validationFailed(c, validation.Login(req.Email, req.Password)) {
		return nil
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := s.authService.Login(ctx, service.LoginInput{Email: req.Email, Password: req.Password})
	if err != nil {
		return mapServiceError(c, err)
	}
	return s.respondAuth(c, resp)
}

// Register handles POST /api/auth/register
// @Summary Register a local account
// @Description Create an email/password account and sign it in.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body registerRequest true "Registration request"
// @Success 200 {object} models.AuthResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 429 {object} object{error=string}
// @Router /auth/register [post]
func (s *Server) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}
	if validationFailed(c, validation.Register(req.Email, req.Password, req.DisplayName)) {
		return nil
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := s.authService.Register(ctx, service.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		return mapServiceError(c, err)
	}
	return s.respondAuth(c, resp)
}

// GoogleLogin handles POST /api/auth/google
// @Summary Sign in with a Google ID token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body googleLoginRequest true "Google credential"
// @Success 200 {object} models.AuthResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /auth/google [post]
func (s *Server) GoogleLogin(c *fiber.Ctx) error {
	var req googleLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}
	if req.Credential == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewFieldValidationError(map[string]string{"credential": "Credential is required"}))
	}

	if !s.googleAvailable() {
		return c.JSON(models.AuthFailure(service.MsgGoogleNotConfigured))
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := s.authService.GoogleLogin(ctx, req.Credential)
	if err != nil {
		return mapServiceError(c, err)
	}
	return s.respondAuth(c, resp)
}

// Me handles GET /api/auth/me
// @Summary Current user
// @Tags auth
// @Produce json
// @Success 200 {object} models.AuthResponse
// @Failure 401 {object} object{message=string}
// @Router /auth/me [get]
func (s *Server) Me(c *fiber.Ctx) error {
	sess, err := s.authenticate(c)
	if err != nil || sess == nil {
		return notLoggedIn(c)
	}
	s.bindSession(c, sess)

	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := s.authService.CurrentUser(ctx, sess.UserID)
	if err != nil {
		if models.ErrorCode(err) == models.CodeNotFound {
			return notLoggedIn(c)
		}
		return mapServiceError(c, err)
	}
	return c.JSON(resp)
}

func notLoggedIn(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(models.AuthFailure(msgNotLoggedIn))
}

// UpdateProfile handles PUT /api/auth/update
// @Summary Update profile
// @Description Only fields present in the body are changed.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body updateProfileRequest true "Profile fields"
// @Success 200 {object} models.AuthResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /auth/update [put]
func (s *Server) UpdateProfile(c *fiber.Ctx) error {
	var req updateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}
	if validationFailed(c, validation.Profile(req.DisplayName, req.AvatarURL)) {
		return nil
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := s.authService.UpdateProfile(ctx, service.UpdateProfileInput{
		UserID:      currentUserID(c),
		DisplayName: optional(req.DisplayName),
		AvatarURL:   optional(req.AvatarURL),
	})
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(resp)
}

func optional(v *string) mo.Option[string] {
	if v == nil {
		return mo.None[string]()
	}
	return mo.Some(*v)
}

// Logout handles POST /api/auth/logout
// @Summary Sign out
// @Description Revokes the current session token and clears the cookie.
// @Tags auth
// @Produce json
// @Success 200 {object} object{message=string}
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	if raw := s.tokenFromRequest(c); raw != "" {
		if sess, err := s.parseToken(raw); err == nil && sess.JTI != "" {
			err := cache.RevokeToken(c.UserContext(), s.redis, sess.JTI, time.Until(sess.ExpiresAt))
			if err != nil && !errors.Is(err, cache.ErrNoClient) {
				return mapServiceError(c, models.NewInternalError(err))
			}
		}
	}

	s.clearSession(c)
	return c.JSON(fiber.Map{"message": "Logged out"})
}

// AuthSuccess handles GET /api/auth/success, the landing route after the OAuth2 redirect flow.
// @Summary OAuth2 success landing
// @Tags auth
// @Produce json
// @Success 200 {object} models.AuthResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/success [get]
func (s *Server) AuthSuccess(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := s.authService.CurrentUser(ctx, currentUserID(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	resp.Message = service.MsgGoogleLoginSuccess
	return c.JSON(resp)
}

// respondAuth starts a session for successful responses. Failures keep
// status 200 and carry only a message.
func (s *Server) respondAuth(c *fiber.Ctx, resp *models.AuthResponse) error {
	if resp.Succeeded() {
		if err := s.startSession(c, resp); err != nil {
			return mapServiceError(c, models.NewInternalError(err))
		}
	}
	return c.JSON(resp)
}

func (s *Server) googleAvailable() bool {
	return s.authService.GoogleEnabled() && s.featureFlags.Enabled(featureflags.GoogleLogin, 0)
}
