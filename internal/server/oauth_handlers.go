package server

import (
	"net/url"
	"strings"
	"time"

	"calendarapp/internal/google"
	"calendarapp/internal/middleware"
	"calendarapp/internal/models"
	"calendarapp/internal/observability"
	"calendarapp/internal/service"

	"github.com/gofiber/fiber/v2"
)

const (
	oauthStateCookie   = "oauth_state"
	oauthStateTTL      = 10 * time.Minute
	frontendCallback   = "/auth/callback"
	oauthMethodLabel   = "google_redirect"
	defaultFrontendURL = "http://localhost:5173"
)

// GoogleAuthorize handles GET /oauth2/authorization/google by redirecting the
// browser to Google's consent page.
func (s *Server) GoogleAuthorize(c *fiber.Ctx) error {
	if s.googleProvider == nil || !s.googleAvailable() {
		return c.JSON(models.AuthFailure(service.MsgGoogleNotConfigured))
	}

	state := google.NewState()
	c.Cookie(&fiber.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		Expires:  time.Now().Add(oauthStateTTL),
		HTTPOnly: true,
		Secure:   s.config.SessionCookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.Redirect(s.googleProvider.LoginURL(state), fiber.StatusFound)
}

// GoogleCallback handles GET /login/oauth2/code/google. It reconciles the
// Google identity, starts a session and sends the browser back to the frontend.
func (s *Server) GoogleCallback(c *fiber.Ctx) error {
	if s.googleProvider == nil || !s.googleAvailable() {
		return c.JSON(models.AuthFailure(service.MsgGoogleNotConfigured))
	}

	expected := c.Cookies(oauthStateCookie)
	c.ClearCookie(oauthStateCookie)

	if errParam := c.Query("error"); errParam != "" {
		return s.redirectToFrontend(c, errParam)
	}
	if expected == "" || c.Query("state") != expected {
		return s.redirectToFrontend(c, "invalid_state")
	}
	code := c.Query("code")
	if code == "" {
		return s.redirectToFrontend(c, "missing_code")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	identity, err := s.googleProvider.Exchange(ctx, code)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "google code exchange failed", "error", err.Error())
		observability.RecordAuthAttempt(oauthMethodLabel, false)
		return s.redirectToFrontend(c, "exchange_failed")
	}

	user, err := s.authService.ReconcileGoogle(ctx, identity)
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "google account reconciliation failed", "error", err.Error())
		observability.RecordAuthAttempt(oauthMethodLabel, false)
		return s.redirectToFrontend(c, "login_failed")
	}

	if err := s.startSession(c, models.NewAuthResponse(user, service.MsgGoogleLoginSuccess)); err != nil {
		return mapServiceError(c, models.NewInternalError(err))
	}
	observability.RecordAuthAttempt(oauthMethodLabel, true)
	return s.redirectToFrontend(c, "")
}

func (s *Server) redirectToFrontend(c *fiber.Ctx, errCode string) error {
	base := strings.TrimRight(s.config.FrontendURL, "/")
	if base == "" {
		base = defaultFrontendURL
	}
	target := base + frontendCallback
	if errCode != "" {
		target += "?" + url.Values{"error": {errCode}}.Encode()
	}
	return c.Redirect(target, fiber.StatusFound)
}
