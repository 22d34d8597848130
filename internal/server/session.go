package server

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"calendarapp/internal/cache"
	"calendarapp/internal/middleware"
	"calendarapp/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenIssuer        = "calendar-api"
	tokenAudience      = "calendar-client"
	defaultSessionTTL  = 7 * 24 * time.Hour
	defaultCookieName  = "session"
	bearerPrefix       = "Bearer "
	msgNotLoggedIn     = "Not logged in"
	msgTokenRevoked    = "Token has been revoked"
	msgInvalidSession  = "Invalid or expired token"
	msgSessionRequired = "Authorization required"
)

var errTokenRevoked = errors.New("token revoked")

// session is the verified content of a session token.
type session struct {
	UserID    uint
	JTI       string
	ExpiresAt time.Time
}

func (s *Server) sessionTTL() time.Duration {
	if s.config.SessionTTLHours > 0 {
		return time.Duration(s.config.SessionTTLHours) * time.Hour
	}
	return defaultSessionTTL
}

func (s *Server) cookieName() string {
	if s.config.SessionCookieName != "" {
		return s.config.SessionCookieName
	}
	return defaultCookieName
}

// generateToken creates a signed session token for userID.
func (s *Server) generateToken(userID uint) (string, error) {
	if s.config.JWTSecret == "" {
		return "", fmt.Errorf("JWT secret not configured")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub": strconv.FormatUint(uint64(userID), 10),
		"iss": tokenIssuer,
		"aud": tokenAudience,
		"exp": now.Add(s.sessionTTL()).Unix(),
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"jti": uuid.NewString(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}

// parseToken verifies signature, issuer, audience and expiry.
func (s *Server) parseToken(raw string) (*session, error) {
	token, err := jwt.Parse(raw, func(token *jwt.Token) (any, error) {
		return []byte(s.config.JWTSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, errors.New("invalid subject claim")
	}
	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil || userID == 0 {
		return nil, errors.New("invalid user ID in token")
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, errors.New("invalid expiration claim")
	}

	jti, _ := claims["jti"].(string)
	return &session{UserID: uint(userID), JTI: jti, ExpiresAt: exp.Time}, nil
}

// tokenFromRequest prefers the session cookie and falls back to a bearer token.
func (s *Server) tokenFromRequest(c *fiber.Ctx) string {
	if v := c.Cookies(s.cookieName()); v != "" {
		return v
	}
	if h := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(h, bearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(h, bearerPrefix))
	}
	return ""
}

// authenticate resolves the request's session. A missing token yields nil, nil.
func (s *Server) authenticate(c *fiber.Ctx) (*session, error) {
	raw := s.tokenFromRequest(c)
	if raw == "" {
		return nil, nil
	}

	sess, err := s.parseToken(raw)
	if err != nil {
		return nil, err
	}

	if sess.JTI != "" {
		revoked, err := cache.IsTokenRevoked(c.UserContext(), s.redis, sess.JTI)
		if err != nil {
			// The denylist is best effort when Redis is down.
			middleware.Logger.WarnContext(c.UserContext(), "token revocation check failed", "error", err.Error())
		} else if revoked {
			return nil, errTokenRevoked
		}
	}
	return sess, nil
}

func (s *Server) bindSession(c *fiber.Ctx, sess *session) {
	c.Locals("userID", sess.UserID)
	c.SetUserContext(middleware.WithUserID(c.UserContext(), sess.UserID))
}

// AuthRequired returns the authentication middleware
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := s.authenticate(c)
		switch {
		case errors.Is(err, errTokenRevoked):
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError(msgTokenRevoked))
		case err != nil:
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError(msgInvalidSession))
		case sess == nil:
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError(msgSessionRequired))
		}

		s.bindSession(c, sess)
		return c.Next()
	}
}

// startSession issues a token for resp and attaches it as cookie and body field.
func (s *Server) startSession(c *fiber.Ctx, resp *models.AuthResponse) error {
	token, err := s.generateToken(*resp.ID)
	if err != nil {
		return err
	}

	c.Cookie(&fiber.Cookie{
		Name:     s.cookieName(),
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(s.sessionTTL()),
		HTTPOnly: true,
		Secure:   s.config.SessionCookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	resp.Token = token
	return nil
}

func (s *Server) clearSession(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     s.cookieName(),
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   s.config.SessionCookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
