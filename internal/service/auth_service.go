package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"calendarapp/internal/models"
	"calendarapp/internal/observability"
	"calendarapp/internal/repository"

	"github.com/samber/mo"
	"golang.org/x/crypto/bcrypt"
)

// Messages returned in message-only auth responses.
const (
	MsgInvalidCredentials   = "Invalid email or password"
	MsgEmailExists          = "Email already exists"
	MsgInvalidGoogleToken   = "Invalid Google token"
	MsgGoogleNotConfigured  = "Google login is not configured"
	MsgLoginSuccess         = "Login successful!"
	MsgRegisterSuccess      = "Registration successful!"
	MsgGoogleLoginSuccess   = "Google login successful!"
	MsgProfileUpdated       = "Profile updated successfully!"
	MsgCurrentUser          = "Authenticated"
	authMethodPassword      = "password"
	authMethodRegister      = "register"
	authMethodGoogle        = "google"
	unexpectedFailurePrefix = "An error occurred during "
)

type LoginInput struct {
	Email    string
	Password string
}

type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
}

type UpdateProfileInput struct {
	UserID      uint
	DisplayName mo.Option[string]
	AvatarURL   mo.Option[string]
}

// AuthService handles local accounts, Google sign-in and profile changes.
type AuthService struct {
	userRepo   repository.UserRepository
	verifier   IdentityVerifier
	bcryptCost int
}

// NewAuthService builds the service. verifier may be nil when Google sign-in
// is not configured.
func NewAuthService(userRepo repository.UserRepository, verifier IdentityVerifier) *AuthService {
	return &AuthService{userRepo: userRepo, verifier: verifier, bcryptCost: bcrypt.DefaultCost}
}

// NormalizeEmail lower-cases and trims an address before it is stored or looked up.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (*models.AuthResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, NormalizeEmail(in.Email))
	if err != nil {
		return s.unexpected(ctx, "login", err), nil
	}

	if user == nil || !user.HasPassword() ||
		bcrypt.CompareHashAndPassword([]byte(*user.Password), []byte(in.Password)) != nil {
		observability.RecordAuthAttempt(authMethodPassword, false)
		return models.AuthFailure(MsgInvalidCredentials), nil
	}

	observability.RecordAuthAttempt(authMethodPassword, true)
	return models.NewAuthResponse(user, MsgLoginSuccess), nil
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.AuthResponse, error) {
	email := NormalizeEmail(in.Email)

	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return s.unexpected(ctx, "registration", err), nil
	}
	if existing != nil {
		observability.RecordAuthAttempt(authMethodRegister, false)
		return models.AuthFailure(MsgEmailExists), nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return s.unexpected(ctx, "registration", err), nil
	}
	hashed := string(hash)

	user := &models.User{
		Email:        email,
		Password:     &hashed,
		DisplayName:  strings.TrimSpace(in.DisplayName),
		AuthProvider: models.AuthProviderLocal,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		// Lost a race with a concurrent registration for the same address.
		if models.ErrorCode(err) == models.CodeConflict {
			observability.RecordAuthAttempt(authMethodRegister, false)
			return models.AuthFailure(MsgEmailExists), nil
		}
		return s.unexpected(ctx, "registration", err), nil
	}

	observability.RecordAuthAttempt(authMethodRegister, true)
	return models.NewAuthResponse(user, MsgRegisterSuccess), nil
}

// GoogleEnabled reports whether ID-token sign-in is available.
func (s *AuthService) GoogleEnabled() bool {
	return s.verifier != nil
}

func (s *AuthService) GoogleLogin(ctx context.Context, credential string) (*models.AuthResponse, error) {
	if s.verifier == nil {
		return models.AuthFailure(MsgGoogleNotConfigured), nil
	}

	identity, err := s.verifier.Verify(ctx, credential)
	if err != nil {
		slog.WarnContext(ctx, "google token rejected", slog.String("error", err.Error()))
		observability.RecordAuthAttempt(authMethodGoogle, false)
		return models.AuthFailure(MsgInvalidGoogleToken), nil
	}

	user, err := s.ReconcileGoogle(ctx, identity)
	if err != nil {
		return s.unexpected(ctx, "Google login", err), nil
	}

	observability.RecordAuthAttempt(authMethodGoogle, true)
	return models.NewAuthResponse(user, MsgGoogleLoginSuccess), nil
}

// ReconcileGoogle maps a verified Google identity onto exactly one local user.
// The lookup order is google_id, then email (linking the account), then a new
// google-provider account. All steps share one transaction.
func (s *AuthService) ReconcileGoogle(ctx context.Context, identity GoogleIdentity) (*models.User, error) {
	if strings.TrimSpace(identity.Subject) == "" {
		return nil, models.NewValidationError("Google identity has no subject")
	}

	var result *models.User
	err := s.userRepo.Transaction(ctx, func(repo repository.UserRepository) error {
		user, err := repo.GetByGoogleID(ctx, identity.Subject)
		if err != nil {
			return err
		}
		if user != nil {
			result = user
			return nil
		}

		email := NormalizeEmail(identity.Email)
		if email == "" {
			return models.NewValidationError("Google identity has no email")
		}

		user, err = repo.GetByEmail(ctx, email)
		if err != nil {
			return err
		}
		if user != nil {
			subject := identity.Subject
			user.GoogleID = &subject
			if user.AvatarURL == "" {
				user.AvatarURL = identity.Picture
			}
			if user.DisplayName == "" {
				user.DisplayName = identity.Name
			}
			if err := repo.Update(ctx, user); err != nil {
				return err
			}
			slog.InfoContext(ctx, "linked google account", slog.Uint64("user_id", uint64(user.ID)))
			result = user
			return nil
		}

		subject := identity.Subject
		user = &models.User{
			Email:        email,
			DisplayName:  identity.Name,
			AvatarURL:    identity.Picture,
			GoogleID:     &subject,
			AuthProvider: models.AuthProviderGoogle,
		}
		if err := repo.Create(ctx, user); err != nil {
			return err
		}
		result = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateProfile overwrites only the fields that are present in the input.
func (s *AuthService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.AuthResponse, error) {
	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	if name, ok := in.DisplayName.Get(); ok {
		user.DisplayName = strings.TrimSpace(name)
	}
	if avatar, ok := in.AvatarURL.Get(); ok {
		user.AvatarURL = strings.TrimSpace(avatar)
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return models.NewAuthResponse(user, MsgProfileUpdated), nil
}

// CurrentUser returns the profile of the signed-in user.
func (s *AuthService) CurrentUser(ctx context.Context, userID uint) (*models.AuthResponse, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return models.NewAuthResponse(user, MsgCurrentUser), nil
}

func (s *AuthService) unexpected(ctx context.Context, op string, err error) *models.AuthResponse {
	slog.ErrorContext(ctx, "auth operation failed", slog.String("operation", op), slog.String("error", err.Error()))
	return models.AuthFailure(unexpectedFailurePrefix + op + ": " + describe(err))
}

// describe prefers the underlying cause of an AppError so the message is useful.
func describe(err error) string {
	var appErr *models.AppError
	if errors.As(err, &appErr) && appErr.Err != nil {
		return fmt.Sprintf("%s: %v", appErr.Message, appErr.Err)
	}
	return err.Error()
}
