package repository

import (
	"context"
	"errors"

	"calendarapp/internal/cache"
	"calendarapp/internal/models"
	"calendarapp/internal/observability"

	"gorm.io/gorm"
)

const usersTable = "users"

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByGoogleID(ctx context.Context, googleID string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, limit, offset int) ([]models.User, error)
	// Transaction runs fn against a repository bound to a single DB transaction.
	Transaction(ctx context.Context, fn func(repo UserRepository) error) error
}

type userRepository struct {
	db     *gorm.DB
	logger *observability.RepoLogger
	// stale collects user ids whose cache entries are dropped once the
	// surrounding transaction commits. It is nil outside Transaction.
	stale *[]uint
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db, logger: observability.NewRepoLogger(usersTable)}
}

// GetByID loads a user through the profile cache. Cached copies never carry
// the password hash, so callers that verify credentials use GetByEmail.
func (r *userRepository) GetByID(ctx context.Context, id uint) (user *models.User, err error) {
	ctx, end := startSpan(ctx, r.db, "GetByID", usersTable)
	defer func() { end(err) }()

	var u models.User
	load := func() error {
		if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("User", id)
			}
			return models.NewInternalError(err)
		}
		return nil
	}

	// Uncommitted rows must not reach the shared cache.
	if r.stale != nil {
		err = load()
	} else {
		err = cache.Aside(ctx, cache.UserKey(id), &u, cache.UserTTL, load)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) invalidate(ctx context.Context, id uint) {
	if r.stale != nil {
		*r.stale = append(*r.stale, id)
		return
	}
	cache.InvalidateUser(ctx, id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (user *models.User, err error) {
	ctx, end := startSpan(ctx, r.db, "GetByEmail", usersTable)
	defer func() { end(err) }()

	return r.findOne(ctx, "email = ?", email)
}

func (r *userRepository) GetByGoogleID(ctx context.Context, googleID string) (user *models.User, err error) {
	ctx, end := startSpan(ctx, r.db, "GetByGoogleID", usersTable)
	defer func() { end(err) }()

	return r.findOne(ctx, "google_id = ?", googleID)
}

// findOne returns nil, nil when no row matches.
func (r *userRepository) findOne(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where(query, arg).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) (err error) {
	ctx, end := startSpan(ctx, r.db, "Create", usersTable)
	defer func() { end(err) }()

	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("Email already exists", err)
		}
		r.logger.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	r.logger.LogCreate(ctx, map[string]interface{}{"user_id": user.ID, "provider": user.AuthProvider})
	return nil
}

// Update writes the mutable profile and identity columns. The password
// column is left alone so that cached copies cannot clear it.
func (r *userRepository) Update(ctx context.Context, user *models.User) (err error) {
	ctx, end := startSpan(ctx, r.db, "Update", usersTable)
	defer func() { end(err) }()

	res := r.db.WithContext(ctx).Model(user).
		Select("DisplayName", "AvatarURL", "GoogleID", "UpdatedAt").
		Updates(user)
	if res.Error != nil {
		if isUniqueConstraintError(res.Error) {
			return models.NewConflictError("Google account already linked", res.Error)
		}
		r.logger.LogError(ctx, res.Error, "update")
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", user.ID)
	}
	r.invalidate(ctx, user.ID)
	r.logger.LogUpdate(ctx, map[string]interface{}{"user_id": user.ID})
	return nil
}

// Delete removes the user and, in the same transaction, every event they own.
func (r *userRepository) Delete(ctx context.Context, id uint) (err error) {
	ctx, end := startSpan(ctx, r.db, "Delete", usersTable)
	defer func() { end(err) }()

	var deletedEvents int64
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		events := tx.Where("user_id = ?", id).Delete(&models.Event{})
		if events.Error != nil {
			return models.NewInternalError(events.Error)
		}
		deletedEvents = events.RowsAffected

		res := tx.Delete(&models.User{}, id)
		if res.Error != nil {
			return models.NewInternalError(res.Error)
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("User", id)
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.invalidate(ctx, id)
	r.logger.LogDelete(ctx, map[string]interface{}{"user_id": id, "events": deletedEvents})
	return nil
}

func (r *userRepository) List(ctx context.Context, limit, offset int) (users []models.User, err error) {
	ctx, end := startSpan(ctx, r.db, "List", usersTable)
	defer func() { end(err) }()

	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if err := r.db.WithContext(ctx).Order("id ASC").Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

// Transaction runs fn in one DB transaction. Cache invalidations made by fn
// are applied only after the commit.
func (r *userRepository) Transaction(ctx context.Context, fn func(repo UserRepository) error) error {
	var stale []uint
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&userRepository{db: tx, logger: r.logger, stale: &stale})
	})
	if err != nil {
		return err
	}
	for _, id := range stale {
		r.invalidate(ctx, id)
	}
	return nil
}
