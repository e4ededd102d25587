package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/schedulrr/schedulrr-api/internal/models"
	"github.com/schedulrr/schedulrr-api/internal/repository"
	appErrors "github.com/schedulrr/schedulrr-api/pkg/errors"
)

type userRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByClerkID(ctx context.Context, clerkUserID string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	Upsert(ctx context.Context, user *models.User) error
	UpdateUsername(ctx context.Context, id, username string) error
}

type userEventRepository interface {
	ListByOwner(ctx context.Context, userID string) ([]models.Event, error)
}

var usernameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,38}[a-z0-9]$`)

// UpdateUsernameRequest changes the public booking handle.
type UpdateUsernameRequest struct {
	Username string `json:"username" validate:"required"`
}

// SyncUserRequest is the identity webhook payload after unwrapping.
type SyncUserRequest struct {
	ClerkUserID string  `json:"clerkUserId" validate:"required"`
	Email       string  `json:"email" validate:"required,email"`
	Name        string  `json:"name" validate:"required"`
	ImageURL    *string `json:"imageUrl"`
}

// PublicProfile is the visitor-facing view of a user and their events.
type PublicProfile struct {
	Name     string         `json:"name"`
	Username string         `json:"username"`
	ImageURL *string        `json:"imageUrl,omitempty"`
	Events   []models.Event `json:"events"`
}

// UserService manages identity-synced accounts and public profiles.
type UserService struct {
	repo      userRepository
	events    userEventRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates a new user service instance.
func NewUserService(repo userRepository, events userEventRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *UserService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, events: events, cache: cache, validator: validate, logger: logger}
}

// Me returns the account for the current session.
func (s *UserService) Me(ctx context.Context, clerkUserID string) (*models.User, error) {
	user, err := s.repo.FindByClerkID(ctx, clerkUserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// UpdateUsername changes the caller's public handle.
func (s *UserService) UpdateUsername(ctx context.Context, clerkUserID string, req UpdateUsernameRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid username payload")
	}
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if !usernameRe.MatchString(username) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "username must be 3-40 lowercase letters, digits or hyphens")
	}

	user, err := s.Me(ctx, clerkUserID)
	if err != nil {
		return nil, err
	}

	oldUsername := user.Username
	if err := s.repo.UpdateUsername(ctx, user.ID, username); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "username is already taken")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update username")
	}
	user.Username = username

	s.cache.Invalidate(ctx, profileCacheKey(oldUsername))
	s.cache.Invalidate(ctx, profileCacheKey(username))
	return user, nil
}

// PublicProfile returns the booking page data for a username. Private
// events are hidden from visitors.
func (s *UserService) PublicProfile(ctx context.Context, username string) (*PublicProfile, error) {
	key := profileCacheKey(username)
	var cached PublicProfile
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	events, err := s.events.ListByOwner(ctx, user.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load events")
	}

	public := make([]models.Event, 0, len(events))
	for _, event := range events {
		if event.IsPrivate {
			continue
		}
		public = append(public, event)
	}

	profile := &PublicProfile{
		Name:     user.Name,
		Username: user.Username,
		ImageURL: user.ImageURL,
		Events:   public,
	}

	if err := s.cache.Set(ctx, key, profile, 0); err != nil {
		s.logger.Warn("failed to cache public profile", zap.String("username", username), zap.Error(err))
	}
	return profile, nil
}

// SyncUser upserts a local account from an identity-provider webhook.
// Idempotent by the external user id; the username is derived from the
// email on first sync.
func (s *UserService) SyncUser(ctx context.Context, req SyncUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}

	user := &models.User{
		ClerkUserID: req.ClerkUserID,
		Email:       req.Email,
		Name:        req.Name,
		Username:    deriveUsername(req.Email),
		ImageURL:    req.ImageURL,
	}

	err := s.repo.Upsert(ctx, user)
	if errors.Is(err, repository.ErrDuplicate) {
		// Derived username collided with another account; retry once with
		// a random suffix.
		user.Username = fmt.Sprintf("%s-%s", user.Username, uuid.NewString()[:4])
		err = s.repo.Upsert(ctx, user)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sync user")
	}

	synced, err := s.repo.FindByClerkID(ctx, req.ClerkUserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load synced user")
	}

	s.cache.Invalidate(ctx, profileCacheKey(synced.Username))
	return synced, nil
}

func deriveUsername(email string) string {
	local := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		local = email[:at]
	}
	local = strings.ToLower(local)
	cleaned := make([]rune, 0, len(local))
	for _, r := range local {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			cleaned = append(cleaned, r)
		}
	}
	if len(cleaned) == 0 {
		return "user-" + uuid.NewString()[:8]
	}
	return string(cleaned)
}

func profileCacheKey(username string) string {
	return "profile:" + username
}
