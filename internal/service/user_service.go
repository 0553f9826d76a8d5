package service

import (
	"context"
	"strings"

	"blueroom/internal/models"
	"blueroom/internal/repository"
	"blueroom/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

type UserService struct {
	userRepo repository.UserRepository
	images   *ImageService
}

type UpdateProfileInput struct {
	UserID   uint
	Username string
	Email    string
}

func NewUserService(userRepo repository.UserRepository, images *ImageService) *UserService {
	return &UserService{userRepo: userRepo, images: images}
}

func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	return user, asAppError(err)
}

// GetProfile returns the public profile of a user.
func (s *UserService) GetProfile(ctx context.Context, id uint) (models.UserProfile, error) {
	profile, err := s.userRepo.GetProfile(ctx, id)
	return profile, asAppError(err)
}

func (s *UserService) ListUsers(ctx context.Context, limit, offset int) ([]models.User, error) {
	users, err := s.userRepo.List(ctx, limit, offset)
	return users, asAppError(err)
}

func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, asAppError(err)
	}

	if username := strings.TrimSpace(in.Username); username != "" && username != user.Username {
		if err := validation.ValidateUsername(username); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		user.Username = username
	}
	if email := strings.ToLower(strings.TrimSpace(in.Email)); email != "" && email != user.Email {
		if err := validation.ValidateEmail(email); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		user.Email = email
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, asAppError(err)
	}
	return user, nil
}

// ChangePassword replaces the password after checking the current one.
func (s *UserService) ChangePassword(ctx context.Context, userID uint, current, next string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return asAppError(err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(current)); err != nil {
		return models.NewUnauthorizedError("Current password is incorrect")
	}
	if err := validation.ValidatePassword(next); err != nil {
		return models.NewValidationError(err.Error())
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return models.NewInternalError(err)
	}
	user.Password = string(hash)
	return asAppError(s.userRepo.Update(ctx, user))
}

// UpdateAvatar stores a new avatar image and points the user at it.
func (s *UserService) UpdateAvatar(ctx context.Context, userID uint, content []byte) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, asAppError(err)
	}
	url, err := s.images.SaveAvatar(userID, content)
	if err != nil {
		return nil, err
	}
	user.Avatar = url
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, asAppError(err)
	}
	return user, nil
}

func (s *UserService) SetAdmin(ctx context.Context, targetID uint, isAdmin bool) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, targetID)
	if err != nil {
		return nil, asAppError(err)
	}

	user.IsAdmin = isAdmin
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, asAppError(err)
	}
	return user, nil
}
