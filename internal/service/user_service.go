package service

import (
	"context"
	"fmt"

	"playchrono/internal/domain"
	"playchrono/internal/models"

	"github.com/rs/zerolog"
)

type UserService struct {
	repo   domain.UserRepository
	logger *zerolog.Logger
}

func NewUserService(repo domain.UserRepository, logger *zerolog.Logger) *UserService {
	return &UserService{repo: repo, logger: logger}
}

func (s *UserService) Captains(ctx context.Context) ([]models.User, error) {
	captains, err := s.repo.GetUsersByRole(ctx, models.RoleCaptain)
	if err != nil {
		return nil, fmt.Errorf("list captains: %w", err)
	}
	return captains, nil
}

// EmailExists reports whether an account uses email.
func (s *UserService) EmailExists(ctx context.Context, email string) (bool, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return false, err
	}
	exists, err := s.repo.EmailExists(ctx, email)
	if err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return exists, nil
}
