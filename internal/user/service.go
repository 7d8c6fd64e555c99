package user

import (
	"context"
	"errors"
	"fmt"

	"mijob/internal/auth"
	"mijob/internal/logger"
)

var (
	ErrEmailExists        = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidRole        = errors.New("role cannot be chosen at registration")
)

// WelcomeSender is the notification collaborator used after sign-up.
type WelcomeSender interface {
	SendWelcome(ctx context.Context, to, name, role string) error
}

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error)
	Login(ctx context.Context, req LoginRequest) (*AuthResponse, error)
	GetByID(ctx context.Context, userID int) (*User, error)
	Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error)
}

type service struct {
	repo      Repository
	jwtSecret string
	welcome   WelcomeSender
}

func NewService(repo Repository, jwtSecret string, welcome WelcomeSender) Service {
	return &service{
		repo:      repo,
		jwtSecret: jwtSecret,
		welcome:   welcome,
	}
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	if !req.Role.SelfRegistrable() {
		return nil, ErrInvalidRole
	}

	exists, err := s.repo.EmailExists(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return nil, ErrEmailExists
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	u, err := s.repo.Create(ctx, req.Name, req.Email, passwordHash, req.Role)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	if s.welcome != nil {
		if err := s.welcome.SendWelcome(ctx, u.Email, u.Name, string(u.Role)); err != nil {
			logger.Warn("welcome email not queued", "user_id", u.ID, "error", err.Error())
		}
	}

	return s.issue(u)
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	u, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !auth.CheckPassword(u.PasswordHash, req.Password) {
		return nil, ErrInvalidCredentials
	}
	return s.issue(u)
}

func (s *service) GetByID(ctx context.Context, userID int) (*User, error) {
	return s.repo.FindByID(ctx, userID)
}

// Refresh issues a new access token. Role and plan are re-read so a changed
// account is reflected immediately.
func (s *service) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	claims, err := auth.ParseRefreshToken(refreshToken, s.jwtSecret)
	if err != nil {
		return nil, err
	}

	u, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}

	access, err := auth.GenerateAccessToken(u.ID, u.Email, string(u.Role), s.jwtSecret)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{AccessToken: access, User: u}, nil
}

func (s *service) issue(u *User) (*AuthResponse, error) {
	pair, err := auth.IssueTokens(u.ID, u.Email, string(u.Role), s.jwtSecret)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken, User: u}, nil
}
