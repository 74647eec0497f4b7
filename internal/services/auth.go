package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"task-tracker/backend/internal/models"
	"task-tracker/backend/internal/repositories"

	"github.com/gofrs/uuid"
)

type TokenPair struct {
	Access    string `json:"access"`
	Refresh   string `json:"refresh"`
	TokenType string `json:"token_type"`
	ExpiresIn int64  `json:"expires_in"`
}

type AuthService interface {
	Login(ctx context.Context, username, password string) (TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	Authenticate(ctx context.Context, accessToken string) (uuid.UUID, error)
}

type authService struct {
	users  repositories.UserRepository
	tokens repositories.TokenRepository
	jwt    *TokenManager
	hasher *PasswordHasher
	logger *slog.Logger
	now    func() time.Time
}

func NewAuthService(users repositories.UserRepository, tokens repositories.TokenRepository, jwt *TokenManager, hasher *PasswordHasher, logger *slog.Logger) AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &authService{
		users:  users,
		tokens: tokens,
		jwt:    jwt,
		hasher: hasher,
		logger: logger,
		now:    time.Now,
	}
}

func (s *authService) Login(ctx context.Context, username, password string) (TokenPair, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, repositories.ErrNotFound) {
		return TokenPair{}, ErrInvalidCredentials
	}
	if err != nil {
		return TokenPair{}, err
	}
	if !s.hasher.Verify(user.Password, password) {
		return TokenPair{}, ErrInvalidCredentials
	}

	if n, err := s.tokens.DeleteExpired(ctx, s.now()); err != nil {
		s.logger.WarnContext(ctx, "failed to purge expired refresh tokens", "error", err)
	} else if n > 0 {
		s.logger.DebugContext(ctx, "purged expired refresh tokens", "count", n)
	}

	return s.issuePair(ctx, user.ID)
}

// Refresh redeems a refresh token exactly once and hands out a new pair.
func (s *authService) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.jwt.Verify(refreshToken, TokenTypeRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	jti, err := claims.JTI()
	if err != nil {
		return TokenPair{}, err
	}

	stored, err := s.tokens.Consume(ctx, jti, s.now())
	if errors.Is(err, repositories.ErrNotFound) {
		return TokenPair{}, ErrInvalidToken
	}
	if err != nil {
		return TokenPair{}, err
	}

	if _, err := s.users.GetByID(ctx, stored.UserID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return TokenPair{}, ErrInvalidToken
		}
		return TokenPair{}, err
	}
	return s.issuePair(ctx, stored.UserID)
}

// Logout forgets the refresh token. Unknown or already revoked tokens are not an error.
func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.jwt.Verify(refreshToken, TokenTypeRefresh)
	if err != nil {
		if errors.Is(err, ErrExpiredToken) {
			return nil
		}
		return err
	}
	jti, err := claims.JTI()
	if err != nil {
		return err
	}
	return s.tokens.DeleteByJTI(ctx, jti)
}

func (s *authService) Authenticate(ctx context.Context, accessToken string) (uuid.UUID, error) {
	claims, err := s.jwt.Verify(accessToken, TokenTypeAccess)
	if err != nil {
		return uuid.Nil, err
	}
	return claims.UserUUID()
}

func (s *authService) issuePair(ctx context.Context, userID uuid.UUID) (TokenPair, error) {
	access, err := s.jwt.IssueAccess(userID)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.jwt.IssueRefresh(userID)
	if err != nil {
		return TokenPair{}, err
	}

	err = s.tokens.Create(ctx, &models.Token{
		UserID:    userID,
		JTI:       refresh.JTI,
		ExpiresAt: refresh.ExpiresAt,
	})
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue token pair: %w", err)
	}

	return TokenPair{
		Access:    access.Token,
		Refresh:   refresh.Token,
		TokenType: "Bearer",
		ExpiresIn: int64(s.jwt.AccessTTL().Seconds()),
	}, nil
}
