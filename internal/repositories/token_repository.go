package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"task-tracker/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

// TokenRepository stores the refresh tokens that are still redeemable.
type TokenRepository interface {
	Create(ctx context.Context, token *models.Token) error
	// Consume deletes the live token with the given jti. It returns ErrNotFound
	// when the token was never issued, was already used or has expired.
	Consume(ctx context.Context, jti uuid.UUID, now time.Time) (models.Token, error)
	DeleteByJTI(ctx context.Context, jti uuid.UUID) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type tokenRepository struct {
	db *gorm.DB
}

func NewTokenRepository(db *gorm.DB) TokenRepository {
	return &tokenRepository{db: db}
}

func (r *tokenRepository) Create(ctx context.Context, token *models.Token) error {
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

func (r *tokenRepository) Consume(ctx context.Context, jti uuid.UUID, now time.Time) (models.Token, error) {
	var token models.Token
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("jti = ?", jti).First(&token).Error; err != nil {
			return err
		}
		// The row count guards against two concurrent refreshes of one token.
		result := tx.Where("id = ?", token.ID).Delete(&models.Token{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return token, ErrNotFound
	}
	if err != nil {
		return token, fmt.Errorf("consume refresh token: %w", err)
	}
	if token.Expired(now) {
		return token, ErrNotFound
	}
	return token, nil
}

func (r *tokenRepository) DeleteByJTI(ctx context.Context, jti uuid.UUID) error {
	if err := r.db.WithContext(ctx).Where("jti = ?", jti).Delete(&models.Token{}).Error; err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

func (r *tokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&models.Token{})
	if result.Error != nil {
		return 0, fmt.Errorf("purge refresh tokens: %w", result.Error)
	}
	return result.RowsAffected, nil
}
