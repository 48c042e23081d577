package service

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/models"
	"github.com/noah-isme/gema-lms-api/internal/repository"
	"github.com/noah-isme/gema-lms-api/internal/session"
)

type sessionIdentityProvider struct {
	users repository.UserRepository
}

// NewSessionIdentityProvider resolves the current user from the verified session bound to
// the request context. Sessions whose subject has no user record resolve to no user.
func NewSessionIdentityProvider(users repository.UserRepository) IdentityProvider {
	return &sessionIdentityProvider{users: users}
}

func (p *sessionIdentityProvider) CurrentUser(ctx context.Context) (*models.User, error) {
	claims, ok := session.FromContext(ctx)
	if !ok {
		return nil, nil
	}

	user, err := p.users.GetByID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &user, nil
}
