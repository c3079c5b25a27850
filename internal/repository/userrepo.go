// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/pto-keeper/internal/model"
)

// UserRepository provides access to accounts and their sign-in identities.
type UserRepository interface {
	// Create inserts a new user; ErrAlreadyExists on a taken email or provider identity.
	Create(ctx context.Context, u *model.User) error
	// GetByUID loads a user by uid.
	GetByUID(ctx context.Context, uid string) (*model.User, error)
	// GetByEmail loads a password user by email.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// GetByProvider loads a user by federated provider id and subject.
	GetByProvider(ctx context.Context, providerID, subject string) (*model.User, error)
}
