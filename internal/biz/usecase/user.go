package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/shadowbotshq/whisper-relay/internal/biz/domain"
	"github.com/shadowbotshq/whisper-relay/internal/biz/repo"
)

// UserUsecase manages user preference records
type UserUsecase struct {
	userRepo repo.UserRepo
}

// NewUserUsecase creates the user usecase
func NewUserUsecase(userRepo repo.UserRepo) *UserUsecase {
	return &UserUsecase{userRepo: userRepo}
}

// Ensure returns the user record, creating it on first contact and
// refreshing the display fields on every call
func (uc *UserUsecase) Ensure(ctx context.Context, id, username, firstName string) (*domain.User, error) {
	u, err := uc.userRepo.Get(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		u = domain.NewUser(id, username, firstName)
		if err := uc.userRepo.Save(ctx, u); err != nil {
			return nil, fmt.Errorf("failed to save user: %w", err)
		}
		return u, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if (username != "" && u.Username != username) || (firstName != "" && u.FirstName != firstName) {
		if username != "" {
			u.Username = username
		}
		if firstName != "" {
			u.FirstName = firstName
		}
		_ = uc.userRepo.Save(ctx, u)
	}
	return u, nil
}

// TogglePrivacy flips privacy mode, returning the new value
func (uc *UserUsecase) TogglePrivacy(ctx context.Context, id string) (bool, error) {
	return uc.toggle(ctx, id, func(u *domain.User) *bool { return &u.PrivacyMode })
}

// ToggleNotifications flips read-receipt notifications, returning the new value
func (uc *UserUsecase) ToggleNotifications(ctx context.Context, id string) (bool, error) {
	return uc.toggle(ctx, id, func(u *domain.User) *bool { return &u.Notifications })
}

func (uc *UserUsecase) toggle(ctx context.Context, id string, field func(*domain.User) *bool) (bool, error) {
	u, err := uc.userRepo.Get(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to load user: %w", err)
	}
	f := field(u)
	*f = !*f
	if err := uc.userRepo.Save(ctx, u); err != nil {
		return false, fmt.Errorf("failed to save user: %w", err)
	}
	return *f, nil
}

// Attribution resolves how a reader is named in reveal receipts, honoring
// privacy mode. Unknown users fall back to the provided display data.
func (uc *UserUsecase) Attribution(ctx context.Context, identity domain.Identity, firstName string) string {
	u, err := uc.userRepo.Get(ctx, identity.UserID)
	if err == nil {
		return u.Attribution()
	}
	if identity.Handle != "" {
		return "@" + identity.Handle
	}
	if firstName != "" {
		return firstName
	}
	return identity.UserID
}

// Get returns a user record
func (uc *UserUsecase) Get(ctx context.Context, id string) (*domain.User, error) {
	return uc.userRepo.Get(ctx, id)
}

// ListAll lists users for the admin surface
func (uc *UserUsecase) ListAll(ctx context.Context) ([]*domain.User, error) {
	return uc.userRepo.ListAll(ctx)
}
