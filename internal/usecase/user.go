package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/syncable/syncable/internal/domain"
)

// maxNameAttempts bounds display-name disambiguation.
const maxNameAttempts = 100

// ErrEmptyName rejects hello requests without a usable display name.
var ErrEmptyName = errors.New("display name must not be empty")

// UserUsecase registers and removes connected users.
type UserUsecase struct {
	users UserRepository
	subs  SubscriptionRepository
}

func NewUserUsecase(users UserRepository, subs SubscriptionRepository) *UserUsecase {
	return &UserUsecase{users: users, subs: subs}
}

// Register creates a user for a fresh connection. A taken display name is
// disambiguated with a numeric suffix; the assigned name is returned on the
// user.
func (uc *UserUsecase) Register(ctx context.Context, name string, conn domain.Sender) (domain.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.User{}, ErrEmptyName
	}

	candidate := name
	for i := 1; i <= maxNameAttempts; i++ {
		user, err := uc.users.Insert(ctx, candidate, conn)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, domain.ErrNameExists) {
			return domain.User{}, err
		}
		candidate = fmt.Sprintf("%s%d", name, i)
	}

	return domain.User{}, errors.Errorf("could not disambiguate name %q", name)
}

// Remove destroys a user and cascades away all of their subscriptions.
// Called on disconnect.
func (uc *UserUsecase) Remove(ctx context.Context, userID string) error {
	if err := uc.subs.UnsubscribeAllOfUser(ctx, userID); err != nil {
		return errors.Wrap(err, "subscription cascade failed")
	}
	return uc.users.Remove(ctx, userID)
}
