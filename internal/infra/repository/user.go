package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/syncable/syncable/internal/domain"
)

// UserRepository tracks connected sessions, keyed by identifier with a
// unique display-name index.
type UserRepository struct {
	mu    sync.RWMutex
	byID  map[string]*domain.User
	names map[string]string // name -> id
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:  map[string]*domain.User{},
		names: map[string]string{},
	}
}

func (r *UserRepository) Insert(ctx context.Context, name string, conn domain.Sender) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.names[name]; taken {
		return domain.User{}, domain.NameExistsError{Name: name}
	}

	user := &domain.User{
		ID:        uuid.NewString(),
		Name:      name,
		Conn:      conn,
		CreatedAt: time.Now().UTC(),
	}
	r.byID[user.ID] = user
	r.names[name] = user.ID

	return *user, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return domain.User{}, domain.NotFoundError{Resource: "user"}
	}
	return *user, nil
}

func (r *UserRepository) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok {
		return domain.NotFoundError{Resource: "user"}
	}
	delete(r.names, user.Name)
	delete(r.byID, id)
	return nil
}
