package repository

import (
	"context"
	"testing"

	"github.com/pkg/errors"

	"github.com/syncable/syncable/internal/domain"
)

type nopSender struct{}

func (nopSender) Send(msg any) error { return nil }

func TestUserInsertAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository()

	user, err := repo.Insert(ctx, "alice", nopSender{})
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if user.ID == "" || user.Name != "alice" {
		t.Fatalf("unexpected user %+v", user)
	}

	got, err := repo.FindByID(ctx, user.ID)
	if err != nil || got.Name != "alice" {
		t.Fatalf("find failed: %v %+v", err, got)
	}
}

func TestUserNameCollision(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository()

	repo.Insert(ctx, "alice", nopSender{})
	_, err := repo.Insert(ctx, "alice", nopSender{})
	if !errors.Is(err, domain.ErrNameExists) {
		t.Fatalf("expected name exists got %v", err)
	}
}

func TestUserRemoveReleasesName(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository()

	user, _ := repo.Insert(ctx, "alice", nopSender{})
	if err := repo.Remove(ctx, user.ID); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if _, err := repo.FindByID(ctx, user.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("user still findable")
	}
	if _, err := repo.Insert(ctx, "alice", nopSender{}); err != nil {
		t.Fatalf("name not released: %v", err)
	}
}
