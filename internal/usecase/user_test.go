package usecase

import (
	"context"
	"testing"

	"github.com/syncable/syncable/internal/infra/repository"
)

type nopSender struct{}

func (nopSender) Send(msg any) error { return nil }

func newUserUsecase() (*UserUsecase, *repository.SubscriptionRepository) {
	subs := repository.NewSubscriptionRepository()
	return NewUserUsecase(repository.NewUserRepository(), subs), subs
}

func TestRegisterDisambiguatesNames(t *testing.T) {
	ctx := context.Background()
	uc, _ := newUserUsecase()

	first, err := uc.Register(ctx, "alice", nopSender{})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if first.Name != "alice" {
		t.Fatalf("expected alice got %q", first.Name)
	}

	second, err := uc.Register(ctx, "alice", nopSender{})
	if err != nil {
		t.Fatalf("register duplicate: %v", err)
	}
	if second.Name != "alice1" {
		t.Fatalf("expected alice1 got %q", second.Name)
	}

	third, err := uc.Register(ctx, "alice", nopSender{})
	if err != nil {
		t.Fatalf("register triplicate: %v", err)
	}
	if third.Name != "alice2" {
		t.Fatalf("expected alice2 got %q", third.Name)
	}
}

func TestRegisterRejectsEmptyName(t *testing.T) {
	uc, _ := newUserUsecase()

	if _, err := uc.Register(context.Background(), "   ", nopSender{}); err != ErrEmptyName {
		t.Fatalf("expected ErrEmptyName got %v", err)
	}
}

func TestRemoveCascadesSubscriptions(t *testing.T) {
	ctx := context.Background()
	uc, subs := newUserUsecase()

	user, err := uc.Register(ctx, "alice", nopSender{})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := subs.Subscribe(ctx, user.ID, "d1"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := uc.Remove(ctx, user.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}

	subscribers, err := subs.SubscribersOf(ctx, "d1")
	if err != nil {
		t.Fatalf("subscribers: %v", err)
	}
	if len(subscribers) != 0 {
		t.Fatalf("subscriptions survived user removal: %v", subscribers)
	}
}
