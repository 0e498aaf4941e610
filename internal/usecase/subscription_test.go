package usecase

import (
	"context"
	"testing"

	"github.com/pkg/errors"

	"github.com/syncable/syncable/internal/domain"
	"github.com/syncable/syncable/internal/infra/repository"
)

func newSubscriptionUsecase(t *testing.T) (*SubscriptionUsecase, *repository.SubscriptionRepository, string) {
	t.Helper()
	docs := repository.NewDocumentRepository()
	subs := repository.NewSubscriptionRepository()
	doc, err := docs.Create(context.Background(), "doc", "owner", anySchema(), map[string]any{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return NewSubscriptionUsecase(subs, docs), subs, doc.ID
}

func TestSubscribeResolvesByName(t *testing.T) {
	ctx := context.Background()
	uc, subs, docID := newSubscriptionUsecase(t)

	doc, err := uc.Subscribe(ctx, "u1", "doc")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if doc.ID != docID {
		t.Fatalf("resolved wrong document %q", doc.ID)
	}

	subscribers, _ := subs.SubscribersOf(ctx, docID)
	if len(subscribers) != 1 || subscribers[0] != "u1" {
		t.Fatalf("subscription not recorded: %v", subscribers)
	}
}

func TestSubscribeUnknownDocument(t *testing.T) {
	uc, _, _ := newSubscriptionUsecase(t)

	_, err := uc.Subscribe(context.Background(), "u1", "nope")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found got %v", err)
	}
}

func TestUnsubscribeAlwaysSucceeds(t *testing.T) {
	ctx := context.Background()
	uc, subs, docID := newSubscriptionUsecase(t)

	// never subscribed
	if err := uc.Unsubscribe(ctx, "u1", "doc"); err != nil {
		t.Fatalf("unsubscribe without subscription: %v", err)
	}
	// document does not exist
	if err := uc.Unsubscribe(ctx, "u1", "nope"); err != nil {
		t.Fatalf("unsubscribe of unknown document: %v", err)
	}

	if _, err := uc.Subscribe(ctx, "u1", "doc"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := uc.Unsubscribe(ctx, "u1", "doc"); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	subscribers, _ := subs.SubscribersOf(ctx, docID)
	if len(subscribers) != 0 {
		t.Fatalf("subscription survived: %v", subscribers)
	}
}
