package repository

import (
	"context"
	"sort"
	"testing"
)

func TestSubscribeAndIndices(t *testing.T) {
	ctx := context.Background()
	repo := NewSubscriptionRepository()

	created, err := repo.Subscribe(ctx, "u1", "d1")
	if err != nil || !created {
		t.Fatalf("subscribe failed: %v %v", created, err)
	}
	repo.Subscribe(ctx, "u1", "d2")
	repo.Subscribe(ctx, "u2", "d1")

	docs, _ := repo.DocumentsOfUser(ctx, "u1")
	sort.Strings(docs)
	if len(docs) != 2 || docs[0] != "d1" || docs[1] != "d2" {
		t.Fatalf("unexpected documents %v", docs)
	}

	users, _ := repo.SubscribersOf(ctx, "d1")
	sort.Strings(users)
	if len(users) != 2 || users[0] != "u1" || users[1] != "u2" {
		t.Fatalf("unexpected subscribers %v", users)
	}

	// duplicate subscribe reports not-created
	created, _ = repo.Subscribe(ctx, "u1", "d1")
	if created {
		t.Fatalf("duplicate subscribe reported created")
	}
}

func TestUnsubscribeIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewSubscriptionRepository()
	repo.Subscribe(ctx, "u1", "d1")

	for i := 0; i < 2; i++ {
		ok, err := repo.Unsubscribe(ctx, "u1", "d1")
		if err != nil || !ok {
			t.Fatalf("unsubscribe round %d failed: %v %v", i, ok, err)
		}
	}

	docs, _ := repo.DocumentsOfUser(ctx, "u1")
	if len(docs) != 0 {
		t.Fatalf("subscription survived unsubscribe")
	}
	users, _ := repo.SubscribersOf(ctx, "d1")
	if len(users) != 0 {
		t.Fatalf("reverse index out of sync")
	}
}

func TestUnsubscribeAllOfUser(t *testing.T) {
	ctx := context.Background()
	repo := NewSubscriptionRepository()
	repo.Subscribe(ctx, "u1", "d1")
	repo.Subscribe(ctx, "u1", "d2")
	repo.Subscribe(ctx, "u2", "d1")

	if err := repo.UnsubscribeAllOfUser(ctx, "u1"); err != nil {
		t.Fatalf("cascade failed: %v", err)
	}

	docs, _ := repo.DocumentsOfUser(ctx, "u1")
	if len(docs) != 0 {
		t.Fatalf("user subscriptions survived cascade")
	}
	users, _ := repo.SubscribersOf(ctx, "d1")
	if len(users) != 1 || users[0] != "u2" {
		t.Fatalf("cascade touched other users: %v", users)
	}
}

func TestUnsubscribeAllOfDocument(t *testing.T) {
	ctx := context.Background()
	repo := NewSubscriptionRepository()
	repo.Subscribe(ctx, "u1", "d1")
	repo.Subscribe(ctx, "u2", "d1")
	repo.Subscribe(ctx, "u1", "d2")

	if err := repo.UnsubscribeAllOfDocument(ctx, "d1"); err != nil {
		t.Fatalf("cascade failed: %v", err)
	}

	users, _ := repo.SubscribersOf(ctx, "d1")
	if len(users) != 0 {
		t.Fatalf("document subscribers survived cascade")
	}
	docs, _ := repo.DocumentsOfUser(ctx, "u1")
	if len(docs) != 1 || docs[0] != "d2" {
		t.Fatalf("cascade touched other documents: %v", docs)
	}
}
