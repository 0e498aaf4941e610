package usecase

import (
	"context"

	"github.com/syncable/syncable/internal/domain"
)

// SubscriptionUsecase resolves document names and maintains subscriptions.
type SubscriptionUsecase struct {
	subs SubscriptionRepository
	docs DocumentRepository
}

func NewSubscriptionUsecase(subs SubscriptionRepository, docs DocumentRepository) *SubscriptionUsecase {
	return &SubscriptionUsecase{subs: subs, docs: docs}
}

// Subscribe registers (userID, document) and returns the document so the
// caller can replay history. Fails with domain.NotFoundError when the
// document does not exist.
func (uc *SubscriptionUsecase) Subscribe(ctx context.Context, userID, name string) (domain.Document, error) {
	doc, err := uc.docs.FindByName(ctx, name)
	if err != nil {
		return domain.Document{}, err
	}
	if _, err := uc.subs.Subscribe(ctx, userID, doc.ID); err != nil {
		return domain.Document{}, err
	}
	return doc, nil
}

// Unsubscribe always succeeds, whether or not the subscription or even the
// document exists.
func (uc *SubscriptionUsecase) Unsubscribe(ctx context.Context, userID, name string) error {
	doc, err := uc.docs.FindByName(ctx, name)
	if err != nil {
		// nothing to remove, and unsubscribe is idempotent
		return nil
	}
	_, err = uc.subs.Unsubscribe(ctx, userID, doc.ID)
	return err
}
