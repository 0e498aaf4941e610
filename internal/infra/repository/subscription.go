package repository

import (
	"context"
	"sync"
)

// SubscriptionRepository maintains the subscription set under two indices,
// by user and by document. Both indices are updated together under one
// lock, so they can never disagree.
type SubscriptionRepository struct {
	mu     sync.RWMutex
	byUser map[string]map[string]struct{} // userID -> documentIDs
	byDoc  map[string]map[string]struct{} // documentID -> userIDs
}

func NewSubscriptionRepository() *SubscriptionRepository {
	return &SubscriptionRepository{
		byUser: map[string]map[string]struct{}{},
		byDoc:  map[string]map[string]struct{}{},
	}
}

// Subscribe records (userID, documentID). Returns false when the
// subscription already existed.
func (r *SubscriptionRepository) Subscribe(ctx context.Context, userID, documentID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byUser[userID][documentID]; ok {
		return false, nil
	}

	if r.byUser[userID] == nil {
		r.byUser[userID] = map[string]struct{}{}
	}
	r.byUser[userID][documentID] = struct{}{}

	if r.byDoc[documentID] == nil {
		r.byDoc[documentID] = map[string]struct{}{}
	}
	r.byDoc[documentID][userID] = struct{}{}

	return true, nil
}

// Unsubscribe removes (userID, documentID) from both indices. Idempotent:
// a missing subscription still reports success.
func (r *SubscriptionRepository) Unsubscribe(ctx context.Context, userID, documentID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.remove(userID, documentID)
	return true, nil
}

func (r *SubscriptionRepository) remove(userID, documentID string) {
	if docs, ok := r.byUser[userID]; ok {
		delete(docs, documentID)
		if len(docs) == 0 {
			delete(r.byUser, userID)
		}
	}
	if users, ok := r.byDoc[documentID]; ok {
		delete(users, userID)
		if len(users) == 0 {
			delete(r.byDoc, documentID)
		}
	}
}

func (r *SubscriptionRepository) DocumentsOfUser(ctx context.Context, userID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.byUser[userID]))
	for id := range r.byUser[userID] {
		out = append(out, id)
	}
	return out, nil
}

func (r *SubscriptionRepository) SubscribersOf(ctx context.Context, documentID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.byDoc[documentID]))
	for id := range r.byDoc[documentID] {
		out = append(out, id)
	}
	return out, nil
}

func (r *SubscriptionRepository) UnsubscribeAllOfUser(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for documentID := range r.byUser[userID] {
		r.remove(userID, documentID)
	}
	return nil
}

func (r *SubscriptionRepository) UnsubscribeAllOfDocument(ctx context.Context, documentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for userID := range r.byDoc[documentID] {
		r.remove(userID, documentID)
	}
	return nil
}
