package service

import (
	"context"
	"log/slog"

	"github.com/syncable/syncable"
	"github.com/syncable/syncable/internal/usecase"
)

// NotificationService fans processed changes out to subscribers. Changes
// are never echoed back to their author, and one message batches all of a
// document's residual changes per recipient. Sends go through the user's
// connection handle, which buffers without blocking, so no domain lock is
// ever held across network I/O.
type NotificationService struct {
	users usecase.UserRepository
	docs  usecase.DocumentRepository
	subs  usecase.SubscriptionRepository
}

func NewNotificationService(
	users usecase.UserRepository,
	docs usecase.DocumentRepository,
	subs usecase.SubscriptionRepository,
) *NotificationService {
	return &NotificationService{
		users: users,
		docs:  docs,
		subs:  subs,
	}
}

// Notify pushes changes to every subscriber of the document except each
// change's author. No-op when there is nothing to send or the document is
// already gone.
func (s *NotificationService) Notify(ctx context.Context, documentID, documentName string, changes []syncable.ProcessedChange) {
	if len(changes) == 0 {
		return
	}
	if _, err := s.docs.FindByID(ctx, documentID); err != nil {
		return
	}

	userIDs, err := s.subs.SubscribersOf(ctx, documentID)
	if err != nil {
		slog.ErrorContext(
			ctx, "Subscriber lookup failed",
			slog.String("error", err.Error()),
			slog.String("module", "notify"),
		)
		return
	}

	s.notifyUsers(ctx, userIDs, documentName, changes)
}

// NotifySince replays catch-up history to the given users, typically right
// after a subscribe, using the store's cursor replay. Author filtering and
// batching behave exactly like Notify.
func (s *NotificationService) NotifySince(ctx context.Context, userIDs []string, documentID, documentName string, cursor syncable.Cursor) {
	changes, err := s.docs.ChangesSince(ctx, documentID, cursor)
	if err != nil {
		return
	}
	if len(changes) == 0 {
		return
	}
	s.notifyUsers(ctx, userIDs, documentName, changes)
}

func (s *NotificationService) notifyUsers(ctx context.Context, userIDs []string, documentName string, changes []syncable.ProcessedChange) {
	for _, userID := range userIDs {
		residual := make([]syncable.ProcessedChange, 0, len(changes))
		for _, pc := range changes {
			if pc.ChangeBy == userID {
				continue
			}
			residual = append(residual, pc)
		}
		if len(residual) == 0 {
			continue
		}

		user, err := s.users.FindByID(ctx, userID)
		if err != nil {
			// stale subscription, the disconnect cascade will catch up
			continue
		}

		msg := syncable.ChangesNotification{
			Envelope: syncable.Envelope{Type: syncable.MessageTypeChanges},
			Name:     documentName,
			Changes:  residual,
		}
		if err := user.Conn.Send(msg); err != nil {
			slog.WarnContext(
				ctx, "Notification send failed",
				slog.String("user", userID),
				slog.String("error", err.Error()),
				slog.String("module", "notify"),
			)
		}
	}
}
