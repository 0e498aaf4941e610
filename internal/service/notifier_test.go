package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/syncable/syncable"
	"github.com/syncable/syncable/internal/domain"
)

// --- mocks ---

type captureSender struct {
	sent []any
}

func (s *captureSender) Send(msg any) error {
	s.sent = append(s.sent, msg)
	return nil
}

type mockUserRepo struct {
	users map[string]domain.User
}

func (m *mockUserRepo) Insert(ctx context.Context, name string, conn domain.Sender) (domain.User, error) {
	return domain.User{}, nil
}
func (m *mockUserRepo) FindByID(ctx context.Context, id string) (domain.User, error) {
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, domain.NotFoundError{Resource: "user"}
	}
	return u, nil
}
func (m *mockUserRepo) Remove(ctx context.Context, id string) error { return nil }

type mockDocRepo struct {
	exists  bool
	replay  []syncable.ProcessedChange
	cursors []syncable.Cursor
}

func (m *mockDocRepo) Create(ctx context.Context, name, owner string, schema json.RawMessage, value any) (domain.Document, error) {
	return domain.Document{}, nil
}
func (m *mockDocRepo) FindByName(ctx context.Context, name string) (domain.Document, error) {
	return domain.Document{}, domain.NotFoundError{Resource: "document"}
}
func (m *mockDocRepo) FindByID(ctx context.Context, id string) (domain.Document, error) {
	if !m.exists {
		return domain.Document{}, domain.NotFoundError{Resource: "document"}
	}
	return domain.Document{ID: id}, nil
}
func (m *mockDocRepo) ReplaceValue(ctx context.Context, id string, value any) error { return nil }
func (m *mockDocRepo) AppendChange(ctx context.Context, id string, change syncable.Change, author string) (syncable.ProcessedChange, error) {
	return syncable.ProcessedChange{}, nil
}
func (m *mockDocRepo) ChangesSince(ctx context.Context, id string, cursor syncable.Cursor) ([]syncable.ProcessedChange, error) {
	m.cursors = append(m.cursors, cursor)
	return m.replay, nil
}
func (m *mockDocRepo) Remove(ctx context.Context, id string) error      { return nil }
func (m *mockDocRepo) Digest(ctx context.Context, id string) (string, error) { return "", nil }

type mockSubRepo struct {
	subscribers []string
}

func (m *mockSubRepo) Subscribe(ctx context.Context, userID, documentID string) (bool, error) {
	return true, nil
}
func (m *mockSubRepo) Unsubscribe(ctx context.Context, userID, documentID string) (bool, error) {
	return true, nil
}
func (m *mockSubRepo) DocumentsOfUser(ctx context.Context, userID string) ([]string, error) {
	return nil, nil
}
func (m *mockSubRepo) SubscribersOf(ctx context.Context, documentID string) ([]string, error) {
	return m.subscribers, nil
}
func (m *mockSubRepo) UnsubscribeAllOfUser(ctx context.Context, userID string) error     { return nil }
func (m *mockSubRepo) UnsubscribeAllOfDocument(ctx context.Context, documentID string) error { return nil }

// --- tests ---

func change(author string) syncable.ProcessedChange {
	return syncable.ProcessedChange{
		Change:   syncable.Change{Ops: syncable.ChangeOps{{Ptr: "/x", Op: syncable.SetOp{Value: float64(1)}}}},
		ChangeID: "c1",
		ChangeAt: 1,
		ChangeBy: author,
	}
}

func TestNotifyExcludesAuthor(t *testing.T) {
	ctx := context.Background()

	a := &captureSender{}
	b := &captureSender{}
	users := &mockUserRepo{users: map[string]domain.User{
		"ua": {ID: "ua", Conn: a},
		"ub": {ID: "ub", Conn: b},
	}}
	docs := &mockDocRepo{exists: true}
	subs := &mockSubRepo{subscribers: []string{"ua", "ub"}}

	svc := NewNotificationService(users, docs, subs)
	svc.Notify(ctx, "d1", "doc", []syncable.ProcessedChange{change("ua")})

	if len(a.sent) != 0 {
		t.Fatalf("author received own change")
	}
	if len(b.sent) != 1 {
		t.Fatalf("subscriber did not receive change")
	}

	msg, ok := b.sent[0].(syncable.ChangesNotification)
	if !ok {
		t.Fatalf("unexpected message %T", b.sent[0])
	}
	if msg.Type != syncable.MessageTypeChanges || msg.Name != "doc" || len(msg.Changes) != 1 {
		t.Fatalf("unexpected notification %+v", msg)
	}
}

func TestNotifyNoopOnEmptyOrMissingDocument(t *testing.T) {
	ctx := context.Background()
	b := &captureSender{}
	users := &mockUserRepo{users: map[string]domain.User{"ub": {ID: "ub", Conn: b}}}
	subs := &mockSubRepo{subscribers: []string{"ub"}}

	svc := NewNotificationService(users, &mockDocRepo{exists: true}, subs)
	svc.Notify(ctx, "d1", "doc", nil)
	if len(b.sent) != 0 {
		t.Fatalf("empty change set produced a notification")
	}

	svc = NewNotificationService(users, &mockDocRepo{exists: false}, subs)
	svc.Notify(ctx, "d1", "doc", []syncable.ProcessedChange{change("other")})
	if len(b.sent) != 0 {
		t.Fatalf("missing document produced a notification")
	}
}

func TestNotifyBatchesResidualChanges(t *testing.T) {
	ctx := context.Background()
	b := &captureSender{}
	users := &mockUserRepo{users: map[string]domain.User{"ub": {ID: "ub", Conn: b}}}
	docs := &mockDocRepo{exists: true}
	subs := &mockSubRepo{subscribers: []string{"ub"}}

	svc := NewNotificationService(users, docs, subs)
	svc.Notify(ctx, "d1", "doc", []syncable.ProcessedChange{
		change("other"), change("ub"), change("other"),
	})

	if len(b.sent) != 1 {
		t.Fatalf("expected one batched message got %d", len(b.sent))
	}
	msg := b.sent[0].(syncable.ChangesNotification)
	if len(msg.Changes) != 2 {
		t.Fatalf("expected 2 residual changes got %d", len(msg.Changes))
	}
}

func TestNotifySinceUsesCursorReplay(t *testing.T) {
	ctx := context.Background()
	b := &captureSender{}
	users := &mockUserRepo{users: map[string]domain.User{"ub": {ID: "ub", Conn: b}}}
	docs := &mockDocRepo{exists: true, replay: []syncable.ProcessedChange{change("other")}}
	subs := &mockSubRepo{}

	svc := NewNotificationService(users, docs, subs)
	cursor := syncable.Cursor{ChangeID: "c0", ChangeAt: 42}
	svc.NotifySince(ctx, []string{"ub"}, "d1", "doc", cursor)

	if len(docs.cursors) != 1 || docs.cursors[0] != cursor {
		t.Fatalf("cursor not forwarded: %+v", docs.cursors)
	}
	if len(b.sent) != 1 {
		t.Fatalf("replay not delivered")
	}
}
