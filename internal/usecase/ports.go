package usecase

import (
	"context"
	"encoding/json"

	"github.com/syncable/syncable"
	"github.com/syncable/syncable/internal/domain"
)

// DocumentRepository defines storage operations for documents and their
// change logs. Reads return defensive copies; callers can never mutate
// store-internal state through a returned document.
type DocumentRepository interface {
	// Create stores a new document. An empty name asks the store to
	// generate a unique one. Returns domain.NameExistsError on collision.
	Create(ctx context.Context, name, owner string, schema json.RawMessage, value any) (domain.Document, error)
	FindByName(ctx context.Context, name string) (domain.Document, error)
	FindByID(ctx context.Context, id string) (domain.Document, error)
	// ReplaceValue atomically swaps the whole value; the change log is not
	// touched.
	ReplaceValue(ctx context.Context, id string, value any) error
	// AppendChange assigns the next change identifier and timestamp and
	// appends to the log.
	AppendChange(ctx context.Context, id string, change syncable.Change, author string) (syncable.ProcessedChange, error)
	ChangesSince(ctx context.Context, id string, cursor syncable.Cursor) ([]syncable.ProcessedChange, error)
	Remove(ctx context.Context, id string) error
	// Digest returns the xxh3 hash of the canonical JSON of the current
	// value.
	Digest(ctx context.Context, id string) (string, error)
}

// UserRepository tracks connected, authenticated sessions.
type UserRepository interface {
	// Insert registers a user under a unique display name. Returns
	// domain.NameExistsError on collision; disambiguation is the caller's
	// concern.
	Insert(ctx context.Context, name string, conn domain.Sender) (domain.User, error)
	FindByID(ctx context.Context, id string) (domain.User, error)
	Remove(ctx context.Context, id string) error
}

// SubscriptionRepository is the many-to-many index between users and
// documents. Both directions stay consistent with a single logical
// subscription set.
type SubscriptionRepository interface {
	Subscribe(ctx context.Context, userID, documentID string) (bool, error)
	// Unsubscribe is idempotent: removing a non-existent subscription still
	// reports success.
	Unsubscribe(ctx context.Context, userID, documentID string) (bool, error)
	DocumentsOfUser(ctx context.Context, userID string) ([]string, error)
	SubscribersOf(ctx context.Context, documentID string) ([]string, error)
	UnsubscribeAllOfUser(ctx context.Context, userID string) error
	UnsubscribeAllOfDocument(ctx context.Context, documentID string) error
}

// SchemaValidator is the JSON Schema oracle. Violations are human-readable
// diagnostics; a non-nil error means the schema itself could not be used.
type SchemaValidator interface {
	Validate(ctx context.Context, schema json.RawMessage, value any) ([]string, error)
}
