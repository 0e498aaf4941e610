package repository

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
	"github.com/zeebo/xxh3"

	"github.com/syncable/syncable"
	"github.com/syncable/syncable/internal/domain"
)

// DocumentRepository is the volatile document store: documents keyed by
// both identifier and unique name, each with an append-only change log.
// Change identifiers are ULIDs drawn from a monotonic source, so they sort
// in append order.
type DocumentRepository struct {
	mu      sync.RWMutex
	byID    map[string]*domain.Document
	names   map[string]string // name -> id
	entropy *ulid.MonotonicEntropy
}

func NewDocumentRepository() *DocumentRepository {
	return &DocumentRepository{
		byID:    map[string]*domain.Document{},
		names:   map[string]string{},
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

func (r *DocumentRepository) Create(ctx context.Context, name, owner string, schema json.RawMessage, value any) (domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		name = r.generateName()
	} else if _, taken := r.names[name]; taken {
		return domain.Document{}, domain.NameExistsError{Name: name}
	}

	doc := &domain.Document{
		ID:           uuid.NewString(),
		Name:         name,
		Schema:       append(json.RawMessage(nil), schema...),
		Value:        syncable.CopyValue(value),
		InitialValue: syncable.CopyValue(value),
		Owner:        owner,
		CreatedAt:    time.Now().UTC(),
	}

	r.byID[doc.ID] = doc
	r.names[name] = doc.ID

	return cloneDocument(doc), nil
}

func (r *DocumentRepository) generateName() string {
	for {
		name := fmt.Sprintf("doc-%s", uuid.NewString()[:8])
		if _, taken := r.names[name]; !taken {
			return name
		}
	}
}

func (r *DocumentRepository) FindByName(ctx context.Context, name string) (domain.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.names[name]
	if !ok {
		return domain.Document{}, domain.NotFoundError{Resource: "document"}
	}
	return cloneDocument(r.byID[id]), nil
}

func (r *DocumentRepository) FindByID(ctx context.Context, id string) (domain.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, ok := r.byID[id]
	if !ok {
		return domain.Document{}, domain.NotFoundError{Resource: "document"}
	}
	return cloneDocument(doc), nil
}

func (r *DocumentRepository) ReplaceValue(ctx context.Context, id string, value any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.byID[id]
	if !ok {
		return domain.NotFoundError{Resource: "document"}
	}
	doc.Value = syncable.CopyValue(value)
	return nil
}

func (r *DocumentRepository) AppendChange(ctx context.Context, id string, change syncable.Change, author string) (syncable.ProcessedChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.byID[id]
	if !ok {
		return syncable.ProcessedChange{}, domain.NotFoundError{Resource: "document"}
	}

	now := time.Now().UTC()
	cid, err := ulid.New(ulid.Timestamp(now), r.entropy)
	if err != nil {
		return syncable.ProcessedChange{}, errors.Wrap(err, "change id generation failed")
	}

	pc := syncable.ProcessedChange{
		Change:   change.Clone(),
		ChangeID: cid.String(),
		ChangeAt: now.UnixMilli(),
		ChangeBy: author,
	}
	doc.Changes = append(doc.Changes, pc)

	return pc, nil
}

// ChangesSince replays the log from a cursor. No cursor returns the whole
// log. An identifier cursor returns everything strictly after the matching
// entry; an unknown identifier yields nothing. A timestamp cursor returns
// entries with a strictly greater timestamp. When both are supplied the
// timestamp filter also applies after the identifier match, guarding
// against duplicate timestamps from the same instant.
func (r *DocumentRepository) ChangesSince(ctx context.Context, id string, cursor syncable.Cursor) ([]syncable.ProcessedChange, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, ok := r.byID[id]
	if !ok {
		return nil, domain.NotFoundError{Resource: "document"}
	}

	out := []syncable.ProcessedChange{}
	if cursor.ChangeID != "" {
		include := false
		for _, pc := range doc.Changes {
			if include {
				if cursor.ChangeAt != 0 && pc.ChangeAt <= cursor.ChangeAt {
					continue
				}
				out = append(out, pc)
				continue
			}
			if pc.ChangeID == cursor.ChangeID {
				include = true
			}
		}
		return out, nil
	}

	for _, pc := range doc.Changes {
		if cursor.ChangeAt != 0 && pc.ChangeAt <= cursor.ChangeAt {
			continue
		}
		out = append(out, pc)
	}
	return out, nil
}

func (r *DocumentRepository) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.byID[id]
	if !ok {
		return domain.NotFoundError{Resource: "document"}
	}
	delete(r.names, doc.Name)
	delete(r.byID, id)
	return nil
}

func (r *DocumentRepository) Digest(ctx context.Context, id string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, ok := r.byID[id]
	if !ok {
		return "", domain.NotFoundError{Resource: "document"}
	}
	// encoding/json writes map keys in sorted order, so this is canonical
	// for the value shapes the store holds
	b, err := json.Marshal(doc.Value)
	if err != nil {
		return "", errors.Wrap(err, "digest encoding failed")
	}
	return fmt.Sprintf("%016x", xxh3.Hash(b)), nil
}

func cloneDocument(doc *domain.Document) domain.Document {
	out := domain.Document{
		ID:           doc.ID,
		Name:         doc.Name,
		Schema:       append(json.RawMessage(nil), doc.Schema...),
		Value:        syncable.CopyValue(doc.Value),
		InitialValue: syncable.CopyValue(doc.InitialValue),
		Owner:        doc.Owner,
		CreatedAt:    doc.CreatedAt,
	}
	if len(doc.Changes) > 0 {
		out.Changes = make([]syncable.ProcessedChange, len(doc.Changes))
		for i, pc := range doc.Changes {
			out.Changes[i] = syncable.ProcessedChange{
				Change:   pc.Change.Clone(),
				ChangeID: pc.ChangeID,
				ChangeAt: pc.ChangeAt,
				ChangeBy: pc.ChangeBy,
			}
		}
	}
	return out
}
