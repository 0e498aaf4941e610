package usecase

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/syncable/syncable"
	"github.com/syncable/syncable/internal/domain"
	"github.com/syncable/syncable/internal/engine"
)

var tracer = otel.Tracer("usecase")

// DocumentUsecase owns document lifecycle and the update path. Updates to
// the same document are serialized by a per-document lock held across the
// resolve-apply-commit-append sequence; updates to different documents
// proceed in parallel. The lock is released before any notification is
// sent.
type DocumentUsecase struct {
	repo      DocumentRepository
	subs      SubscriptionRepository
	validator SchemaValidator
	config    domain.Config

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewDocumentUsecase(
	repo DocumentRepository,
	subs SubscriptionRepository,
	validator SchemaValidator,
	config domain.Config,
) *DocumentUsecase {
	return &DocumentUsecase{
		repo:      repo,
		subs:      subs,
		validator: validator,
		config:    config,
		locks:     map[string]*sync.Mutex{},
	}
}

func (uc *DocumentUsecase) lock(id string) *sync.Mutex {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	l, ok := uc.locks[id]
	if !ok {
		l = &sync.Mutex{}
		uc.locks[id] = l
	}
	return l
}

func (uc *DocumentUsecase) dropLock(id string) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	delete(uc.locks, id)
}

// Create stores a new document. The initial value is validated against the
// schema only when configured to do so.
func (uc *DocumentUsecase) Create(ctx context.Context, owner, name string, schema json.RawMessage, value any) (domain.Document, error) {
	ctx, span := tracer.Start(ctx, "Document.Usecase.Create")
	defer span.End()

	if uc.config.ValidateOnCreate && uc.validator != nil {
		violations, err := uc.validator.Validate(ctx, schema, value)
		if err != nil {
			span.RecordError(err)
			return domain.Document{}, errors.Wrap(err, "schema validation failed")
		}
		if len(violations) > 0 {
			return domain.Document{}, domain.ValidationError{Violations: violations}
		}
	}

	return uc.repo.Create(ctx, name, owner, schema, value)
}

func (uc *DocumentUsecase) Get(ctx context.Context, name string) (domain.Document, error) {
	return uc.repo.FindByName(ctx, name)
}

func (uc *DocumentUsecase) Digest(ctx context.Context, id string) (string, error) {
	return uc.repo.Digest(ctx, id)
}

// Update applies each submitted change atomically, in order, and commits
// the successful ones. It returns one result per change in submission order
// plus the processed records for fan-out. The document lock is not held
// when this returns.
func (uc *DocumentUsecase) Update(ctx context.Context, author, name string, updates []syncable.Change) (domain.Document, []syncable.ChangeResult, []syncable.ProcessedChange, error) {
	ctx, span := tracer.Start(ctx, "Document.Usecase.Update")
	defer span.End()

	doc, err := uc.repo.FindByName(ctx, name)
	if err != nil {
		return domain.Document{}, nil, nil, err
	}

	l := uc.lock(doc.ID)
	l.Lock()
	defer l.Unlock()

	// re-read under the lock: the value may have moved since resolution
	doc, err = uc.repo.FindByID(ctx, doc.ID)
	if err != nil {
		return domain.Document{}, nil, nil, err
	}

	working := doc.Value
	results := make([]syncable.ChangeResult, 0, len(updates))
	var processed []syncable.ProcessedChange

	for _, change := range updates {
		newValue, opErrs := engine.Apply(working, change)
		if len(opErrs) > 0 {
			results = append(results, syncable.ChangeResult{Success: false, Errors: opErrs})
			continue
		}

		if uc.config.ValidateOnUpdate && uc.validator != nil {
			violations, err := uc.validator.Validate(ctx, doc.Schema, newValue)
			if err != nil {
				span.RecordError(err)
				return domain.Document{}, nil, nil, errors.Wrap(err, "schema validation failed")
			}
			if len(violations) > 0 {
				errs := make([]syncable.Error, 0, len(violations))
				for _, v := range violations {
					errs = append(errs, syncable.Error{Code: syncable.ErrCodeUpdateInvalid, Msg: v})
				}
				results = append(results, syncable.ChangeResult{Success: false, Errors: errs})
				continue
			}
		}

		if err := uc.repo.ReplaceValue(ctx, doc.ID, newValue); err != nil {
			return domain.Document{}, nil, nil, err
		}
		pc, err := uc.repo.AppendChange(ctx, doc.ID, change, author)
		if err != nil {
			return domain.Document{}, nil, nil, err
		}

		working = newValue
		results = append(results, syncable.ChangeResult{
			Success:  true,
			ChangeID: pc.ChangeID,
			ChangeAt: pc.ChangeAt,
		})
		processed = append(processed, pc)
	}

	return doc, results, processed, nil
}

// Delete removes a document. Only the owner may delete; subscriptions to
// the document are cascaded away.
func (uc *DocumentUsecase) Delete(ctx context.Context, requester, name string) error {
	ctx, span := tracer.Start(ctx, "Document.Usecase.Delete")
	defer span.End()

	doc, err := uc.repo.FindByName(ctx, name)
	if err != nil {
		return err
	}
	if doc.Owner != requester {
		return domain.ErrNotOwner
	}

	if err := uc.repo.Remove(ctx, doc.ID); err != nil {
		return err
	}
	uc.dropLock(doc.ID)

	return uc.subs.UnsubscribeAllOfDocument(ctx, doc.ID)
}

// ChangesSince exposes the store's cursor replay.
func (uc *DocumentUsecase) ChangesSince(ctx context.Context, id string, cursor syncable.Cursor) ([]syncable.ProcessedChange, error) {
	return uc.repo.ChangesSince(ctx, id, cursor)
}
