package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/syncable/syncable"
	"github.com/syncable/syncable/internal/domain"
	"github.com/syncable/syncable/internal/service"
	"github.com/syncable/syncable/internal/usecase"
)

// Session is one websocket connection's protocol state. It starts
// unauthenticated; a successful hello binds a user to it. Only the
// connection's read loop touches a session, so no locking is needed.
type Session struct {
	conn domain.Sender
	user *domain.User
}

func (s *Session) authenticated() bool {
	return s.user != nil
}

func (s *Session) send(msg any) {
	if err := s.conn.Send(msg); err != nil {
		slog.Warn(
			"Response send failed",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
	}
}

// Controller dispatches decoded wire messages to the usecases. One
// controller serves all sessions.
type Controller struct {
	users    *usecase.UserUsecase
	docs     *usecase.DocumentUsecase
	subs     *usecase.SubscriptionUsecase
	notifier *service.NotificationService
	signal   *service.SignalService
}

func NewController(
	users *usecase.UserUsecase,
	docs *usecase.DocumentUsecase,
	subs *usecase.SubscriptionUsecase,
	notifier *service.NotificationService,
	signal *service.SignalService,
) *Controller {
	return &Controller{
		users:    users,
		docs:     docs,
		subs:     subs,
		notifier: notifier,
		signal:   signal,
	}
}

// NewSession wraps a fresh connection. The session stays unauthenticated
// until hello succeeds.
func (ctrl *Controller) NewSession(conn domain.Sender) *Session {
	return &Session{conn: conn}
}

// Handle processes one inbound message and sends the reply through the
// session's connection. A bad payload never tears the connection down; the
// client gets a structured error instead.
func (ctrl *Controller) Handle(ctx context.Context, sess *Session, raw []byte) {
	var env syncable.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		sess.send(malformed(""))
		return
	}

	if env.Type == syncable.MessageTypeHello {
		ctrl.handleHello(ctx, sess, raw)
		return
	}

	if !sess.authenticated() {
		sess.send(unauthenticated(env.Type))
		return
	}

	switch env.Type {
	case syncable.MessageTypeCreate:
		ctrl.handleCreate(ctx, sess, raw)
	case syncable.MessageTypeDelete:
		ctrl.handleDelete(ctx, sess, raw)
	case syncable.MessageTypeGet:
		ctrl.handleGet(ctx, sess, raw)
	case syncable.MessageTypeSchema:
		ctrl.handleSchema(ctx, sess, raw)
	case syncable.MessageTypeUpdate:
		ctrl.handleUpdate(ctx, sess, raw)
	case syncable.MessageTypeSubscribe:
		ctrl.handleSubscribe(ctx, sess, raw)
	case syncable.MessageTypeUnsubscribe:
		ctrl.handleUnsubscribe(ctx, sess, raw)
	default:
		sess.send(errEnvelope(env.Type, syncable.StatusBadRequest,
			protocolError(syncable.ErrCodeUnsupportedType, "unsupported message type")))
	}
}

// HandleClose tears the session down after the connection is gone: the user
// is removed and every subscription cascades away.
func (ctrl *Controller) HandleClose(ctx context.Context, sess *Session) {
	if !sess.authenticated() {
		return
	}
	if err := ctrl.users.Remove(ctx, sess.user.ID); err != nil {
		slog.ErrorContext(
			ctx, "Session teardown failed",
			slog.String("user", sess.user.ID),
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
	}
	sess.user = nil
}

func (ctrl *Controller) handleHello(ctx context.Context, sess *Session, raw []byte) {
	var req syncable.HelloRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		sess.send(malformed(syncable.MessageTypeHello))
		return
	}

	if sess.authenticated() {
		sess.send(errEnvelope(syncable.MessageTypeHello, syncable.StatusBadRequest,
			protocolError(syncable.ErrCodeUnsupportedType, "already authenticated")))
		return
	}

	user, err := ctrl.users.Register(ctx, req.Name, sess.conn)
	if err != nil {
		if errors.Is(err, usecase.ErrEmptyName) {
			sess.send(missingField(syncable.MessageTypeHello, "name"))
			return
		}
		sess.send(internalError(syncable.MessageTypeHello))
		return
	}
	sess.user = &user

	sess.send(syncable.HelloResponse{
		Envelope: okEnvelope(syncable.MessageTypeHello, syncable.StatusOK),
		Name:     user.Name,
	})
}

func (ctrl *Controller) handleCreate(ctx context.Context, sess *Session, raw []byte) {
	var req syncable.CreateRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		sess.send(malformed(syncable.MessageTypeCreate))
		return
	}
	if len(req.Schema) == 0 {
		sess.send(missingField(syncable.MessageTypeCreate, "schema"))
		return
	}

	doc, err := ctrl.docs.Create(ctx, sess.user.ID, req.Name, req.Schema, req.Value)
	if err != nil {
		var ve domain.ValidationError
		switch {
		case errors.Is(err, domain.ErrNameExists):
			sess.send(errEnvelope(syncable.MessageTypeCreate, syncable.StatusConflict,
				protocolError(syncable.ErrCodeNameExists, "document name already exists: "+req.Name)))
		case errors.As(err, &ve):
			errs := make([]syncable.Error, 0, len(ve.Violations))
			for _, v := range ve.Violations {
				errs = append(errs, protocolError(syncable.ErrCodeDocumentInvalid, v))
			}
			sess.send(errEnvelope(syncable.MessageTypeCreate, syncable.StatusConflict, errs...))
		default:
			sess.send(internalError(syncable.MessageTypeCreate))
		}
		return
	}

	summary := doc.Summary()
	sess.send(syncable.CreateResponse{
		Envelope: okEnvelope(syncable.MessageTypeCreate, syncable.StatusCreated),
		Created:  &summary,
	})
}

func (ctrl *Controller) handleDelete(ctx context.Context, sess *Session, raw []byte) {
	var req syncable.DeleteRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		sess.send(malformed(syncable.MessageTypeDelete))
		return
	}

	err := ctrl.docs.Delete(ctx, sess.user.ID, req.Name)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			sess.send(notFound(syncable.MessageTypeDelete, req.Name))
		case errors.Is(err, domain.ErrNotOwner):
			sess.send(errEnvelope(syncable.MessageTypeDelete, syncable.StatusUnauthorized,
				protocolError(syncable.ErrCodeNotOwner, "not the document owner")))
		default:
			sess.send(internalError(syncable.MessageTypeDelete))
		}
		return
	}

	sess.send(syncable.DeleteResponse{
		Envelope: okEnvelope(syncable.MessageTypeDelete, syncable.StatusOK),
		Name:     req.Name,
	})
}

func (ctrl *Controller) handleGet(ctx context.Context, sess *Session, raw []byte) {
	var req syncable.GetRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		sess.send(malformed(syncable.MessageTypeGet))
		return
	}

	doc, err := ctrl.docs.Get(ctx, req.Name)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			sess.send(notFound(syncable.MessageTypeGet, req.Name))
		} else {
			sess.send(internalError(syncable.MessageTypeGet))
		}
		return
	}

	digest, err := ctrl.docs.Digest(ctx, doc.ID)
	if err != nil {
		sess.send(internalError(syncable.MessageTypeGet))
		return
	}

	resp := syncable.GetResponse{
		Envelope: okEnvelope(syncable.MessageTypeGet, syncable.StatusOK),
		Name:     doc.Name,
		Value:    doc.Value,
		Digest:   digest,
	}
	if last := doc.LastChange(); last != nil {
		resp.LastChangeID = last.ChangeID
		resp.LastChangeAt = last.ChangeAt
	}
	sess.send(resp)
}

func (ctrl *Controller) handleSchema(ctx context.Context, sess *Session, raw []byte) {
	var req syncable.SchemaRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		sess.send(malformed(syncable.MessageTypeSchema))
		return
	}

	doc, err := ctrl.docs.Get(ctx, req.Name)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			sess.send(notFound(syncable.MessageTypeSchema, req.Name))
		} else {
			sess.send(internalError(syncable.MessageTypeSchema))
		}
		return
	}

	sess.send(syncable.SchemaResponse{
		Envelope: okEnvelope(syncable.MessageTypeSchema, syncable.StatusOK),
		Name:     doc.Name,
		Schema:   doc.Schema,
	})
}

func (ctrl *Controller) handleUpdate(ctx context.Context, sess *Session, raw []byte) {
	var req syncable.UpdateRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		sess.send(malformed(syncable.MessageTypeUpdate))
		return
	}
	if len(req.Updates) == 0 {
		sess.send(missingField(syncable.MessageTypeUpdate, "updates"))
		return
	}

	doc, results, processed, err := ctrl.docs.Update(ctx, sess.user.ID, req.Name, req.Updates)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			sess.send(notFound(syncable.MessageTypeUpdate, req.Name))
		} else {
			sess.send(internalError(syncable.MessageTypeUpdate))
		}
		return
	}

	status := syncable.StatusConflict
	for _, r := range results {
		if r.Success {
			status = syncable.StatusOK
			break
		}
	}

	sess.send(syncable.UpdateResponse{
		Envelope: syncable.Envelope{Type: syncable.MessageTypeUpdate, Status: status},
		Name:     req.Name,
		Results:  results,
	})

	if len(processed) == 0 {
		return
	}

	ctrl.notifier.Notify(ctx, doc.ID, doc.Name, processed)

	if err := ctrl.signal.Publish(ctx, service.ChangeEvent{
		DocumentID:   doc.ID,
		DocumentName: doc.Name,
		Changes:      processed,
	}); err != nil {
		slog.ErrorContext(
			ctx, "Change signal publish failed",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
	}
}

func (ctrl *Controller) handleSubscribe(ctx context.Context, sess *Session, raw []byte) {
	var req syncable.SubscribeRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		sess.send(malformed(syncable.MessageTypeSubscribe))
		return
	}

	doc, err := ctrl.subs.Subscribe(ctx, sess.user.ID, req.Name)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			sess.send(notFound(syncable.MessageTypeSubscribe, req.Name))
		} else {
			sess.send(internalError(syncable.MessageTypeSubscribe))
		}
		return
	}

	// acknowledge first so the catch-up changes arrive after the response
	sess.send(syncable.SubscribeResponse{
		Envelope: okEnvelope(syncable.MessageTypeSubscribe, syncable.StatusOK),
		Name:     doc.Name,
		Success:  true,
	})

	cursor := syncable.Cursor{ChangeID: req.LastChangeID, ChangeAt: req.LastChangeAt}
	ctrl.notifier.NotifySince(ctx, []string{sess.user.ID}, doc.ID, doc.Name, cursor)
}

func (ctrl *Controller) handleUnsubscribe(ctx context.Context, sess *Session, raw []byte) {
	var req syncable.UnsubscribeRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		sess.send(malformed(syncable.MessageTypeUnsubscribe))
		return
	}

	if err := ctrl.subs.Unsubscribe(ctx, sess.user.ID, req.Name); err != nil {
		sess.send(internalError(syncable.MessageTypeUnsubscribe))
		return
	}

	sess.send(syncable.UnsubscribeResponse{
		Envelope: okEnvelope(syncable.MessageTypeUnsubscribe, syncable.StatusOK),
		Name:     req.Name,
		Success:  true,
	})
}
