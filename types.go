package syncable

import (
	"encoding/json"
)

// MessageType discriminates every wire message.
type MessageType string

const (
	MessageTypeHello       MessageType = "hello"
	MessageTypeCreate      MessageType = "create"
	MessageTypeDelete      MessageType = "delete"
	MessageTypeGet         MessageType = "get"
	MessageTypeSchema      MessageType = "schema"
	MessageTypeUpdate      MessageType = "update"
	MessageTypeSubscribe   MessageType = "subscribe"
	MessageTypeUnsubscribe MessageType = "unsubscribe"
	MessageTypeChanges     MessageType = "changes"
)

// Response status codes, conventional HTTP-like bands.
const (
	StatusOK            = 200
	StatusCreated       = 201
	StatusBadRequest    = 400
	StatusUnauthorized  = 401
	StatusNotFound      = 404
	StatusConflict      = 409
	StatusInternalError = 500
	StatusUnavailable   = 503
)

// Domain error codes carried in error payloads alongside the status.
const (
	ErrCodeMalformedMessage     = 4001
	ErrCodeUnsupportedType      = 4002
	ErrCodeDocumentInvalid      = 4003
	ErrCodeUpdateInvalid        = 4004
	ErrCodeDocumentNotFound     = 4005
	ErrCodeNameExists           = 4006
	ErrCodeOverlappingPointers  = 4007
	ErrCodeMissingField         = 4008
	ErrCodeUnsupportedOperation = 4009
	ErrCodeNotOwner             = 4010
	ErrCodeUnauthenticated      = 4011
	ErrCodeInternal             = 5001
	ErrCodeUnavailable          = 5002
)

// Error is a structured protocol error. Ptr is set for operation-level
// errors so the client can tell which part of a change failed.
type Error struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Ptr  string `json:"ptr,omitempty"`
}

// Envelope is the part shared by every wire message. Status and Errors are
// only populated on responses.
type Envelope struct {
	Type   MessageType `json:"type"`
	Status int         `json:"status,omitempty"`
	Errors []Error     `json:"errors,omitempty"`
}

type HelloRequest struct {
	Envelope
	Name string `json:"name"`
}

// HelloResponse carries the final, possibly disambiguated, display name.
type HelloResponse struct {
	Envelope
	Name string `json:"name,omitempty"`
}

type CreateRequest struct {
	Envelope
	Name   string          `json:"name,omitempty"`
	Schema json.RawMessage `json:"schema"`
	Value  any             `json:"value"`
}

// DocumentSummary is the public view of a document returned on create.
type DocumentSummary struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Schema    json.RawMessage `json:"schema"`
	Value     any             `json:"value"`
	Owner     string          `json:"owner"`
	CreatedAt int64           `json:"createdAt"`
}

type CreateResponse struct {
	Envelope
	Created *DocumentSummary `json:"created,omitempty"`
}

type DeleteRequest struct {
	Envelope
	Name string `json:"name"`
}

type DeleteResponse struct {
	Envelope
	Name string `json:"name,omitempty"`
}

type GetRequest struct {
	Envelope
	Name string `json:"name"`
}

// GetResponse returns the current value plus the cursor of the latest
// change, if the document has any. Digest is the xxh3 hash of the canonical
// JSON encoding of the value.
type GetResponse struct {
	Envelope
	Name         string `json:"name,omitempty"`
	Value        any    `json:"value,omitempty"`
	Digest       string `json:"digest,omitempty"`
	LastChangeID string `json:"lastChangeId,omitempty"`
	LastChangeAt int64  `json:"lastChangeAt,omitempty"`
}

type SchemaRequest struct {
	Envelope
	Name string `json:"name"`
}

type SchemaResponse struct {
	Envelope
	Name   string          `json:"name,omitempty"`
	Schema json.RawMessage `json:"schema,omitempty"`
}

type UpdateRequest struct {
	Envelope
	Name    string   `json:"name"`
	Updates []Change `json:"updates"`
}

type UpdateResponse struct {
	Envelope
	Name    string         `json:"name,omitempty"`
	Results []ChangeResult `json:"results,omitempty"`
}

type SubscribeRequest struct {
	Envelope
	Name         string `json:"name"`
	LastChangeID string `json:"lastChangeId,omitempty"`
	LastChangeAt int64  `json:"lastChangeAt,omitempty"`
}

type SubscribeResponse struct {
	Envelope
	Name    string `json:"name,omitempty"`
	Success bool   `json:"success"`
}

type UnsubscribeRequest struct {
	Envelope
	Name string `json:"name"`
}

type UnsubscribeResponse struct {
	Envelope
	Name    string `json:"name,omitempty"`
	Success bool   `json:"success"`
}

// ChangesNotification is server-to-client only: changes applied to a
// document the receiver subscribes to, authored by somebody else.
type ChangesNotification struct {
	Envelope
	Name    string            `json:"name"`
	Changes []ProcessedChange `json:"changes"`
}
