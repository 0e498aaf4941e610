package ws

import (
	"github.com/syncable/syncable"
)

// Response builders. Every reply echoes the request's message type and
// carries a status plus structured errors on failure.

func okEnvelope(t syncable.MessageType, status int) syncable.Envelope {
	return syncable.Envelope{Type: t, Status: status}
}

func errEnvelope(t syncable.MessageType, status int, errs ...syncable.Error) syncable.Envelope {
	return syncable.Envelope{Type: t, Status: status, Errors: errs}
}

func protocolError(code int, msg string) syncable.Error {
	return syncable.Error{Code: code, Msg: msg}
}

func malformed(t syncable.MessageType) syncable.Envelope {
	return errEnvelope(t, syncable.StatusBadRequest,
		protocolError(syncable.ErrCodeMalformedMessage, "malformed message"))
}

func unauthenticated(t syncable.MessageType) syncable.Envelope {
	return errEnvelope(t, syncable.StatusUnauthorized,
		protocolError(syncable.ErrCodeUnauthenticated, "hello required"))
}

func missingField(t syncable.MessageType, field string) syncable.Envelope {
	return errEnvelope(t, syncable.StatusBadRequest,
		protocolError(syncable.ErrCodeMissingField, "missing required field: "+field))
}

func notFound(t syncable.MessageType, name string) syncable.Envelope {
	return errEnvelope(t, syncable.StatusNotFound,
		protocolError(syncable.ErrCodeDocumentNotFound, "document not found: "+name))
}

func internalError(t syncable.MessageType) syncable.Envelope {
	return errEnvelope(t, syncable.StatusInternalError,
		protocolError(syncable.ErrCodeInternal, "internal error"))
}
