// Package engine applies pointer-addressed change operations to a document
// value. It is pure: no state, no locks, usable on its own.
package engine

import (
	"encoding/json"
	"fmt"

	"github.com/syncable/syncable"
	"github.com/syncable/syncable/internal/pointer"
)

// Apply runs every operation of change, in order, against a private copy of
// value. A change is atomic: if any operation fails, the whole change is
// discarded and the collected operation errors are returned with a nil
// value. On success the new value is returned with no errors; the caller is
// responsible for committing it.
func Apply(value any, change syncable.Change) (any, []syncable.Error) {
	working := syncable.CopyValue(value)

	var errs []syncable.Error
	for _, entry := range change.Ops {
		next, opErr := applyOp(working, entry)
		if opErr != nil {
			errs = append(errs, *opErr)
			continue
		}
		working = next
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return working, nil
}

func applyOp(working any, entry syncable.OpEntry) (any, *syncable.Error) {
	switch op := entry.Op.(type) {
	case syncable.SetOp:
		next, err := pointer.Set(working, entry.Ptr, syncable.CopyValue(op.Value))
		if err != nil {
			return nil, opError(entry.Ptr, err.Error())
		}
		return next, nil

	case syncable.UnsetOp:
		next, err := pointer.Unset(working, entry.Ptr)
		if err != nil {
			return nil, opError(entry.Ptr, err.Error())
		}
		return next, nil

	case syncable.NumAddOp:
		cur, err := pointer.Get(working, entry.Ptr)
		if err != nil {
			return nil, opError(entry.Ptr, err.Error())
		}
		num, ok := asNumber(cur)
		if !ok {
			return nil, opError(entry.Ptr, fmt.Sprintf("numadd target is %T, not a number", cur))
		}
		next, err := pointer.Set(working, entry.Ptr, num+op.Delta)
		if err != nil {
			return nil, opError(entry.Ptr, err.Error())
		}
		return next, nil

	case syncable.ArrAppendOp:
		cur, err := pointer.Get(working, entry.Ptr)
		if err != nil {
			return nil, opError(entry.Ptr, err.Error())
		}
		arr, ok := cur.([]any)
		if !ok {
			return nil, opError(entry.Ptr, fmt.Sprintf("arrappend target is %T, not an array", cur))
		}
		arr = append(arr, syncable.CopyValue(op.Value))
		next, err := pointer.Set(working, entry.Ptr, arr)
		if err != nil {
			return nil, opError(entry.Ptr, err.Error())
		}
		return next, nil

	default:
		return nil, &syncable.Error{
			Code: syncable.ErrCodeUnsupportedOperation,
			Msg:  fmt.Sprintf("unsupported operation %q", entry.Op.Kind()),
			Ptr:  entry.Ptr,
		}
	}
}

func opError(ptr, msg string) *syncable.Error {
	return &syncable.Error{
		Code: syncable.ErrCodeUpdateInvalid,
		Msg:  msg,
		Ptr:  ptr,
	}
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
