package syncable

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// OpType tags the wire encoding of a change operation.
type OpType string

const (
	OpTypeSet       OpType = "set"
	OpTypeUnset     OpType = "unset"
	OpTypeNumAdd    OpType = "numadd"
	OpTypeArrAppend OpType = "arrappend"
)

// Operation is one pointer-addressed mutation. The set of kinds is closed;
// wire input with an unrecognized tag decodes to UnknownOp so the change
// engine can report it per operation instead of dropping the whole message.
type Operation interface {
	Kind() OpType
}

// SetOp writes Value at the pointer. At the root pointer it replaces the
// whole document value.
type SetOp struct {
	Value any `json:"value"`
}

// UnsetOp removes the value at the pointer. At the root pointer it clears
// the whole document value.
type UnsetOp struct{}

// NumAddOp adds Delta to the number at the pointer.
type NumAddOp struct {
	Delta float64 `json:"delta"`
}

// ArrAppendOp appends Value to the array at the pointer.
type ArrAppendOp struct {
	Value any `json:"value"`
}

// UnknownOp preserves an unrecognized wire tag.
type UnknownOp struct {
	Tag string
}

func (SetOp) Kind() OpType       { return OpTypeSet }
func (UnsetOp) Kind() OpType     { return OpTypeUnset }
func (NumAddOp) Kind() OpType    { return OpTypeNumAdd }
func (ArrAppendOp) Kind() OpType { return OpTypeArrAppend }
func (o UnknownOp) Kind() OpType { return OpType(o.Tag) }

type wireOp struct {
	Type  OpType   `json:"type"`
	Value any      `json:"value,omitempty"`
	Delta *float64 `json:"delta,omitempty"`
}

func marshalOperation(op Operation) ([]byte, error) {
	w := wireOp{Type: op.Kind()}
	switch o := op.(type) {
	case SetOp:
		w.Value = o.Value
	case UnsetOp:
	case NumAddOp:
		d := o.Delta
		w.Delta = &d
	case ArrAppendOp:
		w.Value = o.Value
	case UnknownOp:
	default:
		return nil, fmt.Errorf("unsupported operation %T", op)
	}
	return json.Marshal(w)
}

func unmarshalOperation(data []byte) (Operation, error) {
	var w wireOp
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	switch w.Type {
	case OpTypeSet:
		return SetOp{Value: w.Value}, nil
	case OpTypeUnset:
		return UnsetOp{}, nil
	case OpTypeNumAdd:
		var d float64
		if w.Delta != nil {
			d = *w.Delta
		}
		return NumAddOp{Delta: d}, nil
	case OpTypeArrAppend:
		return ArrAppendOp{Value: w.Value}, nil
	default:
		return UnknownOp{Tag: string(w.Type)}, nil
	}
}

// OpEntry pairs a JSON Pointer with its operation.
type OpEntry struct {
	Ptr string
	Op  Operation
}

// ChangeOps is an ordered pointer-to-operation mapping. It encodes as a
// JSON object and preserves the object's key order on decode, since
// operations within a change are applied in the order the client wrote
// them.
type ChangeOps []OpEntry

func (ops ChangeOps) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range ops {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Ptr)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := marshalOperation(e.Op)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (ops *ChangeOps) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("ops must be an object")
	}

	out := ChangeOps{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		ptr, ok := tok.(string)
		if !ok {
			return fmt.Errorf("invalid pointer key")
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		op, err := unmarshalOperation(raw)
		if err != nil {
			return err
		}
		out = append(out, OpEntry{Ptr: ptr, Op: op})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*ops = out
	return nil
}

// Change is a client-submitted, ordered set of pointer-addressed operations
// applied atomically: either every operation commits or none do.
type Change struct {
	Ops ChangeOps `json:"ops"`
}

// Clone returns a deep copy of the change; operation payloads are copied so
// the caller cannot mutate them through the original.
func (c Change) Clone() Change {
	ops := make(ChangeOps, len(c.Ops))
	for i, e := range c.Ops {
		ops[i] = OpEntry{Ptr: e.Ptr, Op: cloneOperation(e.Op)}
	}
	return Change{Ops: ops}
}

func cloneOperation(op Operation) Operation {
	switch o := op.(type) {
	case SetOp:
		return SetOp{Value: CopyValue(o.Value)}
	case ArrAppendOp:
		return ArrAppendOp{Value: CopyValue(o.Value)}
	default:
		return op
	}
}

// ProcessedChange is a change after successful application, carrying the
// server-assigned identifier, timestamp (unix milliseconds) and author.
// Identifiers are monotonically ordered within a document.
type ProcessedChange struct {
	Change
	ChangeID string `json:"changeId"`
	ChangeAt int64  `json:"changeAt"`
	ChangeBy string `json:"changeBy"`
}

// ChangeResult is the per-change outcome of an update request, returned in
// submission order.
type ChangeResult struct {
	Success  bool    `json:"success"`
	ChangeID string  `json:"changeId,omitempty"`
	ChangeAt int64   `json:"changeAt,omitempty"`
	Errors   []Error `json:"errors,omitempty"`
}

// Cursor resumes change-log replay from a known point. Zero values mean
// "not supplied".
type Cursor struct {
	ChangeID string
	ChangeAt int64
}

// IsZero reports whether no cursor component was supplied.
func (c Cursor) IsZero() bool {
	return c.ChangeID == "" && c.ChangeAt == 0
}

// CopyValue deep-copies a decoded JSON value. Values are limited to the
// shapes encoding/json produces: maps, slices and scalars.
func CopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = CopyValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CopyValue(e)
		}
		return out
	default:
		return v
	}
}
