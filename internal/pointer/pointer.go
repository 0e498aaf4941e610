// Package pointer implements JSON Pointer (RFC 6901) resolution and
// mutation over decoded JSON values (map[string]any, []any, scalars).
// Parsing and token unescaping are delegated to go-openapi/jsonpointer;
// mutation is local because the library only reads.
package pointer

import (
	"fmt"
	"strconv"

	"github.com/go-openapi/jsonpointer"
)

// IsRoot reports whether ptr addresses the document root. The protocol
// treats both the empty pointer and the bare "/" as the root.
func IsRoot(ptr string) bool {
	return ptr == "" || ptr == "/"
}

// Parse returns the decoded reference tokens of ptr.
func Parse(ptr string) ([]string, error) {
	if IsRoot(ptr) {
		return nil, nil
	}
	p, err := jsonpointer.New(ptr)
	if err != nil {
		return nil, fmt.Errorf("invalid pointer %q: %w", ptr, err)
	}
	return p.DecodedTokens(), nil
}

// Get resolves ptr against root and returns the addressed value.
func Get(root any, ptr string) (any, error) {
	tokens, err := Parse(ptr)
	if err != nil {
		return nil, err
	}
	node := root
	for i, tok := range tokens {
		switch n := node.(type) {
		case map[string]any:
			child, ok := n[tok]
			if !ok {
				return nil, fmt.Errorf("pointer %q: no key %q", ptr, tok)
			}
			node = child
		case []any:
			idx, err := arrayIndex(tok, len(n))
			if err != nil {
				return nil, fmt.Errorf("pointer %q: %w", ptr, err)
			}
			node = n[idx]
		default:
			return nil, fmt.Errorf("pointer %q: cannot descend into %T at %q", ptr, node, tokens[i])
		}
	}
	return node, nil
}

// Set writes v at ptr and returns the (possibly new) root. Missing
// intermediate objects are created along the way; array indices must
// already exist.
func Set(root any, ptr string, v any) (any, error) {
	tokens, err := Parse(ptr)
	if err != nil {
		return nil, err
	}
	return set(root, ptr, tokens, v)
}

func set(node any, ptr string, tokens []string, v any) (any, error) {
	if len(tokens) == 0 {
		return v, nil
	}
	tok := tokens[0]
	switch n := node.(type) {
	case map[string]any:
		child := n[tok]
		if child == nil && len(tokens) > 1 {
			child = map[string]any{}
		}
		newChild, err := set(child, ptr, tokens[1:], v)
		if err != nil {
			return nil, err
		}
		n[tok] = newChild
		return n, nil
	case []any:
		idx, err := arrayIndex(tok, len(n))
		if err != nil {
			return nil, fmt.Errorf("pointer %q: %w", ptr, err)
		}
		newChild, err := set(n[idx], ptr, tokens[1:], v)
		if err != nil {
			return nil, err
		}
		n[idx] = newChild
		return n, nil
	case nil:
		m := map[string]any{}
		newChild, err := set(nil, ptr, tokens[1:], v)
		if err != nil {
			return nil, err
		}
		m[tok] = newChild
		return m, nil
	default:
		return nil, fmt.Errorf("pointer %q: cannot descend into %T at %q", ptr, node, tok)
	}
}

// Unset removes the value at ptr and returns the (possibly new) root. Map
// keys are deleted, array elements are nulled in place, and the root
// pointer clears the whole value.
func Unset(root any, ptr string) (any, error) {
	tokens, err := Parse(ptr)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, nil
	}

	parent, err := descend(root, ptr, tokens[:len(tokens)-1])
	if err != nil {
		return nil, err
	}
	last := tokens[len(tokens)-1]
	switch p := parent.(type) {
	case map[string]any:
		delete(p, last)
	case []any:
		idx, err := arrayIndex(last, len(p))
		if err != nil {
			return nil, fmt.Errorf("pointer %q: %w", ptr, err)
		}
		p[idx] = nil
	default:
		return nil, fmt.Errorf("pointer %q: cannot unset inside %T", ptr, parent)
	}
	return root, nil
}

func descend(node any, ptr string, tokens []string) (any, error) {
	for _, tok := range tokens {
		switch n := node.(type) {
		case map[string]any:
			child, ok := n[tok]
			if !ok {
				return nil, fmt.Errorf("pointer %q: no key %q", ptr, tok)
			}
			node = child
		case []any:
			idx, err := arrayIndex(tok, len(n))
			if err != nil {
				return nil, fmt.Errorf("pointer %q: %w", ptr, err)
			}
			node = n[idx]
		default:
			return nil, fmt.Errorf("pointer %q: cannot descend into %T at %q", ptr, node, tok)
		}
	}
	return node, nil
}

func arrayIndex(tok string, length int) (int, error) {
	idx, err := strconv.Atoi(tok)
	if err != nil {
		return 0, fmt.Errorf("invalid array index %q", tok)
	}
	if idx < 0 || idx >= length {
		return 0, fmt.Errorf("array index %d out of range (len %d)", idx, length)
	}
	return idx, nil
}
