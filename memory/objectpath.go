package memory

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/convoflow/convoflow/types"
)

// segment is one resolved step of a path expression: a map key, a slice
// index, or the first() selector.
type segment struct {
	key   string
	index int
	kind  segmentKind
}

type segmentKind int

const (
	segKey segmentKind = iota
	segIndex
	segFirst
)

// parsePath splits a canonical dotted/bracketed path into segments.
// Bracket contents must already be literal at this point: numeric indexes
// or quoted keys. Computed indexes are resolved by the state manager before
// parsing.
func parsePath(path string) ([]segment, error) {
	if path == "" {
		return nil, types.NewError(types.ErrInvalidPath, "empty path")
	}

	var segs []segment
	rest := path
	for rest != "" {
		switch {
		case rest[0] == '.':
			rest = rest[1:]
			if rest == "" {
				return nil, types.NewErrorf(types.ErrInvalidPath, "path %q ends with a dot", path)
			}
		case rest[0] == '[':
			close := strings.IndexByte(rest, ']')
			if close < 0 {
				return nil, types.NewErrorf(types.ErrInvalidPath, "path %q has an unterminated bracket", path)
			}
			inner := strings.TrimSpace(rest[1:close])
			rest = rest[close+1:]
			if n, err := strconv.Atoi(inner); err == nil {
				segs = append(segs, segment{index: n, kind: segIndex})
			} else if len(inner) >= 2 && (inner[0] == '\'' || inner[0] == '"') && inner[len(inner)-1] == inner[0] {
				segs = append(segs, segment{key: inner[1 : len(inner)-1], kind: segKey})
			} else {
				return nil, types.NewErrorf(types.ErrInvalidPath, "path %q has unresolved index %q", path, inner)
			}
		default:
			end := len(rest)
			for i := 0; i < len(rest); i++ {
				if rest[i] == '.' || rest[i] == '[' {
					end = i
					break
				}
			}
			token := rest[:end]
			rest = rest[end:]
			if token == "first()" {
				segs = append(segs, segment{kind: segFirst})
			} else if strings.HasSuffix(token, "()") {
				return nil, types.NewErrorf(types.ErrInvalidPath, "path %q calls unknown function %q", path, token)
			} else {
				segs = append(segs, segment{key: token, kind: segKey})
			}
		}
	}
	if len(segs) == 0 {
		return nil, types.NewErrorf(types.ErrInvalidPath, "path %q has no segments", path)
	}
	return segs, nil
}

// getPath walks the object graph along the parsed segments.
func getPath(root any, segs []segment) (any, bool) {
	current := root
	for _, seg := range segs {
		switch seg.kind {
		case segKey:
			m, ok := current.(map[string]any)
			if !ok {
				return nil, false
			}
			current, ok = lookupFold(m, seg.key)
			if !ok {
				return nil, false
			}
		case segIndex:
			arr, ok := current.([]any)
			if !ok || seg.index < 0 || seg.index >= len(arr) {
				return nil, false
			}
			current = arr[seg.index]
		case segFirst:
			arr, ok := current.([]any)
			if !ok || len(arr) == 0 {
				return nil, false
			}
			current = arr[0]
			// Entity groups arrive as nested arrays; first() digs one
			// level further so @foo yields the entity itself.
			if inner, ok := current.([]any); ok && len(inner) > 0 {
				current = inner[0]
			}
		}
	}
	return current, true
}

// setPath writes value at the path, materializing intermediate maps and
// growing slices as needed. The root must be a map.
func setPath(root map[string]any, segs []segment, value any) error {
	if len(segs) == 0 {
		return types.NewError(types.ErrInvalidPath, "empty path")
	}

	var parent any = root
	for i, seg := range segs {
		last := i == len(segs)-1
		switch seg.kind {
		case segKey:
			m, ok := parent.(map[string]any)
			if !ok {
				return types.NewErrorf(types.ErrInvalidPath, "segment %q addresses a non-object", seg.key)
			}
			key := foldKey(m, seg.key)
			if last {
				m[key] = value
				return nil
			}
			child, ok := m[key]
			if !ok || child == nil {
				child = containerFor(segs[i+1])
				m[key] = child
			}
			// Re-box slices after potential growth on the next step.
			if arr, isSlice := child.([]any); isSlice {
				grown, err := growForSegment(arr, segs[i+1])
				if err != nil {
					return err
				}
				m[key] = grown
				child = grown
			}
			parent = child
		case segIndex:
			arr, ok := parent.([]any)
			if !ok {
				return types.NewErrorf(types.ErrInvalidPath, "index %d addresses a non-array", seg.index)
			}
			if seg.index < 0 || seg.index >= len(arr) {
				return types.NewErrorf(types.ErrInvalidPath, "index %d out of range", seg.index)
			}
			if last {
				arr[seg.index] = value
				return nil
			}
			if arr[seg.index] == nil {
				arr[seg.index] = containerFor(segs[i+1])
			}
			parent = arr[seg.index]
		case segFirst:
			return types.NewError(types.ErrInvalidPath, "cannot assign through first()")
		}
	}
	return nil
}

// removePath deletes the value at the path. Removing a missing leaf is a
// no-op; removing through a missing branch is too.
func removePath(root map[string]any, segs []segment) error {
	if len(segs) == 0 {
		return types.NewError(types.ErrInvalidPath, "empty path")
	}

	parentSegs, leaf := segs[:len(segs)-1], segs[len(segs)-1]
	parent := any(root)
	if len(parentSegs) > 0 {
		var ok bool
		parent, ok = getPath(root, parentSegs)
		if !ok {
			return nil
		}
	}

	switch leaf.kind {
	case segKey:
		if m, ok := parent.(map[string]any); ok {
			delete(m, foldKey(m, leaf.key))
		}
	case segIndex:
		if _, ok := parent.([]any); ok {
			return types.NewError(types.ErrInvalidPath, "cannot remove an array element in place; assign nil instead")
		}
	case segFirst:
		return types.NewError(types.ErrInvalidPath, "cannot remove through first()")
	}
	return nil
}

// containerFor picks the container type the next segment needs.
func containerFor(next segment) any {
	if next.kind == segIndex {
		return make([]any, next.index+1)
	}
	return make(map[string]any)
}

// growForSegment extends a slice so the next index segment is addressable.
func growForSegment(arr []any, next segment) ([]any, error) {
	if next.kind != segIndex {
		return arr, nil
	}
	if next.index < 0 {
		return nil, types.NewErrorf(types.ErrInvalidPath, "negative index %d", next.index)
	}
	for len(arr) <= next.index {
		arr = append(arr, nil)
	}
	return arr, nil
}

// lookupFold finds a map entry by key, case-insensitively, matching the
// original's invariant-culture key comparison.
func lookupFold(m map[string]any, key string) (any, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

// foldKey returns the existing spelling of key if one matches
// case-insensitively, else key itself.
func foldKey(m map[string]any, key string) string {
	if _, ok := m[key]; ok {
		return key
	}
	for k := range m {
		if strings.EqualFold(k, key) {
			return k
		}
	}
	return key
}

// normalize converts a value into the plain map/slice/scalar shapes the
// object-path walkers understand, via a JSON round trip. Structs become
// maps, typed slices become []any.
func normalize(value any) (any, error) {
	switch value.(type) {
	case nil, string, bool, float64, map[string]any, []any:
		return value, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize value: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("normalize value: %w", err)
	}
	return out, nil
}

// Coerce decodes a plain map/slice/scalar value into a concrete type via a
// JSON round trip. This is how persisted state bags are rehydrated into
// typed structs without runtime type inspection.
func Coerce[T any](v any) (T, error) {
	if direct, ok := v.(T); ok {
		return direct, nil
	}
	var out T
	data, err := json.Marshal(v)
	if err != nil {
		return out, fmt.Errorf("coerce value: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("coerce value: %w", err)
	}
	return out, nil
}

// clone deep-copies a value so reads never alias live memory.
func clone(value any) (any, error) {
	switch value.(type) {
	case nil, string, bool, float64:
		return value, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("clone value: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("clone value: %w", err)
	}
	return out, nil
}
