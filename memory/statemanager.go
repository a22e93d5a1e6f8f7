package memory

import (
	"context"
	"strconv"
	"strings"

	"github.com/convoflow/convoflow/types"
)

// Manager is the dialog state manager: a single addressable memory facade
// composing the path resolvers and the registered scopes. One Manager is
// built per dialog context per turn; the Configuration behind it is shared.
type Manager struct {
	dc  DialogContext
	cfg *Configuration
}

// NewManager creates a state manager over a dialog context.
func NewManager(dc DialogContext, cfg *Configuration) *Manager {
	if cfg == nil {
		cfg = NewConfiguration()
	}
	return &Manager{dc: dc, cfg: cfg}
}

// Configuration returns the scope registry backing this manager.
func (m *Manager) Configuration() *Configuration { return m.cfg }

// TransformPath rewrites alias shorthand into a canonical scoped path.
func (m *Manager) TransformPath(path string) string {
	return TransformPath(m.cfg.resolvers, path)
}

// GetValue resolves a path expression and returns a clone of the value.
// A missing value inside a known scope returns (nil, false, nil); an
// unknown scope or malformed path returns an error.
func (m *Manager) GetValue(ctx context.Context, path string) (any, bool, error) {
	canonical, err := m.resolveComputed(ctx, m.TransformPath(path))
	if err != nil {
		return nil, false, err
	}

	scope, rest, err := m.cfg.ResolveScope(canonical)
	if err != nil {
		return nil, false, err
	}

	root, err := scope.GetMemory(ctx, m.dc)
	if err != nil {
		return nil, false, err
	}
	if rest == "" {
		v, err := clone(root)
		if err != nil {
			return nil, false, err
		}
		return v, true, nil
	}

	segs, err := parsePath(rest)
	if err != nil {
		return nil, false, err
	}
	normalized, err := normalize(root)
	if err != nil {
		return nil, false, err
	}
	v, ok := getPath(normalized, segs)
	if !ok {
		return nil, false, nil
	}
	v, err = clone(v)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// SetValue writes a value at a path expression. Unknown scopes and
// malformed paths are errors, never silent no-ops.
func (m *Manager) SetValue(ctx context.Context, path string, value any) error {
	canonical, err := m.resolveComputed(ctx, m.TransformPath(path))
	if err != nil {
		return err
	}

	scope, rest, err := m.cfg.ResolveScope(canonical)
	if err != nil {
		return err
	}

	normalizedValue, err := normalize(value)
	if err != nil {
		return err
	}

	if rest == "" {
		return scope.SetMemory(ctx, m.dc, normalizedValue)
	}

	root, err := scope.GetMemory(ctx, m.dc)
	if err != nil {
		return err
	}
	bag, ok := root.(map[string]any)
	if !ok {
		return types.NewErrorf(types.ErrInvalidPath, "scope %q is not writable through paths", scope.Name())
	}

	segs, err := parsePath(rest)
	if err != nil {
		return err
	}
	return setPath(bag, segs, normalizedValue)
}

// RemoveValue deletes the value at a path expression.
func (m *Manager) RemoveValue(ctx context.Context, path string) error {
	canonical, err := m.resolveComputed(ctx, m.TransformPath(path))
	if err != nil {
		return err
	}

	scope, rest, err := m.cfg.ResolveScope(canonical)
	if err != nil {
		return err
	}
	if rest == "" {
		return types.NewErrorf(types.ErrInvalidPath, "cannot remove the %q scope itself", scope.Name())
	}

	root, err := scope.GetMemory(ctx, m.dc)
	if err != nil {
		return err
	}
	bag, ok := root.(map[string]any)
	if !ok {
		return types.NewErrorf(types.ErrInvalidPath, "scope %q is not writable through paths", scope.Name())
	}

	segs, err := parsePath(rest)
	if err != nil {
		return err
	}
	return removePath(bag, segs)
}

// GetSnapshot returns a clone of every scope marked IncludeInSnapshot,
// keyed by scope name.
func (m *Manager) GetSnapshot(ctx context.Context) (map[string]any, error) {
	snapshot := make(map[string]any)
	for _, scope := range m.cfg.scopes {
		if !scope.IncludeInSnapshot() {
			continue
		}
		mem, err := scope.GetMemory(ctx, m.dc)
		if err != nil {
			// A scope that cannot bind this turn (no active dialog) is
			// simply absent from the snapshot.
			continue
		}
		cloned, err := clone(mem)
		if err != nil {
			return nil, err
		}
		snapshot[scope.Name()] = cloned
	}
	return snapshot, nil
}

// GetValueAs resolves a path and decodes the value into T.
func GetValueAs[T any](ctx context.Context, m *Manager, path string) (T, bool, error) {
	var zero T
	v, ok, err := m.GetValue(ctx, path)
	if err != nil || !ok {
		return zero, ok, err
	}
	out, err := Coerce[T](v)
	if err != nil {
		return zero, false, err
	}
	return out, true, nil
}

// resolveComputed evaluates computed bracket indexes from the inside out:
// "conversation.items[turn.index]" looks up turn.index and substitutes the
// literal before the outer path is parsed.
func (m *Manager) resolveComputed(ctx context.Context, path string) (string, error) {
	for depth := 0; depth < 16; depth++ {
		start, end, found := innermostComputed(path)
		if !found {
			return path, nil
		}
		inner := path[start+1 : end]
		v, ok, err := m.GetValue(ctx, inner)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", types.NewErrorf(types.ErrInvalidPath, "computed index %q has no value", inner)
		}
		var literal string
		switch value := v.(type) {
		case string:
			literal = "'" + value + "'"
		case float64:
			literal = strconv.FormatInt(int64(value), 10)
		case int:
			literal = strconv.Itoa(value)
		default:
			return "", types.NewErrorf(types.ErrInvalidPath, "computed index %q is not a string or number", inner)
		}
		path = path[:start+1] + literal + path[end:]
	}
	return "", types.NewErrorf(types.ErrInvalidPath, "path %q nests computed indexes too deeply", path)
}

// innermostComputed finds the first bracket pair, innermost first, whose
// content is neither a numeric literal nor a quoted string.
func innermostComputed(path string) (int, int, bool) {
	var stack []int
	for i := 0; i < len(path); i++ {
		switch path[i] {
		case '[':
			stack = append(stack, i)
		case ']':
			if len(stack) == 0 {
				continue
			}
			open := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if !isLiteralIndex(strings.TrimSpace(path[open+1 : i])) {
				return open, i, true
			}
		}
	}
	return 0, 0, false
}

func isLiteralIndex(s string) bool {
	if s == "" {
		return true
	}
	if _, err := strconv.Atoi(s); err == nil {
		return true
	}
	return len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0]
}
