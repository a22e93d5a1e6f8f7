// Package memory resolves hierarchical dialog memory: shorthand path aliases,
// named memory scopes over backing state bags, and a state-manager facade
// that addresses values through dotted/bracketed path expressions.
package memory

import "strings"

// PathResolver rewrites shorthand path aliases into canonical scoped paths
// before scope lookup. Resolvers are pure functions over a fixed grammar.
type PathResolver interface {
	TransformPath(path string) string
}

// aliasResolver maps a single-token alias to a scoped prefix:
// "$foo" becomes "dialog.foo". The alias only applies when the remainder
// starts with an identifier character, so "$", "$$" and "$23" pass through.
type aliasResolver struct {
	alias  string
	prefix string
}

func (r aliasResolver) TransformPath(path string) string {
	if !strings.HasPrefix(path, r.alias) {
		return path
	}
	rest := path[len(r.alias):]
	if !startsIdentifier(rest) {
		return path
	}
	return r.prefix + rest
}

// DollarPathResolver maps $xxx to dialog.xxx.
type DollarPathResolver struct{ aliasResolver }

// NewDollarPathResolver creates the $ alias resolver.
func NewDollarPathResolver() DollarPathResolver {
	return DollarPathResolver{aliasResolver{alias: "$", prefix: "dialog."}}
}

// HashPathResolver maps #xxx to turn.recognized.intents.xxx.
type HashPathResolver struct{ aliasResolver }

// NewHashPathResolver creates the # alias resolver.
func NewHashPathResolver() HashPathResolver {
	return HashPathResolver{aliasResolver{alias: "#", prefix: "turn.recognized.intents."}}
}

// PercentPathResolver maps %xxx to class.xxx.
type PercentPathResolver struct{ aliasResolver }

// NewPercentPathResolver creates the % alias resolver.
func NewPercentPathResolver() PercentPathResolver {
	return PercentPathResolver{aliasResolver{alias: "%", prefix: "class."}}
}

// AtAtPathResolver maps @@xxx to turn.recognized.entities.xxx, the full
// list of recognized entities by that name.
type AtAtPathResolver struct{ aliasResolver }

// NewAtAtPathResolver creates the @@ alias resolver.
func NewAtAtPathResolver() AtAtPathResolver {
	return AtAtPathResolver{aliasResolver{alias: "@@", prefix: "turn.recognized.entities."}}
}

// AtPathResolver maps @xxx to turn.recognized.entities.xxx.first(), the
// first recognized entity by that name. The first() call binds to the first
// path segment only: "@foo.bar" becomes
// "turn.recognized.entities.foo.first().bar".
type AtPathResolver struct{}

// NewAtPathResolver creates the @ alias resolver.
func NewAtPathResolver() AtPathResolver { return AtPathResolver{} }

func (AtPathResolver) TransformPath(path string) string {
	if strings.HasPrefix(path, "@@") || !strings.HasPrefix(path, "@") {
		return path
	}
	rest := path[1:]
	if !startsIdentifier(rest) {
		return path
	}

	end := len(rest)
	for i, r := range rest {
		if r == '.' || r == '[' {
			end = i
			break
		}
	}
	return "turn.recognized.entities." + rest[:end] + ".first()" + rest[end:]
}

// DefaultPathResolvers returns the standard alias resolvers in application
// order. @@ must run before @ so "@@foo" is not misread as an @ alias.
func DefaultPathResolvers() []PathResolver {
	return []PathResolver{
		NewDollarPathResolver(),
		NewHashPathResolver(),
		NewAtAtPathResolver(),
		NewAtPathResolver(),
		NewPercentPathResolver(),
	}
}

// TransformPath runs the path through every resolver in order.
func TransformPath(resolvers []PathResolver, path string) string {
	for _, r := range resolvers {
		path = r.TransformPath(path)
	}
	return path
}

func startsIdentifier(s string) bool {
	if s == "" {
		return false
	}
	r := rune(s[0])
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
