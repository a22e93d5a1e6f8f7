package memory

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestPathResolverTransform(t *testing.T) {
	tests := []struct {
		name     string
		resolver PathResolver
		in       string
		want     string
	}{
		{"dollar bare", NewDollarPathResolver(), "$", "$"},
		{"dollar digits", NewDollarPathResolver(), "$23", "$23"},
		{"dollar doubled", NewDollarPathResolver(), "$$", "$$"},
		{"dollar simple", NewDollarPathResolver(), "$foo", "dialog.foo"},
		{"dollar nested", NewDollarPathResolver(), "$foo.bar", "dialog.foo.bar"},
		{"dollar indexed", NewDollarPathResolver(), "$foo.bar[0]", "dialog.foo.bar[0]"},

		{"hash bare", NewHashPathResolver(), "#", "#"},
		{"hash digits", NewHashPathResolver(), "#23", "#23"},
		{"hash doubled", NewHashPathResolver(), "##", "##"},
		{"hash simple", NewHashPathResolver(), "#foo", "turn.recognized.intents.foo"},
		{"hash nested", NewHashPathResolver(), "#foo.bar", "turn.recognized.intents.foo.bar"},
		{"hash indexed", NewHashPathResolver(), "#foo.bar[0]", "turn.recognized.intents.foo.bar[0]"},

		{"at bare", NewAtPathResolver(), "@", "@"},
		{"at digits", NewAtPathResolver(), "@23", "@23"},
		{"at leaves atat", NewAtPathResolver(), "@@foo", "@@foo"},
		{"at simple", NewAtPathResolver(), "@foo", "turn.recognized.entities.foo.first()"},
		{"at nested", NewAtPathResolver(), "@foo.bar", "turn.recognized.entities.foo.first().bar"},

		{"atat bare", NewAtAtPathResolver(), "@@", "@@"},
		{"atat digits", NewAtAtPathResolver(), "@@23", "@@23"},
		{"atat doubled", NewAtAtPathResolver(), "@@@@", "@@@@"},
		{"atat simple", NewAtAtPathResolver(), "@@foo", "turn.recognized.entities.foo"},

		{"percent bare", NewPercentPathResolver(), "%", "%"},
		{"percent digits", NewPercentPathResolver(), "%23", "%23"},
		{"percent doubled", NewPercentPathResolver(), "%%", "%%"},
		{"percent simple", NewPercentPathResolver(), "%foo", "class.foo"},
		{"percent nested", NewPercentPathResolver(), "%foo.bar", "class.foo.bar"},
		{"percent indexed", NewPercentPathResolver(), "%foo.bar[0]", "class.foo.bar[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.resolver.TransformPath(tt.in))
		})
	}
}

func TestTransformPath_RunsAllResolvers(t *testing.T) {
	resolvers := DefaultPathResolvers()
	assert.Equal(t, "dialog.foo", TransformPath(resolvers, "$foo"))
	assert.Equal(t, "turn.recognized.entities.foo", TransformPath(resolvers, "@@foo"))
	assert.Equal(t, "turn.recognized.entities.foo.first()", TransformPath(resolvers, "@foo"))
	assert.Equal(t, "conversation.foo", TransformPath(resolvers, "conversation.foo"))
}

// Aliases map deterministically: every aliased path lands on exactly one
// canonical path, transformation is idempotent, and unaliased paths pass
// through untouched.
func TestTransformPath_Properties(t *testing.T) {
	resolvers := DefaultPathResolvers()
	ident := rapid.StringMatching(`[a-zA-Z_][a-zA-Z0-9_]{0,11}`)

	rapid.Check(t, func(t *rapid.T) {
		name := ident.Draw(t, "name")
		alias := rapid.SampledFrom([]string{"$", "#", "@", "@@", "%"}).Draw(t, "alias")

		out := TransformPath(resolvers, alias+name)

		// Deterministic: same input, same output.
		assert.Equal(t, out, TransformPath(resolvers, alias+name))

		// Idempotent: canonical paths are fixed points.
		assert.Equal(t, out, TransformPath(resolvers, out))

		// Aliased paths always land inside a canonical scope.
		assert.True(t, strings.HasPrefix(out, "dialog.") ||
			strings.HasPrefix(out, "turn.recognized.") ||
			strings.HasPrefix(out, "class."),
			"unexpected canonical path %q", out)
		assert.True(t, strings.Contains(out, name))
	})
}

func TestTransformPath_PassesThroughCanonical(t *testing.T) {
	resolvers := DefaultPathResolvers()
	ident := rapid.StringMatching(`[a-zA-Z_][a-zA-Z0-9_]{0,11}`)

	rapid.Check(t, func(t *rapid.T) {
		scope := rapid.SampledFrom([]string{"user", "conversation", "turn", "dialog", "this", "settings"}).Draw(t, "scope")
		name := ident.Draw(t, "name")
		path := scope + "." + name
		assert.Equal(t, path, TransformPath(resolvers, path))
	})
}
