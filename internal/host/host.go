// Package host defines the read-only view of the content-patching engine that the
// debugger inspects: loaded packs, token contexts and patches.
//
// The debugger never mutates anything reachable through these interfaces. Adapters
// for a concrete engine live in sub-packages (see host/static).
package host

import "strings"

// Diagnostics explains why a token is not ready.
type Diagnostics struct {
	Unready         []string
	Invalid         []string
	UnavailableMods []string
}

// Token is a named, lazily resolved value exposed by the engine.
type Token interface {
	Name() string
	// RequiresInput reports whether the token can only be resolved with input arguments.
	RequiresInput() bool
	IsReady() bool
	Diagnostics() Diagnostics
	// Values resolves the token without input arguments.
	Values() []string
}

// TokenContext is a container of tokens.
type TokenContext interface {
	// Tokens returns every token in a stable order.
	Tokens() []Token
	// Token looks a token up by name, ignoring case.
	Token(name string) (Token, bool)
}

// OptionalContext is either no context or exactly one TokenContext.
type OptionalContext struct {
	ctx TokenContext
}

// NoContext returns the empty variant.
func NoContext() OptionalContext {
	return OptionalContext{}
}

// WithContext returns the variant holding ctx. A nil ctx yields NoContext.
func WithContext(ctx TokenContext) OptionalContext {
	return OptionalContext{ctx: ctx}
}

// Get returns the held context and whether there is one.
func (o OptionalContext) Get() (TokenContext, bool) {
	return o.ctx, o.ctx != nil
}

// PatchContexts is the local context chain of a patch.
type PatchContexts struct {
	PatchFields    TokenContext
	CustomLocal    OptionalContext
	InheritedLocal OptionalContext
}

// Patch is one loaded configuration rule.
type Patch interface {
	// ID identifies the patch uniquely within the engine.
	ID() string
	// Path is the display path, e.g. "Pack Name > Patch Name".
	Path() string
	PackID() string
	// TokensUsed lists the token names the patch references.
	TokensUsed() []string
	Contexts() PatchContexts
}

// Pack is a loaded content pack.
type Pack struct {
	ID   string
	Name string
	Dir  string
}

// LocalContext is the per-pack token state registered with the engine.
type LocalContext struct {
	PackID  string
	Local   TokenContext
	Dynamic TokenContext
}

// Host is the engine as seen by the debugger.
type Host interface {
	Packs() []Pack
	GlobalContext() TokenContext
	LocalContexts() []LocalContext
}

// Lookup resolves name in ctx, tolerating a nil context.
func Lookup(ctx TokenContext, name string) (Token, bool) {
	if ctx == nil {
		return nil, false
	}
	return ctx.Token(name)
}

// BelongsTo reports whether file lives inside the pack directory, ignoring case.
func (p Pack) BelongsTo(file string) bool {
	if p.Dir == "" {
		return false
	}
	dir := strings.TrimRight(strings.ToLower(p.Dir), `/\`)
	rest, ok := strings.CutPrefix(strings.ToLower(file), dir)
	return ok && (rest == "" || rest[0] == '/' || rest[0] == '\\')
}
