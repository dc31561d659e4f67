package host

import "strings"

// StaticToken is a token whose state is fixed at construction.
type StaticToken struct {
	TokenName  string
	Ready      bool
	NeedsInput bool
	Diag       Diagnostics
	Resolved   []string
}

// NewValueToken returns a ready token resolving to values.
func NewValueToken(name string, values ...string) *StaticToken {
	return &StaticToken{TokenName: name, Ready: true, Resolved: values}
}

func (t *StaticToken) Name() string             { return t.TokenName }
func (t *StaticToken) RequiresInput() bool      { return t.NeedsInput }
func (t *StaticToken) IsReady() bool            { return t.Ready }
func (t *StaticToken) Diagnostics() Diagnostics { return t.Diag }

func (t *StaticToken) Values() []string {
	out := make([]string, len(t.Resolved))
	copy(out, t.Resolved)
	return out
}

// Context is an insertion-ordered TokenContext with case-insensitive lookup.
type Context struct {
	tokens []Token
	index  map[string]int
}

// NewContext builds a context from tokens. A later token replaces an earlier one
// with the same name in place.
func NewContext(tokens ...Token) *Context {
	c := &Context{index: make(map[string]int)}
	for _, t := range tokens {
		c.Add(t)
	}
	return c
}

// Add inserts or replaces a token.
func (c *Context) Add(t Token) {
	key := strings.ToLower(t.Name())
	if i, ok := c.index[key]; ok {
		c.tokens[i] = t
		return
	}
	c.index[key] = len(c.tokens)
	c.tokens = append(c.tokens, t)
}

func (c *Context) Tokens() []Token {
	out := make([]Token, len(c.tokens))
	copy(out, c.tokens)
	return out
}

func (c *Context) Token(name string) (Token, bool) {
	i, ok := c.index[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	return c.tokens[i], true
}

// ChainContext resolves names against each context in order.
type ChainContext []TokenContext

// Tokens returns the union of all contexts; the first context wins on name clashes.
func (c ChainContext) Tokens() []Token {
	var out []Token
	seen := make(map[string]bool)
	for _, ctx := range c {
		if ctx == nil {
			continue
		}
		for _, t := range ctx.Tokens() {
			key := strings.ToLower(t.Name())
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, t)
		}
	}
	return out
}

func (c ChainContext) Token(name string) (Token, bool) {
	for _, ctx := range c {
		if t, ok := Lookup(ctx, name); ok {
			return t, true
		}
	}
	return nil, false
}

// StaticPatch is a patch whose metadata is fixed at construction.
type StaticPatch struct {
	PatchID   string
	PatchPath string
	Pack      string
	Used      []string
	Ctx       PatchContexts
}

func (p *StaticPatch) ID() string              { return p.PatchID }
func (p *StaticPatch) Path() string            { return p.PatchPath }
func (p *StaticPatch) PackID() string          { return p.Pack }
func (p *StaticPatch) TokensUsed() []string    { return append([]string(nil), p.Used...) }
func (p *StaticPatch) Contexts() PatchContexts { return p.Ctx }

// StaticHost is a Host backed by plain values. It is safe for concurrent reads once
// built; swap whole hosts instead of mutating one that sessions may be reading.
type StaticHost struct {
	PackList []Pack
	Global   TokenContext
	Locals   []LocalContext
}

func (h *StaticHost) Packs() []Pack {
	return append([]Pack(nil), h.PackList...)
}

func (h *StaticHost) GlobalContext() TokenContext {
	if h.Global == nil {
		return NewContext()
	}
	return h.Global
}

func (h *StaticHost) LocalContexts() []LocalContext {
	return append([]LocalContext(nil), h.Locals...)
}
