package host

import "testing"

// TestContext_CaseInsensitiveLookup verifies lookups ignore case and keep order.
func TestContext_CaseInsensitiveLookup(t *testing.T) {
	ctx := NewContext(NewValueToken("Season", "spring"), NewValueToken("Weather", "rain"))

	tok, ok := ctx.Token("season")
	if !ok {
		t.Fatal("expected token to be found")
	}
	if tok.Name() != "Season" {
		t.Errorf("expected Season, got %s", tok.Name())
	}

	names := []string{}
	for _, tok := range ctx.Tokens() {
		names = append(names, tok.Name())
	}
	if len(names) != 2 || names[0] != "Season" || names[1] != "Weather" {
		t.Errorf("unexpected order: %v", names)
	}
}

// TestContext_ReplaceKeepsPosition verifies re-adding a token replaces it in place.
func TestContext_ReplaceKeepsPosition(t *testing.T) {
	ctx := NewContext(NewValueToken("A", "1"), NewValueToken("B", "2"), NewValueToken("a", "3"))

	tokens := ctx.Tokens()
	if len(tokens) != 2 {
		t.Fatalf("expected 2 tokens, got %d", len(tokens))
	}
	if got := tokens[0].Values(); len(got) != 1 || got[0] != "3" {
		t.Errorf("expected replaced value 3, got %v", got)
	}
}

// TestChainContext verifies first-wins resolution across contexts.
func TestChainContext(t *testing.T) {
	local := NewContext(NewValueToken("Season", "local"))
	global := NewContext(NewValueToken("Season", "global"), NewValueToken("Day", "5"))
	chain := ChainContext{local, nil, global}

	tok, ok := chain.Token("SEASON")
	if !ok || tok.Values()[0] != "local" {
		t.Errorf("expected local Season, got %v", tok)
	}
	if _, ok := chain.Token("Day"); !ok {
		t.Error("expected Day from global context")
	}
	if _, ok := chain.Token("Missing"); ok {
		t.Error("expected Missing to be absent")
	}
	if n := len(chain.Tokens()); n != 2 {
		t.Errorf("expected 2 merged tokens, got %d", n)
	}
}

// TestOptionalContext verifies both variants.
func TestOptionalContext(t *testing.T) {
	if _, ok := NoContext().Get(); ok {
		t.Error("expected NoContext to be empty")
	}
	if _, ok := WithContext(nil).Get(); ok {
		t.Error("expected WithContext(nil) to be empty")
	}
	if ctx, ok := WithContext(NewContext()).Get(); !ok || ctx == nil {
		t.Error("expected WithContext to hold a context")
	}
}

// TestPack_BelongsTo verifies case-insensitive directory matching.
func TestPack_BelongsTo(t *testing.T) {
	p := Pack{ID: "me.pack", Name: "Pack", Dir: "/Mods/[CP] Pack"}

	if !p.BelongsTo("/mods/[cp] pack/content.json") {
		t.Error("expected file inside pack to match")
	}
	if p.BelongsTo("/Mods/Other/content.json") {
		t.Error("expected file outside pack not to match")
	}
	if p.BelongsTo("/Mods/[CP] Pack Extra/content.json") {
		t.Error("expected sibling directory with shared prefix not to match")
	}
	if (Pack{}).BelongsTo("/anything") {
		t.Error("expected pack without directory to match nothing")
	}
}
