package snapshot

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/go-dap"

	"github.com/sinz/cp-debugger/internal/content"
	"github.com/sinz/cp-debugger/internal/host"
	"github.com/sinz/cp-debugger/pkg/types"
)

type builder struct {
	ids  *IDAllocator
	snap *Snapshot

	// pack id (lower-cased) -> overview frame id on the Token State thread
	packFrames map[string]int
}

// Build walks the engine state and the session's breakpoints into a new snapshot.
// A nil host yields a snapshot holding only the empty Token State thread.
func Build(h host.Host, bps *BreakpointSet, ids *IDAllocator) *Snapshot {
	b := &builder{
		ids:        ids,
		snap:       newSnapshot(),
		packFrames: make(map[string]int),
	}

	tokenThread := dap.Thread{Id: ids.Next(), Name: TokenStateThread}
	b.snap.Threads = append(b.snap.Threads, tokenThread)

	if h == nil {
		return b.snap
	}
	if bps == nil {
		bps = NewBreakpointSet()
	}

	for _, pack := range h.Packs() {
		b.addPack(pack, tokenThread.Id, bps)
	}
	b.addTokenContexts(h)

	return b.snap
}

// addPack adds the pack's overview frame and a thread with one frame per patch the
// session has a breakpoint on.
func (b *builder) addPack(pack host.Pack, tokenThreadID int, bps *BreakpointSet) {
	frameID := b.ids.Next()
	b.packFrames[strings.ToLower(pack.ID)] = frameID
	b.snap.Frames[tokenThreadID] = append(b.snap.Frames[tokenThreadID], dap.StackFrame{
		Id:   frameID,
		Name: pack.Name + " " + TokenStateThread,
		Source: &dap.Source{
			Name: pack.Name,
			Path: filepath.Join(pack.Dir, content.ContentFileName),
		},
		Line:             1,
		Column:           1,
		PresentationHint: "subtle",
	})

	packThreadID := 0
	for _, file := range bps.Files() {
		if !pack.BelongsTo(file) {
			continue
		}
		for _, entry := range bps.Entries(file) {
			if packThreadID == 0 {
				packThreadID = b.ids.Next()
				b.snap.Threads = append(b.snap.Threads, dap.Thread{Id: packThreadID, Name: pack.Name})
			}
			b.addPatchFrame(packThreadID, file, entry.Patch, entry.Range())
		}
	}
}

func (b *builder) addPatchFrame(threadID int, file string, patch host.Patch, r types.LineRange) {
	frameID := b.ids.Next()
	b.snap.Frames[threadID] = append(b.snap.Frames[threadID], dap.StackFrame{
		Id:   frameID,
		Name: patch.Path(),
		Source: &dap.Source{
			Name: filepath.Base(file),
			Path: file,
		},
		Line:             r.StartLine,
		Column:           r.StartColumn,
		EndLine:          r.EndLine,
		EndColumn:        r.EndColumn,
		PresentationHint: "normal",
	})

	ctxs := patch.Contexts()
	consumed := b.newScope(ScopeConsumed)
	patchFields := b.newScope(ScopePatchFields)
	scopes := []dap.Scope{consumed, patchFields}

	b.addContext(ctxs.PatchFields, patchFields.VariablesReference)

	useCtx := ctxs.PatchFields
	if custom, ok := ctxs.CustomLocal.Get(); ok {
		local := b.newScope(ScopeCustomLocal)
		b.addContext(custom, local.VariablesReference)
		scopes = append(scopes, local)
		useCtx = custom
	}
	if inherited, ok := ctxs.InheritedLocal.Get(); ok {
		scope := b.newScope(ScopeInheritedLocals)
		b.addContext(inherited, scope.VariablesReference)
		scopes = append(scopes, scope)
	}

	for _, name := range patch.TokensUsed() {
		if tok, ok := host.Lookup(useCtx, name); ok {
			b.addToken(tok, consumed.VariablesReference)
			continue
		}
		b.addVariable(consumed.VariablesReference, name, ValueNotLoaded, 0)
	}

	b.snap.Scopes[frameID] = scopes
}

// addTokenContexts adds the Global scope and a Local and Dynamic Tokens scope per
// local context, bound to the owning pack's overview frame.
func (b *builder) addTokenContexts(h host.Host) {
	global := b.newScope(ScopeGlobal)
	b.addContext(h.GlobalContext(), global.VariablesReference)

	for _, lc := range h.LocalContexts() {
		frameID, ok := b.packFrames[strings.ToLower(lc.PackID)]
		if !ok {
			continue
		}

		local := b.newScope(ScopeLocal)
		b.addContext(lc.Local, local.VariablesReference)

		dynamic := b.newScope(ScopeDynamic)
		b.addContext(lc.Dynamic, dynamic.VariablesReference)

		b.snap.Scopes[frameID] = []dap.Scope{global, local, dynamic}
	}
}

func (b *builder) newScope(name string) dap.Scope {
	return dap.Scope{Name: name, VariablesReference: b.newContainer()}
}

func (b *builder) newContainer() int {
	id := b.ids.Next()
	b.snap.Variables[id] = []dap.Variable{}
	return id
}

func (b *builder) addVariable(container int, name, value string, ref int) {
	b.snap.Variables[container] = append(b.snap.Variables[container], dap.Variable{
		Name:               name,
		Value:              value,
		VariablesReference: ref,
	})
}

func (b *builder) addContext(ctx host.TokenContext, container int) {
	if ctx == nil {
		return
	}
	for _, tok := range ctx.Tokens() {
		b.addToken(tok, container)
	}
}

// addToken emits one variable for tok into container, allocating a nested container
// for diagnostics or multiple values.
func (b *builder) addToken(tok host.Token, container int) {
	name := tok.Name()

	if tok.RequiresInput() {
		b.addVariable(container, name, ValueNeedsInput, 0)
		return
	}

	if !tok.IsReady() {
		diag := b.newContainer()
		b.addVariable(container, name, ValueNotReady, diag)

		d := tok.Diagnostics()
		for i, v := range d.Unready {
			b.addVariable(diag, fmt.Sprintf("unready:#%d", i), v, 0)
		}
		for i, v := range d.Invalid {
			b.addVariable(diag, fmt.Sprintf("invalid:#%d", i), v, 0)
		}
		for i, v := range d.UnavailableMods {
			b.addVariable(diag, fmt.Sprintf("unavailable:#%d", i), v, 0)
		}
		return
	}

	values := tok.Values()
	switch len(values) {
	case 0:
		b.addVariable(container, name, ValueEmpty, 0)
	case 1:
		b.addVariable(container, name, values[0], 0)
	default:
		nested := b.newContainer()
		for i, v := range values {
			b.addVariable(nested, fmt.Sprintf("#%d", i), v, 0)
		}
		b.addVariable(container, name, strings.Join(values, ", "), nested)
	}
}
