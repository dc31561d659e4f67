// Package static loads content packs and their token state from disk and exposes
// them as a host.Host, for running the debugger without a live engine.
package static

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sinz/cp-debugger/internal/content"
	"github.com/sinz/cp-debugger/internal/errors"
	"github.com/sinz/cp-debugger/internal/host"
	"github.com/sinz/cp-debugger/internal/sourcemap"
)

// maxIncludeDepth bounds Include chains, which also stops include cycles.
const maxIncludeDepth = 16

// Loader owns the packs loaded from a directory. Reload swaps the whole host at
// once, so readers never see a half-loaded state.
type Loader struct {
	packsDir       string
	tokenStatePath string
	sourceMap      *sourcemap.SourceMap

	mu      sync.RWMutex
	current *host.StaticHost
	patches []host.Patch
	files   []string
}

// NewLoader creates a loader for packsDir. Nothing is read until Load.
func NewLoader(packsDir, tokenStatePath string, sm *sourcemap.SourceMap) *Loader {
	return &Loader{
		packsDir:       packsDir,
		tokenStatePath: tokenStatePath,
		sourceMap:      sm,
	}
}

// Load reads every pack and registers its patches in the source map.
func (l *Loader) Load() error {
	return l.Reload()
}

// Reload re-reads every pack. Files tracked by the previous load are swapped out of
// the source map for the new registrations in one step.
func (l *Loader) Reload() error {
	info, err := os.Stat(l.packsDir)
	if err != nil {
		return errors.HostUnavailable(fmt.Sprintf("cannot read packs directory %s: %v", l.packsDir, err))
	}
	if !info.IsDir() {
		return errors.HostUnavailable(fmt.Sprintf("%s is not a directory", l.packsDir))
	}

	state, err := LoadTokenState(l.tokenStatePath)
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(l.packsDir)
	if err != nil {
		return errors.HostUnavailable(fmt.Sprintf("cannot list packs directory %s: %v", l.packsDir, err))
	}

	r := &loadRun{
		state:  state,
		global: state.Global.Context(),
		host:   &host.StaticHost{},
	}
	r.host.Global = r.global

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		r.loadPack(filepath.Join(l.packsDir, entry.Name()))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sourceMap.ReplaceFiles(append(append([]string(nil), l.files...), r.files...), r.registrations)

	l.current = r.host
	l.patches = r.patches
	l.files = r.files

	log.Printf("Loaded %d packs with %d patches from %s", len(r.host.PackList), len(r.patches), l.packsDir)
	return nil
}

// Host returns the loaded engine state, or nil before the first successful load.
func (l *Loader) Host() host.Host {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.current == nil {
		return nil
	}
	return l.current
}

// Patches returns every loaded patch in load order.
func (l *Loader) Patches() []host.Patch {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]host.Patch(nil), l.patches...)
}

// loadRun collects one load before it is published.
type loadRun struct {
	state  *TokenState
	global *host.Context
	host   *host.StaticHost

	patches       []host.Patch
	files         []string
	registrations []sourcemap.Registration
}

type packScope struct {
	pack    host.Pack
	local   *host.Context
	dynamic *host.Context
}

func (r *loadRun) loadPack(dir string) {
	manifestPath := filepath.Join(dir, content.ManifestFileName)
	if _, err := os.Stat(manifestPath); err != nil {
		return
	}

	manifest, err := content.LoadManifest(manifestPath)
	if err != nil {
		log.Printf("Warning: skipping pack: %v", errors.ManifestInvalid(manifestPath, err.Error()))
		return
	}
	if manifest.UniqueID == "" {
		log.Printf("Warning: skipping pack: %v", errors.ManifestInvalid(manifestPath, "UniqueID is required"))
		return
	}

	name := manifest.Name
	if name == "" {
		name = filepath.Base(dir)
	}

	contentPath := filepath.Join(dir, content.ContentFileName)
	cfg, err := content.ParseFile(contentPath)
	if err != nil {
		log.Printf("Warning: skipping pack %s: %v", manifest.UniqueID, errors.ContentParseFailed(contentPath, err))
		return
	}

	ps := r.state.Pack(manifest.UniqueID)
	scope := &packScope{
		pack:    host.Pack{ID: manifest.UniqueID, Name: name, Dir: dir},
		local:   ps.Local.Context(),
		dynamic: ps.Dynamic.Context(),
	}
	addSchemaDefaults(scope.local, cfg.ConfigSchema)
	addDeclaredDynamic(scope.dynamic, cfg.DynamicTokens)

	r.host.PackList = append(r.host.PackList, scope.pack)
	r.host.Locals = append(r.host.Locals, host.LocalContext{
		PackID:  scope.pack.ID,
		Local:   scope.local,
		Dynamic: scope.dynamic,
	})

	r.loadFile(scope, contentPath, cfg, name, nil, 0)
}

// loadFile turns the changes of one file into patches. Patches loaded through an
// Include inherit the including patch's local tokens.
func (r *loadRun) loadFile(scope *packScope, file string, cfg *content.ContentConfig, parentPath string, inherited *host.Context, depth int) {
	r.files = append(r.files, file)
	rel := relativeTo(scope.pack.Dir, file)

	for i, pc := range cfg.Changes {
		if pc == nil {
			continue
		}

		custom := localTokenContext(pc.LocalTokens)
		patch := &host.StaticPatch{
			PatchID:   fmt.Sprintf("%s:%s#%d", scope.pack.ID, rel, i),
			PatchPath: parentPath + " > " + pc.DisplayName(),
			Pack:      scope.pack.ID,
			Used:      pc.TokensUsed(),
			Ctx:       r.patchContexts(scope, custom, inherited),
		}

		r.patches = append(r.patches, patch)
		r.registrations = append(r.registrations, sourcemap.Registration{File: file, Patch: patch, Config: pc})

		if pc.IsInclude() {
			r.include(scope, pc, patch.PatchPath, mergeContexts(inherited, custom), depth)
		}
	}
}

func (r *loadRun) include(scope *packScope, pc *content.PatchConfig, path string, inherited *host.Context, depth int) {
	if depth >= maxIncludeDepth {
		log.Printf("Warning: %s: include depth limit reached, not loading %q", path, pc.FromFile)
		return
	}

	for _, from := range strings.Split(pc.FromFile, ",") {
		from = strings.TrimSpace(from)
		if from == "" || strings.Contains(from, "{{") {
			continue
		}

		file := filepath.Join(scope.pack.Dir, filepath.FromSlash(from))
		cfg, err := content.ParseFile(file)
		if err != nil {
			log.Printf("Warning: %s: %v", path, errors.ContentParseFailed(file, err))
			continue
		}
		r.loadFile(scope, file, cfg, path, inherited, depth+1)
	}
}

// patchContexts resolves patch fields against custom local, inherited local, pack
// dynamic, pack local and global tokens, in that order.
func (r *loadRun) patchContexts(scope *packScope, custom, inherited *host.Context) host.PatchContexts {
	chain := host.ChainContext{}
	ctxs := host.PatchContexts{}

	if custom != nil {
		chain = append(chain, custom)
		ctxs.CustomLocal = host.WithContext(custom)
	}
	if inherited != nil {
		chain = append(chain, inherited)
		ctxs.InheritedLocal = host.WithContext(inherited)
	}
	ctxs.PatchFields = append(chain, scope.dynamic, scope.local, r.global)
	return ctxs
}

// localTokenContext builds a context from a LocalTokens block, or nil when empty.
func localTokenContext(tokens map[string]interface{}) *host.Context {
	if len(tokens) == 0 {
		return nil
	}

	names := make([]string, 0, len(tokens))
	for name := range tokens {
		names = append(names, name)
	}
	sort.Strings(names)

	ctx := host.NewContext()
	for _, name := range names {
		ctx.Add(host.NewValueToken(name, stringValues(tokens[name])...))
	}
	return ctx
}

// mergeContexts returns a context holding inner's tokens over outer's, or nil when
// both are nil.
func mergeContexts(outer, inner *host.Context) *host.Context {
	if outer == nil && inner == nil {
		return nil
	}
	merged := host.NewContext()
	for _, ctx := range []*host.Context{outer, inner} {
		if ctx == nil {
			continue
		}
		for _, tok := range ctx.Tokens() {
			merged.Add(tok)
		}
	}
	return merged
}

func stringValues(v interface{}) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return []string{val}
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			out = append(out, fmt.Sprint(item))
		}
		return out
	default:
		return []string{fmt.Sprint(val)}
	}
}

// addSchemaDefaults adds config fields missing from the token state with their
// default values.
func addSchemaDefaults(ctx *host.Context, schema map[string]content.ConfigSchemaField) {
	names := make([]string, 0, len(schema))
	for name := range schema {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if _, ok := ctx.Token(name); ok {
			continue
		}
		field := schema[name]
		var values []string
		for _, v := range strings.Split(field.Default, ",") {
			if v = strings.TrimSpace(v); v != "" {
				values = append(values, v)
			}
		}
		if !field.AllowMultiple && len(values) > 1 {
			values = values[:1]
		}
		ctx.Add(host.NewValueToken(name, values...))
	}
}

// addDeclaredDynamic adds dynamic tokens missing from the token state. A token
// declared several times takes the first unconditional value, else the first one,
// unevaluated.
func addDeclaredDynamic(ctx *host.Context, declared []content.DynamicTokenConfig) {
	chosen := make(map[string]content.DynamicTokenConfig)
	var order []string
	for _, d := range declared {
		key := strings.ToLower(d.Name)
		prev, seen := chosen[key]
		if !seen {
			order = append(order, key)
		}
		if !seen || (len(prev.When) > 0 && len(d.When) == 0) {
			chosen[key] = d
		}
	}

	for _, key := range order {
		d := chosen[key]
		if _, ok := ctx.Token(d.Name); ok {
			continue
		}
		ctx.Add(host.NewValueToken(d.Name, d.Value))
	}
}

func relativeTo(dir, file string) string {
	rel, err := filepath.Rel(dir, file)
	if err != nil {
		return filepath.ToSlash(file)
	}
	return filepath.ToSlash(rel)
}
