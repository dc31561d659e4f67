// Package sourcemap tracks which patches were loaded from which content file and
// where in that file each patch is written.
//
// A SourceMap is created once at startup and lives until the process exits. The
// content loader is its only writer; debug sessions read it when resolving
// breakpoints. All methods are safe for concurrent use.
package sourcemap

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/sinz/cp-debugger/internal/content"
	"github.com/sinz/cp-debugger/internal/host"
	"github.com/sinz/cp-debugger/pkg/types"
)

// Entry is one patch tracked for a file.
type Entry struct {
	Patch  host.Patch
	Config *content.PatchConfig
}

// Range returns the source span of the patch entry.
func (e Entry) Range() types.LineRange {
	if e.Config == nil {
		return types.LineRange{}
	}
	return e.Config.Range
}

type fileEntries struct {
	path    string
	patches *orderedmap.OrderedMap[string, Entry]
}

// SourceMap maps content file paths to the patches loaded from them.
type SourceMap struct {
	mu    sync.RWMutex
	files map[string]*fileEntries
}

// New creates an empty source map
func New() *SourceMap {
	return &SourceMap{
		files: make(map[string]*fileEntries),
	}
}

// Key normalizes a file path for lookups: cleaned and lower-cased.
func Key(path string) string {
	return strings.ToLower(filepath.Clean(path))
}

// Register records that patch was loaded from file. An entry already registered
// for the same patch is kept; Register reports whether the entry was added.
func (m *SourceMap) Register(file string, patch host.Patch, cfg *content.PatchConfig) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := Key(file)
	fe, ok := m.files[key]
	if !ok {
		fe = &fileEntries{
			path:    file,
			patches: orderedmap.New[string, Entry](),
		}
		m.files[key] = fe
	}

	if _, exists := fe.patches.Get(patch.ID()); exists {
		return false
	}
	fe.patches.Set(patch.ID(), Entry{Patch: patch, Config: cfg})
	return true
}

// Lookup returns the entries registered for file in registration order.
// The returned slice is a copy and may be used without holding any lock.
func (m *SourceMap) Lookup(file string) ([]Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	fe, ok := m.files[Key(file)]
	if !ok {
		return nil, false
	}

	entries := make([]Entry, 0, fe.patches.Len())
	for pair := fe.patches.Oldest(); pair != nil; pair = pair.Next() {
		entries = append(entries, pair.Value)
	}
	return entries, true
}

// ResetFile drops every entry of file so a reload can register it from scratch.
func (m *SourceMap) ResetFile(file string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.files, Key(file))
}

// Registration is one Register call, used to batch a reload.
type Registration struct {
	File   string
	Patch  host.Patch
	Config *content.PatchConfig
}

// ReplaceFiles drops every file in stale and every file named by regs, then records
// regs, all under one lock. Readers see either the old entries of a file or the new
// ones, never a file missing or half registered.
func (m *SourceMap) ReplaceFiles(stale []string, regs []Registration) {
	fresh := make(map[string]*fileEntries)
	for _, reg := range regs {
		key := Key(reg.File)
		fe, ok := fresh[key]
		if !ok {
			fe = &fileEntries{
				path:    reg.File,
				patches: orderedmap.New[string, Entry](),
			}
			fresh[key] = fe
		}
		if _, exists := fe.patches.Get(reg.Patch.ID()); exists {
			continue
		}
		fe.patches.Set(reg.Patch.ID(), Entry{Patch: reg.Patch, Config: reg.Config})
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, file := range stale {
		delete(m.files, Key(file))
	}
	for key, fe := range fresh {
		m.files[key] = fe
	}
}

// Files returns the tracked file paths, sorted.
func (m *SourceMap) Files() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	files := make([]string, 0, len(m.files))
	for _, fe := range m.files {
		files = append(files, fe.path)
	}
	sort.Strings(files)
	return files
}

// Describe returns a serializable view of the entries of file.
func (m *SourceMap) Describe(file string) ([]types.SourceMapEntry, bool) {
	entries, ok := m.Lookup(file)
	if !ok {
		return nil, false
	}

	out := make([]types.SourceMapEntry, len(entries))
	for i, e := range entries {
		out[i] = types.SourceMapEntry{
			PatchID: e.Patch.ID(),
			Path:    e.Patch.Path(),
			Range:   e.Range(),
		}
	}
	return out, true
}

// FirstMatch returns the first entry whose range contains line.
func FirstMatch(entries []Entry, line int) (Entry, bool) {
	for _, e := range entries {
		if e.Range().Contains(line) {
			return e, true
		}
	}
	return Entry{}, false
}
