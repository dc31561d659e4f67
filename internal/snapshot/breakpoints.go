package snapshot

import (
	"github.com/google/go-dap"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/sinz/cp-debugger/internal/errors"
	"github.com/sinz/cp-debugger/internal/sourcemap"
)

// BreakpointSet records which patches a session has breakpoints on, per file, in the
// order they were set. It is owned by one session and is not safe for concurrent use.
type BreakpointSet struct {
	files *orderedmap.OrderedMap[string, *fileBreakpoints]
}

type fileBreakpoints struct {
	path    string
	patches *orderedmap.OrderedMap[string, sourcemap.Entry]

	// set by Set; Refresh re-resolves these
	source *dap.Source
	lines  []int
}

// NewBreakpointSet creates an empty set.
func NewBreakpointSet() *BreakpointSet {
	return &BreakpointSet{files: orderedmap.New[string, *fileBreakpoints]()}
}

// Replace discards everything recorded for file and records entries instead.
func (b *BreakpointSet) Replace(file string, entries []sourcemap.Entry) {
	b.replace(file, entries)
}

func (b *BreakpointSet) replace(file string, entries []sourcemap.Entry) *fileBreakpoints {
	key := sourcemap.Key(file)
	b.files.Delete(key)

	fb := &fileBreakpoints{
		path:    file,
		patches: orderedmap.New[string, sourcemap.Entry](),
	}
	for _, e := range entries {
		if _, exists := fb.patches.Get(e.Patch.ID()); exists {
			continue
		}
		fb.patches.Set(e.Patch.ID(), e)
	}
	b.files.Set(key, fb)
	return fb
}

// Set resolves lines of source against sm and replaces the registration of that
// file with the matches. The requested lines are kept for Refresh.
func (b *BreakpointSet) Set(sm *sourcemap.SourceMap, source dap.Source, lines []int) []dap.Breakpoint {
	breakpoints, matched := ResolveBreakpoints(sm, source, lines)
	fb := b.replace(source.Path, matched)
	fb.source = &source
	fb.lines = append([]int(nil), lines...)
	return breakpoints
}

// Refresh resolves the lines of every file registered through Set again, so the
// registrations point at the patches sm holds now. Files registered through Replace
// are left as they are.
func (b *BreakpointSet) Refresh(sm *sourcemap.SourceMap) {
	for pair := b.files.Oldest(); pair != nil; pair = pair.Next() {
		fb := pair.Value
		if fb.source == nil {
			continue
		}
		_, matched := ResolveBreakpoints(sm, *fb.source, fb.lines)
		fb.patches = orderedmap.New[string, sourcemap.Entry]()
		for _, e := range matched {
			if _, exists := fb.patches.Get(e.Patch.ID()); exists {
				continue
			}
			fb.patches.Set(e.Patch.ID(), e)
		}
	}
}

// Files returns the files with recorded breakpoints, in the order first set.
func (b *BreakpointSet) Files() []string {
	files := make([]string, 0, b.files.Len())
	for pair := b.files.Oldest(); pair != nil; pair = pair.Next() {
		files = append(files, pair.Value.path)
	}
	return files
}

// Entries returns the patches recorded for file.
func (b *BreakpointSet) Entries(file string) []sourcemap.Entry {
	fb, ok := b.files.Get(sourcemap.Key(file))
	if !ok {
		return nil
	}
	entries := make([]sourcemap.Entry, 0, fb.patches.Len())
	for pair := fb.patches.Oldest(); pair != nil; pair = pair.Next() {
		entries = append(entries, pair.Value)
	}
	return entries
}

// Len returns the number of files with a breakpoint registration.
func (b *BreakpointSet) Len() int {
	return b.files.Len()
}

// ResolveBreakpoints matches requested lines of source against the patches tracked
// for it. It returns one breakpoint per line, in request order, and the matched
// entries. A line is verified against the first tracked patch whose range contains it.
func ResolveBreakpoints(sm *sourcemap.SourceMap, source dap.Source, lines []int) ([]dap.Breakpoint, []sourcemap.Entry) {
	breakpoints := make([]dap.Breakpoint, 0, len(lines))
	var matched []sourcemap.Entry

	entries, tracked := sm.Lookup(source.Path)
	for _, line := range lines {
		if !tracked {
			breakpoints = append(breakpoints, dap.Breakpoint{
				Verified: false,
				Message:  errors.ReasonUntrackedFile,
				Line:     line,
			})
			continue
		}

		entry, ok := sourcemap.FirstMatch(entries, line)
		if !ok {
			breakpoints = append(breakpoints, dap.Breakpoint{
				Verified: false,
				Message:  errors.ReasonUnknownPatch,
				Line:     line,
			})
			continue
		}

		r := entry.Range()
		src := source
		breakpoints = append(breakpoints, dap.Breakpoint{
			Verified:  true,
			Source:    &src,
			Line:      r.StartLine,
			Column:    r.StartColumn,
			EndLine:   r.EndLine,
			EndColumn: r.EndColumn,
		})
		matched = append(matched, entry)
	}
	return breakpoints, matched
}
