package content

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
	"github.com/tidwall/jsonc"

	"github.com/sinz/cp-debugger/pkg/types"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Parse decodes a content document and records the line range of every patch entry.
//
// Comments and trailing commas are accepted. Decoding errors are returned as-is;
// recording ranges never fails a parse, an entry whose span cannot be located keeps
// a zero Range.
func Parse(data []byte) (*ContentConfig, error) {
	clean := jsonc.ToJSON(bytes.TrimPrefix(data, utf8BOM))

	var cfg ContentConfig
	if err := json.Unmarshal(clean, &cfg); err != nil {
		return nil, err
	}

	annotateChanges(clean, cfg.Changes)
	return &cfg, nil
}

// ParseFile reads and parses a content file.
func ParseFile(path string) (*ContentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Parse(data)
}

// LoadManifest reads a pack manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(jsonc.ToJSON(bytes.TrimPrefix(data, utf8BOM)), &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}

// annotateChanges walks the top-level Changes array and copies each object's span
// onto the matching decoded patch. Keys match case-insensitively like the decoder,
// and the last matching key wins since that is the one the decoder keeps.
func annotateChanges(doc []byte, patches []*PatchConfig) {
	if len(patches) == 0 {
		return
	}

	var changes gjson.Result
	found := false
	gjson.ParseBytes(doc).ForEach(func(key, value gjson.Result) bool {
		if strings.EqualFold(key.String(), "Changes") {
			changes = value
			found = true
		}
		return true
	})
	if !found || !changes.IsArray() {
		return
	}

	lines := newLineIndex(doc)
	cursor := changes.Index
	i := 0
	changes.ForEach(func(_, item gjson.Result) bool {
		if i >= len(patches) {
			return false
		}
		patch := patches[i]
		i++
		if patch == nil || !item.IsObject() {
			return true
		}

		start, ok := locate(doc, item.Index, cursor, item.Raw)
		if !ok {
			return true
		}
		end := start + len(item.Raw) - 1
		cursor = end + 1

		startLine, startCol := lines.position(start)
		endLine, endCol := lines.position(end)
		patch.Range = types.LineRange{
			StartLine:   startLine,
			StartColumn: startCol,
			EndLine:     endLine,
			EndColumn:   endCol,
		}
		patch.Raw = json.RawMessage(item.Raw)
		return true
	})
}

// locate returns the byte offset of raw inside doc, trusting the reported offset when
// it matches and otherwise searching forward from cursor.
func locate(doc []byte, reported, cursor int, raw string) (int, bool) {
	if reported >= 0 && reported+len(raw) <= len(doc) && string(doc[reported:reported+len(raw)]) == raw {
		return reported, true
	}
	if cursor < 0 || cursor > len(doc) {
		return 0, false
	}
	idx := bytes.Index(doc[cursor:], []byte(raw))
	if idx < 0 {
		return 0, false
	}
	return cursor + idx, true
}

// lineIndex maps byte offsets to 1-based line and column numbers.
type lineIndex struct {
	doc    []byte
	starts []int
}

func newLineIndex(doc []byte) *lineIndex {
	starts := []int{0}
	for i, b := range doc {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &lineIndex{doc: doc, starts: starts}
}

// position returns the line and character column of offset. Columns count runes.
func (l *lineIndex) position(offset int) (int, int) {
	line := sort.Search(len(l.starts), func(i int) bool { return l.starts[i] > offset }) - 1
	col := utf8.RuneCount(l.doc[l.starts[line]:offset]) + 1
	return line + 1, col
}

var tokenPattern = regexp.MustCompile(`\{\{\s*([^{}:|\s]+)`)

// TokensUsed returns the names of tokens the patch references, either as {{Name}}
// placeholders anywhere in the entry or as When condition keys, in first-seen order.
func (p *PatchConfig) TokensUsed() []string {
	var names []string
	seen := make(map[string]bool)
	add := func(name string) {
		key := strings.ToLower(name)
		if name == "" || seen[key] {
			return
		}
		seen[key] = true
		names = append(names, name)
	}

	for _, m := range tokenPattern.FindAllSubmatch(p.Raw, -1) {
		add(string(m[1]))
	}

	whenKeys := make([]string, 0, len(p.When))
	for k := range p.When {
		whenKeys = append(whenKeys, k)
	}
	sort.Strings(whenKeys)
	for _, k := range whenKeys {
		// When keys may carry input arguments: "HasFlag: someFlag" or "Query: {{X}} > 1".
		name := strings.TrimSpace(strings.SplitN(k, ":", 2)[0])
		if strings.Contains(name, "{{") {
			continue
		}
		add(name)
	}
	return names
}
