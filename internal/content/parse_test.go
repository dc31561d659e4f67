package content

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/sinz/cp-debugger/pkg/types"
)

const sampleContent = `{
  "Format": "2.0.0",
  // comments are allowed
  "Changes": [
    {
      "LogName": "first",
      "Action": "EditData",
      "Target": "Data/Objects"
    },
    { "Action": "Load", "Target": "Portraits/{{Spouse}}", "FromFile": "assets/{{Season}}.png" },
    {
      "Action": "Include",
      "FromFile": "data/more.json",
      "When": { "Season": "spring", "HasFlag: beenToBeach": "true" },
    }
  ]
}`

// TestParse_LineRanges verifies every patch gets the span of its JSON object.
func TestParse_LineRanges(t *testing.T) {
	cfg, err := Parse([]byte(sampleContent))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if len(cfg.Changes) != 3 {
		t.Fatalf("expected 3 changes, got %d", len(cfg.Changes))
	}

	tests := []struct {
		name     string
		expected types.LineRange
	}{
		{"multi-line object", types.LineRange{StartLine: 5, StartColumn: 5, EndLine: 9, EndColumn: 5}},
		{"single-line object", types.LineRange{StartLine: 10, StartColumn: 5, EndLine: 10, EndColumn: 95}},
		{"trailing comma object", types.LineRange{StartLine: 11, StartColumn: 5, EndLine: 15, EndColumn: 5}},
	}

	for i, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := cfg.Changes[i].Range; got != tc.expected {
				t.Errorf("expected range %+v, got %+v", tc.expected, got)
			}
		})
	}
}

// TestParse_SameGraphAsPlainDecode verifies range tracking does not change decoded fields.
func TestParse_SameGraphAsPlainDecode(t *testing.T) {
	cfg, err := Parse([]byte(sampleContent))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Format != "2.0.0" {
		t.Errorf("expected format 2.0.0, got %q", cfg.Format)
	}
	if cfg.Changes[0].LogName != "first" || cfg.Changes[0].Action != "EditData" {
		t.Errorf("unexpected first patch: %+v", cfg.Changes[0])
	}
	if !cfg.Changes[2].IsInclude() {
		t.Error("expected third patch to be an Include")
	}
	if cfg.Changes[2].FromFile != "data/more.json" {
		t.Errorf("expected FromFile data/more.json, got %q", cfg.Changes[2].FromFile)
	}
}

// TestParse_ErrorPropagates verifies syntax errors come back from the decoder.
func TestParse_ErrorPropagates(t *testing.T) {
	_, err := Parse([]byte(`{"Changes": [ { "Action": }`))
	if err == nil {
		t.Fatal("expected parse error")
	}
}

// TestParse_NoChanges verifies documents without a Changes array parse cleanly.
func TestParse_NoChanges(t *testing.T) {
	cfg, err := Parse([]byte(`{"Format": "2.0.0"}`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(cfg.Changes) != 0 {
		t.Errorf("expected no changes, got %d", len(cfg.Changes))
	}
}

// TestParse_CaseInsensitiveKey verifies a lowercase "changes" key is annotated.
func TestParse_CaseInsensitiveKey(t *testing.T) {
	doc := "\n\n{\"changes\": [{\"Action\": \"Load\"}]}"
	cfg, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(cfg.Changes) != 1 {
		t.Fatalf("expected 1 change, got %d", len(cfg.Changes))
	}
	expected := types.LineRange{StartLine: 3, StartColumn: 14, EndLine: 3, EndColumn: 31}
	if cfg.Changes[0].Range != expected {
		t.Errorf("expected range %+v, got %+v", expected, cfg.Changes[0].Range)
	}
}

// TestParse_LeadingComment verifies a header comment does not shift the first range.
func TestParse_LeadingComment(t *testing.T) {
	doc := "// My content pack\n" +
		"{\n" +
		"  \"Changes\": [\n" +
		"    { \"Action\": \"Load\", \"Target\": \"A\" },\n" +
		"    { \"Action\": \"Load\", \"Target\": \"B\" }\n" +
		"  ]\n" +
		"}"
	cfg, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(cfg.Changes) != 2 {
		t.Fatalf("expected 2 changes, got %d", len(cfg.Changes))
	}

	tests := []struct {
		target   string
		expected types.LineRange
	}{
		{"A", types.LineRange{StartLine: 4, StartColumn: 5, EndLine: 4, EndColumn: 39}},
		{"B", types.LineRange{StartLine: 5, StartColumn: 5, EndLine: 5, EndColumn: 39}},
	}
	for i, tc := range tests {
		if cfg.Changes[i].Target != tc.target {
			t.Errorf("change %d: expected target %s, got %s", i, tc.target, cfg.Changes[i].Target)
		}
		if got := cfg.Changes[i].Range; got != tc.expected {
			t.Errorf("change %d: expected range %+v, got %+v", i, tc.expected, got)
		}
	}
}

// TestParse_DuplicateChangesKey verifies the range comes from the key the decoder keeps.
func TestParse_DuplicateChangesKey(t *testing.T) {
	doc := `{
  "Changes": [
    { "Action": "A" }
  ],
  "Format": "2.0.0",


  "changes": [
    { "Action": "B" }
  ]
}`
	cfg, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(cfg.Changes) != 1 || cfg.Changes[0].Action != "B" {
		t.Fatalf("expected the last changes key to be decoded, got %+v", cfg.Changes)
	}
	if got := cfg.Changes[0].Range; got.StartLine != 9 || got.EndLine != 9 {
		t.Errorf("expected range on line 9, got %+v", got)
	}
}

// TestTokensUsed verifies placeholder and When-key extraction.
func TestTokensUsed(t *testing.T) {
	cfg, err := Parse([]byte(sampleContent))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	tests := []struct {
		name     string
		index    int
		expected []string
	}{
		{"no tokens", 0, nil},
		{"placeholders", 1, []string{"Spouse", "Season"}},
		{"when keys", 2, []string{"HasFlag", "Season"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := cfg.Changes[tc.index].TokensUsed()
			if !reflect.DeepEqual(got, tc.expected) {
				t.Errorf("expected %v, got %v", tc.expected, got)
			}
		})
	}
}

// TestLoadManifest verifies manifest parsing.
func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ManifestFileName)
	if err := os.WriteFile(path, []byte(`{"Name": "Test Pack", "UniqueID": "me.test", /* c */ }`), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest failed: %v", err)
	}
	if m.Name != "Test Pack" || m.UniqueID != "me.test" {
		t.Errorf("unexpected manifest: %+v", m)
	}
}

// TestDisplayName verifies the name shown for patches.
func TestDisplayName(t *testing.T) {
	tests := []struct {
		patch    PatchConfig
		expected string
	}{
		{PatchConfig{LogName: "named", Action: "Load"}, "named"},
		{PatchConfig{Action: "Load", Target: "Maps/Town"}, "Load Maps/Town"},
		{PatchConfig{Action: "Include", FromFile: "a.json"}, "Include a.json"},
		{PatchConfig{Action: "EditData"}, "EditData"},
	}

	for _, tc := range tests {
		if got := tc.patch.DisplayName(); got != tc.expected {
			t.Errorf("expected %q, got %q", tc.expected, got)
		}
	}
}
