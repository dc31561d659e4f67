// Package content models content pack configuration files and parses them with
// source line ranges attached to every patch entry.
package content

import (
	"encoding/json"
	"strings"

	"github.com/sinz/cp-debugger/pkg/types"
)

const (
	// ContentFileName is the entry file of every content pack.
	ContentFileName = "content.json"
	// ManifestFileName is the pack manifest.
	ManifestFileName = "manifest.json"

	// ActionInclude loads more patches from another file in the same pack.
	ActionInclude = "Include"
)

// ContentConfig represents a content.json file or a file loaded through an Include patch.
type ContentConfig struct {
	Format          string                       `json:"Format"`
	Changes         []*PatchConfig               `json:"Changes"`
	DynamicTokens   []DynamicTokenConfig         `json:"DynamicTokens,omitempty"`
	AliasTokenNames map[string]string            `json:"AliasTokenNames,omitempty"`
	ConfigSchema    map[string]ConfigSchemaField `json:"ConfigSchema,omitempty"`
}

// PatchConfig represents a single entry of a Changes array.
type PatchConfig struct {
	LogName     string                 `json:"LogName,omitempty"`
	Action      string                 `json:"Action"`
	Target      string                 `json:"Target,omitempty"`
	FromFile    string                 `json:"FromFile,omitempty"`
	Priority    string                 `json:"Priority,omitempty"`
	Update      string                 `json:"Update,omitempty"`
	When        map[string]interface{} `json:"When,omitempty"`
	LocalTokens map[string]interface{} `json:"LocalTokens,omitempty"`

	// Range is the span of the entry's JSON object in its source file.
	Range types.LineRange `json:"-"`
	// Raw is the entry's JSON object exactly as it appears in the source file.
	Raw json.RawMessage `json:"-"`
}

// DynamicTokenConfig represents an entry of the DynamicTokens array.
type DynamicTokenConfig struct {
	Name  string                 `json:"Name"`
	Value string                 `json:"Value"`
	When  map[string]interface{} `json:"When,omitempty"`
}

// ConfigSchemaField represents a player-configurable field.
type ConfigSchemaField struct {
	AllowValues   string `json:"AllowValues,omitempty"`
	Default       string `json:"Default,omitempty"`
	AllowBlank    bool   `json:"AllowBlank,omitempty"`
	AllowMultiple bool   `json:"AllowMultiple,omitempty"`
	Description   string `json:"Description,omitempty"`
}

// IsInclude reports whether the patch loads another content file.
func (p *PatchConfig) IsInclude() bool {
	return strings.EqualFold(p.Action, ActionInclude)
}

// DisplayName returns the name the engine shows for the patch.
func (p *PatchConfig) DisplayName() string {
	if p.LogName != "" {
		return p.LogName
	}
	if p.Target != "" {
		return p.Action + " " + p.Target
	}
	if p.FromFile != "" {
		return p.Action + " " + p.FromFile
	}
	return p.Action
}

// Manifest represents a content pack manifest.json.
type Manifest struct {
	Name     string `json:"Name"`
	Author   string `json:"Author,omitempty"`
	Version  string `json:"Version,omitempty"`
	UniqueID string `json:"UniqueID"`
}
