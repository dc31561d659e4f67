package static

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sinz/cp-debugger/internal/errors"
	"github.com/sinz/cp-debugger/internal/host"
)

// TokenState is the decoded token state file.
//
//	global:
//	  Season: spring
//	  Children: [Abby, Bob]
//	  Spouse:
//	    ready: false
//	    unready: [Relationship]
//	packs:
//	  author.pack:
//	    local:
//	      ConfigOption: on
//	    dynamic:
//	      Mood: [happy]
type TokenState struct {
	Global TokenList            `yaml:"global"`
	Packs  map[string]PackState `yaml:"packs"`
}

// PackState is the token state registered for one pack.
type PackState struct {
	Local   TokenList `yaml:"local"`
	Dynamic TokenList `yaml:"dynamic"`
}

// TokenList is a name -> token mapping that keeps the order of the file.
type TokenList []*host.StaticToken

// tokenEntry is the long form of a token entry.
type tokenEntry struct {
	Values        []string `yaml:"values"`
	Ready         *bool    `yaml:"ready"`
	RequiresInput bool     `yaml:"requiresInput"`
	Unready       []string `yaml:"unready"`
	Invalid       []string `yaml:"invalid"`
	Unavailable   []string `yaml:"unavailable"`
}

// UnmarshalYAML decodes a mapping whose values are a scalar, a list of scalars or
// a tokenEntry.
func (l *TokenList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping of token names", node.Line)
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		tok, err := decodeToken(name, node.Content[i+1])
		if err != nil {
			return err
		}
		*l = append(*l, tok)
	}
	return nil
}

func decodeToken(name string, node *yaml.Node) (*host.StaticToken, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return host.NewValueToken(name), nil
		}
		return host.NewValueToken(name, node.Value), nil

	case yaml.SequenceNode:
		var values []string
		if err := node.Decode(&values); err != nil {
			return nil, fmt.Errorf("token %s: %w", name, err)
		}
		return host.NewValueToken(name, values...), nil

	case yaml.MappingNode:
		var entry tokenEntry
		if err := node.Decode(&entry); err != nil {
			return nil, fmt.Errorf("token %s: %w", name, err)
		}
		ready := len(entry.Unready)+len(entry.Invalid)+len(entry.Unavailable) == 0
		if entry.Ready != nil {
			ready = *entry.Ready
		}
		return &host.StaticToken{
			TokenName:  name,
			Ready:      ready,
			NeedsInput: entry.RequiresInput,
			Diag: host.Diagnostics{
				Unready:         entry.Unready,
				Invalid:         entry.Invalid,
				UnavailableMods: entry.Unavailable,
			},
			Resolved: entry.Values,
		}, nil
	}
	return nil, fmt.Errorf("token %s: line %d: unsupported value", name, node.Line)
}

// Context converts the list to a token context.
func (l TokenList) Context() *host.Context {
	ctx := host.NewContext()
	for _, tok := range l {
		ctx.Add(tok)
	}
	return ctx
}

// LoadTokenState reads the token state file. A missing file yields an empty state.
func LoadTokenState(path string) (*TokenState, error) {
	state := &TokenState{}
	if path == "" {
		return state, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return state, nil
		}
		return nil, errors.TokenStateInvalid(path, err)
	}

	if err := yaml.Unmarshal(data, state); err != nil {
		return nil, errors.TokenStateInvalid(path, err)
	}
	return state, nil
}

// Pack returns the state registered for a pack id, ignoring case.
func (s *TokenState) Pack(id string) PackState {
	if ps, ok := s.Packs[id]; ok {
		return ps
	}
	for key, ps := range s.Packs {
		if strings.EqualFold(key, id) {
			return ps
		}
	}
	return PackState{}
}
