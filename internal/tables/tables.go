// Package tables holds the static lookup tables that map command words to
// device actions, and classifies tokens of a command against them.
package tables

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/coreengine/internal/config"
)

// Device pairs a human-readable device name with its kernel (pin) name
type Device struct {
	DevName    string `json:"dev_name"`
	KernelName string `json:"kernel_name"`
}

// Keywords pairs a cloud command word with the pin state it selects
type Keywords struct {
	CmdName string `json:"cmd_name"`
	State   string `json:"state"`
}

// Direction pairs a direction word with its direction code
type Direction struct {
	DirName  string `json:"dir_name"`
	DirValue string `json:"dir_value"`
}

// CMD pairs a local command word with the motion state it selects
type CMD struct {
	CmdName string `json:"cmd_name"`
	State   string `json:"state"`
}

// Kind identifies which table a matched word came from
type Kind int

const (
	KindNone Kind = iota
	KindDevice
	KindKeyword
	KindDirection
	KindCommand
)

func (k Kind) String() string {
	switch k {
	case KindDevice:
		return "device"
	case KindKeyword:
		return "keyword"
	case KindDirection:
		return "direction"
	case KindCommand:
		return "command"
	default:
		return "none"
	}
}

// Match is a recognised table entry found at the start of a token slice
type Match struct {
	Kind  Kind
	Name  string // canonical (lower-case) entry name
	Value string // kernel name, state or direction code
	Width int    // number of tokens consumed
}

// Tables is the read-only set of lookup tables
type Tables struct {
	Devices []Device    `json:"devices"`
	Keys    []Keywords  `json:"keys"`
	Dir     []Direction `json:"dir"`
	Cmd     []CMD       `json:"cmd"`

	index    map[Kind]map[string]string
	maxWidth int
}

// New builds lookup tables from configuration
func New(cfg config.TablesConfig) (*Tables, error) {
	t := &Tables{
		index: map[Kind]map[string]string{
			KindDevice:    {},
			KindKeyword:   {},
			KindDirection: {},
			KindCommand:   {},
		},
	}

	for _, d := range cfg.Devices {
		if err := t.add(KindDevice, d.Name, d.Kernel); err != nil {
			return nil, err
		}
		t.Devices = append(t.Devices, Device{DevName: normalizeName(d.Name), KernelName: d.Kernel})
	}
	for _, k := range cfg.Keywords {
		if err := t.add(KindKeyword, k.Name, k.State); err != nil {
			return nil, err
		}
		t.Keys = append(t.Keys, Keywords{CmdName: normalizeName(k.Name), State: k.State})
	}
	for _, d := range cfg.Directions {
		if err := t.add(KindDirection, d.Name, d.Value); err != nil {
			return nil, err
		}
		t.Dir = append(t.Dir, Direction{DirName: normalizeName(d.Name), DirValue: d.Value})
	}
	for _, c := range cfg.Commands {
		if err := t.add(KindCommand, c.Name, c.State); err != nil {
			return nil, err
		}
		t.Cmd = append(t.Cmd, CMD{CmdName: normalizeName(c.Name), State: c.State})
	}

	return t, nil
}

func (t *Tables) add(kind Kind, name, value string) error {
	key := normalizeName(name)
	if key == "" || strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s entry %q has an empty name or value", kind, name)
	}
	if _, exists := t.index[kind][key]; exists {
		return fmt.Errorf("duplicate %s entry %q", kind, name)
	}
	t.index[kind][key] = value

	if width := len(strings.Fields(key)); width > t.maxWidth {
		t.maxWidth = width
	}
	return nil
}

// Lookup returns the value stored for name in the table of the given kind
func (t *Tables) Lookup(kind Kind, name string) (string, bool) {
	v, ok := t.index[kind][normalizeName(name)]
	return v, ok
}

// MatchPrefix finds the longest entry among the given kinds whose words
// prefix tokens. Tokens must already be lower-case.
func (t *Tables) MatchPrefix(tokens []string, kinds ...Kind) (Match, bool) {
	width := t.maxWidth
	if width > len(tokens) {
		width = len(tokens)
	}

	for w := width; w > 0; w-- {
		candidate := strings.Join(tokens[:w], " ")
		for _, kind := range kinds {
			if v, ok := t.index[kind][candidate]; ok {
				return Match{Kind: kind, Name: candidate, Value: v, Width: w}, true
			}
		}
	}
	return Match{}, false
}

// Scan classifies a token slice left to right, dropping tokens that match
// none of the given kinds.
func (t *Tables) Scan(tokens []string, kinds ...Kind) []Match {
	var matches []Match
	for i := 0; i < len(tokens); {
		m, ok := t.MatchPrefix(tokens[i:], kinds...)
		if !ok {
			i++
			continue
		}
		matches = append(matches, m)
		i += m.Width
	}
	return matches
}

// KernelNames returns the sorted set of kernel names
func (t *Tables) KernelNames() []string {
	return uniqueSorted(t.index[KindDevice])
}

// PinStates returns the sorted set of states produced by keywords
func (t *Tables) PinStates() []string {
	return uniqueSorted(t.index[KindKeyword])
}

// DirectionValues returns the sorted set of direction codes
func (t *Tables) DirectionValues() []string {
	return uniqueSorted(t.index[KindDirection])
}

// MotionStates returns the sorted set of states produced by local commands
func (t *Tables) MotionStates() []string {
	return uniqueSorted(t.index[KindCommand])
}

// Tokenize lower-cases text and splits it on every rune that is not a
// letter, digit, underscore or hyphen.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-'
	})
}

func normalizeName(name string) string {
	return strings.Join(Tokenize(name), " ")
}

func uniqueSorted(m map[string]string) []string {
	seen := make(map[string]bool, len(m))
	out := make([]string, 0, len(m))
	for _, v := range m {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
