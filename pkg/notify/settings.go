package notify

import (
	"sort"

	"gopkg.in/yaml.v3"

	nerrors "github.com/kart-io/notifykit/pkg/errors"
	"github.com/kart-io/notifykit/pkg/notify/channel"
)

// Entry is one channel in a settings document.
type Entry struct {
	Name   string
	Config channel.Config
}

// Settings is an ordered list of channel configurations. Order decides the
// dispatch order of the resolved Publisher.
type Settings []Entry

// ParseSettings decodes a YAML or JSON mapping of channel name to channel
// configuration, keeping the document's key order.
func ParseSettings(data []byte) (Settings, error) {
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return s, nil
}

// UnmarshalYAML implements yaml.Unmarshaler so Settings can be embedded in
// larger documents.
func (s *Settings) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		node = node.Content[0]
	}
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		*s = nil
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return nerrors.Newf(nerrors.CodeInvalidSettings, "line %d: settings must be a mapping of channel name to config", node.Line)
	}

	out := make(Settings, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		cfg := channel.Config{}
		switch {
		case val.Kind == yaml.ScalarNode && val.Tag == "!!null":
		case val.Kind == yaml.MappingNode:
			if err := val.Decode(&cfg); err != nil {
				return nerrors.Wrap(err, nerrors.CodeInvalidSettings, "invalid config for "+key.Value)
			}
		default:
			return nerrors.Newf(nerrors.CodeInvalidSettings, "line %d: config for %q must be a mapping", val.Line, key.Value)
		}
		out = append(out, Entry{Name: key.Value, Config: cfg})
	}
	*s = out
	return nil
}

// Names returns the entry names in order.
func (s Settings) Names() []string {
	names := make([]string, len(s))
	for i, e := range s {
		names[i] = e.Name
	}
	return names
}

// SettingsFromMap converts a map to Settings. Go maps are unordered, so
// entries are sorted by name.
func SettingsFromMap(m map[string]channel.Config) Settings {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	s := make(Settings, len(names))
	for i, name := range names {
		s[i] = Entry{Name: name, Config: m[name]}
	}
	return s
}
