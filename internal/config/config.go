package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultLogLevel     = "ERROR"
	DefaultLogFormat    = "json"
	DefaultPollInterval = 60 * time.Second
	DefaultDispatch     = DispatchListeners
)

// Dispatch modes accepted in general.dispatch.
const (
	// DispatchListeners routes a monitor's events only to the actions bound
	// to it through the listeners section.
	DispatchListeners = "listeners"

	// DispatchBroadcast routes every event to every configured action,
	// regardless of listener bindings.
	DispatchBroadcast = "broadcast"
)

// Settings is the fully loaded configuration. It is not modified after Load
// returns.
type Settings struct {
	// Path is the file the settings were read from.
	Path string

	General   General
	Monitors  []ComponentSpec
	Actions   []ComponentSpec
	Listeners []Listener
}

// General holds the scalar options of the general section.
type General struct {
	// LogLevel is one of DEBUG | INFO | WARNING | ERROR | CRITICAL.
	LogLevel string

	// LogFile is the path log records are appended to. Empty means stderr.
	LogFile string

	// LogFormat is one of json | text.
	LogFormat string

	// PollInterval is the pause before every dispatch cycle.
	PollInterval time.Duration

	// Dispatch selects how events are routed to actions: listeners | broadcast.
	Dispatch string

	// MetricsAddr is the listen address for /metrics and the status API.
	// Empty disables the HTTP endpoint.
	MetricsAddr string
}

// ComponentSpec describes one entry of the monitors or actions section.
type ComponentSpec struct {
	Name    string
	Type    string
	Options map[string]any
}

// Decode copies the entry's options into v, which should be a pointer to a
// struct with yaml tags. Unknown option keys are rejected.
func (c ComponentSpec) Decode(v any) error {
	opts := c.Options
	if opts == nil {
		opts = map[string]any{}
	}
	data, err := yaml.Marshal(opts)
	if err != nil {
		return fmt.Errorf("%s: encode options: %w", c.Name, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%s: decode options: %w", c.Name, err)
	}
	return nil
}

// Listener binds the action named Action to the monitor named Monitor.
type Listener struct {
	Name    string
	Monitor string
	Action  string
}

// Source identifies where settings come from.
type Source struct {
	// Path is the YAML (.yaml, .yml) or TOML (.toml) config file.
	Path string

	// EnvFile is an optional dotenv file holding secrets. A missing file is
	// not an error.
	EnvFile string

	// IncludeOSEnv makes process environment variables available to ${VAR}
	// references in the config file.
	IncludeOSEnv bool
}

// Load reads the config file at path plus the optional dotenv file and
// returns validated Settings.
func Load(path, envFile string, includeOSEnv bool) (*Settings, error) {
	return Source{Path: path, EnvFile: envFile, IncludeOSEnv: includeOSEnv}.Load()
}

// Load reads, expands and validates the settings described by s.
func (s Source) Load() (*Settings, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	var doc *rawDocument
	switch strings.ToLower(filepath.Ext(s.Path)) {
	case ".toml":
		doc, err = parseTOML(data)
	default:
		doc, err = parseYAML(data)
	}
	if err != nil {
		return nil, err
	}

	vars, err := s.variables()
	if err != nil {
		return nil, err
	}

	settings, err := doc.settings(vars)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	settings.Path = s.Path

	if err := validate(settings); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return settings, nil
}

// rawDocument is the format-independent intermediate form of a config file.
// Section entries keep declaration order.
type rawDocument struct {
	General   rawGeneral
	Monitors  []ComponentSpec
	Actions   []ComponentSpec
	Listeners []Listener
}

type rawGeneral struct {
	LogLevel     string `yaml:"log_level" toml:"log_level"`
	LogFile      string `yaml:"log_file" toml:"log_file"`
	LogFormat    string `yaml:"log_format" toml:"log_format"`
	PollInterval string `yaml:"poll_interval" toml:"poll_interval"`
	Dispatch     string `yaml:"dispatch" toml:"dispatch"`
	MetricsAddr  string `yaml:"metrics_addr" toml:"metrics_addr"`
}

type rawListener struct {
	Monitor string `yaml:"monitor" toml:"monitor"`
	Action  string `yaml:"action" toml:"action"`
}

// settings expands ${VAR} references and applies defaults.
func (d *rawDocument) settings(vars map[string]string) (*Settings, error) {
	ex := &expander{vars: vars}

	g := d.General
	out := &Settings{
		General: General{
			LogLevel:     ex.expand(g.LogLevel),
			LogFile:      ex.expand(g.LogFile),
			LogFormat:    ex.expand(g.LogFormat),
			Dispatch:     ex.expand(g.Dispatch),
			MetricsAddr:  ex.expand(g.MetricsAddr),
			PollInterval: DefaultPollInterval,
		},
	}
	if out.General.LogLevel == "" {
		out.General.LogLevel = DefaultLogLevel
	}
	if out.General.LogFormat == "" {
		out.General.LogFormat = DefaultLogFormat
	}
	if out.General.Dispatch == "" {
		out.General.Dispatch = DefaultDispatch
	}
	if raw := ex.expand(g.PollInterval); raw != "" {
		interval, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("general.poll_interval: %w", err)
		}
		out.General.PollInterval = interval
	}

	for _, spec := range d.Monitors {
		spec.Options = ex.expandMap(spec.Options)
		out.Monitors = append(out.Monitors, spec)
	}
	for _, spec := range d.Actions {
		spec.Options = ex.expandMap(spec.Options)
		out.Actions = append(out.Actions, spec)
	}
	for _, l := range d.Listeners {
		l.Monitor = ex.expand(l.Monitor)
		l.Action = ex.expand(l.Action)
		out.Listeners = append(out.Listeners, l)
	}

	if err := ex.err(); err != nil {
		return nil, err
	}
	return out, nil
}

// parseYAML decodes a YAML config. Section mappings are walked node by node so
// that entries keep the order they were declared in.
func parseYAML(data []byte) (*rawDocument, error) {
	var top struct {
		General   rawGeneral `yaml:"general"`
		Monitors  yaml.Node  `yaml:"monitors"`
		Actions   yaml.Node  `yaml:"actions"`
		Listeners yaml.Node  `yaml:"listeners"`
	}
	if err := yaml.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	doc := &rawDocument{General: top.General}
	var err error
	if doc.Monitors, err = yamlComponents("monitors", &top.Monitors); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if doc.Actions, err = yamlComponents("actions", &top.Actions); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	err = eachYAMLEntry("listeners", &top.Listeners, func(name string, value *yaml.Node) error {
		var rl rawListener
		if err := value.Decode(&rl); err != nil {
			return fmt.Errorf("listeners.%s: %w", name, err)
		}
		doc.Listeners = append(doc.Listeners, Listener{Name: name, Monitor: rl.Monitor, Action: rl.Action})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return doc, nil
}

func yamlComponents(section string, node *yaml.Node) ([]ComponentSpec, error) {
	var specs []ComponentSpec
	err := eachYAMLEntry(section, node, func(name string, value *yaml.Node) error {
		opts := map[string]any{}
		if value.Kind != 0 && value.Tag != "!!null" {
			if err := value.Decode(&opts); err != nil {
				return fmt.Errorf("%s.%s: %w", section, name, err)
			}
		}
		specs = append(specs, newComponentSpec(name, opts))
		return nil
	})
	return specs, err
}

// eachYAMLEntry calls fn for every key/value pair of a mapping node in
// document order. An absent or null section yields no calls.
func eachYAMLEntry(section string, node *yaml.Node, fn func(name string, value *yaml.Node) error) error {
	if node.Kind == 0 || node.Tag == "!!null" {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("%s: expected a mapping (line %d)", section, node.Line)
	}
	seen := make(map[string]bool, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if seen[key.Value] {
			return fmt.Errorf("%s: duplicate entry %q (line %d)", section, key.Value, key.Line)
		}
		seen[key.Value] = true
		if err := fn(key.Value, value); err != nil {
			return err
		}
	}
	return nil
}

// parseTOML decodes a TOML config. TOML tables carry no order, so entries are
// sorted by name.
func parseTOML(data []byte) (*rawDocument, error) {
	var top struct {
		General   rawGeneral                `toml:"general"`
		Monitors  map[string]map[string]any `toml:"monitors"`
		Actions   map[string]map[string]any `toml:"actions"`
		Listeners map[string]rawListener    `toml:"listeners"`
	}
	if err := toml.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("config: parse toml: %w", err)
	}

	doc := &rawDocument{General: top.General}
	for _, name := range sortedKeys(top.Monitors) {
		doc.Monitors = append(doc.Monitors, newComponentSpec(name, top.Monitors[name]))
	}
	for _, name := range sortedKeys(top.Actions) {
		doc.Actions = append(doc.Actions, newComponentSpec(name, top.Actions[name]))
	}
	for _, name := range sortedKeys(top.Listeners) {
		rl := top.Listeners[name]
		doc.Listeners = append(doc.Listeners, Listener{Name: name, Monitor: rl.Monitor, Action: rl.Action})
	}
	return doc, nil
}

// newComponentSpec splits the type descriptor out of an entry's options.
func newComponentSpec(name string, opts map[string]any) ComponentSpec {
	if opts == nil {
		opts = map[string]any{}
	}
	spec := ComponentSpec{Name: name, Options: opts}
	if t, ok := opts["type"].(string); ok {
		spec.Type = t
	}
	delete(opts, "type")
	return spec
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// validate checks required fields and structural constraints. Listener
// references are resolved later, when components are wired.
func validate(s *Settings) error {
	switch strings.ToLower(s.General.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("general.log_format: unknown format %q", s.General.LogFormat)
	}
	switch s.General.Dispatch {
	case DispatchListeners, DispatchBroadcast:
	default:
		return fmt.Errorf("general.dispatch: unknown mode %q", s.General.Dispatch)
	}
	if s.General.PollInterval <= 0 {
		return fmt.Errorf("general.poll_interval must be positive")
	}

	for _, section := range []struct {
		name  string
		specs []ComponentSpec
	}{{"monitors", s.Monitors}, {"actions", s.Actions}} {
		for i, spec := range section.specs {
			if strings.TrimSpace(spec.Name) == "" {
				return fmt.Errorf("%s[%d]: name is required", section.name, i)
			}
			if spec.Type == "" {
				return fmt.Errorf("%s.%s: type is required", section.name, spec.Name)
			}
		}
	}

	for i, l := range s.Listeners {
		if strings.TrimSpace(l.Name) == "" {
			return fmt.Errorf("listeners[%d]: name is required", i)
		}
		if l.Monitor == "" {
			return fmt.Errorf("listeners.%s: monitor is required", l.Name)
		}
		if l.Action == "" {
			return fmt.Errorf("listeners.%s: action is required", l.Name)
		}
	}
	return nil
}
