package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/joho/godotenv"
)

// variables returns the values available to ${VAR} references. Process
// environment variables take precedence over the dotenv file, matching
// godotenv.Load.
func (s Source) variables() (map[string]string, error) {
	vars := make(map[string]string)

	if s.EnvFile != "" {
		secrets, err := godotenv.Read(s.EnvFile)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("config: read env file: %w", err)
		default:
			for k, v := range secrets {
				vars[k] = v
			}
		}
	}

	if s.IncludeOSEnv {
		for _, kv := range os.Environ() {
			if k, v, ok := strings.Cut(kv, "="); ok {
				vars[k] = v
			}
		}
	}
	return vars, nil
}

// reference matches ${NAME} and the $$ escape. A bare $NAME is left alone so
// that values such as shell snippets for the command action keep their own
// variable references.
var reference = regexp.MustCompile(`\$\$|\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expander substitutes ${VAR} references, turns $$ into a literal $, and
// remembers every name that had no value.
type expander struct {
	vars    map[string]string
	missing map[string]bool
}

func (e *expander) expand(s string) string {
	if !strings.Contains(s, "$") {
		return s
	}
	return reference.ReplaceAllStringFunc(s, func(m string) string {
		if m == "$$" {
			return "$"
		}
		name := m[2 : len(m)-1]
		if v, ok := e.vars[name]; ok {
			return v
		}
		if e.missing == nil {
			e.missing = make(map[string]bool)
		}
		e.missing[name] = true
		return ""
	})
}

func (e *expander) expandMap(m map[string]any) map[string]any {
	for k, v := range m {
		m[k] = e.expandValue(v)
	}
	return m
}

func (e *expander) expandValue(v any) any {
	switch t := v.(type) {
	case string:
		return e.expand(t)
	case map[string]any:
		return e.expandMap(t)
	case []any:
		for i := range t {
			t[i] = e.expandValue(t[i])
		}
		return t
	default:
		return v
	}
}

func (e *expander) err() error {
	if len(e.missing) == 0 {
		return nil
	}
	names := make([]string, 0, len(e.missing))
	for n := range e.missing {
		names = append(names, n)
	}
	sort.Strings(names)
	return fmt.Errorf("undefined variables: %s", strings.Join(names, ", "))
}
