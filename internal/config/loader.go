package config

import (
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// varPattern matches $${...} escapes and ${NAME}, ${NAME:-default} and
// ${NAME:?message} references. A "}" inside a default or message is written
// as "\}".
var varPattern = regexp.MustCompile(`\$(\$?)\{([A-Za-z_][A-Za-z0-9_]*)(?:(:[-?])((?:[^}\\]|\\.)*))?\}`)

// Load reads the rollcall configuration at path, substitutes environment
// variables and decodes it. Errors name the file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse substitutes environment variables in raw and decodes the result.
func Parse(raw []byte) (*Config, error) {
	expanded, err := expandEnv(raw)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	return &cfg, nil
}

// expandEnv substitutes variable references in raw:
//
//	${NAME}          value of NAME; an error when NAME is unset
//	${NAME:-default} value of NAME, or default when NAME is unset or empty
//	${NAME:?message} value of NAME; an error carrying message when NAME is
//	                 unset or empty
//	$${NAME}         the literal text ${NAME}
//
// Every failing reference is reported in one error, each name once.
func expandEnv(raw []byte) ([]byte, error) {
	var missing, required []string

	out := varPattern.ReplaceAllFunc(raw, func(match []byte) []byte {
		sub := varPattern.FindSubmatch(match)
		if len(sub[1]) > 0 {
			return match[1:]
		}

		name, op := string(sub[2]), string(sub[3])
		arg := strings.ReplaceAll(string(sub[4]), `\}`, "}")
		value, set := os.LookupEnv(name)

		switch op {
		case ":-":
			if value == "" {
				return []byte(arg)
			}
		case ":?":
			if value == "" {
				msg := arg
				if msg == "" {
					msg = "must be set"
				}
				required = append(required, name+": "+msg)
				return match
			}
		default:
			if !set {
				missing = append(missing, name)
				return match
			}
		}
		return []byte(value)
	})

	var problems []string
	if len(missing) > 0 {
		slices.Sort(missing)
		problems = append(problems, "unset variables: "+strings.Join(slices.Compact(missing), ", "))
	}
	if len(required) > 0 {
		slices.Sort(required)
		problems = append(problems, strings.Join(slices.Compact(required), "; "))
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("environment: %s", strings.Join(problems, "; "))
	}
	return out, nil
}
