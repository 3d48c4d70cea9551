// Package config provides the typed configuration hierarchy: the Setting
// root loaded from YAML with environment-variable substitution, the
// component and flow-config registries, and the per-component config types
// with their SetDefaults/Validate lifecycle.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"github.com/joho/godotenv"
)

// envVarPattern matches ${VAR} and ${VAR:default}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::([^}]*))?\}`)

// expandString substitutes ${VAR} and ${VAR:default} occurrences from the
// environment. An unset variable without a default resolves to the empty
// string.
func expandString(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		if val, ok := os.LookupEnv(parts[1]); ok {
			return val
		}
		return parts[2]
	})
}

// ExpandEnvVars recursively substitutes environment variables in every
// string value of a parsed YAML structure.
func ExpandEnvVars(value any) any {
	switch v := value.(type) {
	case string:
		return expandString(v)
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = ExpandEnvVars(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = ExpandEnvVars(item)
		}
		return out
	default:
		return value
	}
}

// loadEnvFiles loads environment variables before substitution. With an
// explicit path, that file is required. Otherwise .env is auto-discovered
// from the working directory and its parent; absence is not an error.
func loadEnvFiles(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return err
		}
		slog.Debug("Loaded environment file", "path", envFile)
		return nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil
	}
	for _, candidate := range []string{
		filepath.Join(cwd, ".env"),
		filepath.Join(filepath.Dir(cwd), ".env"),
	} {
		if _, err := os.Stat(candidate); err == nil {
			if err := godotenv.Load(candidate); err == nil {
				slog.Debug("Loaded environment file", "path", candidate)
				return nil
			}
		}
	}
	return nil
}
