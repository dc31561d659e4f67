package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Variable pattern matches ${...} expressions
var variablePattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ResolutionContext holds the values path variables expand to.
type ResolutionContext struct {
	// ConfigDir is the directory of the loaded configuration file
	ConfigDir string

	// EnvOverrides take precedence over the process environment for ${env:NAME}
	EnvOverrides map[string]string
}

// ResolveVariables replaces all ${...} variables in the given text.
//
// Supported variables:
//   - ${configDir}: directory of the configuration file
//   - ${userHome}: the user's home directory
//   - ${cwd}: the working directory of the process
//   - ${pathSeparator}: the OS path separator
//   - ${env:NAME}: an environment variable
func ResolveVariables(text string, ctx *ResolutionContext) (string, error) {
	if ctx == nil {
		ctx = &ResolutionContext{}
	}

	var lastErr error
	result := variablePattern.ReplaceAllStringFunc(text, func(match string) string {
		expr := match[2 : len(match)-1]

		resolved, err := resolveVariable(expr, ctx)
		if err != nil {
			lastErr = err
			return match // Keep original if error
		}
		return resolved
	})

	return result, lastErr
}

func resolveVariable(expr string, ctx *ResolutionContext) (string, error) {
	switch {
	case expr == "configDir":
		if ctx.ConfigDir == "" {
			return "", fmt.Errorf("${configDir} needs a configuration file")
		}
		return ctx.ConfigDir, nil

	case expr == "userHome":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home: %w", err)
		}
		return home, nil

	case expr == "cwd":
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get cwd: %w", err)
		}
		return cwd, nil

	case expr == "pathSeparator":
		return string(os.PathSeparator), nil

	case strings.HasPrefix(expr, "env:"):
		varName := strings.TrimPrefix(expr, "env:")
		if val, ok := ctx.EnvOverrides[varName]; ok {
			return val, nil
		}
		return os.Getenv(varName), nil

	default:
		return "", fmt.Errorf("unknown variable: ${%s}", expr)
	}
}

// resolvePath expands variables in a configured path and makes a relative result
// relative to the configuration file.
func resolvePath(path string, ctx *ResolutionContext) (string, error) {
	if path == "" {
		return "", nil
	}
	resolved, err := ResolveVariables(path, ctx)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(resolved) && ctx.ConfigDir != "" {
		resolved = filepath.Join(ctx.ConfigDir, resolved)
	}
	return filepath.Clean(resolved), nil
}
