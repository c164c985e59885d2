// Package secrets resolves credentials from environment references and
// mounted secret files (Docker or Kubernetes secrets).
// Secret values are never logged or included in errors.
package secrets

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/hazardwatch/hazardwatch/internal/errors"
)

const (
	// secrets are tokens and passwords, not documents
	maxSecretFileSize = 64 * 1024

	// group and other permission bits
	permissiveBits = 0o077
)

func configError(err error, field string) error {
	return errors.New(err).
		Component("secrets").
		Category(errors.CategoryConfiguration).
		Context("field", field).
		Build()
}

// ExpandString replaces ${VAR} and ${VAR:-fallback} references with
// environment values. A reference without fallback to an unset variable is
// an error naming the variable.
func ExpandString(s string) (string, error) {
	if s == "" {
		return "", nil
	}

	var missing []string
	expanded := os.Expand(s, func(key string) string {
		name, fallback, hasFallback := strings.Cut(key, ":-")
		if value := os.Getenv(name); value != "" {
			return value
		}
		if hasFallback {
			return fallback
		}
		missing = append(missing, name)
		return ""
	})

	if len(missing) > 0 {
		return "", fmt.Errorf("missing required environment variable(s): %s", strings.Join(missing, ", "))
	}
	return expanded, nil
}

// ReadFile reads a secret file, trimming trailing newlines. Files readable by
// group or other are accepted with a warning.
func ReadFile(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("secret file path is empty")
	}
	cleanPath := filepath.Clean(path)

	info, err := os.Stat(cleanPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("secret file not found: %s", cleanPath)
		}
		return "", fmt.Errorf("failed to stat secret file %s: %w", cleanPath, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("secret path is not a regular file: %s", cleanPath)
	}
	if info.Size() > maxSecretFileSize {
		return "", fmt.Errorf("secret file too large (max %d bytes): %s", maxSecretFileSize, cleanPath)
	}
	if perm := info.Mode().Perm(); perm&permissiveBits != 0 {
		slog.Warn("secret file is readable by group or other",
			"service", "secrets", "path", cleanPath, "perm", fmt.Sprintf("%04o", perm))
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return "", fmt.Errorf("failed to read secret file %s: %w", cleanPath, err)
	}
	secret := strings.TrimRight(string(data), "\r\n")
	if secret == "" {
		return "", fmt.Errorf("secret file is empty: %s", cleanPath)
	}
	return secret, nil
}

// Resolve returns the secret for a settings field. A file path takes
// precedence over the value, which may reference environment variables.
// Both empty resolves to the empty string.
func Resolve(field, filePath, value string) (string, error) {
	if filePath != "" {
		secret, err := ReadFile(filePath)
		if err != nil {
			return "", configError(err, field)
		}
		return secret, nil
	}
	expanded, err := ExpandString(value)
	if err != nil {
		return "", configError(err, field)
	}
	return expanded, nil
}
