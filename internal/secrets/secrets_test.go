package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazardwatch/hazardwatch/internal/errors"
)

func TestExpandString(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		envVars map[string]string
		want    string
		wantErr bool
	}{
		{name: "empty string", input: "", want: ""},
		{name: "literal string", input: "literal-value", want: "literal-value"},
		{
			name:    "simple variable expansion",
			input:   "${HW_TOKEN}",
			envVars: map[string]string{"HW_TOKEN": "secret123"},
			want:    "secret123",
		},
		{
			name:    "variable with prefix",
			input:   "Bearer ${HW_TOKEN}",
			envVars: map[string]string{"HW_TOKEN": "abc123"},
			want:    "Bearer abc123",
		},
		{
			name:    "multiple variables",
			input:   "${HW_USER}:${HW_PASS}",
			envVars: map[string]string{"HW_USER": "admin", "HW_PASS": "secret"},
			want:    "admin:secret",
		},
		{
			name:    "fallback ignored when set",
			input:   "${HW_TOKEN:-default}",
			envVars: map[string]string{"HW_TOKEN": "actual"},
			want:    "actual",
		},
		{name: "fallback used when unset", input: "${HW_UNSET_TOKEN:-default}", want: "default"},
		{name: "empty fallback", input: "${HW_UNSET_TOKEN:-}", want: ""},
		{name: "missing variable", input: "${HW_UNSET_TOKEN}", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}
			got, err := ExpandString(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "HW_UNSET_TOKEN")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func writeSecret(t *testing.T, content string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secret")
	require.NoError(t, os.WriteFile(path, []byte(content), perm))
	return path
}

func TestReadFile(t *testing.T) {
	t.Run("trims trailing newlines only", func(t *testing.T) {
		got, err := ReadFile(writeSecret(t, "  s3cret \r\n\n", 0o600))
		require.NoError(t, err)
		assert.Equal(t, "  s3cret ", got)
	})

	t.Run("permissive file is still read", func(t *testing.T) {
		got, err := ReadFile(writeSecret(t, "token\n", 0o644))
		require.NoError(t, err)
		assert.Equal(t, "token", got)
	})

	t.Run("empty file", func(t *testing.T) {
		_, err := ReadFile(writeSecret(t, "\n", 0o600))
		assert.ErrorContains(t, err, "empty")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := ReadFile(filepath.Join(t.TempDir(), "nope"))
		assert.ErrorContains(t, err, "not found")
	})

	t.Run("directory", func(t *testing.T) {
		_, err := ReadFile(t.TempDir())
		assert.ErrorContains(t, err, "not a regular file")
	})

	t.Run("too large", func(t *testing.T) {
		big := make([]byte, maxSecretFileSize+1)
		for i := range big {
			big[i] = 'a'
		}
		_, err := ReadFile(writeSecret(t, string(big), 0o600))
		assert.ErrorContains(t, err, "too large")
	})

	t.Run("empty path", func(t *testing.T) {
		_, err := ReadFile("")
		assert.Error(t, err)
	})
}

func TestResolve(t *testing.T) {
	t.Setenv("HW_RESOLVE_TOKEN", "from-env")

	t.Run("file takes precedence", func(t *testing.T) {
		path := writeSecret(t, "from-file\n", 0o600)
		got, err := Resolve("sources.social.bearertoken", path, "${HW_RESOLVE_TOKEN}")
		require.NoError(t, err)
		assert.Equal(t, "from-file", got)
	})

	t.Run("value expanded", func(t *testing.T) {
		got, err := Resolve("sources.social.bearertoken", "", "${HW_RESOLVE_TOKEN}")
		require.NoError(t, err)
		assert.Equal(t, "from-env", got)
	})

	t.Run("nothing configured", func(t *testing.T) {
		got, err := Resolve("notify.mqtt.password", "", "")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("errors are configuration errors without the value", func(t *testing.T) {
		_, err := Resolve("notify.mqtt.password", filepath.Join(t.TempDir(), "missing"), "hunter2")
		require.Error(t, err)
		assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
		assert.NotContains(t, err.Error(), "hunter2")
	})
}
