// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/scholars-harvest/pkg/types"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T) string
		want  map[string]string
	}{
		{
			name: "reads key files and trims whitespace",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, KeyDirectoryToken, "  tok_abc123  \n")
				writeFile(t, dir, KeyRedisPassword, "hunter2\n")
				return dir
			},
			want: map[string]string{
				KeyDirectoryToken: "tok_abc123",
				KeyRedisPassword:  "hunter2",
			},
		},
		{
			name: "returns empty map for nonexistent directory",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "does-not-exist")
			},
			want: map[string]string{},
		},
		{
			name: "skips empty files and dotfiles",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, KeyDirectoryToken, "valid")
				writeFile(t, dir, KeyRedisPassword, "   \n\t  ")
				writeFile(t, dir, ".gitkeep", "")
				writeFile(t, dir, ".hidden-key", "secret")
				return dir
			},
			want: map[string]string{KeyDirectoryToken: "valid"},
		},
		{
			name: "skips subdirectories",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, KeyRedisPassword, "pw")
				require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o755))
				return dir
			},
			want: map[string]string{KeyRedisPassword: "pw"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Load(tt.setup(t))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadUnreadableFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("file permissions are not enforced for root")
	}
	dir := t.TempDir()
	writeFile(t, dir, KeyDirectoryToken, "value123")

	badPath := filepath.Join(dir, KeyRedisPassword)
	require.NoError(t, os.WriteFile(badPath, []byte("secret"), 0o000))
	t.Cleanup(func() { os.Chmod(badPath, 0o644) })

	got, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{KeyDirectoryToken: "value123"}, got)
}

func TestApply(t *testing.T) {
	cfg := types.DefaultHarvestConfig()
	Apply(&cfg, map[string]string{KeyDirectoryToken: "from-file", KeyRedisPassword: "pw"})
	assert.Equal(t, "from-file", cfg.Directory.Token)
	assert.Equal(t, "pw", cfg.Output.RedisPassword)

	cfg = types.DefaultHarvestConfig()
	cfg.Directory.Token = "from-env"
	Apply(&cfg, map[string]string{KeyDirectoryToken: "from-file"})
	assert.Equal(t, "from-env", cfg.Directory.Token)
	assert.Empty(t, cfg.Output.RedisPassword)
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}
