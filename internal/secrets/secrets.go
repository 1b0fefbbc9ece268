// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads credentials from a directory of plain-text files.
// Each file holds one secret: the filename is the key and the trimmed
// contents are the value. Secrets never go through the config file, so
// they cannot end up in a run report.
//
// Recognized keys: directory-api-token, redis-password.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/scholars-harvest/internal/logging"
	"github.com/pdiddy/scholars-harvest/pkg/types"
)

// Key file names.
const (
	KeyDirectoryToken = "directory-api-token"
	KeyRedisPassword  = "redis-password"
)

// DefaultDir is where Load looks when no directory is configured.
const DefaultDir = ".secrets"

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory is not an error; Load returns an empty map.
// Unreadable files are logged and skipped.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	logger := logging.NewLogger("secrets")
	secrets := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn().Str("key", name).Err(err).Msg("could not read secret")
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			secrets[name] = value
		}
	}
	return secrets, nil
}

// Apply copies known secrets into cfg. Values already set (from the
// environment, for example) win over files.
func Apply(cfg *types.HarvestConfig, secrets map[string]string) {
	if cfg.Directory.Token == "" {
		cfg.Directory.Token = secrets[KeyDirectoryToken]
	}
	if cfg.Output.RedisPassword == "" {
		cfg.Output.RedisPassword = secrets[KeyRedisPassword]
	}
}
