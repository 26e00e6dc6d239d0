package repo

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tgit-dev/tgit/internal/tgiterr"
)

// Config is the repository's persisted configuration: named remotes,
// each a "s3://bucket[/prefix]"-style URL. Grounded on
// original_source/vekt_core/src/storage.rs's VektConfig.
type Config struct {
	Remotes map[string]string `json:"remotes"`
}

// LoadConfig reads <root>/.tgit/config.json. A missing file is not an
// error: it yields an empty Config, matching a freshly initialized
// repository with no remotes configured.
func LoadConfig(root string) (Config, error) {
	path := ConfigPath(root)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Config{Remotes: map[string]string{}}, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("repo: reading %s: %w", path, tgiterr.ErrIo)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("repo: parsing %s: %w", path, tgiterr.ErrInvalidManifest)
	}
	if cfg.Remotes == nil {
		cfg.Remotes = map[string]string{}
	}
	return cfg, nil
}

// Save writes the config atomically to <root>/.tgit/config.json.
func (c Config) Save(root string) error {
	if err := EnsureDir(root); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("repo: encoding config: %w", err)
	}
	return WriteFileAtomic(ConfigPath(root), data)
}

// AddRemote sets (or overwrites) a named remote URL.
func (c *Config) AddRemote(name, url string) {
	if c.Remotes == nil {
		c.Remotes = map[string]string{}
	}
	c.Remotes[name] = url
}
