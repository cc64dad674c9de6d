// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config holds the datasync configuration surface. The engine takes
// an explicit *Config at construction; there is no process-wide mutable
// state.
package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// 🔧 Config is the full configuration surface for the transfer engine
type Config struct {
	// LogPath is where the audit operation log is appended. Empty means the
	// default (datasync_log.txt in the working directory).
	LogPath string `json:"log_path,omitempty" yaml:"log_path" hcl:"log_path,optional"`

	// DenyPrefixes extends the built-in denylist of unsafe write roots.
	// Entries must be absolute. The built-in set cannot be removed.
	DenyPrefixes []string `json:"deny_prefixes,omitempty" yaml:"deny_prefixes" hcl:"deny_prefixes,optional"`

	// Overwrite allows replacing existing destination files. Default false:
	// an existing destination refuses the item.
	Overwrite bool `json:"overwrite,omitempty" yaml:"overwrite" hcl:"overwrite,optional"`

	// TimeoutPerItem bounds each single-item filesystem operation, as a Go
	// duration string ("30s", "2m"). Empty means no per-item timeout.
	TimeoutPerItem string `json:"timeout_per_item,omitempty" yaml:"timeout_per_item" hcl:"timeout_per_item,optional"`

	// Parallel is the number of files copied concurrently during the execute
	// phase. Zero or one means serial.
	Parallel int `json:"parallel,omitempty" yaml:"parallel" hcl:"parallel,optional"`

	// IgnorePatterns are doublestar globs, relative to the source root, for
	// entries a transfer skips.
	IgnorePatterns []string `json:"ignore_patterns,omitempty" yaml:"ignore_patterns" hcl:"ignore_patterns,optional"`

	// location is the file this config was loaded from, if any
	location string
}

// 🏭 Default returns the conservative zero-config baseline
func Default() *Config {
	return &Config{
		LogPath:   "",
		Overwrite: false,
		Parallel:  1,
	}
}

// 📍 Location returns the path the config was loaded from, or ""
func (c *Config) Location() string {
	return c.location
}

// ⏱️ ItemTimeout parses TimeoutPerItem. Zero means no timeout.
func (c *Config) ItemTimeout() (time.Duration, error) {
	if c.TimeoutPerItem == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.TimeoutPerItem)
	if err != nil {
		return 0, errors.Errorf("parsing timeout_per_item %q: %w", c.TimeoutPerItem, err)
	}
	if d < 0 {
		return 0, errors.Errorf("timeout_per_item %q: must not be negative", c.TimeoutPerItem)
	}
	return d, nil
}

// ✅ Validate checks the config for problems that would only surface later
func Validate(ctx context.Context, cfg *Config) error {
	logger := zerolog.Ctx(ctx)

	for _, p := range cfg.DenyPrefixes {
		if !filepath.IsAbs(p) {
			return errors.Errorf("deny prefix %q must be absolute", p)
		}
	}
	if cfg.Parallel < 0 {
		return errors.Errorf("parallel must not be negative, got %d", cfg.Parallel)
	}
	if _, err := cfg.ItemTimeout(); err != nil {
		return err
	}

	logger.Debug().
		Int("deny_prefixes", len(cfg.DenyPrefixes)).
		Bool("overwrite", cfg.Overwrite).
		Msg("config validated")
	return nil
}
