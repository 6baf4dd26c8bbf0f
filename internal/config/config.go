// Package config loads project settings from an optional stategraph.hcl
// file. Empty fields mean "use the built-in default"; CLI flags override
// whatever the file says.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

// DefaultPath is where Load looks when no explicit path is given.
const DefaultPath = "stategraph.hcl"

// Config is the on-disk project configuration.
//
//	factory = "createMachine"
//	exclude = ["*.test.ts"]
//
//	index {
//	  path = ".stategraph/index.db"
//	}
type Config struct {
	// Factory overrides the machine factory call name. Empty keeps the
	// extraction default.
	Factory string `hcl:"factory,optional"`
	// Include and Exclude are filepath.Match patterns tried against both a
	// walked file's path relative to the walk root and its base name. An
	// empty include list admits every file with a recognized extension.
	Include []string `hcl:"include,optional"`
	Exclude []string `hcl:"exclude,optional"`
	Index   *Index   `hcl:"index,block"`
}

// Index configures the machine index database.
type Index struct {
	Path string `hcl:"path,optional"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Index: &Index{Path: ".stategraph/index.db"},
	}
}

// Load reads the configuration at path. A missing explicit path is an
// error; a missing DefaultPath silently yields the defaults.
func Load(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	cfg := Default()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if explicit {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
		return cfg, nil
	}
	var loaded Config
	if err := hclsimple.DecodeFile(path, nil, &loaded); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if loaded.Factory != "" {
		cfg.Factory = loaded.Factory
	}
	if len(loaded.Include) > 0 {
		cfg.Include = loaded.Include
	}
	if len(loaded.Exclude) > 0 {
		cfg.Exclude = loaded.Exclude
	}
	if loaded.Index != nil && loaded.Index.Path != "" {
		cfg.Index.Path = loaded.Index.Path
	}
	return cfg, nil
}
