package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/stategraph/stategraph/internal/config"
	"github.com/stategraph/stategraph/internal/project"
	"github.com/stategraph/stategraph/internal/source"
)

var (
	configPath  string
	factoryName string
)

var rootCmd = &cobra.Command{
	Use:   "stategraph",
	Short: "Extract and edit statechart definitions embedded in JS/TS source",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to stategraph.hcl")
	rootCmd.PersistentFlags().StringVar(&factoryName, "factory", "", "Machine factory call name (overrides config)")
}

// loadConfig resolves the effective configuration: file first, flags on top.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if factoryName != "" {
		cfg.Factory = factoryName
	}
	return cfg, nil
}

func newProject(cfg config.Config) *project.Project {
	if cfg.Factory != "" {
		return project.New(project.WithFactory(cfg.Factory))
	}
	return project.New()
}

func newLoader() *source.Loader {
	return source.NewLoader(osfs.New("/"))
}

// loadInto parses path and registers it with the project. Loader paths are
// absolute because the loader is rooted at /.
func loadInto(p *project.Project, loader *source.Loader, path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	f, err := loader.Load(abs)
	if err != nil {
		return "", err
	}
	p.UpdateFile(f)
	return abs, nil
}

// collectFiles expands args into source files: files pass through,
// directories are walked for recognized extensions subject to the config's
// include/exclude patterns. node_modules and dot directories are skipped.
func collectFiles(cfg config.Config, args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		root := arg
		err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				name := d.Name()
				if path != root && (name == "node_modules" || strings.HasPrefix(name, ".")) {
					return filepath.SkipDir
				}
				return nil
			}
			if _, _, ok := source.LanguageForPath(path); !ok {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				rel = path
			}
			if !included(cfg, filepath.ToSlash(rel)) {
				return nil
			}
			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(files)
	return files, nil
}

func included(cfg config.Config, rel string) bool {
	match := func(patterns []string) bool {
		for _, pat := range patterns {
			if ok, _ := filepath.Match(pat, rel); ok {
				return true
			}
			if ok, _ := filepath.Match(pat, filepath.Base(rel)); ok {
				return true
			}
		}
		return false
	}
	if len(cfg.Include) > 0 && !match(cfg.Include) {
		return false
	}
	return !match(cfg.Exclude)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
