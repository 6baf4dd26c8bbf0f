package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/stategraph/stategraph/internal/index"
)

var indexDB string

var indexCmd = &cobra.Command{
	Use:   "index [paths...]",
	Short: "Build the machine index database",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		dbPath := cfg.Index.Path
		if indexDB != "" {
			dbPath = indexDB
		}
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return fmt.Errorf("create index dir: %w", err)
		}

		files, err := collectFiles(cfg, args)
		if err != nil {
			return err
		}
		proj := newProject(cfg)
		loader := newLoader()

		writer, err := index.NewWriter(dbPath)
		if err != nil {
			return err
		}

		start := time.Now()
		machines := 0
		for _, file := range files {
			abs, err := loadInto(proj, loader, file)
			if err != nil {
				_ = writer.Close()
				return err
			}
			results, err := proj.Machines(abs)
			if err != nil {
				_ = writer.Close()
				return err
			}
			for i, res := range results {
				if res.Digraph == nil {
					continue
				}
				if err := writer.Add(abs, i, res.Digraph); err != nil {
					_ = writer.Close()
					return err
				}
				machines++
			}
		}
		if err := writer.Close(); err != nil {
			return err
		}
		fmt.Printf("Indexed %d machine(s) from %d file(s) into %s in %v.\n",
			machines, len(files), dbPath, time.Since(start))
		return nil
	},
}

func init() {
	indexCmd.Flags().StringVar(&indexDB, "db", "", "Index database path (overrides config)")
	rootCmd.AddCommand(indexCmd)
}
