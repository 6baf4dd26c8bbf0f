package cmd

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/stategraph/stategraph/api"
)

var exportOut string

type exportedMachine struct {
	File    string             `json:"file"`
	Index   int                `json:"index"`
	Digraph *api.Digraph       `json:"digraph"`
	Errors  []api.ExtractError `json:"errors,omitempty"`
}

var exportCmd = &cobra.Command{
	Use:   "export [paths...]",
	Short: "Export extracted machines as JSON",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		files, err := collectFiles(cfg, args)
		if err != nil {
			return err
		}
		proj := newProject(cfg)
		loader := newLoader()

		var out []exportedMachine
		for _, file := range files {
			abs, err := loadInto(proj, loader, file)
			if err != nil {
				return err
			}
			results, err := proj.Machines(abs)
			if err != nil {
				return err
			}
			for i, res := range results {
				out = append(out, exportedMachine{
					File:    file,
					Index:   i,
					Digraph: res.Digraph,
					Errors:  res.Errors,
				})
			}
		}

		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		data = append(data, '\n')
		if exportOut != "" {
			return os.WriteFile(exportOut, data, 0o644)
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Write JSON to a file instead of stdout")
	rootCmd.AddCommand(exportCmd)
}
