package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var machinesCmd = &cobra.Command{
	Use:   "machines [paths...]",
	Short: "List the machines found in files or directories",
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

		total := 0
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
				total++
				if res.Digraph == nil {
					fmt.Printf("%s [%d] (no configuration object, %d warnings)\n",
						file, i, len(res.Errors))
					continue
				}
				root := res.Digraph.Nodes[res.Digraph.RootID]
				name := ""
				if root != nil {
					name = root.Data.Key
				}
				fmt.Printf("%s [%d] %s (%d states, %d transitions", file, i, name,
					len(res.Digraph.Nodes), len(res.Digraph.Edges))
				if len(res.Errors) > 0 {
					fmt.Printf(", %d warnings", len(res.Errors))
				}
				fmt.Println(")")
			}
		}
		fmt.Printf("%d machine(s) in %d file(s)\n", total, len(files))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(machinesCmd)
}
