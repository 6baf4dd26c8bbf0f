package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stategraph/stategraph/internal/render"
)

var (
	showIndex  int
	showFormat string
)

var showCmd = &cobra.Command{
	Use:   "show [file]",
	Short: "Print one machine as JSON or a Mermaid diagram",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		proj := newProject(cfg)
		abs, err := loadInto(proj, newLoader(), args[0])
		if err != nil {
			return err
		}
		res, err := proj.Machine(abs, showIndex)
		if err != nil {
			return err
		}
		for _, e := range res.Errors {
			fmt.Fprintf(os.Stderr, "warning: %s\n", e.String())
		}
		if res.Digraph == nil {
			return fmt.Errorf("machine %d has no configuration object", showIndex)
		}
		switch showFormat {
		case "json":
			data, err := json.MarshalIndent(res.Digraph, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
		case "mermaid":
			fmt.Print(render.Mermaid(res.Digraph))
		default:
			return fmt.Errorf("unknown format %q (want json or mermaid)", showFormat)
		}
		return nil
	},
}

func init() {
	showCmd.Flags().IntVarP(&showIndex, "machine", "m", 0, "Machine ordinal within the file")
	showCmd.Flags().StringVarP(&showFormat, "format", "f", "json", "Output format: json or mermaid")
	rootCmd.AddCommand(showCmd)
}
