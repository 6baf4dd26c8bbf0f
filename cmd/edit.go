package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/stategraph/stategraph/api"
	"github.com/stategraph/stategraph/internal/writeback"
)

var (
	editIndex   int
	editPatches string
	editDryRun  bool
)

var editCmd = &cobra.Command{
	Use:   "edit [file]",
	Short: "Apply graph patches to a machine and rewrite its source",
	Long: `Apply graph patches to a machine and rewrite its source.

Patches arrive as a JSON array (see --patches). Each patch has an op
(add, remove, replace), a path into the digraph, and a value:

  [{"op": "add",
    "path": ["edges", "edge-5"],
    "value": {"source": "node-1", "targets": ["node-2"],
              "data": {"eventTypeData": {"kind": "named", "eventType": "NEXT"},
                       "internal": true}}}]

The file is only rewritten when every patch could be realized and the
edited source still parses.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		patches, err := readPatches(editPatches)
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		proj := newProject(cfg)
		abs, err := loadInto(proj, newLoader(), args[0])
		if err != nil {
			return err
		}

		edits, err := proj.ApplyPatches(abs, editIndex, patches)
		if err != nil {
			return err
		}
		if len(edits) == 0 {
			fmt.Println("no changes")
			return nil
		}

		f, _ := proj.File(abs)
		updated, err := writeback.Spliced(f.Bytes(), edits)
		if err != nil {
			return err
		}
		if err := writeback.Validate(updated, abs); err != nil {
			return fmt.Errorf("refusing to write: %w", err)
		}

		if editDryRun {
			data, err := json.MarshalIndent(edits, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}
		if err := writeback.Apply(abs, edits); err != nil {
			return err
		}
		fmt.Printf("%s: %d edit(s) applied\n", args[0], len(edits))
		return nil
	},
}

// readPatches loads the patch array from a file, or stdin for "-".
func readPatches(path string) ([]api.Patch, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read patches: %w", err)
	}
	var patches []api.Patch
	if err := json.Unmarshal(data, &patches); err != nil {
		return nil, fmt.Errorf("parse patches: %w", err)
	}
	return patches, nil
}

func init() {
	editCmd.Flags().IntVarP(&editIndex, "machine", "m", 0, "Machine ordinal within the file")
	editCmd.Flags().StringVarP(&editPatches, "patches", "p", "-", "Patch JSON file, - for stdin")
	editCmd.Flags().BoolVar(&editDryRun, "dry-run", false, "Print the computed edits without writing")
	rootCmd.AddCommand(editCmd)
}
