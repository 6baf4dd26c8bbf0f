package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stategraph/stategraph/internal/index"
)

var eventsDB string

var eventsCmd = &cobra.Command{
	Use:   "events [event]",
	Short: "List the indexed machines that handle an event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		dbPath := cfg.Index.Path
		if eventsDB != "" {
			dbPath = eventsDB
		}
		reader, err := index.Open(dbPath)
		if err != nil {
			return err
		}
		defer func() { _ = reader.Close() }()

		entries, err := reader.MachinesForEvent(args[0])
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Printf("no machines handle %q\n", args[0])
			return nil
		}
		for _, e := range entries {
			name := e.MachineID
			if name == "" {
				name = "(machine)"
			}
			fmt.Printf("%s [%d] %s\n", e.Path, e.Ordinal, name)
		}
		return nil
	},
}

func init() {
	eventsCmd.Flags().StringVar(&eventsDB, "db", "", "Index database path (overrides config)")
	rootCmd.AddCommand(eventsCmd)
}
