package cmd

import (
	"fmt"
	"strconv"

	"herald/database"

	"github.com/spf13/cobra"
)

// migration entry points, swapped in tests
var (
	migrateUp     = database.MigrateUp
	migrateDown   = database.MigrateDown
	migrateStatus = database.MigrateStatus
)

// NewMigrateCommand creates the migrate command with its up, down and status subcommands
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long:  "Applies or rolls back schema migrations. Only DATABASE_URL and DATABASE_NAME are read.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:          "up",
		Short:        "Apply all pending migrations",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrateUp()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:          "down [steps]",
		Short:        "Roll back migrations (default 1 step)",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n < 1 {
					return fmt.Errorf("invalid steps %q: must be a positive integer", args[0])
				}
				steps = n
			}
			return migrateDown(steps)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:          "status",
		Short:        "Show the current schema version",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrateStatus()
		},
	})

	return cmd
}
