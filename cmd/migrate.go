package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "apply pending schema migrations and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, ctx, err := setup(cmd, true)
		if err != nil {
			return err
		}
		defer e.Close()
		v, err := e.store.SchemaVersion(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("database %s is at schema version %d\n", e.store.Dialect(), v)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
