package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/core"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/database"
	"github.com/spf13/cobra"
)

var backupTenant int64

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "create, list and restore tenant backups",
}

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "back up the tenant's settings and jobs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, ctx, err := setup(cmd, true)
		if err != nil {
			return err
		}
		defer e.Close()
		b := core.NewBackups(e.store, e.cfg.BackupRetention)
		row, err := b.Create(ctx, backupTenant, database.BackupManual)
		if err != nil {
			return err
		}
		fmt.Printf("#%d %s\n", row.ID, b.Describe(e.cfg.Lang, *row))
		return nil
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "list the tenant's backups",
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, ctx, err := setup(cmd, true)
		if err != nil {
			return err
		}
		defer e.Close()
		rows, err := e.store.ListBackups(ctx, backupTenant)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			fmt.Println("no backups")
			return nil
		}
		b := core.NewBackups(e.store, e.cfg.BackupRetention)
		for _, row := range rows {
			fmt.Printf("#%d %s\n", row.ID, b.Describe(e.cfg.Lang, row))
		}
		return nil
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore <backup id>",
	Short: "restore a backup into the tenant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid backup id %q", args[0])
		}
		e, ctx, err := setup(cmd, true)
		if err != nil {
			return err
		}
		defer e.Close()
		res, err := core.NewBackups(e.store, e.cfg.BackupRetention).Restore(ctx, backupTenant, id)
		if err != nil {
			return err
		}
		fmt.Printf("restored: %d created, %d updated, %d skipped\n", res.Created, res.Updated, res.Skipped)
		return nil
	},
}

func init() {
	backupCmd.PersistentFlags().Int64VarP(&backupTenant, "tenant", "t", 0, "tenant (user) id")
	backupCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if backupTenant == 0 {
			return errors.New("--tenant is required")
		}
		return nil
	}
	backupCmd.AddCommand(backupCreateCmd, backupListCmd, backupRestoreCmd)
	rootCmd.AddCommand(backupCmd)
}
