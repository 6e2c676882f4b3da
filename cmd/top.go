package cmd

import (
	"time"

	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/cmd/top"
	"github.com/spf13/cobra"
)

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "live overview of tenants, jobs and today's relays",
	RunE: func(cmd *cobra.Command, _ []string) error {
		interval, _ := cmd.Flags().GetDuration("interval")
		e, ctx, err := setup(cmd, false)
		if err != nil {
			return err
		}
		defer e.Close()
		return top.Run(ctx, e.store, interval)
	},
}

func init() {
	topCmd.Flags().Duration("interval", 2*time.Second, "refresh interval")
	rootCmd.AddCommand(topCmd)
}
