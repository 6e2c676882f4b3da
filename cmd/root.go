package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "relay",
	Short:         "multi-tenant telegram message relay",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          Run,
}

func init() {
	config.RegisterFlags(rootCmd)
}

func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
