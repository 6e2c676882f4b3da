package cmd

import (
	"fmt"
	"runtime"

	"github.com/blang/semver"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/config"
	"github.com/rhysd/go-github-selfupdate/selfupdate"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:     "version",
	Aliases: []string{"v"},
	Short:   "print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("relay version: %s %s/%s\nBuildTime: %s, Commit: %s\n", config.Version, runtime.GOOS, runtime.GOARCH, config.BuildTime, config.GitCommit)
	},
}

var upgradeCmd = &cobra.Command{
	Use:     "upgrade",
	Aliases: []string{"up"},
	Short:   "upgrade the binary to the latest release",
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := semver.Parse(config.Version)
		if err != nil {
			return fmt.Errorf("dev build or version not injected: %w", err)
		}
		latest, err := selfupdate.UpdateSelf(v, config.GitRepo)
		if err != nil {
			return fmt.Errorf("binary update failed: %w", err)
		}
		if latest.Version.Equals(v) {
			fmt.Println("Current binary is the latest version", config.Version)
			return nil
		}
		fmt.Println("Successfully updated to version", latest.Version)
		fmt.Println("Release note:\n", latest.ReleaseNotes)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(upgradeCmd)
}
