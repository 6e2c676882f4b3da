package cmd

import (
	"errors"
	"fmt"

	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/client/user"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "manage the fallback user session",
}

var sessionLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "log in with API_ID, API_HASH and PHONE_NUMBER and store the session for ADMIN_USER_ID",
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, ctx, err := setup(cmd, true)
		if err != nil {
			return err
		}
		defer e.Close()
		cfg := e.cfg
		if !cfg.HasFallbackSession() {
			return errors.New("PHONE_NUMBER and ADMIN_USER_ID must be set")
		}
		self, err := user.LoginTerminal(ctx, user.TerminalOptions{
			Store:    e.store,
			TenantID: cfg.AdminUserID,
			APIID:    cfg.APIID,
			APIHash:  cfg.APIHash,
			Phone:    cfg.PhoneNumber,
			ProxyURL: cfg.Proxy.URL,
			RPCRetry: cfg.RpcRetry,
		})
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
		fmt.Printf("Logged in as %s %s (id %d), session stored for tenant %d\n",
			self.FirstName, self.LastName, self.ID, cfg.AdminUserID)
		return nil
	},
}

func init() {
	sessionCmd.AddCommand(sessionLoginCmd)
	rootCmd.AddCommand(sessionCmd)
}
