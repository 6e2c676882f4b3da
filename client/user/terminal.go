package user

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/client/middleware"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/common/utils/tgutil"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/database"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/pkg/relayerr"
	"golang.org/x/term"
)

type TerminalOptions struct {
	Store    *database.Store
	TenantID int64
	APIID    int
	APIHash  string
	Phone    string
	ProxyURL string
	RPCRetry int
}

// LoginTerminal signs in interactively and stores the session as the
// tenant's UserSession, replacing any previous one.
func LoginTerminal(ctx context.Context, opts TerminalOptions) (*tg.User, error) {
	logger := log.FromContext(ctx)
	resolver, err := tgutil.NewProxyResolver(opts.ProxyURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create proxy resolver: %w", err)
	}
	storage := NewStorage(opts.Store, opts.TenantID)
	defer storage.Wipe()
	client := telegram.NewClient(opts.APIID, opts.APIHash, telegram.Options{
		SessionStorage: storage,
		Resolver:       resolver,
		NoUpdates:      true,
		Middlewares: append(
			middleware.NewDefaultMiddlewares(ctx, middleware.Options{RPCRetry: opts.RPCRetry}),
			middleware.NewAuthMiddlewares()...,
		),
	})

	var self *tg.User
	err = client.Run(ctx, func(ctx context.Context) error {
		flow := auth.NewFlow(terminalAuth{phone: opts.Phone}, auth.SendCodeOptions{})
		if err := client.Auth().IfNecessary(ctx, flow); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
		var err error
		self, err = client.Self(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	if _, err := opts.Store.GetTenant(ctx, opts.TenantID); relayerr.IsKind(err, relayerr.KindNotFound) {
		if err := opts.Store.UpsertTenant(ctx, &database.Tenant{ID: opts.TenantID, IsAdmin: true, IsActive: true}); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}
	now := opts.Store.Now()
	err = opts.Store.SaveSession(ctx, &database.UserSession{
		TenantID:      opts.TenantID,
		SessionData:   storage.Blob(),
		APIID:         opts.APIID,
		APIHash:       opts.APIHash,
		Phone:         opts.Phone,
		IsActive:      true,
		LastConnected: &now,
		Info:          selfInfo(self),
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Logged in", "name", displayName(self), "id", self.ID, "tenant", opts.TenantID)
	return self, nil
}

func readLine(prompt string) (string, error) {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	text, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

type terminalAuth struct {
	phone string
}

var _ auth.UserAuthenticator = terminalAuth{}

func (t terminalAuth) Phone(_ context.Context) (string, error) {
	if t.phone != "" {
		return t.phone, nil
	}
	fmt.Println("Your Phone Number (e.g. +44 123456):")
	return readLine("> ")
}

func (t terminalAuth) Code(_ context.Context, _ *tg.AuthSentCode) (string, error) {
	fmt.Println("Your Code (e.g. 123456):")
	return readLine("> ")
}

func (t terminalAuth) Password(_ context.Context) (string, error) {
	fmt.Println("Your 2FA Password:")
	fmt.Print("> ")
	pwd, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(pwd)), nil
}

func (t terminalAuth) AcceptTermsOfService(_ context.Context, tos tg.HelpTermsOfService) error {
	fmt.Printf("Telegram Terms of Service: %s\n", tos.Text)
	resp, err := readLine("Do you accept? (y/n): ")
	if err != nil {
		return err
	}
	if resp != "y" && resp != "Y" {
		return errors.New("terms of service not accepted")
	}
	return nil
}

func (t terminalAuth) SignUp(_ context.Context) (auth.UserInfo, error) {
	return auth.UserInfo{}, errors.New("the phone number is not registered")
}
