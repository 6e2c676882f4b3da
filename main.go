package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	cmd.Execute(ctx)
}
