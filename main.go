package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"surveydraw/cmd"
	"surveydraw/database"

	log "github.com/sirupsen/logrus"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if len(os.Args) > 1 {
		if err := handleCommand(ctx, os.Args[1], os.Args[2:]); err != nil {
			log.WithError(err).Fatal("Command failed")
		}
		return
	}

	// Normal server operation
	if err := cmd.Run(ctx); err != nil {
		log.WithError(err).Fatal("Application error")
	}
}

func handleCommand(ctx context.Context, command string, args []string) error {
	switch command {
	case "migrate":
		return handleMigrationCommand(args)
	case "draw":
		if len(args) != 1 {
			return fmt.Errorf("usage: surveydraw draw <surveyInstanceId>")
		}
		return cmd.RunDraw(ctx, args[0])
	case "resend-notification":
		if len(args) != 1 {
			return fmt.Errorf("usage: surveydraw resend-notification <drawId>")
		}
		drawID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid draw id %q: %w", args[0], err)
		}
		return cmd.ResendNotification(ctx, drawID)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func handleMigrationCommand(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: surveydraw migrate [up|down|status] [args...]")
	}

	switch args[0] {
	case "up":
		return database.MigrateUp()
	case "down":
		steps := "1"
		if len(args) > 1 {
			steps = args[1]
		}
		return database.MigrateDown(steps)
	case "status":
		return database.MigrateStatus()
	default:
		return fmt.Errorf("unknown migration command: %s", args[0])
	}
}
