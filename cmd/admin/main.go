package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tarotjournal/internal/config"
	"tarotjournal/internal/database"
	"tarotjournal/internal/logger"
	"tarotjournal/internal/server"
)

// cliActor identifies the command line in audit entries.
const cliActor = "cli"

// appFactory opens a wired application and returns a function releasing it.
type appFactory func() (*server.App, func(), error)

// NewRootCmd creates the root command of the admin tool.
func NewRootCmd(open appFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tarot-admin",
		Short: "Tarot Journal administration tool",
		Long: `Administrative tool for managing Tarot Journal users and sessions
directly against the configured database.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(NewUserCmd(open))
	cmd.AddCommand(NewSessionsCmd(open))
	return cmd
}

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := NewRootCmd(openApp).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openApp connects to the configured database, applies migrations and wires
// the services the commands use.
func openApp() (*server.App, func(), error) {
	appConfig, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	dbConfig, err := database.NewConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load database configuration: %w", err)
	}

	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create database manager: %w", err)
	}
	closeDB := func() {
		if err := dbManager.Close(); err != nil {
			logger.Get().Warnw("failed to close database", "error", err)
		}
	}

	if err := dbManager.RunMigrations(); err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	mail, err := server.NewMailer(appConfig)
	if err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("failed to initialize mailer: %w", err)
	}

	app, err := server.New(dbManager.DB(), server.ConfigFrom(appConfig), mail)
	if err != nil {
		closeDB()
		return nil, nil, err
	}
	return app, closeDB, nil
}
