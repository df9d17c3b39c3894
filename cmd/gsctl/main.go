// main.go - Admin control tool for gallerystats
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/karloscodes/cartridge/crypto"
	"golang.org/x/term"

	"gallerystats/internal"
	"gallerystats/internal/seeder"
)

const (
	defaultShutdownTimeout = 30 * time.Second
)

// Command defines the interface for all command implementations
type Command interface {
	// Name returns the command name
	Name() string
	// Description returns the command description
	Description() string
	// Execute runs the command with the given app and args
	Execute(ctx context.Context, app *internal.Application, args []string) error
}

// The set of available commands
var commands = []Command{
	&MigrateCommand{},
	&SeedCommand{},
	&HashPasswordCommand{},
	&RunJobsCommand{},
	&StatusCommand{},
	&HelpCommand{},
}

// Commands that never touch the stores run without building the app
var offlineCommands = map[string]bool{
	"hash-password": true,
	"help":          true,
}

func main() {
	flag.Parse()
	_ = godotenv.Load()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v, initiating cleanup...", sig)
		cancel()
	}()

	cmdName, args := parseArgs()

	cmd := findCommand(cmdName)
	if cmd == nil {
		showUsageAndExit()
	}

	var app *internal.Application
	if !offlineCommands[cmd.Name()] {
		var err error
		app, err = internal.NewApp()
		if err != nil {
			log.Printf("Warning: Failed to initialize app: %v", err)
			log.Println("Proceeding with limited functionality...")
		}
	}

	defer func() {
		if app != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
			defer cancel()
			if err := app.Shutdown(shutdownCtx); err != nil {
				log.Printf("Warning: Cleanup error: %v", err)
			}
		}
	}()

	if err := cmd.Execute(ctx, app, args); err != nil {
		log.Fatalf("Command failed: %v", err)
	}

	log.Printf("Command %s completed successfully", cmd.Name())
}

// MigrateCommand runs database migrations
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string        { return "migrate" }
func (c *MigrateCommand) Description() string { return "Runs database migrations" }

func (c *MigrateCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if app == nil {
		return fmt.Errorf("app initialization failed, cannot run migrations")
	}
	if app.DBManager == nil {
		return fmt.Errorf("no database configured")
	}

	log.Println("Running database migrations...")
	if err := app.DBManager.MigrateDatabase(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	log.Println("Migrations completed successfully")
	return nil
}

// SeedCommand loads a catalog payload (YAML or JSON) into the database
type SeedCommand struct{}

func (c *SeedCommand) Name() string { return "seed" }
func (c *SeedCommand) Description() string {
	return "Replaces the catalog with the items in <file> (compact or legacy format)"
}

func (c *SeedCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: gsctl seed <file>")
	}

	if app == nil {
		return fmt.Errorf("unable to initialise app")
	}
	if app.Catalog == nil {
		return fmt.Errorf("no database configured")
	}

	n, err := seeder.NewSeeder(app.Catalog, app.Logger).SeedFile(ctx, fs.Arg(0))
	if err != nil {
		return err
	}

	log.Printf("Seeded %d items", n)
	return nil
}

// HashPasswordCommand prints a bcrypt hash for GALLERYSTATS_ADMIN_PASSWORD_HASH
type HashPasswordCommand struct{}

func (c *HashPasswordCommand) Name() string { return "hash-password" }
func (c *HashPasswordCommand) Description() string {
	return "Prints a bcrypt hash of [password] for the admin password hash setting"
}

func (c *HashPasswordCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	var password string
	if len(args) >= 1 {
		password = args[0]
	} else {
		fmt.Print("Enter admin password: ")
		passBytes, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Println()

		fmt.Print("Confirm admin password: ")
		confirmBytes, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Println()

		password = strings.TrimSpace(string(passBytes))
		if password != strings.TrimSpace(string(confirmBytes)) {
			return fmt.Errorf("passwords do not match")
		}
	}

	if password == "" {
		return fmt.Errorf("password cannot be empty")
	}

	hash, err := crypto.GeneratePasswordHash(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	fmt.Println(string(hash))
	return nil
}

// RunJobsCommand runs every background job once
type RunJobsCommand struct{}

func (c *RunJobsCommand) Name() string        { return "run-jobs" }
func (c *RunJobsCommand) Description() string { return "Runs retention and maintenance jobs once" }

func (c *RunJobsCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if app == nil {
		return fmt.Errorf("unable to initialise app")
	}

	app.Scheduler.RunAll()
	return nil
}

// StatusCommand implements a command to check the system status
type StatusCommand struct{}

func (c *StatusCommand) Name() string        { return "status" }
func (c *StatusCommand) Description() string { return "Shows the current system status" }

func (c *StatusCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if app == nil {
		return fmt.Errorf("cannot check status: app initialization failed")
	}

	log.Println("System Status:")

	if err := app.KV.Ping(ctx); err != nil {
		log.Printf("- Key-value store: unavailable (%v)", err)
	} else {
		log.Printf("- Key-value store: %s", app.Config.KVDriver)
	}

	if app.Geo.Enabled() {
		log.Printf("- GeoIP database: %s", app.Config.GeoDBPath)
	} else {
		log.Println("- GeoIP database: not configured (provider headers only)")
	}

	report, err := app.Stats.Report(ctx)
	if err != nil {
		log.Printf("- Analytics: unavailable (%v)", err)
	} else {
		log.Printf("- Total visits: %d", report.Totals.TotalVisits)
		log.Printf("- Unique visitors: %d", report.Totals.UniqueVisitors)
	}

	if app.DBManager == nil {
		log.Println("- Database: not configured")
		return nil
	}

	db := app.DBManager.GetConnection()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get SQL DB: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	log.Println("- Database: Connected")

	count, err := app.Catalog.Count(ctx)
	if err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	log.Printf("- Items: %d", count)

	stats := sqlDB.Stats()
	log.Printf("- Open Connections: %d", stats.OpenConnections)
	log.Printf("- In Use: %d", stats.InUse)
	log.Printf("- Idle: %d", stats.Idle)

	return nil
}

// HelpCommand implements a command to show usage information
type HelpCommand struct{}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Description() string { return "Shows usage information" }

func (c *HelpCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	printUsage()
	return nil
}

// Helper functions

// parseArgs parses the command name and arguments
func parseArgs() (string, []string) {
	args := flag.Args()
	if len(args) == 0 {
		return "help", []string{}
	}
	return args[0], args[1:]
}

// findCommand finds a command by name
func findCommand(name string) Command {
	for _, cmd := range commands {
		if cmd.Name() == name {
			return cmd
		}
	}
	return nil
}

func printUsage() {
	fmt.Println("Usage: gsctl [command] [args...]")
	fmt.Println("Available commands:")

	for _, cmd := range commands {
		fmt.Printf("  %s: %s\n", cmd.Name(), cmd.Description())
	}
}

// showUsageAndExit shows usage information and exits
func showUsageAndExit() {
	printUsage()
	os.Exit(1)
}
