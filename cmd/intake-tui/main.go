package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/clive/intake-tui/internal/api"
	"github.com/clive/intake-tui/internal/config"
	"github.com/clive/intake-tui/internal/flow"
	"github.com/clive/intake-tui/internal/intake"
	"github.com/clive/intake-tui/internal/logging"
	"github.com/clive/intake-tui/internal/nav"
	"github.com/clive/intake-tui/internal/session"
	"github.com/clive/intake-tui/internal/storage"
	"github.com/clive/intake-tui/internal/tui"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	fs := pflag.NewFlagSet("intake-tui", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	listDrivers := fs.Bool("list-storage", false, "list session storage drivers and exit")
	showVersion := fs.Bool("version", false, "print the version and exit")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if *showVersion {
		fmt.Fprintf(stdout, "intake-tui %s\n", api.Version)
		return nil
	}
	if *listDrivers {
		for _, d := range storage.AvailableDrivers() {
			fmt.Fprintf(stdout, "%-10s %s\n", d.ID, d.Description)
		}
		return nil
	}

	cfg, err := config.Load(config.LoadOptions{Flags: fs})
	if err != nil {
		return err
	}

	// The program is created after the logger, so the mirror looks it up lazily
	var program *tea.Program
	var mirror func(string)
	if cfg.Debug {
		mirror = func(line string) {
			if p := program; p != nil {
				// Send blocks until Update reads it; logging may happen inside Update
				go p.Send(tui.DebugEventMsg{Line: line})
			}
		}
	}

	logger, logFile, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		File:   cfg.Log.File,
		Mirror: mirror,
	})
	if err != nil {
		return err
	}
	defer logFile.Close()

	logger.Info("starting",
		"version", api.Version,
		"config", cfg.File,
		"base_url", cfg.API.BaseURL,
		"storage", cfg.Storage.Driver,
	)

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	sess := session.New(store, cfg.Storage.Key, logger)
	if err := sess.Load(context.Background()); err != nil {
		// Not fatal: Token retries on the next read
		logger.Warn("session not loaded", "error", err)
	}

	schema, err := intake.LoadSchema(cfg.Intake.Schema)
	if err != nil {
		return err
	}

	client := api.NewClient(cfg.API.BaseURL,
		api.WithTimeout(cfg.API.Timeout),
		api.WithLogger(logger.With("component", "api")),
	)
	flows := flow.New(client, sess, logger.With("component", "flow"))

	model := tui.NewRootModel(tui.Options{
		Session: sess,
		Flows:   flows,
		Schema:  schema,
		Start:   nav.Path(cfg.Start),
		Debug:   cfg.Debug,
		BaseURL: client.BaseURL(),
	})

	program = tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("running program: %w", err)
	}
	logger.Info("exiting")
	return nil
}

// openStore maps the storage config section onto a storage backend
func openStore(cfg *config.Config) (storage.Store, error) {
	store, err := storage.Open(storage.Driver(cfg.Storage.Driver), storage.Options{
		Path:          cfg.Storage.Path,
		RedisAddr:     cfg.Storage.RedisAddr,
		RedisPassword: cfg.Storage.RedisPassword,
		RedisDB:       cfg.Storage.RedisDB,
		Prefix:        cfg.Storage.RedisPrefix,
		Service:       storage.DefaultKeychainService,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.Storage.Driver, err)
	}
	return store, nil
}
