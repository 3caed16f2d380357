// ragdesk - a terminal client for chatting with your documents.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/ragdesk/internal/api"
	"github.com/jeranaias/ragdesk/internal/app"
	"github.com/jeranaias/ragdesk/internal/cli"
	"github.com/jeranaias/ragdesk/internal/config"
	"github.com/jeranaias/ragdesk/internal/logging"
	"github.com/jeranaias/ragdesk/internal/security"
	"github.com/jeranaias/ragdesk/internal/session"
	uichat "github.com/jeranaias/ragdesk/internal/ui/chat"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run parses argv, wires the components and runs one command. It returns
// the process exit code.
func run(argv []string) int {
	cmd, args, err := cli.Parse(argv)
	if err != nil {
		cli.DisplayError(os.Stderr, "ragdesk", err, false, cli.ColorEnabled(os.Stderr))
		fmt.Fprint(os.Stderr, "\nRun 'ragdesk help' for usage.\n")
		return cli.GetExitCode(err)
	}
	report := func(err error) int {
		cli.DisplayError(os.Stderr, cmd.String(), err, args.JSON, cli.ColorEnabled(os.Stderr))
		return cli.GetExitCode(err)
	}

	// ==========================================================================
	// Configuration
	// ==========================================================================
	cfg, loadErr := config.Load()
	if cfg == nil {
		return report(&cli.ConfigError{Err: loadErr})
	}
	if loadErr != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", loadErr)
	}
	if args.Server != "" {
		cfg.Server.URL = args.Server
		if err := cfg.Validate(); err != nil {
			return report(&cli.ConfigError{Err: err})
		}
	}
	if args.Ephemeral {
		cfg.Session.Backend = "memory"
	}
	config.SetGlobal(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cmd.Offline() {
		return report(cli.Execute(ctx, cmd, args, newEnv(cfg, nil, zap.NewNop(), args)))
	}

	// ==========================================================================
	// Logging
	// ==========================================================================
	logPath, err := cfg.LogPath()
	if err != nil {
		return report(&cli.ConfigError{Err: err})
	}
	logger, closeLog, err := logging.New(logging.Options{
		FilePath:  logPath,
		Level:     cfg.Log.Level,
		MaxSizeMB: cfg.Log.MaxSizeMB,
		Console:   args.Verbose && cmd != cli.CmdTUI,
	})
	if err != nil {
		return report(&cli.ConfigError{Err: err})
	}
	defer closeLog()
	logger.Info("starting",
		zap.String("version", Version),
		zap.String("command", cmd.String()),
		zap.String("server", cfg.Server.URL))

	// ==========================================================================
	// Session, client and controller
	// ==========================================================================
	mgr, err := openSession(cfg, logger)
	if err != nil {
		return report(&cli.ConfigError{Err: err})
	}
	defer func() {
		if err := mgr.Close(); err != nil {
			logger.Warn("closing session store", zap.Error(err))
		}
	}()

	client := api.New(cfg.Server.URL, mgr,
		api.WithTimeout(cfg.Server.Timeout.Duration),
		api.WithRateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst),
		api.WithLogger(logger),
		api.WithUserAgent("ragdesk/"+Version),
	)
	ctrl := app.New(mgr, client, app.Options{
		TopK:                   cfg.Chat.TopK,
		HistoryLimit:           cfg.Chat.HistoryLimit,
		AutoLoginAfterRegister: cfg.Session.AutoLoginAfterRegister,
		Logger:                 logger,
	})

	if cmd == cli.CmdTUI {
		return report(runTUI(ctrl, cfg))
	}

	mgr.RestoreOnStartup()
	return report(cli.Execute(ctx, cmd, args, newEnv(cfg, ctrl, logger, args)))
}

// openSession builds the session manager for the configured backend,
// sealing the credential when encryption is enabled.
func openSession(cfg *config.Config, logger *zap.Logger) (*session.Manager, error) {
	path, err := cfg.SessionPath()
	if err != nil {
		return nil, err
	}
	if cfg.Session.Backend != "memory" {
		if err := config.EnsureConfigDir(); err != nil {
			return nil, err
		}
	}
	backend, err := session.OpenBackend(cfg.Session.Backend, path)
	if err != nil {
		return nil, err
	}

	opts := []session.StoreOption{
		session.WithExpiryCheck(cfg.Session.DiscardExpired),
		session.WithLogger(logger),
	}
	if cfg.Session.Encrypt {
		dir, err := config.ConfigDir()
		if err != nil {
			return nil, err
		}
		sealer, err := security.LoadOrCreateSealer(dir, cfg.Session.Passphrase)
		if err != nil {
			return nil, fmt.Errorf("session encryption: %w", err)
		}
		opts = append(opts, session.WithSealer(sealer))
	}

	return session.NewManager(session.NewStore(backend, opts...), logger), nil
}

// runTUI runs the full-screen interface until the user quits.
func runTUI(ctrl *app.Controller, cfg *config.Config) error {
	m := uichat.New(ctrl, uichat.Options{
		// Uploads are allowed four request timeouts.
		Timeout:     4 * cfg.Server.Timeout.Duration,
		Theme:       cfg.UI.Theme,
		ShowSources: cfg.UI.ShowSources,
	})
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// newEnv wires the CLI to the real terminal.
func newEnv(cfg *config.Config, ctrl *app.Controller, logger *zap.Logger, args cli.Args) *cli.Env {
	interactive := cli.IsTTY()
	env := &cli.Env{
		Ctrl:        ctrl,
		Config:      cfg,
		Logger:      logger,
		In:          os.Stdin,
		Out:         os.Stdout,
		Err:         os.Stderr,
		Interactive: interactive,
		Color:       cli.ColorEnabled(os.Stdout) && !args.JSON,
		Width:       cli.TerminalWidth(os.Stdout),
	}
	if cfg.UI.WordWrap > 0 && cfg.UI.WordWrap < env.Width {
		env.Width = cfg.UI.WordWrap
	}
	if interactive {
		env.ReadPassword = cli.PasswordReader(os.Stdin)
		env.NewLineReader = cli.NewLinerReader
	}
	return env
}
