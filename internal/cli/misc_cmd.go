// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/jeranaias/ragdesk/internal/api"
	"github.com/jeranaias/ragdesk/internal/config"
)

// =============================================================================
// STATUS
// =============================================================================

// statusJSON is the status report.
type statusJSON struct {
	Server    string        `json:"server"`
	Reachable bool          `json:"reachable"`
	Healthy   bool          `json:"healthy"`
	Status    string        `json:"status,omitempty"`
	Error     string        `json:"error,omitempty"`
	LoggedIn  bool          `json:"logged_in"`
	User      *identityJSON `json:"user,omitempty"`
	Backend   string        `json:"session_backend"`
}

func runStatus(ctx context.Context, env *Env, args Args) error {
	client := env.Ctrl.Client()
	st := statusJSON{
		Server:   client.BaseURL(),
		LoggedIn: env.Ctrl.Session().IsAuthenticated(),
		Backend:  env.Config.Session.Backend,
	}
	if args.Ephemeral {
		st.Backend = "memory"
	}
	if id := env.Ctrl.Session().Identity(); id != nil {
		u := toIdentityJSON(id)
		st.User = &u
	}

	health, err := client.Health(ctx)
	switch {
	case err != nil:
		st.Reachable = api.Classify(err) != api.KindTransport
		st.Error = ErrorMessage(err)
	default:
		st.Reachable = true
		st.Healthy = health.Healthy()
		st.Status = health.Status
	}

	if args.JSON {
		if err := writeJSON(env, CmdStatus, st); err != nil {
			return err
		}
	} else {
		pr := env.printer
		pr.Title("ragdesk status")
		pr.Field("Server", st.Server)
		switch {
		case st.Healthy:
			pr.Field("Health", "[OK] "+st.Status)
		case st.Error != "":
			pr.Field("Health", "[X] "+st.Error)
		default:
			pr.Field("Health", "[!] "+st.Status)
		}
		if st.User != nil {
			pr.Field("User", env.Ctrl.Session().Identity().DisplayName())
		} else {
			pr.Field("User", "not logged in")
		}
		pr.Field("Session", st.Backend)
	}

	// An unreachable server is a network failure for scripts.
	if err != nil && !st.Reachable {
		return err
	}
	return nil
}

// =============================================================================
// VERSION / CONFIG
// =============================================================================

func runVersion(env *Env, args Args) error {
	if args.JSON {
		return writeJSON(env, CmdVersion, map[string]string{
			"version":    Version,
			"git_commit": GitCommit,
			"build_date": BuildDate,
			"go_version": runtime.Version(),
			"platform":   runtime.GOOS + "/" + runtime.GOARCH,
		})
	}
	env.printer.Result(VersionString())
	return nil
}

func runConfig(env *Env, args Args) error {
	sub := args.Subcommand
	if sub == "" {
		sub = "show"
	}

	switch sub {
	case "show":
		if args.JSON {
			return writeJSON(env, CmdConfig, env.Config)
		}
		env.printer.Result(env.Config.String())
		return nil

	case "path":
		dir, err := config.ConfigDir()
		if err != nil {
			return &ConfigError{Err: err}
		}
		tomlPath, _ := config.ConfigPathTOML()
		sessionPath, _ := env.Config.SessionPath()
		logPath, _ := env.Config.LogPath()
		if args.JSON {
			return writeJSON(env, CmdConfig, map[string]string{
				"dir":     dir,
				"config":  tomlPath,
				"session": sessionPath,
				"log":     logPath,
			})
		}
		env.printer.Field("Directory", dir)
		env.printer.Field("Config", tomlPath)
		env.printer.Field("Session", sessionPath)
		env.printer.Field("Log", logPath)
		return nil

	case "init":
		path, err := config.ConfigPathTOML()
		if err != nil {
			return &ConfigError{Err: err}
		}
		if _, statErr := os.Stat(path); statErr == nil && !NewArgParser(args.Raw, "force").BoolFlag("force") {
			return NewUsageError(path + " already exists (use --force to overwrite)")
		}
		if err := config.EnsureConfigDir(); err != nil {
			return &ConfigError{Err: err}
		}
		if err := config.SaveTOML(env.Config, path); err != nil {
			return &ConfigError{Err: err}
		}
		env.printer.Success("Wrote %s", path)
		return nil

	default:
		return NewUsageError(fmt.Sprintf("unknown config subcommand %q (want show, path or init)", sub))
	}
}
