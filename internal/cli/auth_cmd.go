// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"strings"

	"github.com/jeranaias/ragdesk/internal/app"
	"github.com/jeranaias/ragdesk/internal/model"
)

// identityJSON is the identity as printed by login and whoami.
type identityJSON struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

func toIdentityJSON(id *model.Identity) identityJSON {
	if id == nil {
		return identityJSON{}
	}
	return identityJSON{ID: id.ID, Username: id.Username, Email: id.Email, FullName: id.FullName}
}

// promptField returns the flag value, or prompts for it when interactive.
func promptField(env *Env, p *ArgParser, label string, flags ...string) (string, error) {
	if v := p.Flag(flags...); v != "" {
		return v, nil
	}
	if !env.Interactive {
		return "", nil
	}
	return env.readLine(label + ": ")
}

// readPassword reads the password from stdin (--password-stdin) or the
// terminal.
func readPassword(env *Env, p *ArgParser, prompt string) (string, error) {
	if p.BoolFlag("password-stdin") || !env.Interactive {
		return env.readLine("")
	}
	return env.readSecret(prompt)
}

// authFailure dismisses the banner the controller set for the TUI. The
// same text is derived from err when it is displayed.
func authFailure(env *Env, err error) error {
	env.Ctrl.ClearNotice()
	return err
}

// =============================================================================
// LOGIN / REGISTER / LOGOUT
// =============================================================================

func runLogin(ctx context.Context, env *Env, args Args) error {
	p := NewArgParser(args.Raw, "password-stdin")

	username := p.Positional(0)
	if username == "" {
		var err error
		if username, err = promptField(env, p, "Username", "username", "u"); err != nil {
			return err
		}
	}
	if strings.TrimSpace(username) == "" {
		return NewUsageError("usage: ragdesk login <username>")
	}
	password, err := readPassword(env, p, "Password: ")
	if err != nil {
		return err
	}

	if err := env.Ctrl.Dispatch(ctx, app.LoginSubmitted{Username: username, Password: password}); err != nil {
		return authFailure(env, err)
	}

	id := env.Ctrl.Session().Identity()
	if args.JSON {
		return writeJSON(env, CmdLogin, toIdentityJSON(id))
	}
	env.printer.Success("Logged in as %s.", id.DisplayName())
	return nil
}

func runRegister(ctx context.Context, env *Env, args Args) error {
	p := NewArgParser(args.Raw, "password-stdin")

	var form app.RegisterSubmitted
	var err error
	if form.Username, err = promptField(env, p, "Username", "username", "u"); err != nil {
		return err
	}
	if form.Email, err = promptField(env, p, "Email", "email", "e"); err != nil {
		return err
	}
	if form.FullName, err = promptField(env, p, "Full name", "full-name", "name"); err != nil {
		return err
	}
	if form.Password, err = readPassword(env, p, "Password: "); err != nil {
		return err
	}
	if env.Interactive && !p.BoolFlag("password-stdin") {
		again, err := env.readSecret("Confirm password: ")
		if err != nil {
			return err
		}
		if again != form.Password {
			return NewUsageError("passwords do not match")
		}
	}

	if err := env.Ctrl.Dispatch(ctx, form); err != nil {
		return authFailure(env, err)
	}

	ui := env.Ctrl.UI()
	if args.JSON {
		return writeJSON(env, CmdRegister, map[string]any{
			"username":  strings.TrimSpace(form.Username),
			"logged_in": ui.Authenticated,
		})
	}
	if ui.Authenticated {
		env.printer.Success("Registered and logged in as %s.", ui.Identity.DisplayName())
		return nil
	}
	msg := app.MsgRegistered
	if ui.AuthMessage != nil {
		msg = ui.AuthMessage.Text
	}
	env.Ctrl.ClearNotice()
	env.printer.Success("%s", msg)
	return nil
}

func runLogout(ctx context.Context, env *Env, args Args) error {
	was := env.Ctrl.Session().IsAuthenticated()
	if err := env.Ctrl.Dispatch(ctx, app.LogoutRequested{}); err != nil {
		return err
	}
	if args.JSON {
		return writeJSON(env, CmdLogout, map[string]bool{"was_logged_in": was})
	}
	if was {
		env.printer.Success("Logged out.")
	} else {
		env.printer.Info("Not logged in.")
	}
	return nil
}

func runWhoami(ctx context.Context, env *Env, args Args) error {
	p := NewArgParser(args.Raw, "remote")

	id := env.Ctrl.Session().Identity()
	out := map[string]any{"user": toIdentityJSON(id), "server": env.Ctrl.Client().BaseURL()}

	if p.BoolFlag("remote") {
		rec, err := env.Ctrl.Client().Me(ctx)
		if err = env.Ctrl.HandleError(err); err != nil {
			return err
		}
		if rec == nil {
			return errors.New("server returned no user")
		}
		id = &rec.Identity
		out["user"] = toIdentityJSON(id)
		out["active"] = rec.IsActive
		if !rec.CreatedAt.IsZero() {
			out["created_at"] = rec.CreatedAt.Display()
		}
	}

	if args.JSON {
		return writeJSON(env, CmdWhoami, out)
	}
	env.printer.Result(id.DisplayName())
	if args.Quiet {
		return nil
	}
	env.printer.Field("Username", id.Username)
	if id.Email != "" {
		env.printer.Field("Email", id.Email)
	}
	env.printer.Field("Server", env.Ctrl.Client().BaseURL())
	if created, ok := out["created_at"].(string); ok {
		env.printer.Field("Member since", created)
	}
	return nil
}
