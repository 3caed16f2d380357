// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading for ragdesk.
//
// Sources, later ones winning:
//
//   - Built-in defaults (Default)
//   - ~/.ragdesk/config.toml, or config.json when no TOML file exists
//   - A .env file in the working directory (joho/godotenv)
//   - RAGDESK_* environment variables (caarlos0/env struct tags)
//
// RAGDESK_HOME relocates the whole configuration directory, which is how
// tests and multiple profiles keep separate sessions.
//
// # Example config.toml
//
//	[server]
//	url = "https://docs.example.com"
//	timeout = "90s"
//
//	[chat]
//	top_k = 8
//	history_limit = 100
//
//	[session]
//	backend = "sqlite"
//	encrypt = true
package config
