// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the ragdesk TUI.

All colors use Lip Gloss AdaptiveColor so the palette follows the terminal
background. A Theme groups the styles used by each screen:

	Auth      - tab bar, form fields and the notice banner
	Header    - brand and signed-in user
	Sidebar   - the document list
	Messages  - user, assistant and system blocks plus source citations
	Input     - the question box, dimmed while a question is in flight
	StatusBar - key hints and the spinner

NewTheme picks dark or light from the configured name ("dark", "light" or
"auto"). With "auto" the background is detected through termenv.
*/
package styles
