// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api is the HTTP gateway to the document-chat backend.
//
// Each exported method on Client maps to one backend route and returns either
// a decoded result or an error from a fixed taxonomy:
//
//   - *ValidationError: rejected locally, no request was sent
//   - *APIError: the server answered with a non-2xx status
//   - ErrUnauthorized: a 401; wraps the *APIError carrying the detail
//   - *TransportError: no response was obtained
//   - ErrStale: the response arrived after the session changed
//
// Classify maps any error to a Kind and UserMessage renders it for display.
//
// Authenticated calls read the credential once, when the request is built,
// from the CredentialSource passed to New. Requests are never retried.
package api
