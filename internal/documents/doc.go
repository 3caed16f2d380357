// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package documents keeps the client-side view of the indexed corpus.
//
// The list is always a snapshot of the last successful fetch; it is replaced
// wholesale on Refresh and never merged. Uploads are filtered to PDFs before
// anything is sent and trigger a Refresh on success.
package documents
