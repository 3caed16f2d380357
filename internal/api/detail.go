// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jeranaias/ragdesk/internal/util"
)

// maxDetailRunes caps details taken from raw bodies.
const maxDetailRunes = 300

// extractDetail pulls a human-readable message out of an error body.
//
// Tried in order: {"detail": "..."}, FastAPI validation arrays
// {"detail": [{"msg": ...}]}, {"message": "..."}, the <title> or <h1> of an
// HTML page, and finally the raw text.
func extractDetail(body []byte, contentType string) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}

	if trimmed[0] == '{' {
		var envelope struct {
			Detail  json.RawMessage `json:"detail"`
			Message string          `json:"message"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err == nil {
			if d := decodeDetail(envelope.Detail); d != "" {
				return d
			}
			if envelope.Message != "" {
				return envelope.Message
			}
		}
	}

	if strings.Contains(contentType, "html") || bytes.HasPrefix(bytes.ToLower(trimmed), []byte("<!doctype html")) ||
		bytes.HasPrefix(bytes.ToLower(trimmed), []byte("<html")) {
		if d := htmlDetail(trimmed); d != "" {
			return d
		}
	}

	return util.TruncateRunes(util.SingleLine(string(trimmed)), maxDetailRunes)
}

func decodeDetail(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var items []struct {
		Loc []any  `json:"loc"`
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg == "" {
				continue
			}
			if field := locField(it.Loc); field != "" {
				msgs = append(msgs, field+": "+it.Msg)
			} else {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}

	return util.TruncateRunes(string(raw), maxDetailRunes)
}

// locField returns the last string element of a FastAPI loc path, skipping
// the "body"/"query" prefix.
func locField(loc []any) string {
	for i := len(loc) - 1; i >= 0; i-- {
		if s, ok := loc[i].(string); ok && s != "body" && s != "query" {
			return s
		}
	}
	return ""
}

func htmlDetail(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	for _, sel := range []string{"title", "h1"} {
		if text := strings.TrimSpace(doc.Find(sel).First().Text()); text != "" {
			return util.SingleLine(text)
		}
	}
	return ""
}
