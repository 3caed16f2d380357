// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package documents

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jeranaias/ragdesk/internal/api"
)

// sniffLen is how many bytes http.DetectContentType looks at.
const sniffLen = 512

// MediaType returns the declared media type of f: the explicit ContentType
// if set, otherwise the type registered for the extension, otherwise the
// sniffed content type. Parameters are stripped.
func MediaType(f api.UploadFile) string {
	if f.ContentType != "" {
		return baseType(f.ContentType)
	}

	name := f.Name
	if name == "" {
		name = f.Path
	}
	if ext := filepath.Ext(name); ext != "" {
		if t := mime.TypeByExtension(strings.ToLower(ext)); t != "" {
			return baseType(t)
		}
	}

	head := f.Data
	if head == nil && f.Path != "" {
		var err error
		head, err = readHead(f.Path)
		if err != nil {
			return ""
		}
	}
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	if len(head) == 0 {
		return ""
	}
	return baseType(http.DetectContentType(head))
}

// IsPDF reports whether f declares the PDF media type.
func IsPDF(f api.UploadFile) bool {
	return MediaType(f) == api.MediaTypePDF
}

// FilterPDFs splits files into PDFs and everything else, preserving order.
// The kept files carry their detected ContentType.
func FilterPDFs(files []api.UploadFile) (kept, dropped []api.UploadFile) {
	for _, f := range files {
		if t := MediaType(f); t == api.MediaTypePDF {
			f.ContentType = t
			kept = append(kept, f)
		} else {
			dropped = append(dropped, f)
		}
	}
	return kept, dropped
}

// ExpandPaths turns paths, directories, and glob patterns into upload files.
// A directory contributes its immediate regular files. Results are
// de-duplicated and sorted within each pattern.
func ExpandPaths(patterns []string) ([]api.UploadFile, error) {
	var out []api.UploadFile
	seen := make(map[string]bool)

	add := func(path string) {
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		if seen[abs] {
			return
		}
		seen[abs] = true
		out = append(out, api.UploadFile{Name: filepath.Base(path), Path: path})
	}

	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		pattern = expandHome(pattern)

		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, api.NewValidationError("files", fmt.Sprintf("bad pattern %q: %v", pattern, err))
		}
		if len(matches) == 0 {
			return nil, api.NewValidationError("files", fmt.Sprintf("no such file: %s", pattern))
		}
		sort.Strings(matches)

		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil {
				return nil, api.NewValidationError("files", fmt.Sprintf("cannot read %s: %v", m, err))
			}
			if !info.IsDir() {
				add(m)
				continue
			}
			entries, err := os.ReadDir(m)
			if err != nil {
				return nil, api.NewValidationError("files", fmt.Sprintf("cannot read %s: %v", m, err))
			}
			for _, e := range entries {
				if e.Type().IsRegular() {
					add(filepath.Join(m, e.Name()))
				}
			}
		}
	}
	return out, nil
}

func baseType(t string) string {
	if mt, _, err := mime.ParseMediaType(t); err == nil {
		return mt
	}
	return strings.ToLower(strings.TrimSpace(t))
}

func readHead(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	return buf[:n], nil
}

func expandHome(p string) string {
	if !strings.HasPrefix(p, "~") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// SplitPatterns splits a line of typed paths. Double quotes group a
// path containing spaces.
func SplitPatterns(s string) []string {
	var (
		out   []string
		cur   strings.Builder
		quote bool
	)
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		switch {
		case r == '"':
			quote = !quote
		case !quote && (r == ' ' || r == '\t'):
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return out
}
