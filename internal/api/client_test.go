// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, cred string) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, StaticCredential(cred)), srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// =============================================================================
// AUTH
// =============================================================================

func TestLogin_Success(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/login", r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "ada", r.PostForm.Get("username"))
		assert.Equal(t, "pw", r.PostForm.Get("password"))

		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": "tok1",
			"token_type":   "bearer",
			"user_info":    map[string]any{"id": 1, "username": "ada", "email": "a@x.io", "full_name": "Ada"},
		})
	}, "")

	res, err := client.Login(context.Background(), "ada", "pw")
	require.NoError(t, err)
	assert.Equal(t, "tok1", res.AccessToken)
	assert.Equal(t, "Ada", res.UserInfo.DisplayName())

	sess := res.Session()
	assert.True(t, sess.Complete())
}

func TestLogin_WithoutTokenType(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": "tok1",
			"user_info":    map[string]any{"full_name": "Ada"},
		})
	}, "")

	res, err := client.Login(context.Background(), "ada", "pw")
	require.NoError(t, err)
	assert.Equal(t, "tok1", res.AccessToken)
	assert.Empty(t, res.TokenType)
	assert.True(t, res.Session().Complete())
	assert.Equal(t, "Ada", res.Session().Identity.DisplayName())
}

func TestLogin_BadCredentials(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Incorrect username or password"})
	}, "")

	_, err := client.Login(context.Background(), "ada", "wrong")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, KindAuth, Classify(err))
	assert.Equal(t, "Incorrect username or password", UserMessage(err))
}

func TestLogin_RejectsNonBearerToken(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": "tok1",
			"token_type":   "mac",
			"user_info":    map[string]any{"username": "ada"},
		})
	}, "")

	_, err := client.Login(context.Background(), "ada", "pw")
	require.Error(t, err)
	assert.Equal(t, KindRejected, Classify(err))
	assert.Contains(t, UserMessage(err), "mac")
}

func TestRegister_SendsJSON(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/register", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body RegisterRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, RegisterRequest{Username: "ada", Email: "a@x.io", FullName: "Ada", Password: "secret1"}, body)
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "User registered successfully", "user_id": 3})
	}, "")

	res, err := client.Register(context.Background(), RegisterRequest{
		Username: "ada", Email: "a@x.io", FullName: "Ada", Password: "secret1",
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, int64(3), res.UserID)
}

func TestRegister_DuplicateUsername(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "Username already registered"})
	}, "")

	_, err := client.Register(context.Background(), RegisterRequest{Username: "ada"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "Username already registered", apiErr.Detail)
	assert.Equal(t, KindRejected, Classify(err))
}

// =============================================================================
// AUTHENTICATED CALLS
// =============================================================================

func TestAuthenticatedCallsSendBearer(t *testing.T) {
	var seen atomic.Value
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen.Store(r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		writeJSON(w, http.StatusOK, map[string]any{"documents": []any{}})
	}, "tok1")

	_, err := client.ListDocuments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok1", seen.Load())
}

func TestAuthenticatedCallWithoutCredentialStillSent(t *testing.T) {
	var hits int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Empty(t, r.Header.Get("Authorization"))
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Could not validate credentials"})
	}, "")

	_, err := client.ListDocuments(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestListDocuments(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/documents/list", r.URL.Path)
		_, _ = io.WriteString(w, `{"documents":[
			{"filename":"a.pdf","processed_at":"2024-01-02T03:04:05.123456","chunk_count":12},
			{"filename":"b.pdf","processed_at":"2024-01-03T00:00:00","chunk_count":0}]}`)
	}, "tok1")

	docs, err := client.ListDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a.pdf", docs[0].Filename)
	assert.Equal(t, 12, docs[0].ChunkCount)
	assert.Equal(t, 2024, docs[0].ProcessedAt.Year())
	assert.Equal(t, time.UTC, docs[0].ProcessedAt.Location())
}

func TestAsk(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/ask", r.URL.Path)
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "what is in a.pdf?", body["question"])
		assert.Equal(t, float64(DefaultTopK), body["top_k"])
		writeJSON(w, http.StatusOK, map[string]any{
			"answer":    "Mostly cats.",
			"sources":   []any{map[string]any{"filename": "a.pdf", "similarity": 0.87, "content_preview": "cats..."}},
			"timestamp": "2024-01-02T03:04:05.000001",
		})
	}, "tok1")

	ans, err := client.Ask(context.Background(), "what is in a.pdf?", 0)
	require.NoError(t, err)
	assert.Equal(t, "Mostly cats.", ans.Answer)
	require.Len(t, ans.Sources, 1)
	assert.Equal(t, "a.pdf (87%)", ans.Sources[0].Label())
}

func TestAsk_ServerError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"detail": "index unavailable"})
	}, "tok1")

	_, err := client.Ask(context.Background(), "q", 3)
	require.Error(t, err)
	assert.Equal(t, KindRejected, Classify(err))
	assert.Equal(t, "index unavailable", Detail(err))
}

func TestHistory_LimitAndOrder(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/history", r.URL.Path)
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		_, _ = io.WriteString(w, `{"history":[
			{"id":1,"message":"Q1","response":"A1","sources":[],"created_at":"2024-01-01T00:00:00"},
			{"id":2,"message":"Q2","response":"A2","sources":[{"filename":"s1.pdf","similarity":0.5,"content_preview":"p"}],"created_at":"2024-01-01T00:01:00"}]}`)
	}, "tok1")

	items, err := client.History(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Q1", items[0].Message)
	assert.Empty(t, items[0].Sources)
	assert.Equal(t, "s1.pdf", items[1].Sources[0].Filename)
}

func TestClearHistory(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/chat/clear", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{"message": "Chat history cleared successfully"})
	}, "tok1")

	msg, err := client.ClearHistory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Chat history cleared successfully", msg)
}

func TestHealth(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]any{"status": "healthy", "timestamp": "2024-05-05T10:00:00"})
	}, "tok1")

	h, err := client.Health(context.Background())
	require.NoError(t, err)
	assert.True(t, h.Healthy())
}

// =============================================================================
// UPLOAD
// =============================================================================

func TestUploadDocuments_Multipart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "c.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 c"), 0600))

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/documents/upload", r.URL.Path)
		assert.Equal(t, "Bearer tok1", r.Header.Get("Authorization"))
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}

		files := r.MultipartForm.File[UploadField]
		if !assert.Len(t, files, 2) {
			return
		}
		assert.Equal(t, "a.pdf", files[0].Filename)
		assert.Equal(t, MediaTypePDF, files[0].Header.Get("Content-Type"))
		assert.Equal(t, "c.pdf", files[1].Filename)

		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Successfully processed 2 documents",
			"documents": []any{
				map[string]any{"filename": "a.pdf", "document_id": 1, "status": "processed"},
				map[string]any{"filename": "c.pdf", "document_id": 2, "status": "processed"},
			},
		})
	}, "tok1")

	res, err := client.UploadDocuments(context.Background(), []UploadFile{
		{Name: "a.pdf", Data: []byte("%PDF-1.4 a")},
		{Path: path},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Len(t, res.Documents, 2)
}

func TestUploadDocuments_EmptyIsValidationError(t *testing.T) {
	var hits int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}, "tok1")

	_, err := client.UploadDocuments(context.Background(), nil)
	assert.Equal(t, KindValidation, Classify(err))
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

// =============================================================================
// ERROR SHAPES
// =============================================================================

func TestErrorDetailExtraction(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		want        string
	}{
		{"detail string", "application/json", `{"detail":"Not found"}`, "Not found"},
		{"fastapi array", "application/json",
			`{"detail":[{"loc":["body","email"],"msg":"value is not a valid email address"},{"loc":["body","password"],"msg":"field required"}]}`,
			"email: value is not a valid email address; password: field required"},
		{"message field", "application/json", `{"message":"boom"}`, "boom"},
		{"html title", "text/html", `<html><head><title>502 Bad Gateway</title></head><body><h1>nginx</h1></body></html>`, "502 Bad Gateway"},
		{"html h1", "text/html", `<html><body><h1>Service   Unavailable</h1></body></html>`, "Service Unavailable"},
		{"plain text", "text/plain", "  upstream\ntimed out  ", "upstream timed out"},
		{"empty", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractDetail([]byte(tt.body), tt.contentType))
		})
	}
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := New(url, StaticCredential("tok1"), WithTimeout(2*time.Second))
	_, err := client.Ask(context.Background(), "q", 5)

	require.Error(t, err)
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, OpAsk, te.Op)
	assert.Equal(t, KindTransport, Classify(err))
	assert.Equal(t, MsgTransport, UserMessage(err))
}

func TestTransportError_CanceledContext(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{})
	}, "tok1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.ListDocuments(ctx)
	assert.Equal(t, KindTransport, Classify(err))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestMalformedSuccessBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "not json")
	}, "tok1")

	_, err := client.ListDocuments(context.Background())
	assert.Equal(t, KindRejected, Classify(err))
}

func TestOversizedResponse(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, strings.Repeat("x", MaxResponseSize+10))
	}, "tok1")

	_, err := client.ListDocuments(context.Background())
	assert.Equal(t, KindTransport, Classify(err))
}

func TestRateLimitedClientWaits(t *testing.T) {
	var hits int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		writeJSON(w, http.StatusOK, map[string]any{"status": "healthy"})
	}, "")
	WithRateLimit(1000, 1)(client)

	for i := 0; i < 3; i++ {
		_, err := client.Health(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{nil, KindNone},
		{ErrStale, KindStale},
		{NewValidationError("q", "empty"), KindValidation},
		{&APIError{Op: "x", Status: 401}, KindAuth},
		{ErrUnauthorized, KindAuth},
		{&APIError{Op: "x", Status: 500, Detail: "boom"}, KindRejected},
		{&TransportError{Op: "x", Err: errors.New("dial")}, KindTransport},
		{errors.New("other"), KindInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.err), "%v", tt.err)
	}
}
