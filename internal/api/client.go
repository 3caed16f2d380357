// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jeranaias/ragdesk/internal/logging"
	"github.com/jeranaias/ragdesk/internal/model"
)

// Configuration constants.
const (
	// DefaultTimeout bounds a single request, including upload.
	DefaultTimeout = 60 * time.Second

	// MaxResponseSize is the maximum allowed response body size.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB limit

	// DefaultTopK is the number of sources requested per question.
	DefaultTopK = 5

	// DefaultHistoryLimit is the number of exchanges fetched by History.
	DefaultHistoryLimit = 50

	// UploadField is the multipart field name for uploaded files.
	UploadField = "files"

	// MediaTypePDF is the only media type the backend indexes.
	MediaTypePDF = "application/pdf"
)

// Logical operation names, used in errors and log lines.
const (
	OpLogin        = "login"
	OpRegister     = "register"
	OpUpload       = "upload documents"
	OpList         = "list documents"
	OpAsk          = "ask"
	OpHistory      = "load history"
	OpClearHistory = "clear history"
	OpMe           = "fetch profile"
	OpHealth       = "health check"
)

// CredentialSource supplies the bearer credential for authenticated calls.
// session.Manager satisfies it.
type CredentialSource interface {
	Credential() string
}

// StaticCredential is a fixed CredentialSource.
type StaticCredential string

// Credential returns the string itself.
func (s StaticCredential) Credential() string { return string(s) }

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the backend over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	creds      CredentialSource
	limiter    *rate.Limiter
	logger     *zap.Logger
	userAgent  string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRateLimit paces outgoing requests. A non-positive rps disables pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = logging.OrNop(l).Named("api") }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// New creates a client for baseURL. creds may be nil for a client that only
// makes unauthenticated calls.
func New(baseURL string, creds CredentialSource, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		creds:      creds,
		logger:     logging.Nop(),
		userAgent:  "ragdesk",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// =============================================================================
// AUTH
// =============================================================================

// Login exchanges a username and password for a credential. The body is
// form-encoded.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	var out LoginResult
	err := c.do(ctx, call{
		op:          OpLogin,
		method:      http.MethodPost,
		path:        "/auth/login",
		body:        strings.NewReader(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
	}, &out)
	if err != nil {
		return nil, err
	}

	// Older gateways omit token_type; the credential is sent as bearer either way.
	if out.TokenType != "" && !strings.EqualFold(out.TokenType, "bearer") {
		return nil, &APIError{Op: OpLogin, Status: http.StatusOK,
			Detail: fmt.Sprintf("unsupported token type %q", out.TokenType)}
	}
	if out.AccessToken == "" {
		return nil, &APIError{Op: OpLogin, Status: http.StatusOK, Detail: "server returned an empty access token"}
	}
	if err := out.UserInfo.Validate(); err != nil {
		return nil, &APIError{Op: OpLogin, Status: http.StatusOK, Detail: "server returned an incomplete user profile"}
	}
	return &out, nil
}

// Register creates an account. It does not return a session.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	var out RegisterResult
	if err := c.doJSON(ctx, OpRegister, http.MethodPost, "/auth/register", req, false, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me fetches the profile for the current credential.
func (c *Client) Me(ctx context.Context) (*UserRecord, error) {
	var out UserRecord
	if err := c.do(ctx, call{op: OpMe, method: http.MethodGet, path: "/auth/me", auth: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health reports server liveness.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	if err := c.do(ctx, call{op: OpHealth, method: http.MethodGet, path: "/health"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// =============================================================================
// DOCUMENTS
// =============================================================================

// UploadDocuments sends files as one multipart request. The batch succeeds or
// fails as a whole.
func (c *Client) UploadDocuments(ctx context.Context, files []UploadFile) (*UploadResult, error) {
	if len(files) == 0 {
		return nil, NewValidationError(UploadField, "please select at least one PDF file")
	}

	body, contentType, err := encodeMultipart(files)
	if err != nil {
		return nil, err
	}

	var out UploadResult
	err = c.do(ctx, call{
		op:          OpUpload,
		method:      http.MethodPost,
		path:        "/documents/upload",
		body:        bytes.NewReader(body),
		contentType: contentType,
		auth:        true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListDocuments returns every indexed document.
func (c *Client) ListDocuments(ctx context.Context) ([]model.DocumentRecord, error) {
	var out documentsResponse
	if err := c.do(ctx, call{op: OpList, method: http.MethodGet, path: "/documents/list", auth: true}, &out); err != nil {
		return nil, err
	}
	return out.Documents, nil
}

// =============================================================================
// CHAT
// =============================================================================

// Ask sends a question. A non-positive topK uses DefaultTopK.
func (c *Client) Ask(ctx context.Context, question string, topK int) (*Answer, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	var out Answer
	if err := c.doJSON(ctx, OpAsk, http.MethodPost, "/chat/ask", askRequest{Question: question, TopK: topK}, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// History returns up to limit past exchanges, oldest first. A non-positive
// limit uses DefaultHistoryLimit.
func (c *Client) History(ctx context.Context, limit int) ([]HistoryItem, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	var out historyResponse
	err := c.do(ctx, call{
		op:     OpHistory,
		method: http.MethodGet,
		path:   "/chat/history?limit=" + strconv.Itoa(limit),
		auth:   true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.History, nil
}

// ClearHistory deletes the server-side history. It returns the server's
// confirmation text.
func (c *Client) ClearHistory(ctx context.Context) (string, error) {
	var out messageResponse
	if err := c.do(ctx, call{op: OpClearHistory, method: http.MethodDelete, path: "/chat/clear", auth: true}, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

type call struct {
	op          string
	method      string
	path        string
	body        io.Reader
	contentType string
	auth        bool
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, in any, auth bool, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: failed to marshal request: %w", op, err)
	}
	return c.do(ctx, call{
		op:          op,
		method:      method,
		path:        path,
		body:        bytes.NewReader(payload),
		contentType: "application/json",
		auth:        auth,
	}, out)
}

// do executes one request and decodes a 2xx JSON body into out.
func (c *Client) do(ctx context.Context, cl call, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &TransportError{Op: cl.op, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, cl.body)
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", cl.op, err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", requestID)
	if cl.contentType != "" {
		req.Header.Set("Content-Type", cl.contentType)
	}
	if cl.auth && c.creds != nil {
		if cred := c.creds.Credential(); cred != "" {
			req.Header.Set("Authorization", "Bearer "+cred)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)

	// Keep the credential out of anything that might log the request later
	req.Header.Del("Authorization")

	fields := []zap.Field{
		zap.String("op", cl.op),
		zap.String("method", cl.method),
		zap.String("path", req.URL.Path),
		zap.String("request_id", requestID),
	}
	if err != nil {
		c.logger.Warn("request failed", append(fields,
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.Error(err))...)
		return &TransportError{Op: cl.op, Err: err}
	}
	defer resp.Body.Close()

	body, err := readResponse(resp)
	fields = append(fields,
		zap.Int("status", resp.StatusCode),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()))
	if err != nil {
		c.logger.Warn("response unreadable", append(fields, zap.Error(err))...)
		return &TransportError{Op: cl.op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := extractDetail(body, resp.Header.Get("Content-Type"))
		c.logger.Info("request rejected", append(fields, zap.String("detail", detail))...)
		return &APIError{Op: cl.op, Status: resp.StatusCode, Detail: detail}
	}
	c.logger.Debug("request ok", fields...)

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &APIError{Op: cl.op, Status: resp.StatusCode, Detail: "malformed response from server"}
	}
	return nil
}

// readResponse reads the response body with a size limit.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// encodeMultipart writes each file as a "files" part declared as PDF.
func encodeMultipart(files []UploadFile) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, f := range files {
		data := f.Data
		if data == nil {
			var err error
			data, err = os.ReadFile(f.Path)
			if err != nil {
				return nil, "", NewValidationError(UploadField, fmt.Sprintf("cannot read %s: %v", f.Path, err))
			}
		}
		name := f.Name
		if name == "" {
			name = filepath.Base(f.Path)
		}
		ct := f.ContentType
		if ct == "" {
			ct = MediaTypePDF
		}

		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			UploadField, escapeQuotes(name)))
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create multipart part: %w", err)
		}
		if _, err := part.Write(data); err != nil {
			return nil, "", fmt.Errorf("failed to write multipart part: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish multipart body: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// IsTimeout reports whether err is a transport deadline.
func IsTimeout(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Timeout()
}
