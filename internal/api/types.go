// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import "github.com/jeranaias/ragdesk/internal/model"

// =============================================================================
// AUTH
// =============================================================================

// LoginResult is the body of a successful POST /auth/login.
type LoginResult struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	UserInfo    model.Identity `json:"user_info"`
}

// Session converts the login result into a session.
func (r *LoginResult) Session() *model.Session {
	return &model.Session{Credential: r.AccessToken, Identity: r.UserInfo}
}

// RegisterRequest is the JSON body of POST /auth/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Password string `json:"password"`
}

// RegisterResult is the body of a successful POST /auth/register.
type RegisterResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	UserID  int64  `json:"user_id"`
}

// UserRecord is returned by GET /auth/me.
type UserRecord struct {
	model.Identity
	CreatedAt model.Timestamp `json:"created_at"`
	IsActive  bool            `json:"is_active"`
}

// =============================================================================
// DOCUMENTS
// =============================================================================

// UploadFile is one file in an upload batch.
type UploadFile struct {
	// Name is the filename sent in the multipart part.
	Name string
	// Path is read when Data is nil.
	Path string
	// Data holds the file content when already in memory.
	Data []byte
	// ContentType is the declared media type.
	ContentType string
}

// UploadedDocument is the per-file status in an upload response.
type UploadedDocument struct {
	Filename   string `json:"filename"`
	DocumentID int64  `json:"document_id"`
	Status     string `json:"status"`
}

// UploadResult is the body of a successful POST /documents/upload.
type UploadResult struct {
	Success   bool               `json:"success"`
	Message   string             `json:"message"`
	Documents []UploadedDocument `json:"documents"`
}

type documentsResponse struct {
	Documents []model.DocumentRecord `json:"documents"`
}

// =============================================================================
// CHAT
// =============================================================================

type askRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
}

// Answer is the body of a successful POST /chat/ask.
type Answer struct {
	Answer    string          `json:"answer"`
	Sources   []model.Source  `json:"sources"`
	Timestamp model.Timestamp `json:"timestamp"`
}

// HistoryItem is one question/answer pair from GET /chat/history.
type HistoryItem struct {
	ID        int64           `json:"id"`
	Message   string          `json:"message"`
	Response  string          `json:"response"`
	Sources   []model.Source  `json:"sources"`
	CreatedAt model.Timestamp `json:"created_at"`
}

type historyResponse struct {
	History []HistoryItem `json:"history"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// Health is the body of GET /health.
type Health struct {
	Status    string          `json:"status"`
	Timestamp model.Timestamp `json:"timestamp"`
}

// Healthy reports whether the server declared itself healthy.
func (h *Health) Healthy() bool {
	return h.Status == "healthy"
}
