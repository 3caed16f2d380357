// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/ragdesk/internal/api"
	"github.com/jeranaias/ragdesk/internal/app"
	"github.com/jeranaias/ragdesk/internal/model"
	"github.com/jeranaias/ragdesk/internal/session"
)

// =============================================================================
// FAKE BACKEND
// =============================================================================

type backend struct {
	mu      sync.Mutex
	docs    []map[string]any
	history []map[string]any
	askCode int
	askBody map[string]any

	// clearGate, when set, holds /chat/clear open until closed.
	clearGate    chan struct{}
	clearStarted chan struct{}
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/chat/clear" && b.clearGate != nil {
		close(b.clearStarted)
		<-b.clearGate
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	reply := func(status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}

	if r.URL.Path == "/auth/login" {
		_ = r.ParseForm()
		if r.PostForm.Get("password") == "nope" {
			reply(http.StatusUnauthorized, map[string]any{"detail": "Incorrect username or password"})
			return
		}
		reply(http.StatusOK, map[string]any{
			"access_token": "tok1",
			"token_type":   "bearer",
			"user_info":    map[string]any{"id": 1, "username": r.PostForm.Get("username"), "full_name": "Ada"},
		})
		return
	}
	if r.Header.Get("Authorization") != "Bearer tok1" {
		reply(http.StatusUnauthorized, map[string]any{"detail": "Could not validate credentials"})
		return
	}

	switch r.URL.Path {
	case "/documents/list":
		reply(http.StatusOK, map[string]any{"documents": b.docs})
	case "/documents/upload":
		_ = r.ParseMultipartForm(1 << 20)
		var out []any
		for _, fh := range r.MultipartForm.File["files"] {
			b.docs = append(b.docs, map[string]any{"filename": fh.Filename, "chunk_count": 3, "processed_at": "2024-01-01T00:00:00"})
			out = append(out, map[string]any{"filename": fh.Filename, "document_id": len(b.docs), "status": "processed"})
		}
		reply(http.StatusOK, map[string]any{"success": true, "documents": out})
	case "/chat/ask":
		reply(b.askCode, b.askBody)
	case "/chat/history":
		reply(http.StatusOK, map[string]any{"history": b.history})
	case "/chat/clear":
		b.history = nil
		reply(http.StatusOK, map[string]any{"message": "Chat history cleared successfully"})
	default:
		http.NotFound(w, r)
	}
}

type fixture struct {
	backend *backend
	store   *session.MemoryBackend
	ctrl    *app.Controller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	b := &backend{
		askCode: http.StatusOK,
		askBody: map[string]any{
			"answer":  "The answer is **42**.",
			"sources": []any{map[string]any{"filename": "guide.pdf", "similarity": 0.87, "content_preview": "forty two"}},
		},
	}
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)

	store := session.NewMemoryBackend()
	mgr := session.NewManager(session.NewStore(store), nil)
	ctrl := app.New(mgr, api.New(srv.URL, mgr), app.Options{})
	return &fixture{backend: b, store: store, ctrl: ctrl}
}

func newModel(f *fixture, opts Options) Model {
	opts.SkipRestore = true
	opts.ShowSources = true
	m := New(f.ctrl, opts)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(Model)
}

// =============================================================================
// DRIVERS
// =============================================================================

// press sends one key.
func press(m Model, k tea.KeyMsg) (Model, tea.Cmd) {
	next, cmd := m.Update(k)
	return next.(Model), cmd
}

func keyType(t tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: t} }

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

// settle runs cmd and feeds the resulting messages back into the model
// until nothing but spinner ticks remain.
func settle(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0; steps++ {
		require.Less(t, steps, 100, "command chain did not settle")
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		switch msg := c().(type) {
		case nil, spinner.TickMsg:
		case tea.BatchMsg:
			queue = append(queue, msg...)
		default:
			// Follow-ups are spinner and cursor timers only.
			next, _ := m.Update(msg)
			m = next.(Model)
		}
	}
	return m
}

func loginModel(t *testing.T, f *fixture, opts Options) Model {
	t.Helper()
	m := newModel(f, opts)
	m.fields[fieldUsername].SetValue("ada")
	m.fields[fieldPassword].SetValue("secret")
	m, _ = press(m, keyType(tea.KeyDown))
	m, cmd := press(m, keyType(tea.KeyEnter))
	require.NotNil(t, cmd)
	m = settle(t, m, cmd)
	require.True(t, m.authenticated())
	return m
}

// =============================================================================
// AUTH SCREEN
// =============================================================================

func TestAuthScreen_Initial(t *testing.T) {
	m := newModel(newFixture(t), Options{})
	view := m.View()
	assert.Contains(t, view, "Login")
	assert.Contains(t, view, "Register")
	assert.Contains(t, view, "Username")
	assert.NotContains(t, view, "Full name")
}

func TestAuthScreen_TabSwitch(t *testing.T) {
	m := newModel(newFixture(t), Options{})
	m, _ = press(m, keyType(tea.KeyTab))
	assert.Equal(t, app.TabRegister, m.ctrl.UI().Tab)
	assert.Contains(t, m.View(), "Full name")
	assert.Contains(t, m.View(), "Email")

	m, _ = press(m, keyType(tea.KeyTab))
	assert.Equal(t, app.TabLogin, m.ctrl.UI().Tab)
}

func TestAuthScreen_EnterAdvancesFields(t *testing.T) {
	m := newModel(newFixture(t), Options{})
	m, cmd := press(m, keyType(tea.KeyEnter))
	assert.Nil(t, cmd)
	assert.Equal(t, 1, m.focus)
	assert.True(t, m.fields[fieldPassword].Focused())
}

func TestLogin_ShowsMainScreen(t *testing.T) {
	f := newFixture(t)
	f.backend.docs = []map[string]any{{"filename": "handbook.pdf", "chunk_count": 4, "processed_at": "2024-01-01T00:00:00"}}
	f.backend.history = []map[string]any{{"id": 1, "message": "Earlier question", "response": "Earlier answer", "sources": []any{}}}

	m := loginModel(t, f, Options{})
	view := m.View()
	assert.Contains(t, view, "signed in as Ada")
	assert.Contains(t, view, "handbook.pdf")
	assert.Contains(t, view, "Earlier question")
	assert.Empty(t, m.fields[fieldPassword].Value(), "form is cleared")

	stored, err := f.store.Get(session.KeyCredential)
	require.NoError(t, err)
	assert.Equal(t, "tok1", stored[session.KeyCredential])
}

func TestLogin_EmptySidebarPlaceholder(t *testing.T) {
	m := loginModel(t, newFixture(t), Options{})
	assert.Contains(t, m.View(), "No documents uploaded yet.")
}

func TestLogin_BadPasswordShowsNotice(t *testing.T) {
	m := newModel(newFixture(t), Options{})
	m.fields[fieldUsername].SetValue("ada")
	m.fields[fieldPassword].SetValue("nope")
	m, _ = press(m, keyType(tea.KeyDown))
	m, cmd := press(m, keyType(tea.KeyEnter))
	m = settle(t, m, cmd)

	assert.False(t, m.authenticated())
	assert.Contains(t, m.View(), "Incorrect username or password")
	assert.Empty(t, m.fields[fieldPassword].Value())
	assert.Equal(t, "ada", m.fields[fieldUsername].Value())
}

func TestRestoreOnInit(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, session.NewStore(f.store).Save(&model.Session{
		Credential: "tok1",
		Identity:   model.Identity{ID: 1, Username: "ada", FullName: "Ada"},
	}))

	m := New(f.ctrl, Options{})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = next.(Model)
	m = settle(t, m, m.Init())

	assert.True(t, m.authenticated())
	assert.Contains(t, m.View(), "signed in as Ada")
}

// =============================================================================
// MAIN SCREEN
// =============================================================================

func TestAsk_DisablesInputUntilAnswer(t *testing.T) {
	m := loginModel(t, newFixture(t), Options{})
	m.input.SetValue("What is the answer?")

	m, cmd := press(m, keyType(tea.KeyEnter))
	require.NotNil(t, cmd)

	// The question is visible before any network work.
	snap := m.ctrl.Chat().Snapshot()
	require.NotEmpty(t, snap.Messages)
	assert.Equal(t, "What is the answer?", snap.Messages[len(snap.Messages)-1].Content)
	assert.True(t, snap.SendDisabled)
	assert.Contains(t, m.View(), "Waiting for the answer")
	assert.Empty(t, m.input.Value())

	// Typing while disabled is ignored.
	m, _ = press(m, runes("x"))
	assert.Empty(t, m.input.Value())

	m = settle(t, m, cmd)
	assert.False(t, m.ctrl.Chat().SendDisabled())
	view := m.View()
	assert.Contains(t, view, "42")
	assert.Contains(t, view, "guide.pdf (87%)")
	assert.NotContains(t, view, "Waiting for the answer")
}

func TestAsk_BusyShowsFlash(t *testing.T) {
	f := newFixture(t)
	m := loginModel(t, f, Options{})
	f.backend.clearGate = make(chan struct{})
	f.backend.clearStarted = make(chan struct{})

	cleared := make(chan error, 1)
	go func() {
		cleared <- m.ctrl.Chat().ClearHistory(context.Background(), func() bool { return true })
	}()
	<-f.backend.clearStarted

	m.input.SetValue("hello")
	m, cmd := press(m, keyType(tea.KeyEnter))
	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), "Please wait for the current request to finish.")
	assert.Equal(t, "hello", m.input.Value(), "question is kept for retry")

	close(f.backend.clearGate)
	require.NoError(t, <-cleared)
	for _, msg := range m.ctrl.Chat().Snapshot().Messages {
		assert.NotEqual(t, model.RoleUser, msg.Role)
	}
}

func TestAsk_ServerFailureShownInline(t *testing.T) {
	f := newFixture(t)
	f.backend.askCode = http.StatusInternalServerError
	f.backend.askBody = map[string]any{"detail": "index unavailable"}

	m := loginModel(t, f, Options{})
	m.input.SetValue("hello")
	m, cmd := press(m, keyType(tea.KeyEnter))
	m = settle(t, m, cmd)

	assert.Contains(t, m.View(), "index unavailable")
	assert.False(t, m.ctrl.Chat().SendDisabled())
	assert.True(t, m.authenticated())
}

func TestAsk_EmptyQuestionFlashes(t *testing.T) {
	m := loginModel(t, newFixture(t), Options{})
	m.input.SetValue("   ")
	m, cmd := press(m, keyType(tea.KeyEnter))
	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), "please enter a question")
}

func TestClearHistory_Confirmation(t *testing.T) {
	f := newFixture(t)
	f.backend.history = []map[string]any{{"id": 1, "message": "Q1", "response": "A1", "sources": []any{}}}
	m := loginModel(t, f, Options{})

	m, _ = press(m, keyType(tea.KeyCtrlL))
	assert.Equal(t, modeConfirmClear, m.mode)
	assert.Contains(t, m.View(), "Clear history")

	m, cmd := press(m, runes("n"))
	assert.Nil(t, cmd)
	assert.Equal(t, modeNormal, m.mode)
	assert.Contains(t, m.View(), "Clear cancelled.")

	m, _ = press(m, keyType(tea.KeyCtrlL))
	m, cmd = press(m, runes("y"))
	require.NotNil(t, cmd)
	m = settle(t, m, cmd)

	msgs := m.ctrl.Chat().Snapshot().Messages
	require.Len(t, msgs, 1)
	assert.Equal(t, model.RoleSystem, msgs[0].Role)
	assert.Contains(t, m.View(), "Chat history cleared.")
}

func TestUploadPrompt(t *testing.T) {
	dir := t.TempDir()
	pdf := filepath.Join(dir, "report.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF-1.4"), 0600))

	m := loginModel(t, newFixture(t), Options{})
	m, _ = press(m, keyType(tea.KeyCtrlU))
	assert.Equal(t, modeUploadPrompt, m.mode)

	m.prompt.SetValue(`"` + pdf + `"`)
	m, cmd := press(m, keyType(tea.KeyEnter))
	require.NotNil(t, cmd)
	m = settle(t, m, cmd)

	assert.Equal(t, modeNormal, m.mode)
	view := m.View()
	assert.Contains(t, view, "report.pdf")
	assert.Contains(t, view, "Uploaded 1 document(s).")
}

func TestUploadPrompt_Escape(t *testing.T) {
	m := loginModel(t, newFixture(t), Options{})
	m, _ = press(m, keyType(tea.KeyCtrlU))
	m.prompt.SetValue("whatever")
	m, cmd := press(m, keyType(tea.KeyEsc))
	assert.Nil(t, cmd)
	assert.Equal(t, modeNormal, m.mode)
	assert.Empty(t, m.prompt.Value())
}

func TestUploadPrompt_MissingFile(t *testing.T) {
	m := loginModel(t, newFixture(t), Options{})
	m, _ = press(m, keyType(tea.KeyCtrlU))
	m.prompt.SetValue(filepath.Join(t.TempDir(), "missing.pdf"))
	m, cmd := press(m, keyType(tea.KeyEnter))
	m = settle(t, m, cmd)
	assert.Contains(t, m.View(), "Upload failed")
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	m := loginModel(t, f, Options{})
	m, cmd := press(m, keyType(tea.KeyCtrlO))
	m = settle(t, m, cmd)

	assert.False(t, m.authenticated())
	assert.Contains(t, m.View(), "Username")
	assert.Zero(t, f.store.Len())
}

func TestExport(t *testing.T) {
	dir := t.TempDir()
	m := loginModel(t, newFixture(t), Options{ExportDir: dir, ExportFormat: "json"})
	m.input.SetValue("What is the answer?")
	m, cmd := press(m, keyType(tea.KeyEnter))
	m = settle(t, m, cmd)

	m, cmd = press(m, keyType(tea.KeyCtrlE))
	m = settle(t, m, cmd)
	assert.Contains(t, m.View(), "Transcript saved to")

	matches, err := filepath.Glob(filepath.Join(dir, "transcript_*.json"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestQuit(t *testing.T) {
	m := newModel(newFixture(t), Options{})
	_, cmd := press(m, keyType(tea.KeyCtrlC))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
