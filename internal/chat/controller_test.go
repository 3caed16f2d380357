// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/ragdesk/internal/api"
	"github.com/jeranaias/ragdesk/internal/model"
	"github.com/jeranaias/ragdesk/internal/session"
)

// fakeGateway returns canned results. If block is set, Ask waits on it.
type fakeGateway struct {
	mu sync.Mutex

	answer  *api.Answer
	askErr  error
	block   chan struct{}
	started chan struct{}
	onAsk   func()
	asked   []string
	topK    int

	history    []api.HistoryItem
	historyErr error
	limit      int

	clearErr     error
	clears       int
	clearBlock   chan struct{}
	clearStarted chan struct{}
}

func (f *fakeGateway) Ask(ctx context.Context, question string, topK int) (*api.Answer, error) {
	f.mu.Lock()
	f.asked = append(f.asked, question)
	f.topK = topK
	hook := f.onAsk
	f.mu.Unlock()

	if f.started != nil {
		close(f.started)
	}
	if f.block != nil {
		<-f.block
	}
	if hook != nil {
		hook()
	}
	return f.answer, f.askErr
}

func (f *fakeGateway) History(ctx context.Context, limit int) ([]api.HistoryItem, error) {
	f.mu.Lock()
	f.limit = limit
	f.mu.Unlock()
	return f.history, f.historyErr
}

func (f *fakeGateway) ClearHistory(ctx context.Context) (string, error) {
	f.mu.Lock()
	f.clears++
	f.mu.Unlock()
	if f.clearStarted != nil {
		close(f.clearStarted)
	}
	if f.clearBlock != nil {
		<-f.clearBlock
	}
	if f.clearErr != nil {
		return "", f.clearErr
	}
	return "Chat history cleared successfully", nil
}

func newManager(t *testing.T) *session.Manager {
	t.Helper()
	mgr := session.NewManager(session.NewStore(session.NewMemoryBackend()), nil)
	require.NoError(t, mgr.Establish(&model.Session{
		Credential: "tok1",
		Identity:   model.Identity{Username: "ada", FullName: "Ada"},
	}))
	return mgr
}

func newController(t *testing.T, gw *fakeGateway) (*Controller, *session.Manager) {
	t.Helper()
	mgr := newManager(t)
	return NewController(gw, mgr, Config{}, nil), mgr
}

func roles(msgs []model.Message) []model.Role {
	out := make([]model.Role, len(msgs))
	for i, m := range msgs {
		out[i] = m.Role
	}
	return out
}

// =============================================================================
// SUBMIT
// =============================================================================

func TestSubmit_Success(t *testing.T) {
	gw := &fakeGateway{answer: &api.Answer{
		Answer:  "Mostly cats.",
		Sources: []model.Source{{Filename: "a.pdf", Similarity: 0.87}},
	}}
	c, _ := newController(t, gw)

	reply, err := c.Submit(context.Background(), "  what is in a.pdf?  ")
	require.NoError(t, err)
	assert.Equal(t, "Mostly cats.", reply.Content)

	snap := c.Snapshot()
	assert.Equal(t, Idle, snap.State)
	assert.False(t, snap.SendDisabled)
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, model.RoleUser, snap.Messages[0].Role)
	assert.Equal(t, "what is in a.pdf?", snap.Messages[0].Content)
	assert.Equal(t, model.RoleAssistant, snap.Messages[1].Role)
	assert.True(t, snap.Messages[1].HasSources())

	assert.Equal(t, []string{"what is in a.pdf?"}, gw.asked)
	assert.Equal(t, api.DefaultTopK, gw.topK)
}

func TestSubmit_EmptyIsValidationError(t *testing.T) {
	gw := &fakeGateway{}
	c, _ := newController(t, gw)

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := c.Submit(context.Background(), text)
		assert.Equal(t, api.KindValidation, api.Classify(err))
	}
	assert.Empty(t, gw.asked)
	assert.Empty(t, c.Snapshot().Messages)
	assert.Equal(t, Idle, c.State())
}

func TestSubmit_NormalizesToNFC(t *testing.T) {
	gw := &fakeGateway{answer: &api.Answer{Answer: "ok"}}
	c, _ := newController(t, gw)

	// "e" + combining acute accent
	_, err := c.Submit(context.Background(), "cafe\u0301")
	require.NoError(t, err)
	assert.Equal(t, []string{"caf\u00e9"}, gw.asked)
}

func TestSubmit_RejectionRendersDetail(t *testing.T) {
	gw := &fakeGateway{askErr: &api.APIError{Op: api.OpAsk, Status: 500, Detail: "index unavailable"}}
	c, _ := newController(t, gw)

	reply, err := c.Submit(context.Background(), "q")
	require.Error(t, err)
	assert.Equal(t, api.KindRejected, api.Classify(err))
	assert.Equal(t, model.RoleAssistant, reply.Role)
	assert.Contains(t, reply.Content, "index unavailable")
	assert.Equal(t, "Sorry, something went wrong: index unavailable", reply.Content)

	snap := c.Snapshot()
	assert.False(t, snap.SendDisabled)
	assert.Equal(t, []model.Role{model.RoleUser, model.RoleAssistant}, roles(snap.Messages))
}

func TestSubmit_FailureTexts(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"transport", &api.TransportError{Op: api.OpAsk, Err: errors.New("dial tcp: refused")}, MsgNetworkError},
		{"auth", &api.APIError{Op: api.OpAsk, Status: 401, Detail: "Could not validate credentials"}, MsgSessionExpired},
		{"rejected", &api.APIError{Op: api.OpAsk, Status: 400, Detail: "bad"}, "Sorry, something went wrong: bad"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newController(t, &fakeGateway{askErr: tt.err})
			reply, err := c.Submit(context.Background(), "q")
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.want, reply.Content)
			assert.False(t, c.SendDisabled())
		})
	}
	assert.NotEqual(t, MsgNetworkError, FailureText(&api.APIError{Status: 500, Detail: "x"}))
}

func TestSubmit_BusyWhileSending(t *testing.T) {
	gw := &fakeGateway{
		answer:  &api.Answer{Answer: "done"},
		block:   make(chan struct{}),
		started: make(chan struct{}),
	}
	c, _ := newController(t, gw)

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), "first")
		done <- err
	}()
	<-gw.started

	snap := c.Snapshot()
	assert.Equal(t, Sending, snap.State)
	assert.True(t, snap.SendDisabled)

	_, err := c.Submit(context.Background(), "second")
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, c.LoadHistory(context.Background()), ErrBusy)
	assert.Len(t, c.Snapshot().Messages, 1, "busy submit has no side effects")

	close(gw.block)
	require.NoError(t, <-done)
	assert.False(t, c.SendDisabled())
	assert.Equal(t, []string{"first"}, gw.asked)
}

func TestSubmit_StaleResponseDiscarded(t *testing.T) {
	gw := &fakeGateway{answer: &api.Answer{Answer: "late"}}
	c, mgr := newController(t, gw)
	gw.onAsk = func() { _ = mgr.Destroy() }

	_, err := c.Submit(context.Background(), "q")
	assert.ErrorIs(t, err, api.ErrStale)

	snap := c.Snapshot()
	assert.False(t, snap.SendDisabled, "flag released even when stale")
	assert.Equal(t, Idle, snap.State)
	assert.Equal(t, []model.Role{model.RoleUser}, roles(snap.Messages))
}

func TestRun_LateExchangeDoesNotReleaseNewer(t *testing.T) {
	gw := &fakeGateway{answer: &api.Answer{Answer: "a"}}
	c, _ := newController(t, gw)

	old, err := c.Begin("old")
	require.NoError(t, err)

	c.Reset()
	newer, err := c.Begin("new")
	require.NoError(t, err)

	_, _ = c.Run(context.Background(), old)
	snap := c.Snapshot()
	assert.Equal(t, Sending, snap.State)
	assert.True(t, snap.SendDisabled)
	assert.Len(t, snap.Messages, 1, "old reply is not appended after reset")

	_, err = c.Run(context.Background(), newer)
	require.NoError(t, err)
	assert.False(t, c.SendDisabled())
	assert.Len(t, c.Snapshot().Messages, 2)
}

func TestRun_ReleasesOnPanic(t *testing.T) {
	gw := &fakeGateway{}
	c, _ := newController(t, gw)
	gw.onAsk = func() { panic("boom") }

	assert.Panics(t, func() { _, _ = c.Submit(context.Background(), "q") })
	assert.False(t, c.SendDisabled())
	assert.Equal(t, Idle, c.State())
}

func TestRun_ExchangeUsedTwice(t *testing.T) {
	c, _ := newController(t, &fakeGateway{answer: &api.Answer{Answer: "a"}})
	ex, err := c.Begin("q")
	require.NoError(t, err)
	_, err = c.Run(context.Background(), ex)
	require.NoError(t, err)
	_, err = c.Run(context.Background(), ex)
	assert.Error(t, err)
}

// =============================================================================
// HISTORY
// =============================================================================

func TestLoadHistory_ReconstructsPairs(t *testing.T) {
	s1 := model.Source{Filename: "s1.pdf", Similarity: 0.5}
	gw := &fakeGateway{history: []api.HistoryItem{
		{ID: 1, Message: "Q1", Response: "A1", Sources: []model.Source{}},
		{ID: 2, Message: "Q2", Response: "A2", Sources: []model.Source{s1}},
	}}
	c, _ := newController(t, gw)
	c.AppendSystem("old notice")

	require.NoError(t, c.LoadHistory(context.Background()))
	assert.Equal(t, api.DefaultHistoryLimit, gw.limit)

	msgs := c.Snapshot().Messages
	require.Len(t, msgs, 4)
	assert.Equal(t, []model.Role{model.RoleUser, model.RoleAssistant, model.RoleUser, model.RoleAssistant}, roles(msgs))
	assert.Equal(t, "Q1", msgs[0].Content)
	assert.Equal(t, "A1", msgs[1].Content)
	assert.Nil(t, msgs[1].Sources)
	assert.Equal(t, "Q2", msgs[2].Content)
	assert.Equal(t, []model.Source{s1}, msgs[3].Sources)
	assert.Equal(t, Idle, c.State())
}

func TestLoadHistory_FailureKeepsState(t *testing.T) {
	gw := &fakeGateway{historyErr: &api.TransportError{Op: api.OpHistory, Err: errors.New("timeout")}}
	c, _ := newController(t, gw)
	c.AppendSystem("keep me")

	err := c.LoadHistory(context.Background())
	assert.Equal(t, api.KindTransport, api.Classify(err))
	msgs := c.Snapshot().Messages
	require.Len(t, msgs, 1)
	assert.Equal(t, "keep me", msgs[0].Content)
	assert.Equal(t, Idle, c.State())
}

func TestLoadHistory_UsesConfiguredLimit(t *testing.T) {
	gw := &fakeGateway{}
	c := NewController(gw, newManager(t), Config{HistoryLimit: 10, TopK: 2}, nil)
	require.NoError(t, c.LoadHistory(context.Background()))
	assert.Equal(t, 10, gw.limit)
}

// =============================================================================
// CLEAR
// =============================================================================

func TestClearHistory_Declined(t *testing.T) {
	gw := &fakeGateway{}
	c, _ := newController(t, gw)

	assert.ErrorIs(t, c.ClearHistory(context.Background(), func() bool { return false }), ErrCancelled)
	assert.ErrorIs(t, c.ClearHistory(context.Background(), nil), ErrCancelled)
	assert.Equal(t, 0, gw.clears)
}

func TestClearHistory_TwiceIsEmpty(t *testing.T) {
	gw := &fakeGateway{answer: &api.Answer{Answer: "a"}}
	c, _ := newController(t, gw)
	_, err := c.Submit(context.Background(), "q")
	require.NoError(t, err)

	yes := func() bool { return true }
	require.NoError(t, c.ClearHistory(context.Background(), yes))
	require.NoError(t, c.ClearHistory(context.Background(), yes))

	msgs := c.Snapshot().Messages
	for _, m := range msgs {
		assert.Equal(t, model.RoleSystem, m.Role)
	}
	require.Len(t, msgs, 1)
	assert.Equal(t, MsgHistoryCleared, msgs[0].Content)
	assert.Equal(t, 2, gw.clears)
}

func TestClearHistory_BusyWhileClearing(t *testing.T) {
	gw := &fakeGateway{
		answer:       &api.Answer{Answer: "A"},
		clearBlock:   make(chan struct{}),
		clearStarted: make(chan struct{}),
	}
	c, _ := newController(t, gw)

	done := make(chan error, 1)
	go func() {
		done <- c.ClearHistory(context.Background(), func() bool { return true })
	}()
	<-gw.clearStarted

	assert.Equal(t, Clearing, c.State())
	_, err := c.Begin("Q")
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, c.LoadHistory(context.Background()), ErrBusy)
	assert.ErrorIs(t, c.ClearHistory(context.Background(), func() bool { return true }), ErrBusy)

	close(gw.clearBlock)
	require.NoError(t, <-done)
	assert.Equal(t, Idle, c.State())

	_, err = c.Submit(context.Background(), "Q")
	require.NoError(t, err)
	msgs := c.Snapshot().Messages
	assert.Equal(t, []model.Role{model.RoleSystem, model.RoleUser, model.RoleAssistant}, roles(msgs))
	assert.Equal(t, "Q", msgs[1].Content)
}

func TestClearHistory_FailureReleasesState(t *testing.T) {
	gw := &fakeGateway{clearErr: &api.APIError{Op: api.OpClearHistory, Status: 500, Detail: "db locked"}}
	c, _ := newController(t, gw)

	require.Error(t, c.ClearHistory(context.Background(), func() bool { return true }))
	assert.Equal(t, Idle, c.State())
	assert.False(t, c.SendDisabled())
}

func TestClearHistory_FailureKeepsMessages(t *testing.T) {
	gw := &fakeGateway{answer: &api.Answer{Answer: "a"}, clearErr: &api.APIError{Op: api.OpClearHistory, Status: 500, Detail: "db locked"}}
	c, _ := newController(t, gw)
	_, err := c.Submit(context.Background(), "q")
	require.NoError(t, err)

	err = c.ClearHistory(context.Background(), func() bool { return true })
	require.Error(t, err)

	msgs := c.Snapshot().Messages
	require.Len(t, msgs, 3)
	assert.Equal(t, model.RoleSystem, msgs[2].Role)
	assert.Equal(t, "Could not clear chat history: db locked", msgs[2].Content)
}

// =============================================================================
// MISC
// =============================================================================

func TestReset(t *testing.T) {
	c, _ := newController(t, &fakeGateway{answer: &api.Answer{Answer: "a"}})
	_, err := c.Submit(context.Background(), "q")
	require.NoError(t, err)

	c.Reset()
	snap := c.Snapshot()
	assert.Empty(t, snap.Messages)
	assert.Equal(t, Idle, snap.State)
	assert.False(t, snap.SendDisabled)
}

func TestSnapshotIsCopy(t *testing.T) {
	c, _ := newController(t, &fakeGateway{})
	c.AppendSystem("x")

	snap := c.Snapshot()
	snap.Messages[0].Content = "mutated"
	assert.Equal(t, "x", c.Snapshot().Messages[0].Content)
}

func TestTranscript(t *testing.T) {
	c, _ := newController(t, &fakeGateway{answer: &api.Answer{Answer: "a"}})
	_, err := c.Submit(context.Background(), "first question")
	require.NoError(t, err)

	tr := c.Transcript()
	assert.NotEmpty(t, tr.ID)
	assert.Equal(t, 2, tr.MessageCount())
	assert.Equal(t, "first question", tr.GetTitle())
}
