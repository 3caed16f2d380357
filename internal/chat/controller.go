// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/ragdesk/internal/api"
	"github.com/jeranaias/ragdesk/internal/logging"
	"github.com/jeranaias/ragdesk/internal/model"
	"github.com/jeranaias/ragdesk/internal/session"
)

// =============================================================================
// ERRORS AND MESSAGES
// =============================================================================

var (
	// ErrBusy is returned when an operation is started outside Idle.
	ErrBusy = errors.New("another request is already in progress")

	// ErrCancelled is returned when the user declines a confirmation.
	ErrCancelled = errors.New("cancelled")
)

// Text rendered into the conversation for failures and notices.
const (
	MsgRejectedPrefix    = "Sorry, something went wrong: "
	MsgNetworkError      = api.MsgTransport
	MsgSessionExpired    = "Your session has expired. Please log in again."
	MsgHistoryCleared    = "Chat history cleared."
	MsgClearFailedPrefix = "Could not clear chat history: "
)

// =============================================================================
// STATE
// =============================================================================

// State is the controller's phase.
type State int

const (
	Idle State = iota
	Sending
	LoadingHistory
	Clearing
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Sending:
		return "sending"
	case LoadingHistory:
		return "loading_history"
	case Clearing:
		return "clearing"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time copy of the controller state.
type Snapshot struct {
	State        State
	Messages     []model.Message
	SendDisabled bool
}

// Busy reports whether an operation is in flight.
func (s Snapshot) Busy() bool {
	return s.State != Idle
}

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Gateway is the subset of api.Client the controller uses.
type Gateway interface {
	Ask(ctx context.Context, question string, topK int) (*api.Answer, error)
	History(ctx context.Context, limit int) ([]api.HistoryItem, error)
	ClearHistory(ctx context.Context) (string, error)
}

// SessionGuard issues and checks tickets. session.Manager satisfies it.
type SessionGuard interface {
	Ticket() session.Ticket
	IsCurrent(session.Ticket) bool
}

// Config holds request parameters.
type Config struct {
	TopK         int
	HistoryLimit int
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller owns the message list and the in-flight flag.
type Controller struct {
	mu sync.Mutex

	gw     Gateway
	guard  SessionGuard
	cfg    Config
	logger *zap.Logger

	state        State
	sendDisabled bool
	messages     []model.Message
	generation   uint64
}

// NewController creates an idle controller with an empty list.
func NewController(gw Gateway, guard SessionGuard, cfg Config, logger *zap.Logger) *Controller {
	if cfg.TopK <= 0 {
		cfg.TopK = api.DefaultTopK
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = api.DefaultHistoryLimit
	}
	return &Controller{
		gw:     gw,
		guard:  guard,
		cfg:    cfg,
		logger: logging.OrNop(logger).Named("chat"),
	}
}

// Exchange is one question between Begin and Run.
type Exchange struct {
	// Question is the normalized question text.
	Question string
	// UserMessage is the message appended by Begin.
	UserMessage model.Message

	ticket     session.Ticket
	generation uint64
	done       bool
}

// Begin validates text, appends the user message, and enters Sending. It
// performs no I/O, so a UI can call it synchronously and show the question
// immediately.
func (c *Controller) Begin(text string) (*Exchange, error) {
	question := norm.NFC.String(strings.TrimSpace(text))

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Idle {
		return nil, ErrBusy
	}
	if question == "" {
		return nil, api.NewValidationError("question", "please enter a question")
	}

	msg := model.NewUserMessage(question)
	c.messages = append(c.messages, msg)
	c.state = Sending
	c.sendDisabled = true

	return &Exchange{
		Question:    question,
		UserMessage: msg,
		ticket:      c.guard.Ticket(),
		generation:  c.generation,
	}, nil
}

// Run issues the question started by Begin and appends the reply. On
// failure the appended assistant message describes the error and the error
// is returned too. A stale response appends nothing and returns
// api.ErrStale. The send flag is released on every path.
func (c *Controller) Run(ctx context.Context, ex *Exchange) (model.Message, error) {
	if ex == nil || ex.done {
		return model.Message{}, errors.New("exchange already completed")
	}
	ex.done = true
	defer c.release(ex.generation, Sending)

	answer, err := c.gw.Ask(ctx, ex.Question, c.cfg.TopK)

	if !c.guard.IsCurrent(ex.ticket) {
		c.logger.Debug("discarding stale answer")
		return model.Message{}, api.ErrStale
	}

	var reply model.Message
	if err != nil {
		reply = model.NewAssistantMessage(FailureText(err), nil)
		c.logger.Info("question failed",
			zap.String("kind", api.Classify(err).String()),
			zap.Error(err))
	} else {
		reply = model.NewAssistantMessage(answer.Answer, answer.Sources)
		if !answer.Timestamp.IsZero() {
			reply.Timestamp = answer.Timestamp.Time
		}
	}

	c.mu.Lock()
	if c.generation == ex.generation {
		c.messages = append(c.messages, reply)
	}
	c.mu.Unlock()

	return reply, err
}

// Submit is Begin followed by Run.
func (c *Controller) Submit(ctx context.Context, text string) (model.Message, error) {
	ex, err := c.Begin(text)
	if err != nil {
		return model.Message{}, err
	}
	return c.Run(ctx, ex)
}

// release returns to Idle if the controller is still in the state entered by
// the operation of generation gen.
func (c *Controller) release(gen uint64, from State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen || c.state != from {
		return
	}
	c.state = Idle
	if from == Sending {
		c.sendDisabled = false
	}
}

// LoadHistory replaces the list with the server's history. On failure the
// list is left as it was.
func (c *Controller) LoadHistory(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Idle {
		c.mu.Unlock()
		return ErrBusy
	}
	c.state = LoadingHistory
	gen := c.generation
	c.mu.Unlock()
	defer c.release(gen, LoadingHistory)

	ticket := c.guard.Ticket()
	items, err := c.gw.History(ctx, c.cfg.HistoryLimit)
	if !c.guard.IsCurrent(ticket) {
		return api.ErrStale
	}
	if err != nil {
		c.logger.Info("history load failed", zap.Error(err))
		return err
	}

	rebuilt := BuildHistory(items)

	c.mu.Lock()
	if c.generation == gen {
		c.messages = rebuilt
	}
	c.mu.Unlock()

	c.logger.Debug("history loaded", zap.Int("exchanges", len(items)))
	return nil
}

// BuildHistory turns server history items into alternating user and
// assistant messages, preserving order.
func BuildHistory(items []api.HistoryItem) []model.Message {
	out := make([]model.Message, 0, len(items)*2)
	for _, it := range items {
		q := model.NewUserMessage(it.Message)
		a := model.NewAssistantMessage(it.Response, it.Sources)
		if !it.CreatedAt.IsZero() {
			q.Timestamp = it.CreatedAt.Time
			a.Timestamp = it.CreatedAt.Time
		}
		out = append(out, q, a)
	}
	return out
}

// ClearHistory deletes the server-side history after confirm returns true.
// A nil confirm is treated as declined. The controller stays in Clearing
// until the request returns, so no question can start in between.
func (c *Controller) ClearHistory(ctx context.Context, confirm func() bool) error {
	if confirm == nil || !confirm() {
		return ErrCancelled
	}

	c.mu.Lock()
	if c.state != Idle {
		c.mu.Unlock()
		return ErrBusy
	}
	c.state = Clearing
	gen := c.generation
	c.mu.Unlock()
	defer c.release(gen, Clearing)

	ticket := c.guard.Ticket()
	_, err := c.gw.ClearHistory(ctx)
	if !c.guard.IsCurrent(ticket) {
		return api.ErrStale
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return api.ErrStale
	}
	if err != nil {
		c.messages = append(c.messages, model.NewSystemMessage(MsgClearFailedPrefix+api.UserMessage(err)))
		return err
	}
	c.messages = []model.Message{model.NewSystemMessage(MsgHistoryCleared)}
	return nil
}

// AppendSystem adds a notice to the conversation.
func (c *Controller) AppendSystem(text string) {
	c.mu.Lock()
	c.messages = append(c.messages, model.NewSystemMessage(text))
	c.mu.Unlock()
}

// AppendAssistant adds an assistant-style reply that did not come from the
// gateway, such as an upload rejection.
func (c *Controller) AppendAssistant(text string) {
	c.mu.Lock()
	c.messages = append(c.messages, model.NewAssistantMessage(text, nil))
	c.mu.Unlock()
}

// Reset drops all messages and any in-flight state. Operations started
// before Reset can no longer touch the controller.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.messages = nil
	c.state = Idle
	c.sendDisabled = false
	c.generation++
	c.mu.Unlock()
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		State:        c.state,
		Messages:     model.CloneMessages(c.messages),
		SendDisabled: c.sendDisabled,
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SendDisabled reports whether a question is in flight.
func (c *Controller) SendDisabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendDisabled
}

// Transcript returns the conversation for export.
func (c *Controller) Transcript() *model.Conversation {
	c.mu.Lock()
	msgs := model.CloneMessages(c.messages)
	c.mu.Unlock()
	return model.NewConversation(uuid.NewString(), msgs)
}

// FailureText renders err as the assistant reply shown in place of an
// answer.
func FailureText(err error) string {
	switch api.Classify(err) {
	case api.KindTransport:
		return MsgNetworkError
	case api.KindAuth:
		return MsgSessionExpired
	default:
		return MsgRejectedPrefix + api.Detail(err)
	}
}
