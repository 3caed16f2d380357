// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/jeranaias/ragdesk/internal/api"
	"github.com/jeranaias/ragdesk/internal/chat"
	"github.com/jeranaias/ragdesk/internal/documents"
	"github.com/jeranaias/ragdesk/internal/logging"
	"github.com/jeranaias/ragdesk/internal/model"
	"github.com/jeranaias/ragdesk/internal/session"
)

// Notice texts.
const (
	MsgRegistered     = "Registration successful! Please log in."
	MsgSessionExpired = api.MsgSessionExpired
)

// ErrUnknownIntent is returned by Dispatch for an unsupported intent.
var ErrUnknownIntent = errors.New("unknown intent")

// =============================================================================
// UI STATE
// =============================================================================

// NoticeKind styles a notice.
type NoticeKind int

const (
	NoticeError NoticeKind = iota
	NoticeSuccess
)

// String returns "error" or "success".
func (k NoticeKind) String() string {
	if k == NoticeSuccess {
		return "success"
	}
	return "error"
}

// Notice is the banner on the auth screen.
type Notice struct {
	Text string
	Kind NoticeKind
}

// UIState is derived on every call and never stored.
type UIState struct {
	Loading       bool
	SendDisabled  bool
	AuthMessage   *Notice
	Authenticated bool
	Tab           Tab
	Identity      *model.Identity
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Options configures a Controller.
type Options struct {
	TopK                   int
	HistoryLimit           int
	AutoLoginAfterRegister bool
	Logger                 *zap.Logger
}

// Controller owns one instance of each component.
type Controller struct {
	session *session.Manager
	client  *api.Client
	docs    *documents.Registry
	chat    *chat.Controller
	opts    Options
	logger  *zap.Logger

	mu      sync.Mutex
	notice  *Notice
	tab     Tab
	pending int
}

// New creates a controller. The registry and chat controller are built
// around client and mgr.
func New(mgr *session.Manager, client *api.Client, opts Options) *Controller {
	logger := logging.OrNop(opts.Logger)
	return &Controller{
		session: mgr,
		client:  client,
		docs:    documents.NewRegistry(client, mgr, logger),
		chat: chat.NewController(client, mgr, chat.Config{
			TopK:         opts.TopK,
			HistoryLimit: opts.HistoryLimit,
		}, logger),
		opts:   opts,
		logger: logger.Named("app"),
	}
}

// Session returns the session manager.
func (c *Controller) Session() *session.Manager { return c.session }

// Client returns the API client.
func (c *Controller) Client() *api.Client { return c.client }

// Documents returns the document registry.
func (c *Controller) Documents() *documents.Registry { return c.docs }

// Chat returns the chat controller.
func (c *Controller) Chat() *chat.Controller { return c.chat }

// UI derives the current UI flags.
func (c *Controller) UI() UIState {
	c.mu.Lock()
	st := UIState{
		Loading: c.pending > 0,
		Tab:     c.tab,
	}
	if c.notice != nil {
		n := *c.notice
		st.AuthMessage = &n
	}
	c.mu.Unlock()

	chatState := c.chat.State()
	st.Loading = st.Loading || chatState != chat.Idle
	st.SendDisabled = c.chat.SendDisabled()
	st.Authenticated = c.session.IsAuthenticated()
	st.Identity = c.session.Identity()
	return st
}

// Restore loads a persisted session and, if there is one, fetches
// documents and history.
func (c *Controller) Restore(ctx context.Context) bool {
	if !c.session.RestoreOnStartup() {
		return false
	}
	c.loadAfterAuth(ctx)
	return c.session.IsAuthenticated()
}

// Dispatch routes intent to its handler. Stale results are reported as nil.
func (c *Controller) Dispatch(ctx context.Context, intent Intent) error {
	c.logger.Debug("dispatch", zap.String("intent", intent.intentName()))

	switch in := intent.(type) {
	case LoginSubmitted:
		return c.login(ctx, in)
	case RegisterSubmitted:
		return c.register(ctx, in)
	case LogoutRequested:
		return c.logout()
	case QuestionSubmitted:
		ex, err := c.BeginQuestion(in.Text)
		if err != nil {
			return err
		}
		return c.RunQuestion(ctx, ex)
	case FilesSelected:
		return c.upload(ctx, in.Files)
	case ClearHistoryRequested:
		return c.clearHistory(ctx, in.Confirm)
	case TabSwitched:
		c.mu.Lock()
		c.tab = in.Tab
		c.mu.Unlock()
		return nil
	case RefreshRequested:
		return c.refresh(ctx)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownIntent, intent)
	}
}

// =============================================================================
// AUTH
// =============================================================================

func (c *Controller) login(ctx context.Context, in LoginSubmitted) error {
	in.Username = strings.TrimSpace(in.Username)
	if err := validateForm(in); err != nil {
		c.setNotice(api.UserMessage(err), NoticeError)
		return err
	}

	done := c.begin()
	res, err := c.client.Login(ctx, in.Username, in.Password)
	done()
	if err != nil {
		c.setNotice(api.UserMessage(err), NoticeError)
		c.logger.Info("login failed", zap.String("user", in.Username), zap.String("kind", api.Classify(err).String()))
		return err
	}

	if err := c.session.Establish(res.Session()); err != nil {
		c.setNotice("Could not save session: "+err.Error(), NoticeError)
		return err
	}

	c.chat.Reset()
	c.docs.Reset()
	c.clearNotice()
	c.logger.Info("logged in", zap.String("user", in.Username))

	c.loadAfterAuth(ctx)
	return nil
}

func (c *Controller) register(ctx context.Context, in RegisterSubmitted) error {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	if err := validateForm(in); err != nil {
		c.setNotice(api.UserMessage(err), NoticeError)
		return err
	}

	done := c.begin()
	_, err := c.client.Register(ctx, api.RegisterRequest{
		Username: in.Username,
		Email:    in.Email,
		FullName: in.FullName,
		Password: in.Password,
	})
	done()
	if err != nil {
		c.setNotice(api.UserMessage(err), NoticeError)
		return err
	}
	c.logger.Info("registered", zap.String("user", in.Username))

	if c.opts.AutoLoginAfterRegister {
		return c.login(ctx, LoginSubmitted{Username: in.Username, Password: in.Password})
	}

	c.mu.Lock()
	c.notice = &Notice{Text: MsgRegistered, Kind: NoticeSuccess}
	c.tab = TabLogin
	c.mu.Unlock()
	return nil
}

func (c *Controller) logout() error {
	err := c.session.Destroy()
	c.chat.Reset()
	c.docs.Reset()

	c.mu.Lock()
	c.notice = nil
	c.tab = TabLogin
	c.mu.Unlock()

	c.logger.Info("logged out")
	return err
}

// expire ends the session after the server rejected the credential.
func (c *Controller) expire() {
	if err := c.session.Destroy(); err != nil {
		c.logger.Warn("failed to clear expired session", zap.Error(err))
	}
	c.chat.Reset()
	c.docs.Reset()

	c.mu.Lock()
	c.notice = &Notice{Text: MsgSessionExpired, Kind: NoticeError}
	c.tab = TabLogin
	c.mu.Unlock()

	c.logger.Info("session expired")
}

// handle applies the error policy: stale results vanish and auth rejections
// end the session.
func (c *Controller) handle(err error) error {
	switch api.Classify(err) {
	case api.KindNone, api.KindStale:
		return nil
	case api.KindAuth:
		if c.session.IsAuthenticated() {
			c.expire()
		}
	}
	return err
}

// =============================================================================
// CHAT AND DOCUMENTS
// =============================================================================

// BeginQuestion appends the question and enters Sending without any I/O.
func (c *Controller) BeginQuestion(text string) (*chat.Exchange, error) {
	return c.chat.Begin(text)
}

// RunQuestion completes an exchange started by BeginQuestion.
func (c *Controller) RunQuestion(ctx context.Context, ex *chat.Exchange) error {
	_, err := c.chat.Run(ctx, ex)
	return c.handle(err)
}

func (c *Controller) upload(ctx context.Context, files []api.UploadFile) error {
	done := c.begin()
	res, err := c.docs.Upload(ctx, files)
	done()

	if err != nil {
		if api.Classify(err) != api.KindStale {
			c.chat.AppendAssistant("Upload failed: " + api.UserMessage(err))
		}
		return c.handle(err)
	}

	c.chat.AppendSystem(UploadSummary(res, files))
	return nil
}

// UploadSummary describes a successful upload. Documents the server did not
// report as processed are listed with their status.
func UploadSummary(res *api.UploadResult, files []api.UploadFile) string {
	n := len(res.Documents)
	if n == 0 {
		kept, _ := documents.FilterPDFs(files)
		n = len(kept)
	}
	var notes []string
	for _, d := range res.Documents {
		if d.Status != "" && !strings.EqualFold(d.Status, "processed") {
			notes = append(notes, d.Filename+": "+d.Status)
		}
	}
	if len(notes) == 0 {
		return fmt.Sprintf("Uploaded %d document(s).", n)
	}
	return fmt.Sprintf("Uploaded %d document(s) (%s).", n, strings.Join(notes, ", "))
}

// HandleError applies the controller's error policy to err from a direct
// component call: stale results become nil and an auth rejection ends the
// session.
func (c *Controller) HandleError(err error) error {
	return c.handle(err)
}

func (c *Controller) clearHistory(ctx context.Context, confirm func() bool) error {
	return c.handle(c.chat.ClearHistory(ctx, confirm))
}

func (c *Controller) refresh(ctx context.Context) error {
	done := c.begin()
	defer done()

	docErr := c.handle(c.docs.Refresh(ctx))
	if !c.session.IsAuthenticated() {
		return docErr
	}
	histErr := c.handle(c.chat.LoadHistory(ctx))
	return errors.Join(docErr, histErr)
}

// loadAfterAuth fetches history and documents for a fresh session. Failures
// are reported in the conversation rather than returned.
func (c *Controller) loadAfterAuth(ctx context.Context) {
	done := c.begin()
	defer done()

	if err := c.handle(c.chat.LoadHistory(ctx)); err != nil {
		if !c.session.IsAuthenticated() {
			return
		}
		c.chat.AppendSystem("Could not load chat history: " + api.UserMessage(err))
	}
	if err := c.handle(c.docs.Refresh(ctx)); err != nil {
		if !c.session.IsAuthenticated() {
			return
		}
		c.chat.AppendSystem("Could not load documents: " + api.UserMessage(err))
	}
}

// Transcript returns the conversation labelled with the current user and
// server.
func (c *Controller) Transcript() *model.Conversation {
	conv := c.chat.Transcript()
	if id := c.session.Identity(); id != nil {
		conv.User = id.DisplayName()
	}
	conv.Server = c.client.BaseURL()
	return conv
}

// =============================================================================
// HELPERS
// =============================================================================

func (c *Controller) begin() func() {
	c.mu.Lock()
	c.pending++
	c.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			c.pending--
			c.mu.Unlock()
		})
	}
}

func (c *Controller) setNotice(text string, kind NoticeKind) {
	c.mu.Lock()
	c.notice = &Notice{Text: text, Kind: kind}
	c.mu.Unlock()
}

func (c *Controller) clearNotice() {
	c.mu.Lock()
	c.notice = nil
	c.mu.Unlock()
}

// ClearNotice dismisses the banner.
func (c *Controller) ClearNotice() { c.clearNotice() }
