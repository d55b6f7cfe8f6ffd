// Package signup implements the authentication and registration conversation.
//
// Every inbound update is resolved through two explicit tables built in New:
// commands by name, and (step, event kind) pairs for everything else.
package signup

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/m3rciful/signupbot/app/attempts"
	"github.com/m3rciful/signupbot/app/identity"
	"github.com/m3rciful/signupbot/core/logger"
	"github.com/m3rciful/signupbot/core/telegram/state"
)

const component = "signup"

type handlerFunc func(ctx context.Context, t *turn)

type route struct {
	step state.State
	kind EventKind
}

// anyStep matches every step in the dispatch table.
const anyStep state.State = ""

// Controller drives the conversation state machine.
type Controller struct {
	sessions state.Manager
	tr       Translator
	identity Identity
	journal  Journal

	commands map[string]handlerFunc
	routes   map[route]handlerFunc
}

// Options carries the controller collaborators. Journal is optional.
type Options struct {
	Sessions   state.Manager
	Translator Translator
	Identity   Identity
	Journal    Journal
}

// New builds a controller and its dispatch tables.
func New(opts Options) (*Controller, error) {
	if opts.Sessions == nil || opts.Translator == nil || opts.Identity == nil {
		return nil, fmt.Errorf("signup: sessions, translator and identity are required")
	}
	c := &Controller{
		sessions: opts.Sessions,
		tr:       opts.Translator,
		identity: opts.Identity,
		journal:  opts.Journal,
	}
	c.commands = map[string]handlerFunc{
		CmdStart:  c.start,
		CmdLang:   c.chooseLanguage,
		CmdSign:   c.sign,
		CmdCancel: c.cancel,
	}
	c.routes = map[route]handlerFunc{
		{anyStep, EventLanguage}:        c.setLanguage,
		{StepLanguageSelect, EventText}: c.chooseLanguage,
		{StepFullName, EventText}:       c.fullName,
		{StepPhone, EventText}:          c.askContact,
		{StepPhone, EventContact}:       c.contact,
		{StepRole, EventText}:           c.role,
		{StepLogin, EventText}:          c.login,
		{StepPassword, EventText}:       c.password,
	}
	return c, nil
}

// Commands lists the command names the controller understands.
func (c *Controller) Commands() []string {
	return []string{CmdStart, CmdSign, CmdLang, CmdCancel}
}

// Command handles a slash command from any step.
func (c *Controller) Command(ctx context.Context, name string, msg Message) ([]Reply, error) {
	h, ok := c.commands[name]
	if !ok {
		return nil, fmt.Errorf("signup: unknown command %q", name)
	}
	return c.run(ctx, name, msg, h)
}

// Text handles free text typed by the user.
func (c *Controller) Text(ctx context.Context, msg Message) ([]Reply, error) {
	return c.dispatch(ctx, EventText, msg)
}

// Contact handles a shared contact.
func (c *Controller) Contact(ctx context.Context, msg Message) ([]Reply, error) {
	return c.dispatch(ctx, EventContact, msg)
}

// Language handles a language picker label.
func (c *Controller) Language(ctx context.Context, msg Message) ([]Reply, error) {
	return c.dispatch(ctx, EventLanguage, msg)
}

func (c *Controller) dispatch(ctx context.Context, kind EventKind, msg Message) ([]Reply, error) {
	step := c.sessions.Get(msg.ChatID).State
	h, ok := c.routes[route{step, kind}]
	if !ok {
		h, ok = c.routes[route{anyStep, kind}]
	}
	if !ok {
		logger.Debug(ctx, component, "signup.unrouted",
			slog.String("status", "skip"),
			slog.String("step", string(step)),
			slog.String("kind", string(kind)),
		)
		return nil, nil
	}
	return c.run(ctx, string(kind), msg, h)
}

func (c *Controller) run(ctx context.Context, name string, msg Message, h handlerFunc) ([]Reply, error) {
	t := &turn{tr: c.tr, msg: msg, session: c.sessions.Get(msg.ChatID)}
	t.lang = t.session.Language
	if t.lang == "" {
		t.lang = msg.LocaleHint
	}
	ctx = logger.WithFields(ctx, logger.Fields{
		ChatID: msg.ChatID,
		UserID: msg.SenderID,
		Step:   string(t.session.State),
		Lang:   t.lang,
	})
	h(ctx, t)

	logger.Debug(ctx, component, "signup.turn",
		slog.String("status", logger.Status(t.err)),
		slog.String("turn", name),
		slog.String("next_step", string(c.sessions.Get(msg.ChatID).State)),
		slog.Int("messages", len(t.replies)),
	)
	return t.replies, t.err
}

// turn collects the replies of one inbound update.
type turn struct {
	tr      Translator
	msg     Message
	session state.Session
	lang    string
	replies []Reply
	err     error
}

func (t *turn) text(key string) string {
	s, err := t.tr.Lookup(t.lang, key)
	if err != nil && t.err == nil {
		t.err = err
	}
	return s
}

func (t *turn) say(key string, kb *Keyboard) {
	s := t.text(key)
	if s == "" {
		return
	}
	t.replies = append(t.replies, Reply{Text: s, Keyboard: kb})
}

var (
	mainMenu       = &Keyboard{Rows: [][]string{{CmdLang}}}
	removeKeyboard = &Keyboard{Remove: true}
)

func languageKeyboard() *Keyboard {
	row := make([]string, 0, len(languageLabels))
	for _, l := range languageLabels {
		row = append(row, l.Label)
	}
	return &Keyboard{Rows: [][]string{row}}
}

func (t *turn) contactKeyboard() *Keyboard {
	return &Keyboard{Rows: [][]string{{t.text("share_number")}}, RequestContact: true, OneTime: true}
}

func (t *turn) roleKeyboard() *Keyboard {
	return &Keyboard{Rows: [][]string{{t.text(RoleSeller), t.text(RoleUser)}}, OneTime: true}
}

// renderMenu greets signed-in users and points everyone else to /sign.
func (t *turn) renderMenu(loggedIn bool) {
	if loggedIn {
		t.say("welcome", mainMenu)
		return
	}
	t.say("please_login", removeKeyboard)
}

func (c *Controller) start(ctx context.Context, t *turn) {
	if c.identity.UserExistsByChatID(ctx, t.msg.SenderID) {
		c.sessions.Update(t.msg.ChatID, state.Patch{LoggedIn: state.Ptr(true)})
		t.say("welcome", mainMenu)
		return
	}
	t.say("please_login", nil)
}

func (c *Controller) chooseLanguage(_ context.Context, t *turn) {
	p := state.Patch{State: state.Ptr(StepLanguageSelect)}
	if t.session.State != StepLanguageSelect {
		p.ResumeState = state.Ptr(t.session.State)
	}
	c.sessions.Update(t.msg.ChatID, p)
	t.say("select_language", languageKeyboard())
}

func (c *Controller) setLanguage(ctx context.Context, t *turn) {
	code, ok := LanguageCode(t.msg.Text)
	if !ok {
		return
	}
	p := state.Patch{Language: state.Ptr(code)}
	if t.session.State == StepLanguageSelect {
		p.State = state.Ptr(t.session.ResumeState)
		p.ResumeState = state.Ptr(StepIdle)
	}
	s := c.sessions.Update(t.msg.ChatID, p)
	t.lang = code
	t.renderMenu(s.LoggedIn)
}

func (c *Controller) sign(_ context.Context, t *turn) {
	c.sessions.Update(t.msg.ChatID, state.Patch{ResetDraft: true, State: state.Ptr(StepFullName)})
	t.say("provide_fullname", nil)
}

func (c *Controller) cancel(_ context.Context, t *turn) {
	c.sessions.Clear(t.msg.ChatID)
	t.say("cancelled", removeKeyboard)
	t.renderMenu(false)
}

func (c *Controller) fullName(_ context.Context, t *turn) {
	if !ValidFullName(t.msg.Text) {
		t.say("provide_fullname", nil)
		return
	}
	c.sessions.Update(t.msg.ChatID, state.Patch{FullName: state.Ptr(t.msg.Text), State: state.Ptr(StepPhone)})
	t.say("provide_number", t.contactKeyboard())
}

func (c *Controller) askContact(_ context.Context, t *turn) {
	t.say("share_contact", t.contactKeyboard())
}

func (c *Controller) contact(ctx context.Context, t *turn) {
	ct := t.msg.Contact
	if ct == nil || ct.Phone == "" {
		t.say("share_contact", t.contactKeyboard())
		return
	}
	if ct.UserID != t.msg.SenderID {
		t.say("contact_not_own", t.contactKeyboard())
		return
	}
	if c.identity.PhoneExists(ctx, ct.Phone) {
		c.sessions.Clear(t.msg.ChatID)
		t.say("phone_exists", removeKeyboard)
		t.renderMenu(false)
		return
	}
	c.sessions.Update(t.msg.ChatID, state.Patch{Phone: state.Ptr(ct.Phone), State: state.Ptr(StepRole)})
	t.say("provide_role", t.roleKeyboard())
}

func (c *Controller) role(_ context.Context, t *turn) {
	var role string
	switch t.msg.Text {
	case t.text(RoleSeller):
		role = RoleSeller
	case t.text(RoleUser):
		role = RoleUser
	default:
		t.say("provide_role", t.roleKeyboard())
		return
	}
	c.sessions.Update(t.msg.ChatID, state.Patch{Role: state.Ptr(role), State: state.Ptr(StepLogin)})
	t.say("provide_login", removeKeyboard)
}

func (c *Controller) login(ctx context.Context, t *turn) {
	if !ValidLogin(t.msg.Text) {
		t.say("provide_login", nil)
		return
	}
	if c.identity.LoginExists(ctx, t.msg.Text) {
		t.say("login_exists", nil)
		return
	}
	c.sessions.Update(t.msg.ChatID, state.Patch{Login: state.Ptr(t.msg.Text), State: state.Ptr(StepPassword)})
	t.say("provide_password", nil)
}

func (c *Controller) password(ctx context.Context, t *turn) {
	if !ValidPassword(t.msg.Text) {
		t.say("provide_password", nil)
		return
	}
	s := c.sessions.Update(t.msg.ChatID, state.Patch{Password: state.Ptr(t.msg.Text)})
	if !s.Draft.Complete() {
		c.sessions.Update(t.msg.ChatID, state.Patch{ResetDraft: true, State: state.Ptr(StepFullName)})
		t.say("incorrect_info", nil)
		t.say("provide_fullname", nil)
		return
	}

	reg := identity.Registration{
		FullName:   s.Draft.FullName,
		Phone:      s.Draft.Phone,
		Role:       s.Draft.Role,
		Login:      s.Draft.Login,
		TelegramID: t.msg.SenderID,
		Password:   s.Draft.Password,
	}
	outcome := c.identity.SubmitRegistration(ctx, reg)
	c.record(ctx, reg, outcome)

	// Every outcome ends the flow at idle so a repeated password cannot
	// resubmit. A failed submission keeps the draft until the next /sign.
	switch outcome {
	case identity.Created:
		c.sessions.Update(t.msg.ChatID, state.Patch{ResetDraft: true, LoggedIn: state.Ptr(true), State: state.Ptr(StepIdle)})
		t.say("successfully_created", mainMenu)
	case identity.ClientError:
		c.sessions.Update(t.msg.ChatID, state.Patch{State: state.Ptr(StepIdle)})
		t.say("user_error", nil)
	default:
		c.sessions.Update(t.msg.ChatID, state.Patch{State: state.Ptr(StepIdle)})
		t.say("server_error", nil)
	}
}

func (c *Controller) record(ctx context.Context, reg identity.Registration, outcome identity.Outcome) {
	if c.journal == nil {
		return
	}
	a := &attempts.Attempt{
		TelegramID: reg.TelegramID,
		Login:      reg.Login,
		Role:       reg.Role,
		Outcome:    outcome.String(),
	}
	if err := c.journal.Record(ctx, a); err != nil {
		logger.Warn(ctx, component, "signup.journal",
			slog.String("status", "fail"),
			slog.String("outcome", outcome.String()),
			slog.String("err", err.Error()),
		)
	}
}
