package signup

import (
	"context"

	"github.com/m3rciful/signupbot/app/attempts"
	"github.com/m3rciful/signupbot/app/identity"
	"github.com/m3rciful/signupbot/core/telegram/state"
)

// Registration steps in the order the user walks through them.
const (
	StepIdle           = state.StateIdle
	StepLanguageSelect state.State = "language_select"
	StepFullName       state.State = "awaiting_fullname"
	StepPhone          state.State = "awaiting_phone"
	StepRole           state.State = "awaiting_role"
	StepLogin          state.State = "awaiting_login"
	StepPassword       state.State = "awaiting_password"
)

// Roles accepted by the identity service.
const (
	RoleSeller = "seller"
	RoleUser   = "user"
)

// Command names handled by the controller.
const (
	CmdStart  = "/start"
	CmdLang   = "/lang"
	CmdSign   = "/sign"
	CmdCancel = "/cancel"
)

// EventKind classifies inbound updates for the dispatch table.
type EventKind string

const (
	EventText     EventKind = "text"
	EventContact  EventKind = "contact"
	EventLanguage EventKind = "language"
)

// Contact is a phone number shared through the platform contact button.
type Contact struct {
	UserID int64
	Phone  string
}

// Message is a transport-neutral inbound update.
type Message struct {
	ChatID   int64
	SenderID int64
	// LocaleHint is the platform language of the sender, used when no language was picked.
	LocaleHint string
	Text       string
	Contact    *Contact
}

// Keyboard is a reply keyboard attached to an outgoing message.
type Keyboard struct {
	Rows [][]string
	// RequestContact turns the first button into a contact request.
	RequestContact bool
	OneTime        bool
	// Remove hides any keyboard currently shown.
	Remove bool
}

// Reply is a single outgoing message.
type Reply struct {
	Text     string
	Keyboard *Keyboard
}

// Translator resolves localized texts.
type Translator interface {
	Lookup(lang, key string) (string, error)
}

// Identity is the subset of the identity service used by the flow.
type Identity interface {
	UserExistsByChatID(ctx context.Context, telegramID int64) bool
	LoginExists(ctx context.Context, login string) bool
	PhoneExists(ctx context.Context, phone string) bool
	SubmitRegistration(ctx context.Context, reg identity.Registration) identity.Outcome
}

// Journal records submission outcomes.
type Journal interface {
	Record(ctx context.Context, a *attempts.Attempt) error
}

// languageLabels are the fixed picker labels, in keyboard order.
var languageLabels = []struct {
	Label string
	Code  string
}{
	{Label: "English", Code: "en"},
	{Label: "O'zbek", Code: "uz"},
	{Label: "Русский", Code: "ru"},
}

// LanguageCode returns the language picked by a picker label.
func LanguageCode(label string) (string, bool) {
	for _, l := range languageLabels {
		if l.Label == label {
			return l.Code, true
		}
	}
	return "", false
}

// IsLanguageLabel reports whether text is one of the picker labels.
func IsLanguageLabel(text string) bool {
	_, ok := LanguageCode(text)
	return ok
}
