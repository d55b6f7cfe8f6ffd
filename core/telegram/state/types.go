package state

// State identifies a finite-state-machine step used in conversations.
type State string

const (
	// StateIdle indicates there is no active conversation with the user.
	StateIdle State = "idle"
)

// Draft is the partially filled registration record.
type Draft struct {
	FullName string
	Phone    string
	Role     string
	Login    string
	Password string
}

// Complete reports whether every field required for submission is set.
func (d Draft) Complete() bool {
	return d.FullName != "" && d.Phone != "" && d.Role != "" && d.Login != "" && d.Password != ""
}

// Session stores conversation state for a single chat.
type Session struct {
	Language string
	LoggedIn bool
	State    State
	// ResumeState is restored after a language pick interrupts the flow.
	ResumeState State
	Draft       Draft
}

// Patch lists the session fields to overwrite; nil fields are left as is.
type Patch struct {
	Language    *string
	LoggedIn    *bool
	State       *State
	ResumeState *State
	FullName    *string
	Phone       *string
	Role        *string
	Login       *string
	Password    *string
	// ResetDraft empties the draft before the field updates above are applied.
	ResetDraft bool
}

// Manager stores sessions keyed by chat ID.
type Manager interface {
	// Get returns a copy of the session, creating an empty one if absent.
	Get(chatID int64) Session
	// Update merges the patch into the session.
	Update(chatID int64, p Patch) Session
	// Clear resets the session to its empty idle value.
	Clear(chatID int64)
}

// Ptr is a helper for building patches.
func Ptr[T any](v T) *T {
	return &v
}

func (p Patch) apply(s *Session) {
	if p.ResetDraft {
		s.Draft = Draft{}
	}
	if p.Language != nil {
		s.Language = *p.Language
	}
	if p.LoggedIn != nil {
		s.LoggedIn = *p.LoggedIn
	}
	if p.State != nil {
		s.State = *p.State
	}
	if p.ResumeState != nil {
		s.ResumeState = *p.ResumeState
	}
	if p.FullName != nil {
		s.Draft.FullName = *p.FullName
	}
	if p.Phone != nil {
		s.Draft.Phone = *p.Phone
	}
	if p.Role != nil {
		s.Draft.Role = *p.Role
	}
	if p.Login != nil {
		s.Draft.Login = *p.Login
	}
	if p.Password != nil {
		s.Draft.Password = *p.Password
	}
}
