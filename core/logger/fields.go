package logger

import (
	"context"
	"log/slog"
	"strconv"
)

type fieldsKey struct{}

// Fields identify the update and the conversation turn a line belongs to.
// Zero values are left out of the output.
type Fields struct {
	UpdateID int
	ChatID   int64
	UserID   int64
	// Handler names the route or command serving the update.
	Handler string
	// Step and Lang describe the sign-up session when the turn started.
	Step string
	Lang string
}

// WithFields returns a context whose fields are f laid over the ones already in ctx.
func WithFields(ctx context.Context, f Fields) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	merged := FieldsFrom(ctx)
	if f.UpdateID != 0 {
		merged.UpdateID = f.UpdateID
	}
	if f.ChatID != 0 {
		merged.ChatID = f.ChatID
	}
	if f.UserID != 0 {
		merged.UserID = f.UserID
	}
	if f.Handler != "" {
		merged.Handler = f.Handler
	}
	if f.Step != "" {
		merged.Step = f.Step
	}
	if f.Lang != "" {
		merged.Lang = f.Lang
	}
	return context.WithValue(ctx, fieldsKey{}, merged)
}

// FieldsFrom returns the fields stored in ctx.
func FieldsFrom(ctx context.Context) Fields {
	if ctx == nil {
		return Fields{}
	}
	f, _ := ctx.Value(fieldsKey{}).(Fields)
	return f
}

// RID correlates every line of one update: update, chat and user ids in base36.
func (f Fields) RID() string {
	if f.UpdateID == 0 && f.ChatID == 0 && f.UserID == 0 {
		return ""
	}
	return strconv.FormatInt(int64(f.UpdateID), 36) + "." +
		strconv.FormatInt(f.ChatID, 36) + "." +
		strconv.FormatInt(f.UserID, 36)
}

func (f Fields) attrs() []slog.Attr {
	var out []slog.Attr
	if rid := f.RID(); rid != "" {
		out = append(out, slog.String("rid", rid))
	}
	if f.UpdateID != 0 {
		out = append(out, slog.Int("update_id", f.UpdateID))
	}
	if f.ChatID != 0 {
		out = append(out, slog.Int64("chat_id", f.ChatID))
	}
	if f.UserID != 0 {
		out = append(out, slog.Int64("user_id", f.UserID))
	}
	if f.Handler != "" {
		out = append(out, slog.String("handler", f.Handler))
	}
	if f.Step != "" {
		out = append(out, slog.String("step", f.Step))
	}
	if f.Lang != "" {
		out = append(out, slog.String("lang", f.Lang))
	}
	return out
}
