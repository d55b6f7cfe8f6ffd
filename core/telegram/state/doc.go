// Package state keeps per-chat conversation sessions: the current step,
// the chosen language, the login flag and the registration draft.
// Sessions live in memory for the lifetime of the process.
package state
