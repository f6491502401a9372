// Package errs holds the sentinel errors shared across the bot. Callers wrap
// them with fmt.Errorf("...: %w", err) and match with errors.Is.
package errs

import "errors"

var (
	// ErrNotAdmin is returned when a non-admin actor attempts an admin-only action.
	ErrNotAdmin = errors.New("actor is not an admin")

	// ErrInvalidTransition is returned when a lifecycle event does not match
	// the channel's current state.
	ErrInvalidTransition = errors.New("invalid ticket lifecycle transition")

	// ErrGuildUnavailable is returned when the configured guild cannot be reached.
	ErrGuildUnavailable = errors.New("guild unavailable")

	// ErrRoleNotConfigured is returned when role assignment runs without CUSTOMER_ROLE_ID.
	ErrRoleNotConfigured = errors.New("customer role not configured")

	ErrChannelNotFound = errors.New("channel not found")
	ErrMemberNotFound  = errors.New("member not found")
	ErrUserNotFound    = errors.New("user not found")

	// ErrMalformedCommand is returned when an interaction identifier does not
	// decode into a known command.
	ErrMalformedCommand = errors.New("malformed interaction command")
)
