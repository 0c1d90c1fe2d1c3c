package capability

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Typed errors below wrap them so callers can branch with
// errors.Is and still recover the details with errors.As.
var (
	ErrDisallowedCommand = errors.New("command not in allowlist")
	ErrMalformedURI      = errors.New("malformed capability uri")
	ErrUnsupportedMode   = errors.New("unsupported search mode")
	ErrNotHydrated       = errors.New("capability not hydrated")
	ErrTransport         = errors.New("transport failure")
	ErrNotFound          = errors.New("capability not found")
)

// DisallowedCommandError reports a resolved command outside the allowlist.
type DisallowedCommandError struct {
	Command string
	Allowed []string
}

func (e *DisallowedCommandError) Error() string {
	return fmt.Sprintf("command %q is not in the allowed commands list (allowed: %s)",
		e.Command, strings.Join(e.Allowed, ", "))
}

func (e *DisallowedCommandError) Unwrap() error { return ErrDisallowedCommand }

// NotHydratedError is returned by Execute for a name absent from the active
// table. Active lists what the caller can use instead.
type NotHydratedError struct {
	Name   string
	Active []string
}

func (e *NotHydratedError) Error() string {
	active := "none"
	if len(e.Active) > 0 {
		active = strings.Join(e.Active, ", ")
	}
	return fmt.Sprintf("capability %q not hydrated; call discover_and_hydrate first (active: %s)", e.Name, active)
}

func (e *NotHydratedError) Unwrap() error { return ErrNotHydrated }
