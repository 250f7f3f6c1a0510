package domain

import (
	"errors"
	"fmt"
)

// Category sentinels shared across components.
var (
	ErrNotFound     = fmt.Errorf("not found")
	ErrDuplicate    = fmt.Errorf("duplicate")
	ErrInvalidInput = fmt.Errorf("invalid input")
)

// Sentinel errors for the reconciler and bus layers: transient store
// failures, agent delivery drops (not connected, queue full), foreign-tenancy
// rejections, malformed inbound messages, missing keypair material or
// dashboard URL, per-entity not-found lookups, authentication failures, and
// audit-log write failures.
var (
	ErrStoreUnavailable    = fmt.Errorf("state store unavailable")
	ErrAgentNotConnected   = fmt.Errorf("agent not connected")
	ErrAgentQueueFull      = fmt.Errorf("agent outbound queue full")
	ErrForeignTenancy      = fmt.Errorf("target does not belong to reporting site")
	ErrMalformedMessage    = fmt.Errorf("malformed agent message")
	ErrKeypairMissing      = fmt.Errorf("jwt keypair missing")
	ErrDashboardURLMissing = fmt.Errorf("dashboard url not configured")
	ErrSiteNotFound        = fmt.Errorf("site not found")
	ErrResourceNotFound    = fmt.Errorf("resource not found")
	ErrTargetNotFound      = fmt.Errorf("target not found")
	ErrAuthFailed          = fmt.Errorf("authentication failed")
	ErrAuditWrite          = fmt.Errorf("audit log write failed")
)

// Error wraps a sentinel error with operation context, in the style of a
// classic (op, err) wrapped error: it preserves the sentinel for
// errors.Is/As while attaching a human-readable operation label and
// optional free-form detail.
type Error struct {
	Op     string // operation name, e.g. "dnsauthority.UpdateForResource"
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError creates a new *Error.
func NewError(op string, err error, detail string) *Error {
	return &Error{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsNotFound reports whether err is, or wraps, ErrNotFound or one of the
// entity-specific not-found sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrSiteNotFound) ||
		errors.Is(err, ErrResourceNotFound) ||
		errors.Is(err, ErrTargetNotFound)
}
