package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Sentinel errors. *Error values match the sentinel of their Kind under
// errors.Is.
var (
	ErrInteractionRequired = errors.New("auth: interaction required")
	ErrThrottled           = errors.New("auth: request throttled")
	ErrInvalidGrant        = errors.New("auth: invalid grant")
	ErrService             = errors.New("auth: token service error")
	ErrNoAccount           = errors.New("auth: no account")
	ErrInvalidArgument     = errors.New("auth: invalid argument")
)

// Kind classifies a failed acquisition.
type Kind int

const (
	// KindClient is a local failure: bad arguments, malformed cache data,
	// unparseable responses. Never retried.
	KindClient Kind = iota
	// KindInteraction means the user or an administrator must act.
	KindInteraction
	// KindThrottled means the request was refused locally because the
	// provider asked for a back-off that has not elapsed.
	KindThrottled
	// KindInvalidGrant means the refresh token was revoked or expired.
	KindInvalidGrant
	// KindService is a transport failure or a provider error response.
	KindService
)

// String returns the kind's telemetry name.
func (k Kind) String() string {
	switch k {
	case KindClient:
		return "client"
	case KindInteraction:
		return "interaction_required"
	case KindThrottled:
		return "throttled"
	case KindInvalidGrant:
		return "invalid_grant"
	case KindService:
		return "service"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindInteraction:
		return ErrInteractionRequired
	case KindThrottled:
		return ErrThrottled
	case KindInvalidGrant:
		return ErrInvalidGrant
	case KindService:
		return ErrService
	default:
		return nil
	}
}

// Error is the typed outcome of every failed acquisition.
type Error struct {
	Kind Kind

	// Code and Description come from the provider's error payload.
	Code        string
	Description string

	// StatusCode is the HTTP status of the token endpoint response, if any.
	StatusCode int

	// RetryAfter is how long to wait before trying again. Set for
	// KindThrottled and for service errors carrying Retry-After.
	RetryAfter time.Duration

	CorrelationID string

	// Err is the underlying cause.
	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("auth: ")
	b.WriteString(e.Kind.String())
	if e.Code != "" {
		b.WriteString(": ")
		b.WriteString(e.Code)
	}
	if e.Description != "" {
		b.WriteString(": ")
		b.WriteString(e.Description)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.RetryAfter > 0 {
		fmt.Fprintf(&b, " (retry after %s)", e.RetryAfter)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e.Kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf returns the Kind of the *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return KindClient, false
}

// IsInteractionRequired reports whether only an interactive flow can make
// progress: the provider asked for interaction, or the refresh token is no
// longer valid.
func IsInteractionRequired(err error) bool {
	k, ok := KindOf(err)
	return ok && (k == KindInteraction || k == KindInvalidGrant)
}

// IsThrottled reports whether err is a local throttling refusal.
func IsThrottled(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindThrottled
}

// RetryAfter returns the back-off carried by err, or 0.
func RetryAfter(err error) time.Duration {
	var e *Error
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return 0
}

func clientError(format string, args ...any) *Error {
	return &Error{Kind: KindClient, Err: fmt.Errorf(format, args...)}
}

// asError converts any failure into an *Error, treating unknown errors as
// service failures.
func asError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindService, Err: err}
}

var interactionCodes = map[string]bool{
	"interaction_required": true,
	"consent_required":     true,
	"login_required":       true,
}

// classifyResponse maps a token endpoint error payload onto a Kind.
func classifyResponse(status int, code, description string, retryAfter time.Duration) *Error {
	e := &Error{
		Kind:        KindService,
		Code:        code,
		Description: description,
		StatusCode:  status,
		RetryAfter:  retryAfter,
	}
	switch {
	case code == "invalid_grant":
		e.Kind = KindInvalidGrant
	case interactionCodes[code]:
		e.Kind = KindInteraction
	}
	return e
}

// shouldThrottle reports whether a failure opens a throttling window.
func (e *Error) shouldThrottle() bool {
	if e.Kind != KindService {
		return false
	}
	return e.RetryAfter > 0 ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= http.StatusInternalServerError
}
