package security

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ClassifiedError separates a user-safe message from verbose debug details.
type ClassifiedError struct {
	UserSafe    string
	DebugDetail string
}

func (e *ClassifiedError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.UserSafe) == "" {
		return "operation failed"
	}
	return e.UserSafe
}

// NewClassifiedError creates a new error with separated user-safe and debug details.
func NewClassifiedError(userSafe, debugDetail string) error {
	return &ClassifiedError{UserSafe: userSafe, DebugDetail: debugDetail}
}

// ConfigurationError reports a required setting that no source provided.
type ConfigurationError struct {
	Field string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("could not discover %s, you should define it inside your .lagoon.yml file", e.Field)
}

// AuthenticationError reports a failed token fetch over SSH.
type AuthenticationError struct {
	Endpoint string
	// Detail is the remote side's stderr, if any.
	Detail string
	Err    error
}

func (e *AuthenticationError) Error() string {
	msg := fmt.Sprintf("unable to retrieve token via ssh from %s", e.Endpoint)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if d := strings.TrimSpace(e.Detail); d != "" {
		msg += " (" + d + ")"
	}
	return msg
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// APIError reports a failed GraphQL request. Status is zero when the request
// never produced an HTTP response.
type APIError struct {
	Endpoint string
	Status   int
	Err      error
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("could not connect to lagoon API %s", e.Endpoint)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *APIError) Unwrap() error { return e.Err }

// EmptyResultWarning is returned when the API answered but listed no
// environments. It is a warning, not a failure.
type EmptyResultWarning struct {
	Project string
}

func (e *EmptyResultWarning) Error() string {
	return fmt.Sprintf("API request didn't return any environments for the given project '%s'", e.Project)
}

// IsPipelineError reports whether err is one of the four outcomes the alias
// pipeline recovers from instead of failing the command.
func IsPipelineError(err error) bool {
	var (
		cfgErr   *ConfigurationError
		authErr  *AuthenticationError
		apiErr   *APIError
		emptyErr *EmptyResultWarning
	)
	return errors.As(err, &cfgErr) || errors.As(err, &authErr) ||
		errors.As(err, &apiErr) || errors.As(err, &emptyErr)
}

// UserMessage returns a message safe to show in CLI contexts.
func UserMessage(err error, redact bool) string {
	if err == nil {
		return ""
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		msg := ce.UserSafe
		if msg == "" {
			msg = "operation failed"
		}
		if redact {
			return RedactMessage(msg)
		}
		return msg
	}
	if redact {
		return RedactMessage(err.Error())
	}
	return err.Error()
}

// DebugMessage returns detailed error text for logs.
func DebugMessage(err error) string {
	if err == nil {
		return ""
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		if strings.TrimSpace(ce.DebugDetail) != "" {
			return ce.DebugDetail
		}
	}
	return err.Error()
}

// RedactMessage strips common sensitive path prefixes from user-visible text.
func RedactMessage(msg string) string {
	if msg == "" {
		return msg
	}
	out := msg
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		out = strings.ReplaceAll(out, home, "~")
	}
	if idx := strings.Index(out, "/.ssh/"); idx >= 0 {
		out = strings.ReplaceAll(out, "/.ssh/", "/.ssh/[redacted]/")
	}
	return out
}

// RedactToken replaces every occurrence of token in msg. Tokens shorter than
// eight characters are still replaced; an empty token is a no-op.
func RedactToken(msg, token string) string {
	if token == "" {
		return msg
	}
	return strings.ReplaceAll(msg, token, "[token]")
}

// TokenPreview renders a token for debug logs without disclosing it.
func TokenPreview(token string) string {
	if len(token) <= 8 {
		return "[token]"
	}
	return token[:4] + "…" + fmt.Sprintf("(%d chars)", len(token))
}
