package genai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

// Kind classifies a collaborator failure.
type Kind string

const (
	KindUnavailable Kind = "unavailable"
	KindTimeout     Kind = "timeout"
	KindQuota       Kind = "quota"
	KindRejected    Kind = "rejected"
	KindMalformed   Kind = "malformed"
	KindUnsupported Kind = "unsupported"
	KindCanceled    Kind = "canceled"
)

// Error is returned by every Client operation that fails.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("genai: [%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("genai: [%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// KindOf extracts the kind of a genai error; ok is false for any other error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// classify maps a transport or API failure onto a Kind.
func classify(err error, msg string) *Error {
	switch {
	case errors.Is(err, context.Canceled):
		return newError(KindCanceled, msg, err)
	case errors.Is(err, context.DeadlineExceeded):
		return newError(KindTimeout, msg, err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return newError(kindForStatus(apiErr.HTTPStatusCode), msg, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return newError(kindForStatus(reqErr.HTTPStatusCode), msg, err)
	}
	return newError(KindUnavailable, msg, err)
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusTooManyRequests:
		return KindQuota
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return KindTimeout
	case status >= 400 && status < 500 && status != http.StatusUnauthorized && status != http.StatusForbidden:
		return KindRejected
	default:
		return KindUnavailable
	}
}
