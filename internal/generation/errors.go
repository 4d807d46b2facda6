package generation

import (
	"context"
	"errors"
	"net"

	"github.com/halcyonlabs/agentstudio-backend/internal/clients/openai"
	"github.com/halcyonlabs/agentstudio-backend/internal/clients/tavily"
)

// ErrorKind partitions stage failures so callers can render categorized
// guidance. Cancellation is a kind here, but it is never surfaced as an error
// to the user.
type ErrorKind string

const (
	ErrTransport         ErrorKind = "transport"
	ErrHTTPStatus        ErrorKind = "http_status"
	ErrMalformedResponse ErrorKind = "malformed_response"
	ErrApplication       ErrorKind = "application"
	ErrCancelled         ErrorKind = "cancelled"
	ErrPrecondition      ErrorKind = "precondition"
)

// StageError is the single error currency inside the pipeline. Stage adapters
// never let anything else escape their boundary.
type StageError struct {
	Kind    ErrorKind
	Stage   string
	Message string
	Err     error
}

func (e *StageError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *StageError) Unwrap() error { return e.Err }

func (e *StageError) IsCancelled() bool {
	return e != nil && e.Kind == ErrCancelled
}

func newStageError(stage string, kind ErrorKind, msg string, err error) *StageError {
	return &StageError{Kind: kind, Stage: stage, Message: msg, Err: err}
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// classify maps raw client errors onto the taxonomy. Order matters: context
// cancellation wins over everything so a torn-down scope never reports a
// transport failure.
func classify(stage string, err error) *StageError {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) {
		return newStageError(stage, ErrCancelled, "", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newStageError(stage, ErrTransport, stage+" timed out", err)
	}

	var sc httpStatusCoder
	if errors.As(err, &sc) {
		return newStageError(stage, ErrHTTPStatus, "", err)
	}

	var openaiDecode *openai.DecodeError
	if errors.As(err, &openaiDecode) {
		return newStageError(stage, ErrMalformedResponse, "", err)
	}
	var tavilyDecode *tavily.DecodeError
	if errors.As(err, &tavilyDecode) {
		return newStageError(stage, ErrMalformedResponse, "", err)
	}

	var refusal *openai.RefusalError
	if errors.As(err, &refusal) {
		return newStageError(stage, ErrApplication, "", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return newStageError(stage, ErrTransport, "", err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return newStageError(stage, ErrTransport, "", err)
	}

	return newStageError(stage, ErrApplication, "", err)
}

// UserMessage renders the caller-facing text for a stage error. Cancelled
// errors intentionally produce nothing.
func UserMessage(e *StageError) string {
	if e == nil || e.Kind == ErrCancelled {
		return ""
	}
	switch e.Kind {
	case ErrTransport:
		return "The generation backend could not be reached. Check your connection and try again."
	case ErrHTTPStatus:
		return "The generation backend returned an error status: " + e.Error()
	case ErrMalformedResponse:
		return "The generation backend returned an unreadable response."
	case ErrPrecondition:
		return e.Error()
	default:
		return e.Error()
	}
}
