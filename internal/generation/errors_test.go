package generation

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/halcyonlabs/agentstudio-backend/internal/clients/openai"
	"github.com/halcyonlabs/agentstudio-backend/internal/clients/tavily"
)

func TestClassifyCancellationWinsOverEverything(t *testing.T) {
	wrapped := fmt.Errorf("request failed: %w", context.Canceled)
	se := classify(stageMain, wrapped)
	if se.Kind != ErrCancelled {
		t.Fatalf("kind = %v, want cancelled", se.Kind)
	}
	if UserMessage(se) != "" {
		t.Fatalf("cancelled errors must render no user text")
	}
}

func TestClassifyDeadlineIsTransport(t *testing.T) {
	se := classify(stageSummarize, context.DeadlineExceeded)
	if se.Kind != ErrTransport {
		t.Fatalf("kind = %v, want transport", se.Kind)
	}
}

func TestClassifyHTTPStatus(t *testing.T) {
	se := classify(stageMain, &openai.HTTPError{StatusCode: 429, Body: "rate limited"})
	if se.Kind != ErrHTTPStatus {
		t.Fatalf("kind = %v, want http_status", se.Kind)
	}
	se = classify(stageSearch, &tavily.HTTPError{StatusCode: 500})
	if se.Kind != ErrHTTPStatus {
		t.Fatalf("kind = %v, want http_status", se.Kind)
	}
}

func TestClassifyDecodeAndRefusal(t *testing.T) {
	se := classify(stageMain, &openai.DecodeError{Err: errors.New("bad json")})
	if se.Kind != ErrMalformedResponse {
		t.Fatalf("kind = %v, want malformed_response", se.Kind)
	}
	se = classify(stageSearch, &tavily.DecodeError{Err: errors.New("bad json")})
	if se.Kind != ErrMalformedResponse {
		t.Fatalf("kind = %v, want malformed_response", se.Kind)
	}
	se = classify(stageMain, &openai.RefusalError{Message: "no"})
	if se.Kind != ErrApplication {
		t.Fatalf("kind = %v, want application", se.Kind)
	}
}

func TestClassifyNetErrorIsTransport(t *testing.T) {
	se := classify(stageMain, &net.OpError{Op: "dial", Err: errors.New("refused")})
	if se.Kind != ErrTransport {
		t.Fatalf("kind = %v, want transport", se.Kind)
	}
}

func TestClassifyDefaultIsApplication(t *testing.T) {
	se := classify(stageMain, errors.New("anything else"))
	if se.Kind != ErrApplication {
		t.Fatalf("kind = %v, want application", se.Kind)
	}
}

func TestStageErrorNilReceiverHelpers(t *testing.T) {
	var se *StageError
	if se.IsCancelled() {
		t.Fatalf("nil stage error must not report cancelled")
	}
	if classify(stageMain, nil) != nil {
		t.Fatalf("nil error must classify to nil")
	}
}
