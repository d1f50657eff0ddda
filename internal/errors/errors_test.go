package errors

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
)

func TestNetworkError(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewNetworkErrorWithEndpoint("chat", "http://127.0.0.1:8000/api/chat", cause)

	expected := "network error during chat at http://127.0.0.1:8000/api/chat: connection refused"
	if err.Error() != expected {
		t.Errorf("Error() = %s, want %s", err.Error(), expected)
	}

	if !errors.Is(err, cause) {
		t.Error("Expected NetworkError to unwrap to its cause")
	}

	plain := NewNetworkError("chat", cause)
	if plain.Error() != "network error during chat: connection refused" {
		t.Errorf("unexpected message without endpoint: %s", plain.Error())
	}
}

func TestAPIError(t *testing.T) {
	err := NewAPIError(400, "test-endpoint", "test API error")

	expected := "API error [400] at test-endpoint: test API error"
	if err.Error() != expected {
		t.Errorf("Error() = %s, want %s", err.Error(), expected)
	}

	noStatus := NewAPIError(0, "test-endpoint", "oops")
	if noStatus.Error() != "API error at test-endpoint: oops" {
		t.Errorf("unexpected message without status: %s", noStatus.Error())
	}
}

func TestAPIErrorWithBody_Truncates(t *testing.T) {
	body := strings.Repeat("x", maxBodyExcerpt+100)
	err := NewAPIErrorWithBody(500, "e", "failed", body)

	if len(err.Body) != maxBodyExcerpt {
		t.Errorf("Body length = %d, want %d", len(err.Body), maxBodyExcerpt)
	}
}

func TestStreamError(t *testing.T) {
	err := NewStreamError("e", 3, io.ErrUnexpectedEOF)

	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("Expected StreamError to unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "after 3 chunks") {
		t.Errorf("Error() = %s, want chunk count", err.Error())
	}
}

func TestParseError(t *testing.T) {
	err := NewParseError("missing field", "response")

	if err.Error() != `parse error at "response": missing field` {
		t.Errorf("Error() = %s", err.Error())
	}
	if NewParseError("bad json", "").Error() != "parse error: bad json" {
		t.Error("unexpected message without path")
	}
	if !errors.Is(err, ErrInvalidResponse) {
		t.Error("Expected ParseError to match ErrInvalidResponse")
	}
	if errors.Is(err, ErrNoBody) {
		t.Error("ParseError should not match ErrNoBody")
	}
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		isNetwork bool
		isAPI     bool
		isStream  bool
		isParse   bool
		status    int
		endpoint  string
	}{
		{
			name:      "wrapped network error",
			err:       fmt.Errorf("send: %w", NewNetworkErrorWithEndpoint("chat", "ep", io.EOF)),
			isNetwork: true,
			endpoint:  "ep",
		},
		{
			name:     "api error",
			err:      NewAPIErrorWithBody(503, "ep", "unavailable", "busy"),
			isAPI:    true,
			status:   503,
			endpoint: "ep",
		},
		{
			name:     "missing body",
			err:      fmt.Errorf("stream: %w", ErrNoBody),
			isStream: true,
		},
		{
			name:     "mid-stream failure",
			err:      NewStreamError("ep", 1, io.ErrUnexpectedEOF),
			isStream: true,
			endpoint: "ep",
		},
		{
			name:    "parse error",
			err:     NewParseError("bad", ""),
			isParse: true,
		},
		{
			name: "plain error",
			err:  errors.New("plain"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNetworkError(tt.err); got != tt.isNetwork {
				t.Errorf("IsNetworkError = %v, want %v", got, tt.isNetwork)
			}
			if got := IsAPIError(tt.err); got != tt.isAPI {
				t.Errorf("IsAPIError = %v, want %v", got, tt.isAPI)
			}
			if got := IsStreamError(tt.err); got != tt.isStream {
				t.Errorf("IsStreamError = %v, want %v", got, tt.isStream)
			}
			if got := IsParseError(tt.err); got != tt.isParse {
				t.Errorf("IsParseError = %v, want %v", got, tt.isParse)
			}
			if got := GetHTTPStatus(tt.err); got != tt.status {
				t.Errorf("GetHTTPStatus = %d, want %d", got, tt.status)
			}
			if got := GetEndpoint(tt.err); got != tt.endpoint {
				t.Errorf("GetEndpoint = %q, want %q", got, tt.endpoint)
			}
		})
	}

	if GetResponseBody(NewAPIErrorWithBody(500, "ep", "m", "detail")) != "detail" {
		t.Error("GetResponseBody should return the body excerpt")
	}
}
