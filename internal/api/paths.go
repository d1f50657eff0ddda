// Package api provides the HTTP client for the local chat endpoint.
package api

// GJSON paths for extracting values from whole-payload replies.
const (
	// PathResponse holds the assistant text in prompt and history modes
	PathResponse = "response"

	// PathError is where FastAPI-style servers put a failure description
	PathError = "detail"
)
