package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "github.com/diogo/localchat/internal/errors"
	"github.com/diogo/localchat/internal/models"
	"github.com/diogo/localchat/internal/stream"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...ClientOption) *ChatClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL+"/api/chat", opts...)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func TestValidateEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		wantErr  bool
	}{
		{"loopback ip", "http://127.0.0.1:8000/api/chat", false},
		{"localhost", "http://localhost:8081/api/chat", false},
		{"https", "https://chat.example.com/api/chat", false},
		{"empty", "", true},
		{"no scheme", "127.0.0.1:8000/api/chat", true},
		{"ftp", "ftp://localhost/api/chat", true},
		{"no host", "http:///api/chat", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEndpoint(tt.endpoint)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewClient_Defaults(t *testing.T) {
	client, err := NewClient(models.DefaultEndpoint)
	require.NoError(t, err)

	assert.Equal(t, models.DefaultEndpoint, client.Endpoint())
	assert.Equal(t, models.DefaultModel, client.Model())
	assert.Equal(t, DefaultTimeout, client.httpClient.Timeout)

	client.SetModel("mistral")
	assert.Equal(t, "mistral", client.Model())

	client2, err := NewClient(models.DefaultEndpoint, WithModel(""), WithTimeout(time.Second))
	require.NoError(t, err)
	assert.Equal(t, models.DefaultModel, client2.Model(), "empty model keeps the default")
	assert.Equal(t, time.Second, client2.httpClient.Timeout)
}

func TestGeneratePrompt_Success(t *testing.T) {
	var got models.PromptRequest
	var headers http.Header

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		headers = r.Header.Clone()
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"response":"Hi there"}`)
	}, WithModel("llama3.1"))

	ctx := WithRequestID(context.Background(), "req-1")
	text, err := client.GeneratePrompt(ctx, "Hello")

	require.NoError(t, err)
	assert.Equal(t, "Hi there", text)
	assert.Equal(t, models.PromptRequest{Prompt: "Hello", Model: "llama3.1"}, got)
	assert.Equal(t, "application/json", headers.Get("Content-Type"))
	assert.Equal(t, "application/json", headers.Get("Accept"))
	assert.Equal(t, "req-1", headers.Get("X-Request-Id"))
}

func TestGeneratePrompt_Empty(t *testing.T) {
	client, err := NewClient(models.DefaultEndpoint)
	require.NoError(t, err)

	_, err = client.GeneratePrompt(context.Background(), "")
	assert.Error(t, err)

	_, err = client.GenerateHistory(context.Background(), nil)
	assert.Error(t, err)

	_, err = client.OpenStream(context.Background(), nil)
	assert.Error(t, err)
}

func TestGenerateHistory_SendsMessages(t *testing.T) {
	var got models.HistoryRequest

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"response":"Second answer"}`)
	})

	history := []models.Message{
		models.UserMessage("first"),
		models.AssistantMessage("first answer"),
		models.UserMessage("second"),
	}
	text, err := client.GenerateHistory(context.Background(), history)

	require.NoError(t, err)
	assert.Equal(t, "Second answer", text)
	assert.Equal(t, history, got.Messages)
	assert.Equal(t, models.DefaultModel, got.Model)
}

func TestGenerate_ParseErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "plain text reply"},
		{"missing field", `{"message":"hi"}`},
		{"wrong type", `{"response":42}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := client.GeneratePrompt(context.Background(), "Hello")
			require.Error(t, err)
			assert.True(t, apierrors.IsParseError(err), "got %v", err)
		})
	}
}

func TestGenerate_EmptyResponseStringIsValid(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"response":""}`)
	})

	text, err := client.GeneratePrompt(context.Background(), "Hello")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestGenerate_NonSuccessStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"detail":"messages field required"}`)
	})

	_, err := client.GeneratePrompt(context.Background(), "Hello")

	require.Error(t, err)
	assert.True(t, apierrors.IsAPIError(err))
	assert.Equal(t, http.StatusUnprocessableEntity, apierrors.GetHTTPStatus(err))
	assert.Contains(t, err.Error(), "messages field required")
	assert.Contains(t, apierrors.GetResponseBody(err), "detail")
}

func TestGenerate_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	endpoint := srv.URL + "/api/chat"
	srv.Close()

	client, err := NewClient(endpoint)
	require.NoError(t, err)

	_, err = client.GeneratePrompt(context.Background(), "Hello")
	require.Error(t, err)
	assert.True(t, apierrors.IsNetworkError(err))
	assert.Equal(t, endpoint, apierrors.GetEndpoint(err))
}

func TestClosedClient(t *testing.T) {
	client, err := NewClient(models.DefaultEndpoint)
	require.NoError(t, err)

	client.Close()
	client.Close()
	assert.True(t, client.IsClosed())

	_, err = client.GeneratePrompt(context.Background(), "Hello")
	assert.EqualError(t, err, "client is closed")
}

func TestOpenStream_ReadsAllChunks(t *testing.T) {
	rocket := []byte("🚀")
	chunks := [][]byte{
		[]byte("Once "),
		[]byte("upon "),
		append([]byte("a time "), rocket[:2]...),
		append(rocket[2:], '.'),
	}

	var got models.HistoryRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		flusher := w.(http.Flusher)
		for _, c := range chunks {
			_, _ = w.Write(c)
			flusher.Flush()
		}
	})

	body, err := client.OpenStream(context.Background(), []models.Message{models.UserMessage("Tell me a story")})
	require.NoError(t, err)
	defer body.Close()

	text, _, err := stream.Consume(context.Background(), body, nil)
	require.NoError(t, err)
	assert.Equal(t, "Once upon a time 🚀.", text)
	assert.Equal(t, "Tell me a story", got.Messages[0].Content)
}

func TestOpenStream_NoBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	_, err := client.OpenStream(context.Background(), []models.Message{models.UserMessage("hi")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apierrors.ErrNoBody))
	assert.True(t, apierrors.IsStreamError(err))
}

func TestOpenStream_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	})

	_, err := client.OpenStream(context.Background(), []models.Message{models.UserMessage("hi")})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, apierrors.GetHTTPStatus(err))
}

func TestRequestIDFromContext(t *testing.T) {
	assert.Empty(t, RequestIDFromContext(context.Background()))
	assert.Equal(t, "abc", RequestIDFromContext(WithRequestID(context.Background(), "abc")))
}
