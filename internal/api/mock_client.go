package api

import (
	"context"
	"io"
	"sync"

	"github.com/diogo/localchat/internal/models"
)

// MockChatClient is a mock implementation of ChatClientInterface for testing
type MockChatClient struct {
	// Mock return values
	EndpointVal    string
	ModelVal       string
	GenerateVal    string
	GenerateErr    error
	StreamChunks   [][]byte
	StreamErr      error // returned by OpenStream
	StreamReadErr  error // returned by the body after the last chunk
	ChunkGate      chan struct{}
	BeforeGenerate func()

	// Call counters/recorders
	mu            sync.Mutex
	GenerateCalls int
	StreamCalls   int
	CloseCalled   bool
	LastPrompt    string
	LastMessages  []models.Message
	LastRequestID string
}

// Ensure MockChatClient implements ChatClientInterface
var _ ChatClientInterface = (*MockChatClient)(nil)

func (m *MockChatClient) record(ctx context.Context, prompt string, messages []models.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastPrompt = prompt
	if messages != nil {
		m.LastMessages = append([]models.Message(nil), messages...)
	}
	m.LastRequestID = RequestIDFromContext(ctx)
}

func (m *MockChatClient) GeneratePrompt(ctx context.Context, prompt string) (string, error) {
	m.record(ctx, prompt, nil)
	m.mu.Lock()
	m.GenerateCalls++
	m.mu.Unlock()
	if m.BeforeGenerate != nil {
		m.BeforeGenerate()
	}
	return m.GenerateVal, m.GenerateErr
}

func (m *MockChatClient) GenerateHistory(ctx context.Context, messages []models.Message) (string, error) {
	m.record(ctx, "", messages)
	m.mu.Lock()
	m.GenerateCalls++
	m.mu.Unlock()
	if m.BeforeGenerate != nil {
		m.BeforeGenerate()
	}
	return m.GenerateVal, m.GenerateErr
}

func (m *MockChatClient) OpenStream(ctx context.Context, messages []models.Message) (io.ReadCloser, error) {
	m.record(ctx, "", messages)
	m.mu.Lock()
	m.StreamCalls++
	m.mu.Unlock()
	if m.StreamErr != nil {
		return nil, m.StreamErr
	}
	chunks := make([][]byte, len(m.StreamChunks))
	copy(chunks, m.StreamChunks)
	return &MockStreamBody{Chunks: chunks, Err: m.StreamReadErr, Gate: m.ChunkGate}, nil
}

func (m *MockChatClient) Endpoint() string {
	return m.EndpointVal
}

func (m *MockChatClient) Model() string {
	return m.ModelVal
}

func (m *MockChatClient) SetModel(model string) {
	m.ModelVal = model
}

func (m *MockChatClient) Close() {
	m.CloseCalled = true
}

// Calls returns how many generate and stream requests were made
func (m *MockChatClient) Calls() (generate, stream int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.GenerateCalls, m.StreamCalls
}

// MockStreamBody returns one chunk per Read. When Gate is set, every Read
// waits for a value on it first.
type MockStreamBody struct {
	Chunks [][]byte
	Err    error
	Gate   chan struct{}
	Closed bool
}

// Read implements the io.Reader interface
func (b *MockStreamBody) Read(p []byte) (int, error) {
	if b.Gate != nil {
		<-b.Gate
	}
	if len(b.Chunks) == 0 {
		if b.Err != nil {
			return 0, b.Err
		}
		return 0, io.EOF
	}
	n := copy(p, b.Chunks[0])
	if n < len(b.Chunks[0]) {
		b.Chunks[0] = b.Chunks[0][n:]
	} else {
		b.Chunks = b.Chunks[1:]
	}
	return n, nil
}

// Close implements the io.Closer interface
func (b *MockStreamBody) Close() error {
	b.Closed = true
	return nil
}
