package llm

import "context"

// MockProvider is a func-field fake, mirroring the teacher's
// MockRuntime idiom (internal/runner/interface.go): an interface plus a
// struct of XxxFunc fields, used here in the orchestrator, research,
// risk and trader tests.
type MockProvider struct {
	ChatFunc func(ctx context.Context, req ChatRequest) (ChatResponse, error)
}

var _ Provider = (*MockProvider)(nil)

func (m *MockProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, req)
	}
	return ChatResponse{Content: "mock response"}, nil
}
