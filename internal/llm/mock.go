package llm

import "context"

// MockGenerator returns a canned companion reply. Used when no model API key
// is configured and in tests.
type MockGenerator struct {
	Reply string
}

func NewMockGenerator() *MockGenerator {
	return &MockGenerator{
		Reply: "I'm here to walk with you in faith. Let me share some thoughts and a relevant Bible verse...",
	}
}

func (g *MockGenerator) Generate(_ context.Context, _ string, _ []Turn, _ string) (string, error) {
	return g.Reply, nil
}
