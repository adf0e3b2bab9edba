package llm

import "context"

// Mock answers without calling any model.
type Mock struct{}

func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) Generate(_ context.Context, _ string, promptName string) (string, error) {
	return Envelope("MOCK_LLM_RESPONSE(" + promptName + ")"), nil
}
