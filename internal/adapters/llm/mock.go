package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/mduval/tutor-agent/internal/domain"
)

// MockGateway is a deterministic domain.PersonaGateway for tests and local
// mode. Replies are prefixed with the persona that produced them, and calls
// are recorded so tests can assert which persona ran.
type MockGateway struct {
	mu sync.Mutex

	PlanCalls      int
	ExplainCalls   int
	QuizCalls      int
	EncourageCalls int
	SummarizeCalls int

	LastGoal       string
	LastDocument   string
	LastPlan       string
	LastHistoryLen int
	LastMode       domain.SummaryMode
}

func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

func (m *MockGateway) Plan(_ context.Context, goal, documentText string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PlanCalls++
	m.LastGoal = goal
	m.LastDocument = documentText
	return fmt.Sprintf("[planner] 1. Start with %q", goal), nil
}

func (m *MockGateway) Explain(_ context.Context, history []*domain.Message, question, plan string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ExplainCalls++
	m.LastHistoryLen = len(history)
	m.LastPlan = plan
	return fmt.Sprintf("[explainer] About %q", question), nil
}

func (m *MockGateway) Quiz(_ context.Context, history []*domain.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.QuizCalls++
	m.LastHistoryLen = len(history)
	return "[examiner] Question 1: ...", nil
}

func (m *MockGateway) Encourage(_ context.Context, history []*domain.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EncourageCalls++
	m.LastHistoryLen = len(history)
	return "[coach] Keep going.", nil
}

func (m *MockGateway) Summarize(_ context.Context, history []*domain.Message, mode domain.SummaryMode) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SummarizeCalls++
	m.LastHistoryLen = len(history)
	m.LastMode = mode
	return fmt.Sprintf("[scribe:%s] Key points.", mode), nil
}

var _ domain.PersonaGateway = (*MockGateway)(nil)
