package policy

import (
	"context"
	"time"
)

// MockPolicy returns a canned action list, for tests and offline runs.
type MockPolicy struct {
	Result PolicyResult
	Err    error
	// Calls counts Predict invocations.
	Calls int
}

// NewMockPolicy wraps a fixed set of actions.
func NewMockPolicy(actions ...Action) *MockPolicy {
	return &MockPolicy{Result: PolicyResult{
		Actions:  actions,
		Metadata: map[string]string{"source": "mock"},
	}}
}

func (m *MockPolicy) Predict(ctx context.Context, obs Observation) (PolicyResult, error) {
	m.Calls++
	if m.Err != nil {
		return PolicyResult{}, m.Err
	}
	start := time.Now()
	res := m.Result
	res.InferenceTimeMs = float64(time.Since(start).Nanoseconds()) / 1e6
	return res, nil
}
