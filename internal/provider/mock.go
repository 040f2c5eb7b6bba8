package provider

import (
	"context"

	"github.com/wopr-network/wopr/pkg/types"
)

// MockProvider is an in-memory Provider for tests: it yields a
// fixed sequence of deltas followed by a result, or fails immediately if
// FailImmediately is set (used to exercise the fallback-chain path).
type MockProvider struct {
	IDValue         string
	Deltas          []string
	FailImmediately bool
}

func (p *MockProvider) ID() string       { return p.IDValue }
func (p *MockProvider) Name() string      { return p.IDValue }
func (p *MockProvider) ListModels() []string { return []string{"mock-model"} }
func (p *MockProvider) DefaultModel() string { return "mock-model" }

func (p *MockProvider) Query(ctx context.Context, opts types.QueryOptions) (types.ProviderStream, error) {
	if p.FailImmediately {
		return nil, errMockFailure
	}
	return &mockStream{deltas: append([]string{}, p.Deltas...)}, nil
}

var errMockFailure = mockError("mock provider: simulated failure")

type mockError string

func (e mockError) Error() string { return string(e) }

type mockStream struct {
	deltas []string
	i      int
	closed bool
}

func (s *mockStream) Next(ctx context.Context) (types.ProviderEvent, bool, error) {
	if s.i == 0 {
		s.i++
		return types.ProviderEvent{Kind: types.EventSystemInit, ConversationID: "mock-conv"}, true, nil
	}
	idx := s.i - 1
	if idx < len(s.deltas) {
		s.i++
		return types.ProviderEvent{Kind: types.EventStreamDelta, TextDelta: s.deltas[idx]}, true, nil
	}
	return types.ProviderEvent{Kind: types.EventResult, ResultSubtype: "success"}, false, nil
}

func (s *mockStream) Close() error {
	s.closed = true
	return nil
}
