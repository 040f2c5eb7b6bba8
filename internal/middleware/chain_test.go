package middleware

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type upperMiddleware struct{ NopMiddleware }

func (upperMiddleware) Name() string { return "upper" }
func (upperMiddleware) OnIncoming(ctx context.Context, session, message, from, channel string) (IncomingResult, error) {
	return IncomingResult{Message: message + "!"}, nil
}

type vetoMiddleware struct{ NopMiddleware }

func (vetoMiddleware) Name() string { return "veto" }
func (vetoMiddleware) OnIncoming(ctx context.Context, session, message, from, channel string) (IncomingResult, error) {
	return IncomingResult{Prevented: true}, nil
}

type explodingMiddleware struct{ NopMiddleware }

func (explodingMiddleware) Name() string { return "exploding" }
func (explodingMiddleware) OnIncoming(ctx context.Context, session, message, from, channel string) (IncomingResult, error) {
	panic("boom")
}

type erroringMiddleware struct{ NopMiddleware }

func (erroringMiddleware) Name() string { return "erroring" }
func (erroringMiddleware) OnIncoming(ctx context.Context, session, message, from, channel string) (IncomingResult, error) {
	return IncomingResult{}, errors.New("failed")
}

func TestRunIncomingAppliesRewrite(t *testing.T) {
	c := New()
	c.Register(upperMiddleware{}, 1)
	result := c.RunIncoming(context.Background(), "s1", "hi", "cli", "")
	assert.Equal(t, "hi!", result.Message)
	assert.False(t, result.Prevented)
}

func TestRunIncomingVetoShortCircuits(t *testing.T) {
	c := New()
	c.Register(upperMiddleware{}, 1)
	c.Register(vetoMiddleware{}, 2)
	c.Register(upperMiddleware{}, 3) // should never run

	result := c.RunIncoming(context.Background(), "s1", "hi", "cli", "")
	assert.True(t, result.Prevented)
	assert.Equal(t, "hi!", result.Message) // only the first upper ran before veto
}

func TestRunIncomingPanicTreatedAsNoOp(t *testing.T) {
	c := New()
	c.Register(explodingMiddleware{}, 1)
	c.Register(upperMiddleware{}, 2)

	result := c.RunIncoming(context.Background(), "s1", "hi", "cli", "")
	assert.False(t, result.Prevented)
	assert.Equal(t, "hi!", result.Message)
}

func TestRunIncomingErrorTreatedAsNoOp(t *testing.T) {
	c := New()
	c.Register(erroringMiddleware{}, 1)
	c.Register(upperMiddleware{}, 2)

	result := c.RunIncoming(context.Background(), "s1", "hi", "cli", "")
	assert.Equal(t, "hi!", result.Message)
}

func TestSetEnabledSkipsMiddleware(t *testing.T) {
	c := New()
	c.Register(upperMiddleware{}, 1)
	c.SetEnabled("upper", false)

	result := c.RunIncoming(context.Background(), "s1", "hi", "cli", "")
	assert.Equal(t, "hi", result.Message)
}

func TestRunOutgoingIgnoresIncomingOnlyVeto(t *testing.T) {
	c := New()
	c.Register(vetoMiddleware{}, 1)
	result := c.RunOutgoing(context.Background(), "s1", "resp", "cli", "")
	assert.False(t, result.Prevented) // vetoMiddleware only overrides OnIncoming
	assert.Equal(t, "resp", result.Response)
}
