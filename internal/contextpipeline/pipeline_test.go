package contextpipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeProvider struct {
	name            string
	systemAddition  string
	contextAddition string
	err             error
	observeSoFar    func(Result)
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Run(ctx context.Context, info MessageInfo, soFar Result) (string, string, error) {
	if f.observeSoFar != nil {
		f.observeSoFar(soFar)
	}
	if f.err != nil {
		return "", "", f.err
	}
	return f.systemAddition, f.contextAddition, nil
}

func TestAssembleContextRunsInPriorityOrder(t *testing.T) {
	p := New()
	p.Register(&fakeProvider{name: "b", contextAddition: "B"}, 20)
	p.Register(&fakeProvider{name: "a", contextAddition: "A"}, 10)

	result := p.AssembleContext(context.Background(), MessageInfo{}, Options{})
	assert.Equal(t, "AB", result.Context)
	assert.Equal(t, []string{"a", "b"}, result.Sources)
}

func TestAssembleContextLaterProviderObservesEarlierAddition(t *testing.T) {
	p := New()
	var observed string
	p.Register(&fakeProvider{name: "a", contextAddition: "A"}, 1)
	p.Register(&fakeProvider{name: "b", observeSoFar: func(r Result) { observed = r.Context }}, 2)

	p.AssembleContext(context.Background(), MessageInfo{}, Options{})
	assert.Equal(t, "A", observed)
}

func TestAssembleContextSkipsFailingProviderWithWarning(t *testing.T) {
	p := New()
	p.Register(&fakeProvider{name: "bad", err: errors.New("boom")}, 1)
	p.Register(&fakeProvider{name: "good", contextAddition: "ok"}, 2)

	result := p.AssembleContext(context.Background(), MessageInfo{}, Options{})
	assert.Equal(t, "ok", result.Context)
	assert.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "bad")
}

func TestAssembleContextDisabledProviderSkipped(t *testing.T) {
	p := New()
	p.Register(&fakeProvider{name: "a", contextAddition: "A"}, 1)
	p.SetEnabled("a", false)

	result := p.AssembleContext(context.Background(), MessageInfo{}, Options{})
	assert.Empty(t, result.Context)
	assert.Empty(t, result.Sources)
}

func TestAssembleContextWhitelistRestrictsProviders(t *testing.T) {
	p := New()
	p.Register(&fakeProvider{name: "a", contextAddition: "A"}, 1)
	p.Register(&fakeProvider{name: "b", contextAddition: "B"}, 2)

	result := p.AssembleContext(context.Background(), MessageInfo{}, Options{Providers: []string{"b"}})
	assert.Equal(t, "B", result.Context)
}

func TestSetPriorityTakesEffectOnNextAssembly(t *testing.T) {
	p := New()
	p.Register(&fakeProvider{name: "a", contextAddition: "A"}, 10)
	p.Register(&fakeProvider{name: "b", contextAddition: "B"}, 20)

	p.SetPriority("b", 1)
	result := p.AssembleContext(context.Background(), MessageInfo{}, Options{})
	assert.Equal(t, "BA", result.Context)
}

func TestAssembleContextPanicIsRecoveredAsWarning(t *testing.T) {
	p := New()
	p.Register(&panickyProvider{name: "panicky"}, 1)

	result := p.AssembleContext(context.Background(), MessageInfo{}, Options{})
	assert.Len(t, result.Warnings, 1)
}

type panickyProvider struct{ name string }

func (p *panickyProvider) Name() string { return p.name }
func (p *panickyProvider) Run(ctx context.Context, info MessageInfo, soFar Result) (string, string, error) {
	panic("provider exploded")
}
