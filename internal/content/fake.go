package content

import (
	"context"

	"github.com/haasonsaas/agentcore/pkg/protocol"
)

// FakeGenerator is a scripted ContentGenerator used by tests and the demo
// binary so the runtime can be exercised without live network calls: a
// simple queue of canned responses.
type FakeGenerator struct {
	variant   AuthVariant
	responses []Response
	estimator *LocalEstimator
	calls     int
}

func NewFakeGenerator(variant AuthVariant, responses ...Response) *FakeGenerator {
	return &FakeGenerator{variant: variant, responses: responses, estimator: NewLocalEstimator()}
}

func (f *FakeGenerator) Variant() AuthVariant { return f.variant }

func (f *FakeGenerator) Generate(ctx context.Context, model string, contents []protocol.Content, cfg GenerateConfig) (Response, error) {
	if f.calls >= len(f.responses) {
		return Response{FinishReason: "STOP"}, nil
	}
	r := f.responses[f.calls]
	f.calls++
	return r, nil
}

func (f *FakeGenerator) GenerateStream(ctx context.Context, model string, contents []protocol.Content, cfg GenerateConfig) (<-chan Response, <-chan error) {
	out := make(chan Response, 1)
	errc := make(chan error, 1)
	resp, err := f.Generate(ctx, model, contents, cfg)
	if err != nil {
		close(out)
		errc <- err
		close(errc)
		return out, errc
	}
	out <- resp
	close(out)
	errc <- nil
	close(errc)
	return out, errc
}

func (f *FakeGenerator) CountTokens(ctx context.Context, model string, contents []protocol.Content) (int, error) {
	return f.estimator.Count(model, contents)
}

func (f *FakeGenerator) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i)}
	}
	return out, nil
}
