package appgen

import "context"

// Generator runs one generation for a fully resolved context. The
// returned Output may be blocking or streaming; implementations signal
// upstream provider throttling with ErrProviderThrottled (possibly
// wrapped) so the service layer can translate it uniformly.
type Generator interface {
	Generate(ctx context.Context, gctx *GenerationContext) (*Output, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, gctx *GenerationContext) (*Output, error)

func (f GeneratorFunc) Generate(ctx context.Context, gctx *GenerationContext) (*Output, error) {
	return f(ctx, gctx)
}
