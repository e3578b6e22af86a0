package pipeline

import (
	"context"

	"github.com/reelforge/reelforge/domains/integration"
	"github.com/reelforge/reelforge/domains/job"
)

// Invoker adapts one external capability provider. An implementation reads
// the job and any artifacts produced by earlier stages and writes the
// artifact of the stage it was invoked for. Only the success/failure
// contract matters to the engine.
type Invoker interface {
	Invoke(ctx context.Context, stage Stage, provider integration.Integration, v *job.Video) error
}

// InvokerFunc adapts a plain function to the Invoker interface.
type InvokerFunc func(ctx context.Context, stage Stage, provider integration.Integration, v *job.Video) error

func (f InvokerFunc) Invoke(ctx context.Context, stage Stage, provider integration.Integration, v *job.Video) error {
	return f(ctx, stage, provider, v)
}

// ProviderResolver picks the integration backing a stage category for a
// user: the configured default first, otherwise the first active valid one.
type ProviderResolver interface {
	Resolve(ctx context.Context, userID string, category integration.Category) (integration.Integration, error)
	ResolveNamed(ctx context.Context, userID string, category integration.Category, provider string) (integration.Integration, error)
}
