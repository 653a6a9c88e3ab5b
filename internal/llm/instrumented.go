package llm

import (
	"context"
	"time"

	"github.com/satwhiz/inboxtriage/internal/classify"
	"github.com/satwhiz/inboxtriage/internal/instrumentation"
)

// instrumentedInvoker records request metrics around an inner invoker.
type instrumentedInvoker struct {
	inner   classify.Invoker
	model   string
	metrics *instrumentation.Metrics
}

// WithMetrics wraps an invoker so every model request is recorded with
// its model name, status, and duration. A nil metrics recorder returns
// the invoker unchanged.
func WithMetrics(inv classify.Invoker, model string, metrics *instrumentation.Metrics) classify.Invoker {
	if metrics == nil {
		return inv
	}
	return &instrumentedInvoker{inner: inv, model: model, metrics: metrics}
}

func (i *instrumentedInvoker) Invoke(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	response, err := i.inner.Invoke(ctx, prompt)
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	i.metrics.RecordLLMRequest(ctx, i.model, status, time.Since(start))
	return response, err
}
