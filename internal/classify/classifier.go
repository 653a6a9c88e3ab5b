package classify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Invoker is the single point of contact with the language model. It takes
// a fully formatted prompt and returns the model's unstructured text reply.
type Invoker interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// InvokerFunc adapts a plain function to the Invoker interface.
type InvokerFunc func(ctx context.Context, prompt string) (string, error)

func (f InvokerFunc) Invoke(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Config holds the tunables for a Classifier. HistoryThresholdDays has no
// implicit default: the source systems disagreed on 5 vs 7 days, so every
// entry point must state its threshold explicitly.
type Config struct {
	// HistoryThresholdDays is the age at which threads short-circuit to
	// history without a model call. Required, must be positive.
	HistoryThresholdDays int

	// Workers bounds concurrent model calls in ClassifyThreads.
	// Zero or negative means sequential.
	Workers int

	// InvokeTimeout bounds each model call. Zero disables the per-call
	// timeout (the parent context still applies).
	InvokeTimeout time.Duration

	// ReasoningLimit bounds the reasoning text kept from responses.
	// Zero means DefaultReasoningLimit.
	ReasoningLimit int

	// Now supplies the reference time for the age rule. Nil means time.Now.
	Now func() time.Time
}

// Classifier assigns one of the six labels to each email thread. It checks
// the age rule first, and only consults the model for threads that are
// still current. All failure modes degrade to a well-defined fallback
// classification; ClassifyThread never returns an error.
type Classifier struct {
	invoker Invoker
	ageRule AgeRule
	builder ContextBuilder
	cfg     Config
	logger  *slog.Logger
}

// NewClassifier creates a Classifier. The invoker is required; logger may
// be nil, in which case slog.Default() is used.
func NewClassifier(invoker Invoker, cfg Config, logger *slog.Logger) (*Classifier, error) {
	if invoker == nil {
		return nil, fmt.Errorf("invoker is required")
	}
	if cfg.HistoryThresholdDays <= 0 {
		return nil, fmt.Errorf("history threshold must be positive, got %d days", cfg.HistoryThresholdDays)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		invoker: invoker,
		ageRule: AgeRule{ThresholdDays: cfg.HistoryThresholdDays},
		builder: ContextBuilder{},
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// ClassifyThread classifies a single thread. msgs need not be sorted; they
// are ordered by timestamp before evaluation. The returned Classification
// is always valid: an empty thread yields FYI with zero confidence, a
// stale thread yields an automatic history result, and any failure along
// the model path yields the error-fallback result. A nil error contract is
// deliberate so one bad thread cannot abort a batch run.
func (c *Classifier) ClassifyThread(ctx context.Context, threadID string, msgs []Message) Classification {
	if len(msgs) == 0 {
		return Classification{
			ThreadID:   threadID,
			Label:      LabelFYI,
			Confidence: 0.0,
			Reasoning:  "No emails in thread",
			EmailCount: 0,
			Method:     MethodFallbackError,
		}
	}

	sorted := make([]Message, len(msgs))
	copy(sorted, msgs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	if threadID == "" {
		threadID = sorted[0].ThreadID
	}

	now := time.Now()
	if c.cfg.Now != nil {
		now = c.cfg.Now()
	}

	latest := sorted[len(sorted)-1]
	if c.ageRule.IsHistory(latest.Date, now) {
		return Classification{
			ThreadID:   threadID,
			Label:      LabelHistory,
			Confidence: 1.0,
			Reasoning:  fmt.Sprintf("Entire thread is older than %d days - automatically classified as History", c.ageRule.ThresholdDays),
			EmailCount: len(sorted),
			Method:     MethodAutomaticAge,
		}
	}

	result, err := c.classifyWithModel(ctx, threadID, sorted)
	if err != nil {
		c.logger.Error("thread classification failed",
			slog.String("thread_id", threadID),
			slog.String("error", err.Error()))
		return Classification{
			ThreadID:   threadID,
			Label:      LabelFYI,
			Confidence: 0.3,
			Reasoning:  fmt.Sprintf("Classification error: %v", err),
			EmailCount: len(sorted),
			Method:     MethodFallbackError,
		}
	}
	return result
}

func (c *Classifier) classifyWithModel(ctx context.Context, threadID string, sorted []Message) (Classification, error) {
	transcript := c.builder.Build(sorted)
	prompt := FormatPrompt(threadID, len(sorted), transcript)

	if c.cfg.InvokeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.InvokeTimeout)
		defer cancel()
	}

	raw, err := c.invoker.Invoke(ctx, prompt)
	if err != nil {
		return Classification{}, fmt.Errorf("model invocation: %w", err)
	}

	parsed := ParseResponse(raw, c.cfg.ReasoningLimit)
	method := MethodModel
	if parsed.Fallback {
		method = MethodFallbackUnparseable
	}

	c.logger.Debug("thread classified",
		slog.String("thread_id", threadID),
		slog.String("label", string(parsed.Label)),
		slog.Float64("confidence", parsed.Confidence),
		slog.String("method", string(method)))

	return Classification{
		ThreadID:   threadID,
		Label:      parsed.Label,
		Confidence: parsed.Confidence,
		Reasoning:  parsed.Reasoning,
		EmailCount: len(sorted),
		Method:     method,
	}, nil
}

// ClassifyThreads classifies every thread in the mapping independently.
// Threads are processed by a bounded worker pool when cfg.Workers > 1;
// failures stay isolated per thread, so the result always contains exactly
// one Classification per input thread. Results are ordered by thread ID.
func (c *Classifier) ClassifyThreads(ctx context.Context, threads map[string][]Message) []Classification {
	ids := make([]string, 0, len(threads))
	for id := range threads {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	results := make([]Classification, len(ids))

	workers := c.cfg.Workers
	if workers <= 1 {
		for i, id := range ids {
			results[i] = c.ClassifyThread(ctx, id, threads[id])
		}
		return results
	}
	if workers > len(ids) {
		workers = len(ids)
	}

	type job struct {
		idx int
		id  string
	}
	jobs := make(chan job)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				results[j.idx] = c.ClassifyThread(ctx, j.id, threads[j.id])
			}
		}()
	}

	for i, id := range ids {
		jobs <- job{idx: i, id: id}
	}
	close(jobs)
	wg.Wait()

	return results
}
