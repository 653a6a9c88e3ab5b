package triage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/satwhiz/inboxtriage/internal/classify"
	"github.com/satwhiz/inboxtriage/internal/gmail"
	"github.com/satwhiz/inboxtriage/internal/instrumentation"
	"github.com/satwhiz/inboxtriage/internal/logging"
	"github.com/satwhiz/inboxtriage/internal/threads"
)

// DefaultQuery is the Gmail search query used when none is given.
const DefaultQuery = "in:inbox"

// Mailbox is the part of the Gmail client the triage service uses.
type Mailbox interface {
	Account() string
	ListThreads(q string, maxResults int64) ([]*gmailapi.Thread, error)
	GetThread(threadID string) (*gmailapi.Thread, error)
	PopulateThread(t *gmailapi.Thread) error
	gmail.LabelClient
}

// ServiceConfig configures a triage Service.
type ServiceConfig struct {
	// Workers bounds concurrent thread classifications. Values below 1
	// mean sequential processing.
	Workers int

	// Metrics receives classification and label metrics. Nil disables
	// recording.
	Metrics *instrumentation.Metrics

	// Logger receives structured progress logs. Nil discards them.
	Logger *slog.Logger
}

// ThreadResult is the outcome of triaging a single thread.
type ThreadResult struct {
	Classification classify.Classification
	DisplayName    string
	Applied        bool
	ApplyError     string

	// FetchError is set when the thread could not be fetched. Such a
	// thread is never classified or labeled.
	FetchError string
}

// Summary aggregates a triage run over multiple threads.
type Summary struct {
	Account       string
	Query         string
	Threads       int
	Messages      int
	Applied       int
	ApplyFailures int
	FetchFailures int
	ByLabel       map[classify.Label]int
	Results       []ThreadResult
	Duration      time.Duration
}

// Service runs the triage pipeline against a single Gmail account.
type Service struct {
	client     Mailbox
	classifier *classify.Classifier
	labeler    *gmail.Labeler
	metrics    *instrumentation.Metrics
	logger     *slog.Logger
	workers    int

	ensureOnce sync.Once
	ensureErr  error
}

// NewService creates a triage Service for the given client and classifier.
func NewService(client Mailbox, classifier *classify.Classifier, cfg ServiceConfig) (*Service, error) {
	if client == nil {
		return nil, fmt.Errorf("gmail client is required")
	}
	if classifier == nil {
		return nil, fmt.Errorf("classifier is required")
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = &instrumentation.Metrics{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		client:     client,
		classifier: classifier,
		labeler:    gmail.NewLabeler(client),
		metrics:    metrics,
		logger:     logger,
		workers:    cfg.Workers,
	}, nil
}

// Labeler returns the label applier bound to this service's account.
func (s *Service) Labeler() *gmail.Labeler {
	return s.labeler
}

// AppliedLabels returns the label applications this service has recorded,
// oldest first.
func (s *Service) AppliedLabels() []gmail.AppliedLabel {
	return s.labeler.Applied()
}

// RevertLabels undoes the recorded label applications, newest first, and
// returns how many were undone. A failure stops the revert; entries not
// yet undone stay recorded so the revert can be retried.
func (s *Service) RevertLabels(ctx context.Context) (int, error) {
	recorded := len(s.labeler.Applied())
	start := time.Now()
	err := s.labeler.Revert()
	reverted := recorded - len(s.labeler.Applied())
	s.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceGmail, instrumentation.OperationModify, statusFor(err), time.Since(start))
	if err != nil {
		s.logger.Warn("label revert stopped early",
			logging.Account(s.client.Account()),
			slog.Int("reverted", reverted),
			logging.Err(err),
		)
		return reverted, err
	}
	s.logger.Info("labels reverted",
		logging.Account(s.client.Account()),
		slog.Int("reverted", reverted),
	)
	return reverted, nil
}

// TriageThread classifies a single thread by ID. When apply is true the
// resulting Gmail label is applied as well.
func (s *Service) TriageThread(ctx context.Context, threadID string, apply bool) (ThreadResult, error) {
	start := time.Now()
	t, err := s.client.GetThread(threadID)
	s.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceGmail, instrumentation.OperationGet, statusFor(err), time.Since(start))
	if err != nil {
		return ThreadResult{}, fmt.Errorf("failed to fetch thread %s: %w", threadID, err)
	}

	result := s.classifyOne(ctx, threadID, gmail.MessagesFromThread(t))
	if apply {
		s.applyOne(ctx, &result)
	}
	return result, nil
}

// TriageInbox fetches threads matching the query and classifies each one.
// Threads are processed concurrently up to the configured worker count;
// results keep the order Gmail returned them in.
func (s *Service) TriageInbox(ctx context.Context, query string, maxThreads int64, apply bool) (*Summary, error) {
	start := time.Now()
	if query == "" {
		query = DefaultQuery
	}

	listStart := time.Now()
	list, err := s.client.ListThreads(query, maxThreads)
	s.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceGmail, instrumentation.OperationList, statusFor(err), time.Since(listStart))
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}

	summary := &Summary{
		Account: s.client.Account(),
		Query:   query,
		Threads: len(list),
		ByLabel: make(map[classify.Label]int),
		Results: make([]ThreadResult, len(list)),
	}

	s.logger.Info("triage run started",
		logging.Account(summary.Account),
		slog.String("query", query),
		slog.Int("threads", len(list)),
	)

	var wg sync.WaitGroup
	sem := make(chan struct{}, workerCount(s.workers))
	for i, t := range list {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, t *gmailapi.Thread) {
			defer wg.Done()
			defer func() { <-sem }()
			summary.Results[i] = s.triageListed(ctx, t)
		}(i, t)
	}
	wg.Wait()

	for i := range summary.Results {
		r := &summary.Results[i]
		if r.FetchError != "" {
			summary.FetchFailures++
			continue
		}
		summary.Messages += r.Classification.EmailCount
		summary.ByLabel[r.Classification.Label]++
		if apply {
			s.applyOne(ctx, r)
			if r.Applied {
				summary.Applied++
			} else {
				summary.ApplyFailures++
			}
		}
	}

	summary.Duration = time.Since(start)
	s.logger.Info("triage run finished",
		logging.Account(summary.Account),
		slog.Int("threads", summary.Threads),
		slog.Int("applied", summary.Applied),
		slog.Int("apply_failures", summary.ApplyFailures),
		slog.Int("fetch_failures", summary.FetchFailures),
		slog.Duration("duration", summary.Duration),
	)
	return summary, nil
}

// triageListed fetches the full thread behind a listing entry and
// classifies it. Listings carry no message payloads, so the thread must
// be populated before its messages can be read.
func (s *Service) triageListed(ctx context.Context, t *gmailapi.Thread) ThreadResult {
	start := time.Now()
	err := s.client.PopulateThread(t)
	s.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceGmail, instrumentation.OperationGet, statusFor(err), time.Since(start))
	if err != nil {
		s.logger.Warn("thread fetch failed",
			logging.ThreadID(t.Id),
			logging.Err(err),
		)
		return ThreadResult{
			Classification: classify.Classification{ThreadID: t.Id},
			FetchError:     err.Error(),
		}
	}
	return s.classifyOne(ctx, t.Id, gmail.MessagesFromThread(t))
}

// ThreadStats fetches threads matching the query and returns aggregate
// statistics plus per-thread summaries, most recent first.
func (s *Service) ThreadStats(ctx context.Context, query string, maxThreads int64) (threads.Stats, []threads.ThreadInfo, error) {
	if query == "" {
		query = DefaultQuery
	}

	listStart := time.Now()
	list, err := s.client.ListThreads(query, maxThreads)
	s.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceGmail, instrumentation.OperationList, statusFor(err), time.Since(listStart))
	if err != nil {
		return threads.Stats{}, nil, fmt.Errorf("failed to list threads: %w", err)
	}

	var msgs []classify.Message
	for _, t := range list {
		getStart := time.Now()
		err := s.client.PopulateThread(t)
		s.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceGmail, instrumentation.OperationGet, statusFor(err), time.Since(getStart))
		if err != nil {
			s.logger.Warn("thread fetch failed",
				logging.ThreadID(t.Id),
				logging.Err(err),
			)
			continue
		}
		msgs = append(msgs, gmail.MessagesFromThread(t)...)
	}
	set := threads.Organize(msgs)
	return threads.Statistics(set), threads.Summarize(set), nil
}

// ApplyLabel applies the Gmail label for a classification label to a
// thread, creating the label first if needed.
func (s *Service) ApplyLabel(ctx context.Context, threadID string, label classify.Label) error {
	if !label.IsValid() {
		return fmt.Errorf("invalid label: %s", label)
	}
	if err := s.ensureLabels(); err != nil {
		return err
	}

	start := time.Now()
	err := s.labeler.Apply(threadID, label)
	s.metrics.RecordLabelApplied(ctx, string(label), statusFor(err))
	s.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceGmail, instrumentation.OperationModify, statusFor(err), time.Since(start))
	if err != nil {
		return fmt.Errorf("failed to apply label %s to thread %s: %w", label, threadID, err)
	}

	s.logger.Info("label applied",
		logging.Account(s.client.Account()),
		logging.ThreadID(threadID),
		logging.Label(string(label)),
	)
	return nil
}

// classifyOne classifies one thread and records the outcome.
func (s *Service) classifyOne(ctx context.Context, threadID string, msgs []classify.Message) ThreadResult {
	spanCtx, span := instrumentation.StartClassificationSpan(ctx, threadID)
	defer span.End()

	start := time.Now()
	c := s.classifier.ClassifyThread(spanCtx, threadID, msgs)
	duration := time.Since(start)

	status := instrumentation.StatusSuccess
	if c.Method == classify.MethodFallbackError {
		status = instrumentation.StatusError
	}
	s.metrics.RecordThreadClassification(spanCtx, string(c.Label), string(c.Method), status, duration)
	span.SetAttributes(
		attribute.String(instrumentation.SpanAttrLabel, string(c.Label)),
		attribute.String(instrumentation.SpanAttrClassifyMethod, string(c.Method)),
	)
	instrumentation.SetSpanSuccess(span)

	display, _ := gmail.LabelDisplayName(c.Label)
	s.logger.Debug("thread classified",
		logging.ThreadID(c.ThreadID),
		logging.Label(string(c.Label)),
		logging.Method(string(c.Method)),
		logging.Confidence(c.Confidence),
		slog.Duration("duration", duration),
	)
	return ThreadResult{Classification: c, DisplayName: display}
}

// applyOne applies the classification's label to its thread, recording
// any failure on the result instead of returning it.
func (s *Service) applyOne(ctx context.Context, r *ThreadResult) {
	if err := s.ApplyLabel(ctx, r.Classification.ThreadID, r.Classification.Label); err != nil {
		r.ApplyError = err.Error()
		s.logger.Warn("label application failed",
			logging.ThreadID(r.Classification.ThreadID),
			logging.Label(string(r.Classification.Label)),
			logging.Err(err),
		)
		return
	}
	r.Applied = true
}

// ensureLabels resolves or creates the Gmail labels once per service.
func (s *Service) ensureLabels() error {
	s.ensureOnce.Do(func() {
		_, s.ensureErr = s.labeler.EnsureLabels()
		if s.ensureErr != nil {
			s.ensureErr = fmt.Errorf("failed to ensure Gmail labels: %w", s.ensureErr)
		}
	})
	return s.ensureErr
}

func statusFor(err error) string {
	if err != nil {
		return instrumentation.StatusError
	}
	return instrumentation.StatusSuccess
}

func workerCount(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
