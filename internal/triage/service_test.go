package triage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/satwhiz/inboxtriage/internal/classify"
	"github.com/satwhiz/inboxtriage/internal/instrumentation"
)

func newTestClassifier(t *testing.T, invoker classify.Invoker) *classify.Classifier {
	t.Helper()
	c, err := classify.NewClassifier(invoker, classify.Config{
		HistoryThresholdDays: 7,
		Now:                  func() time.Time { return time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC) },
	}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	return c
}

// testService builds a Service without a Gmail client for exercising the
// classification path, which never touches the API.
func testService(t *testing.T, invoker classify.Invoker) *Service {
	t.Helper()
	return &Service{
		classifier: newTestClassifier(t, invoker),
		metrics:    &instrumentation.Metrics{},
		logger:     slog.New(slog.DiscardHandler),
	}
}

// fullThread builds a full-format thread with one plain-text message.
func fullThread(id, from, subject, body string, date time.Time) *gmailapi.Thread {
	return &gmailapi.Thread{
		Id: id,
		Messages: []*gmailapi.Message{{
			Id:           id + "-m1",
			InternalDate: date.UnixMilli(),
			Payload: &gmailapi.MessagePart{
				MimeType: "text/plain",
				Headers: []*gmailapi.MessagePartHeader{
					{Name: "From", Value: from},
					{Name: "Subject", Value: subject},
				},
				Body: &gmailapi.MessagePartBody{
					Data: base64.URLEncoding.EncodeToString([]byte(body)),
				},
			},
		}},
	}
}

// fakeMailbox implements Mailbox in memory. Listings return payload-free
// thread stubs the way the Gmail API does; PopulateThread fills them in.
type fakeMailbox struct {
	order    []string
	threads  map[string]*gmailapi.Thread
	fetchErr map[string]error

	labels  []*gmailapi.Label
	nextID  int
	changes []labelChange
}

type labelChange struct {
	threadID string
	add      []string
	remove   []string
}

func (f *fakeMailbox) Account() string { return "test" }

func (f *fakeMailbox) ListThreads(q string, maxResults int64) ([]*gmailapi.Thread, error) {
	var out []*gmailapi.Thread
	for _, id := range f.order {
		if int64(len(out)) >= maxResults {
			break
		}
		out = append(out, &gmailapi.Thread{Id: id, Snippet: "snippet", HistoryId: 42})
	}
	return out, nil
}

func (f *fakeMailbox) GetThread(threadID string) (*gmailapi.Thread, error) {
	full, ok := f.threads[threadID]
	if !ok {
		return nil, fmt.Errorf("thread %s not found", threadID)
	}
	return full, nil
}

func (f *fakeMailbox) PopulateThread(t *gmailapi.Thread) error {
	if err := f.fetchErr[t.Id]; err != nil {
		return err
	}
	full, ok := f.threads[t.Id]
	if !ok {
		return fmt.Errorf("thread %s not found", t.Id)
	}
	*t = *full
	return nil
}

func (f *fakeMailbox) ListLabels() ([]*gmailapi.Label, error) {
	return f.labels, nil
}

func (f *fakeMailbox) CreateLabel(name string) (*gmailapi.Label, error) {
	f.nextID++
	label := &gmailapi.Label{Id: fmt.Sprintf("Label_%d", f.nextID), Name: name}
	f.labels = append(f.labels, label)
	return label, nil
}

func (f *fakeMailbox) ModifyThreadLabels(threadID string, add, remove []string) error {
	f.changes = append(f.changes, labelChange{threadID: threadID, add: add, remove: remove})
	return nil
}

func newFakeMailbox(ids ...string) *fakeMailbox {
	f := &fakeMailbox{
		threads:  make(map[string]*gmailapi.Thread),
		fetchErr: make(map[string]error),
	}
	recent := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	for _, id := range ids {
		f.order = append(f.order, id)
		f.threads[id] = fullThread(id, "alice@example.com", "Update on "+id, "Please review.", recent)
	}
	return f
}

func TestNewService_Validation(t *testing.T) {
	classifier := newTestClassifier(t, classify.InvokerFunc(func(ctx context.Context, prompt string) (string, error) {
		return "", nil
	}))

	_, err := NewService(nil, classifier, ServiceConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gmail client")
}

func TestClassifyOne_ModelPath(t *testing.T) {
	svc := testService(t, classify.InvokerFunc(func(ctx context.Context, prompt string) (string, error) {
		return "Classification: To Do\nConfidence: 0.9\nReasoning: Direct request with a deadline.", nil
	}))

	msgs := []classify.Message{{
		ID:       "m1",
		ThreadID: "t1",
		From:     "alice@example.com",
		Subject:  "Review needed",
		Body:     "Please review by Friday.",
		Date:     time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC),
	}}

	result := svc.classifyOne(context.Background(), "t1", msgs)

	assert.Equal(t, classify.LabelToDo, result.Classification.Label)
	assert.Equal(t, classify.MethodModel, result.Classification.Method)
	assert.Equal(t, "📋 To Do", result.DisplayName)
	assert.False(t, result.Applied)
	assert.Empty(t, result.ApplyError)
}

func TestClassifyOne_ModelErrorFallsBack(t *testing.T) {
	svc := testService(t, classify.InvokerFunc(func(ctx context.Context, prompt string) (string, error) {
		return "", errors.New("rate limited")
	}))

	msgs := []classify.Message{{
		ID:       "m1",
		ThreadID: "t1",
		From:     "alice@example.com",
		Subject:  "Hello",
		Body:     "Quick question.",
		Date:     time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC),
	}}

	result := svc.classifyOne(context.Background(), "t1", msgs)

	assert.Equal(t, classify.LabelFYI, result.Classification.Label)
	assert.Equal(t, classify.MethodFallbackError, result.Classification.Method)
	assert.Contains(t, result.Classification.Reasoning, "rate limited")
	assert.Equal(t, "ℹ️ FYI", result.DisplayName)
}

func TestTriageInboxPopulatesListedThreads(t *testing.T) {
	fake := newFakeMailbox("t-1", "t-2")
	var invocations atomic.Int64
	classifier := newTestClassifier(t, classify.InvokerFunc(func(ctx context.Context, prompt string) (string, error) {
		invocations.Add(1)
		return "Classification: To Do\nConfidence: 0.9\nReasoning: Direct request.", nil
	}))

	svc, err := NewService(fake, classifier, ServiceConfig{Logger: slog.New(slog.DiscardHandler)})
	require.NoError(t, err)

	summary, err := svc.TriageInbox(context.Background(), "", 50, false)
	require.NoError(t, err)

	// Listings carry no messages; each thread must be fetched in full
	// before classification or every result degrades to the empty case.
	require.Len(t, summary.Results, 2)
	for _, r := range summary.Results {
		assert.Equal(t, 1, r.Classification.EmailCount, "thread %s was classified without its messages", r.Classification.ThreadID)
		assert.Equal(t, classify.LabelToDo, r.Classification.Label)
		assert.Equal(t, classify.MethodModel, r.Classification.Method)
	}
	assert.Equal(t, int64(2), invocations.Load(), "every thread goes through the model")
	assert.Equal(t, 2, summary.Messages)
	assert.Equal(t, 0, summary.FetchFailures)
}

func TestTriageInboxFetchFailureSkipsThread(t *testing.T) {
	fake := newFakeMailbox("t-1", "t-2")
	fake.fetchErr["t-1"] = errors.New("backend error")
	classifier := newTestClassifier(t, classify.InvokerFunc(func(ctx context.Context, prompt string) (string, error) {
		return "Classification: Done\nConfidence: 0.8\nReasoning: Thread resolved.", nil
	}))

	svc, err := NewService(fake, classifier, ServiceConfig{Logger: slog.New(slog.DiscardHandler)})
	require.NoError(t, err)

	summary, err := svc.TriageInbox(context.Background(), "", 50, true)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.FetchFailures)
	assert.Contains(t, summary.Results[0].FetchError, "backend error")
	assert.False(t, summary.Results[0].Applied, "unfetched threads are never labeled")
	assert.True(t, summary.Results[1].Applied)
	assert.Equal(t, 1, summary.Applied)
}

func TestTriageInboxApplyAndRevert(t *testing.T) {
	fake := newFakeMailbox("t-1", "t-2")
	classifier := newTestClassifier(t, classify.InvokerFunc(func(ctx context.Context, prompt string) (string, error) {
		return "Classification: Done\nConfidence: 0.8\nReasoning: Thread resolved.", nil
	}))

	svc, err := NewService(fake, classifier, ServiceConfig{Logger: slog.New(slog.DiscardHandler)})
	require.NoError(t, err)

	summary, err := svc.TriageInbox(context.Background(), "", 50, true)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Applied)
	assert.Equal(t, 0, summary.ApplyFailures)
	require.Len(t, svc.AppliedLabels(), 2)

	reverted, err := svc.RevertLabels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, reverted)
	assert.Empty(t, svc.AppliedLabels())
}

func TestTriageThreadFetchesFullThread(t *testing.T) {
	fake := newFakeMailbox("t-1")
	classifier := newTestClassifier(t, classify.InvokerFunc(func(ctx context.Context, prompt string) (string, error) {
		return "Classification: FYI\nConfidence: 0.7\nReasoning: Informational update.", nil
	}))

	svc, err := NewService(fake, classifier, ServiceConfig{Logger: slog.New(slog.DiscardHandler)})
	require.NoError(t, err)

	result, err := svc.TriageThread(context.Background(), "t-1", false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Classification.EmailCount)
	assert.Equal(t, classify.LabelFYI, result.Classification.Label)
}

func TestThreadStatsPopulatesListedThreads(t *testing.T) {
	fake := newFakeMailbox("t-1", "t-2", "t-3")
	classifier := newTestClassifier(t, classify.InvokerFunc(func(ctx context.Context, prompt string) (string, error) {
		return "", nil
	}))

	svc, err := NewService(fake, classifier, ServiceConfig{Logger: slog.New(slog.DiscardHandler)})
	require.NoError(t, err)

	stats, infos, err := svc.ThreadStats(context.Background(), "", 50)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.TotalThreads)
	assert.Equal(t, 3, stats.TotalMessages, "stats must see the fetched messages, not the bare listing")
	require.Len(t, infos, 3)
	assert.NotEmpty(t, infos[0].Subject)
}

func TestWorkerCount(t *testing.T) {
	assert.Equal(t, 1, workerCount(0))
	assert.Equal(t, 1, workerCount(-3))
	assert.Equal(t, 4, workerCount(4))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, instrumentation.StatusSuccess, statusFor(nil))
	assert.Equal(t, instrumentation.StatusError, statusFor(errors.New("boom")))
}
