package classify

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

func testConfig() Config {
	return Config{
		HistoryThresholdDays: 7,
		Now:                  func() time.Time { return testNow },
	}
}

func staticInvoker(response string) Invoker {
	return InvokerFunc(func(ctx context.Context, prompt string) (string, error) {
		return response, nil
	})
}

func TestNewClassifierValidation(t *testing.T) {
	_, err := NewClassifier(nil, testConfig(), nil)
	assert.Error(t, err)

	_, err = NewClassifier(staticInvoker("ok"), Config{}, nil)
	assert.Error(t, err)

	c, err := NewClassifier(staticInvoker("ok"), testConfig(), nil)
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestClassifyThreadEmptyInput(t *testing.T) {
	var calls atomic.Int64
	invoker := InvokerFunc(func(ctx context.Context, prompt string) (string, error) {
		calls.Add(1)
		return "Classification: Done", nil
	})
	c, err := NewClassifier(invoker, testConfig(), nil)
	require.NoError(t, err)

	result := c.ClassifyThread(context.Background(), "t-1", nil)

	assert.Equal(t, "t-1", result.ThreadID)
	assert.Equal(t, LabelFYI, result.Label)
	assert.Equal(t, 0.0, result.Confidence)
	assert.Equal(t, 0, result.EmailCount)
	assert.Equal(t, int64(0), calls.Load(), "empty thread must not invoke the model")
}

func TestClassifyThreadAutomaticHistory(t *testing.T) {
	var calls atomic.Int64
	invoker := InvokerFunc(func(ctx context.Context, prompt string) (string, error) {
		calls.Add(1)
		return "Classification: Done", nil
	})
	c, err := NewClassifier(invoker, testConfig(), nil)
	require.NoError(t, err)

	msgs := []Message{
		testMessage("alice@example.com", "Old thread", "original ask", -11*24*time.Hour),
		testMessage("user@example.com", "Re: Old thread", "last reply", -10*24*time.Hour),
	}
	// testMessage anchors at 2026-08-20, nine days before testNow.
	msgs[1].Date = testNow.Add(-10 * 24 * time.Hour)

	result := c.ClassifyThread(context.Background(), "t-old", msgs)

	assert.Equal(t, LabelHistory, result.Label)
	assert.Equal(t, 1.0, result.Confidence)
	assert.Equal(t, MethodAutomaticAge, result.Method)
	assert.Equal(t, 2, result.EmailCount)
	assert.Contains(t, result.Reasoning, "older than 7 days")
	assert.Equal(t, int64(0), calls.Load(), "stale thread must not invoke the model")
}

func TestClassifyThreadModelPath(t *testing.T) {
	response := "Classification: To Do\nConfidence: 0.85\nReasoning: user owes a reply"
	c, err := NewClassifier(staticInvoker(response), testConfig(), nil)
	require.NoError(t, err)

	msgs := []Message{
		testMessage("alice@example.com", "Question", "Can you review this?", -2*time.Hour),
	}
	msgs[0].Date = testNow.Add(-2 * time.Hour)

	result := c.ClassifyThread(context.Background(), "t-recent", msgs)

	assert.Equal(t, LabelToDo, result.Label)
	assert.InDelta(t, 0.85, result.Confidence, 0.0001)
	assert.Equal(t, "user owes a reply", result.Reasoning)
	assert.Equal(t, MethodModel, result.Method)
	assert.Equal(t, 1, result.EmailCount)
}

func TestClassifyThreadUnparseableResponse(t *testing.T) {
	c, err := NewClassifier(staticInvoker("I think this is spam email, ignore it"), testConfig(), nil)
	require.NoError(t, err)

	msgs := []Message{testMessage("x@example.com", "Deals", "Buy now", 0)}
	msgs[0].Date = testNow.Add(-time.Hour)

	result := c.ClassifyThread(context.Background(), "t-spam", msgs)

	assert.Equal(t, LabelSpam, result.Label)
	assert.InDelta(t, 0.5, result.Confidence, 0.0001)
	assert.Equal(t, MethodFallbackUnparseable, result.Method)
}

func TestClassifyThreadModelError(t *testing.T) {
	invoker := InvokerFunc(func(ctx context.Context, prompt string) (string, error) {
		return "", errors.New("rate limited")
	})
	c, err := NewClassifier(invoker, testConfig(), nil)
	require.NoError(t, err)

	msgs := []Message{testMessage("x@example.com", "Hello", "body", 0)}
	msgs[0].Date = testNow.Add(-time.Hour)

	result := c.ClassifyThread(context.Background(), "t-err", msgs)

	assert.Equal(t, LabelFYI, result.Label)
	assert.InDelta(t, 0.3, result.Confidence, 0.0001)
	assert.Equal(t, MethodFallbackError, result.Method)
	assert.Contains(t, result.Reasoning, "rate limited")
	assert.Equal(t, 1, result.EmailCount)
}

func TestClassifyThreadSortsBeforeAgeCheck(t *testing.T) {
	// Latest message is recent but listed first; the age check must use
	// the chronologically last message, not positional order.
	c, err := NewClassifier(staticInvoker("Classification: FYI\nConfidence: 0.6\nReasoning: update"), testConfig(), nil)
	require.NoError(t, err)

	recent := testMessage("a@example.com", "Re: Thread", "new reply", 0)
	recent.Date = testNow.Add(-time.Hour)
	old := testMessage("b@example.com", "Thread", "original", 0)
	old.Date = testNow.Add(-30 * 24 * time.Hour)

	result := c.ClassifyThread(context.Background(), "t-mixed", []Message{recent, old})

	assert.Equal(t, MethodModel, result.Method, "recent activity keeps the thread out of history")
	assert.Equal(t, LabelFYI, result.Label)
}

func TestClassifyThreadsBatchIsolation(t *testing.T) {
	invoker := InvokerFunc(func(ctx context.Context, prompt string) (string, error) {
		if strings.Contains(prompt, "Thread ID: t-bad") {
			return "", errors.New("boom")
		}
		return "Classification: Done\nConfidence: 0.9\nReasoning: resolved", nil
	})
	cfg := testConfig()
	cfg.Workers = 3
	c, err := NewClassifier(invoker, cfg, nil)
	require.NoError(t, err)

	recent := func(subject string) []Message {
		m := testMessage("a@example.com", subject, "body text", 0)
		m.Date = testNow.Add(-time.Hour)
		return []Message{m}
	}

	threads := map[string][]Message{
		"t-c":   recent("third"),
		"t-a":   recent("first"),
		"t-bad": recent("second"),
		"t-b":   {},
	}

	results := c.ClassifyThreads(context.Background(), threads)

	require.Len(t, results, 4)
	assert.Equal(t, []string{"t-a", "t-b", "t-bad", "t-c"},
		[]string{results[0].ThreadID, results[1].ThreadID, results[2].ThreadID, results[3].ThreadID},
		"results are ordered by thread ID")

	assert.Equal(t, LabelDone, results[0].Label)
	assert.Equal(t, 0, results[1].EmailCount)
	assert.Equal(t, MethodFallbackError, results[2].Method)
	assert.Contains(t, results[2].Reasoning, "boom")
	assert.Equal(t, LabelDone, results[3].Label)
}

func TestClassifyThreadsSequential(t *testing.T) {
	c, err := NewClassifier(staticInvoker("Classification: FYI\nConfidence: 0.6\nReasoning: update"), testConfig(), nil)
	require.NoError(t, err)

	m := testMessage("a@example.com", "News", "announcement", 0)
	m.Date = testNow.Add(-time.Hour)

	results := c.ClassifyThreads(context.Background(), map[string][]Message{"t-1": {m}})

	require.Len(t, results, 1)
	assert.Equal(t, LabelFYI, results[0].Label)
	assert.Equal(t, MethodModel, results[0].Method)
}

func TestClassifyThreadInvokeTimeout(t *testing.T) {
	invoker := InvokerFunc(func(ctx context.Context, prompt string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	cfg := testConfig()
	cfg.InvokeTimeout = 10 * time.Millisecond
	c, err := NewClassifier(invoker, cfg, nil)
	require.NoError(t, err)

	m := testMessage("a@example.com", "Slow", "body", 0)
	m.Date = testNow.Add(-time.Hour)

	result := c.ClassifyThread(context.Background(), "t-slow", []Message{m})

	assert.Equal(t, MethodFallbackError, result.Method)
	assert.Equal(t, LabelFYI, result.Label)
	assert.InDelta(t, 0.3, result.Confidence, 0.0001)
	assert.Contains(t, result.Reasoning, "context deadline exceeded")
}
