package threads

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satwhiz/inboxtriage/internal/classify"
)

func msg(id, threadID, from, subject string, date time.Time, to ...string) classify.Message {
	return classify.Message{
		ID:       id,
		ThreadID: threadID,
		From:     from,
		To:       to,
		Subject:  subject,
		Date:     date,
	}
}

var base = time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)

func TestOrganizeGroupsAndSorts(t *testing.T) {
	msgs := []classify.Message{
		msg("m3", "t-b", "carol@example.com", "Budget", base.Add(3*time.Hour)),
		msg("m1", "t-a", "alice@example.com", "Kickoff", base.Add(2*time.Hour)),
		msg("m2", "t-a", "bob@example.com", "Re: Kickoff", base.Add(time.Hour)),
	}

	set := Organize(msgs)

	assert.Equal(t, []string{"t-b", "t-a"}, set.IDs(), "threads keep first-occurrence order")
	assert.Equal(t, 2, set.Len())

	ta := set.Messages("t-a")
	require.Len(t, ta, 2)
	assert.Equal(t, "m2", ta[0].ID, "messages within a thread are sorted by timestamp")
	assert.Equal(t, "m1", ta[1].ID)
}

func TestOrganizeEmptyInput(t *testing.T) {
	set := Organize(nil)
	assert.Equal(t, 0, set.Len())
	assert.Empty(t, set.IDs())
	assert.Empty(t, set.Map())
}

func TestOrganizeRoundTripKeepsMessageMultiset(t *testing.T) {
	msgs := []classify.Message{
		msg("m1", "t-a", "alice@example.com", "Kickoff", base.Add(time.Hour)),
		msg("m2", "t-b", "bob@example.com", "Budget", base),
		msg("m3", "t-a", "carol@example.com", "Re: Kickoff", base),
		msg("m4", "t-a", "dave@example.com", "Re: Kickoff", base),
		msg("m1", "t-a", "alice@example.com", "Kickoff", base.Add(time.Hour)),
		msg("m5", "", "erin@example.com", "Standalone", base.Add(2*time.Hour)),
	}

	set := Organize(msgs)

	var flat []classify.Message
	for _, grouped := range set.Map() {
		flat = append(flat, grouped...)
	}
	require.Len(t, flat, len(msgs), "grouping must not drop or duplicate messages")

	multiset := func(list []classify.Message) map[string]int {
		counts := make(map[string]int)
		for _, m := range list {
			counts[m.ID+"@"+m.Date.Format(time.RFC3339)]++
		}
		return counts
	}
	assert.Equal(t, multiset(msgs), multiset(flat))
}

func TestOrganizeMissingThreadIDFallsBackToMessageID(t *testing.T) {
	msgs := []classify.Message{
		msg("m1", "", "alice@example.com", "Standalone", base),
	}

	set := Organize(msgs)

	assert.Equal(t, []string{"m1"}, set.IDs())
	require.Len(t, set.Messages("m1"), 1)
}

func TestSummarize(t *testing.T) {
	msgs := []classify.Message{
		msg("m1", "t-a", "alice@example.com", "Re:  Fwd: Q3 Planning", base, "bob@example.com"),
		msg("m2", "t-a", "bob@example.com", "Re: Q3 Planning", base.Add(time.Hour), "alice@example.com", "carol@example.com"),
		msg("m3", "t-b", "dave@example.com", "Lunch", base.Add(2*time.Hour), "alice@example.com"),
	}

	infos := Summarize(Organize(msgs))

	require.Len(t, infos, 2)

	// Most recently active thread first.
	assert.Equal(t, "t-b", infos[0].ID)
	assert.Equal(t, "t-a", infos[1].ID)

	ta := infos[1]
	assert.Equal(t, "Q3 Planning", ta.Subject)
	assert.Equal(t, []string{"alice@example.com", "bob@example.com", "carol@example.com"}, ta.Participants)
	assert.Equal(t, base, ta.Start)
	assert.Equal(t, base.Add(time.Hour), ta.End)
	assert.Equal(t, 2, ta.MessageCount)
}

func TestNormalizeSubject(t *testing.T) {
	tests := []struct {
		name     string
		subject  string
		expected string
	}{
		{"plain subject untouched", "Quarterly report", "Quarterly report"},
		{"single re prefix", "Re: Quarterly report", "Quarterly report"},
		{"stacked prefixes", "Re: Fwd: RE: Quarterly report", "Quarterly report"},
		{"fw variant", "FW: invoice", "invoice"},
		{"whitespace collapsed", "Re:   Budget    update", "Budget update"},
		{"empty subject", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeSubject(tt.subject))
		})
	}
}

func TestStatistics(t *testing.T) {
	var msgs []classify.Message
	add := func(threadID string, n int) {
		for i := 0; i < n; i++ {
			msgs = append(msgs, msg(threadID+"-m", threadID, "a@example.com", "s", base.Add(time.Duration(i)*time.Minute)))
		}
	}
	add("t-1", 1)
	add("t-2", 3)
	add("t-3", 5)
	add("t-4", 7)

	stats := Statistics(Organize(msgs))

	assert.Equal(t, 4, stats.TotalThreads)
	assert.Equal(t, 16, stats.TotalMessages)
	assert.Equal(t, 4.0, stats.AvgMessagesPerThread)
	assert.Equal(t, 1, stats.SingleMessageThreads)
	assert.Equal(t, 3, stats.MultiMessageThreads)
	assert.Equal(t, 7, stats.MaxThreadSize)
	assert.Equal(t, map[string]int{"1": 1, "2-3": 1, "4-5": 1, "6+": 1}, stats.SizeDistribution)
}

func TestStatisticsAverageRounding(t *testing.T) {
	var msgs []classify.Message
	for i := 0; i < 2; i++ {
		msgs = append(msgs, msg("t-1", "t-1", "a@example.com", "s", base.Add(time.Duration(i)*time.Minute)))
	}
	msgs = append(msgs, msg("t-2", "t-2", "a@example.com", "s", base))
	msgs = append(msgs, msg("t-3", "t-3", "a@example.com", "s", base))

	stats := Statistics(Organize(msgs))

	// 4 messages over 3 threads is 1.333..., rounded to one decimal.
	assert.Equal(t, 1.3, stats.AvgMessagesPerThread)
}

func TestStatisticsEmpty(t *testing.T) {
	stats := Statistics(Organize(nil))
	assert.Equal(t, 0, stats.TotalThreads)
	assert.Equal(t, 0.0, stats.AvgMessagesPerThread)
}
