package threads

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/satwhiz/inboxtriage/internal/classify"
)

// ThreadSet is an ordered grouping of messages by thread. Iteration order
// follows the first occurrence of each thread in the input, which callers
// rely on for stable report output.
type ThreadSet struct {
	order []string
	byID  map[string][]classify.Message
}

// ThreadInfo is a per-thread summary for reports and tool output.
type ThreadInfo struct {
	ID           string
	Subject      string
	Participants []string
	Start        time.Time
	End          time.Time
	MessageCount int
}

// Stats aggregates thread-size figures over a ThreadSet.
type Stats struct {
	TotalThreads         int
	TotalMessages        int
	AvgMessagesPerThread float64
	SingleMessageThreads int
	MultiMessageThreads  int
	MaxThreadSize        int

	// SizeDistribution buckets thread sizes into 1, 2-3, 4-5 and 6+.
	SizeDistribution map[string]int
}

var subjectPrefixRe = regexp.MustCompile(`(?i)^\s*((re|fwd|fw):\s*)+`)

var subjectSpaceRe = regexp.MustCompile(`\s+`)

// Organize groups messages by thread identifier. Threads keep the order in
// which they first appear in the input; messages within a thread are sorted
// by timestamp ascending. Messages without a thread identifier fall back to
// their own message ID so they form singleton threads instead of being
// dropped. Empty input yields an empty set.
func Organize(msgs []classify.Message) *ThreadSet {
	set := &ThreadSet{byID: make(map[string][]classify.Message)}

	for _, m := range msgs {
		id := m.ThreadID
		if id == "" {
			id = m.ID
		}
		if _, seen := set.byID[id]; !seen {
			set.order = append(set.order, id)
		}
		set.byID[id] = append(set.byID[id], m)
	}

	for id := range set.byID {
		grouped := set.byID[id]
		sort.SliceStable(grouped, func(i, j int) bool {
			return grouped[i].Date.Before(grouped[j].Date)
		})
	}

	return set
}

// IDs returns the thread identifiers in first-occurrence order.
func (s *ThreadSet) IDs() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Messages returns the chronologically sorted messages of one thread.
func (s *ThreadSet) Messages(id string) []classify.Message {
	return s.byID[id]
}

// Len returns the number of threads in the set.
func (s *ThreadSet) Len() int {
	return len(s.order)
}

// Map returns the underlying thread mapping for batch consumers.
func (s *ThreadSet) Map() map[string][]classify.Message {
	out := make(map[string][]classify.Message, len(s.byID))
	for id, msgs := range s.byID {
		out[id] = msgs
	}
	return out
}

// Summarize computes a ThreadInfo per thread, sorted by last activity
// descending so the most recently active thread comes first.
func Summarize(set *ThreadSet) []ThreadInfo {
	infos := make([]ThreadInfo, 0, set.Len())

	for _, id := range set.order {
		msgs := set.byID[id]

		participants := make(map[string]struct{})
		for _, m := range msgs {
			if m.From != "" {
				participants[m.From] = struct{}{}
			}
			for _, addr := range m.To {
				participants[addr] = struct{}{}
			}
			for _, addr := range m.Cc {
				participants[addr] = struct{}{}
			}
		}
		names := make([]string, 0, len(participants))
		for p := range participants {
			names = append(names, p)
		}
		sort.Strings(names)

		infos = append(infos, ThreadInfo{
			ID:           id,
			Subject:      NormalizeSubject(msgs[0].Subject),
			Participants: names,
			Start:        msgs[0].Date,
			End:          msgs[len(msgs)-1].Date,
			MessageCount: len(msgs),
		})
	}

	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].End.After(infos[j].End)
	})
	return infos
}

// Statistics aggregates size figures over the set. The average is rounded
// to one decimal place.
func Statistics(set *ThreadSet) Stats {
	stats := Stats{
		SizeDistribution: map[string]int{"1": 0, "2-3": 0, "4-5": 0, "6+": 0},
	}

	for _, msgs := range set.byID {
		n := len(msgs)
		stats.TotalThreads++
		stats.TotalMessages += n
		if n > stats.MaxThreadSize {
			stats.MaxThreadSize = n
		}
		if n == 1 {
			stats.SingleMessageThreads++
		} else {
			stats.MultiMessageThreads++
		}
		stats.SizeDistribution[sizeBucket(n)]++
	}

	if stats.TotalThreads > 0 {
		avg := float64(stats.TotalMessages) / float64(stats.TotalThreads)
		stats.AvgMessagesPerThread = math.Round(avg*10) / 10
	}
	return stats
}

func sizeBucket(n int) string {
	switch {
	case n <= 1:
		return "1"
	case n <= 3:
		return "2-3"
	case n <= 5:
		return "4-5"
	default:
		return "6+"
	}
}

// NormalizeSubject strips reply and forward prefixes from a subject line
// and collapses internal whitespace. Matching is case-insensitive and
// handles stacked prefixes like "Re: Fwd: Re:".
func NormalizeSubject(subject string) string {
	cleaned := subjectPrefixRe.ReplaceAllString(subject, "")
	cleaned = subjectSpaceRe.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}
