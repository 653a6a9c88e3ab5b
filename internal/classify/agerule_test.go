package classify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAgeRuleIsHistory(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		threshold int
		latest    time.Time
		expected  bool
	}{
		{
			name:      "recent message is not history",
			threshold: 7,
			latest:    now.Add(-24 * time.Hour),
			expected:  false,
		},
		{
			name:      "message older than threshold is history",
			threshold: 7,
			latest:    now.Add(-10 * 24 * time.Hour),
			expected:  true,
		},
		{
			name:      "exactly at threshold is history",
			threshold: 7,
			latest:    now.Add(-7 * 24 * time.Hour),
			expected:  true,
		},
		{
			name:      "one hour short of threshold is not history",
			threshold: 7,
			latest:    now.Add(-7*24*time.Hour + time.Hour),
			expected:  false,
		},
		{
			name:      "zero timestamp is never history",
			threshold: 7,
			latest:    time.Time{},
			expected:  false,
		},
		{
			name:      "non-UTC timestamp compares correctly",
			threshold: 5,
			latest:    now.Add(-6 * 24 * time.Hour).In(time.FixedZone("CEST", 2*3600)),
			expected:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := AgeRule{ThresholdDays: tt.threshold}
			assert.Equal(t, tt.expected, rule.IsHistory(tt.latest, now))
		})
	}
}

func TestAgeRuleIsDeterministic(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	latest := now.Add(-8 * 24 * time.Hour)
	rule := AgeRule{ThresholdDays: 7}

	first := rule.IsHistory(latest, now)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, rule.IsHistory(latest, now))
	}
}
