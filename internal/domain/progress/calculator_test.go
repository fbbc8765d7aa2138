package progress

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/shared"
)

func quizIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("q%d", i+1)
	}
	return ids
}

func TestCalculate_Table(t *testing.T) {
	tests := []struct {
		name   string
		total  int
		passed int
		want   int
	}{
		{"one of three", 3, 1, 33},
		{"two of three", 3, 2, 67},
		{"all of three", 3, 3, 100},
		{"none", 5, 0, 0},
		{"half rounds up", 8, 1, 13},
		{"seven of thirty", 30, 7, 23},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids := quizIDs(tt.total)
			passed := map[string]bool{}
			for i := 0; i < tt.passed; i++ {
				passed[ids[i]] = true
			}
			pct, ok := Calculate(ids, passed)
			assert.True(t, ok)
			assert.Equal(t, tt.want, pct.Int())
		})
	}
}

func TestCalculate_MatchesRoundingForAllCounts(t *testing.T) {
	for total := 1; total <= 30; total++ {
		ids := quizIDs(total)
		passed := map[string]bool{}
		for k := 0; k <= total; k++ {
			if k > 0 {
				passed[ids[k-1]] = true
			}
			pct, ok := Calculate(ids, passed)
			assert.True(t, ok)
			assert.Equal(t, shared.RoundHalfUp(100*float64(k)/float64(total)), pct.Int(), "T=%d k=%d", total, k)
		}
	}
}

func TestCalculate_NoQuizzesKeepsStoredValue(t *testing.T) {
	pct, ok := Calculate(nil, map[string]bool{"q1": true})
	assert.False(t, ok)
	assert.Equal(t, 42, Resolve(42, pct, ok).Int())
}

func TestCalculate_IgnoresPassesOutsideCourseAndDuplicates(t *testing.T) {
	ids := []string{"q1", "q2", "q2", "q3"}
	passed := map[string]bool{"q2": true, "other": true}

	pct, ok := Calculate(ids, passed)
	assert.True(t, ok)
	assert.Equal(t, 33, pct.Int())
	assert.Equal(t, 1, PassedCount(ids, passed))
}

func TestDistinct_KeepsFirstSeenOrder(t *testing.T) {
	assert.Equal(t, []string{"q2", "q1", "q3"}, Distinct([]string{"q2", "q1", "q2", "q3", "q1"}))
	assert.Empty(t, Distinct(nil))

	ids := []string{"q1", "q1", "q2"}
	assert.Equal(t, 1, PassedCount(ids, map[string]bool{"q1": true}))
	assert.Len(t, Distinct(ids), 2)
	assert.Equal(t, []string{"q1", "q1", "q2"}, ids)
}
