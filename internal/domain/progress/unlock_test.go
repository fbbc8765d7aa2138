package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gatesFor(days int) map[int]string {
	gates := make(map[int]string, days)
	for d := 1; d <= days; d++ {
		gates[d] = quizIDs(days)[d-1]
	}
	return gates
}

func unlockedDays(o Outline) []int {
	var out []int
	for _, d := range o.Days {
		if d.Unlocked {
			out = append(out, d.Day)
		}
	}
	return out
}

func TestEvaluateUnlocks_FreshLearnerSeesOnlyDayOne(t *testing.T) {
	o := EvaluateUnlocks(7, gatesFor(7), nil)

	assert.Equal(t, []int{1}, unlockedDays(o))
	assert.Equal(t, 1, o.CurrentDay)
	assert.Empty(t, o.IntegrityIssues)
}

func TestEvaluateUnlocks_PassOpensNextDay(t *testing.T) {
	o := EvaluateUnlocks(3, gatesFor(3), map[string]bool{"q1": true})

	assert.Equal(t, []int{1, 2}, unlockedDays(o))
	assert.True(t, o.Days[0].Completed)
	assert.False(t, o.Days[1].Completed)
	assert.Equal(t, 2, o.CurrentDay)
	assert.Equal(t, 1, o.CompletedDays())
}

func TestEvaluateUnlocks_AllPassed(t *testing.T) {
	o := EvaluateUnlocks(3, gatesFor(3), map[string]bool{"q1": true, "q2": true, "q3": true})

	assert.Equal(t, []int{1, 2, 3}, unlockedDays(o))
	assert.Equal(t, 3, o.CurrentDay)
	assert.Equal(t, 3, o.CompletedDays())
}

func TestEvaluateUnlocks_MissingGateIsReportedAndDoesNotBlock(t *testing.T) {
	gates := map[int]string{1: "q1", 3: "q3"}
	o := EvaluateUnlocks(3, gates, map[string]bool{"q1": true})

	assert.Equal(t, []int{1, 2, 3}, unlockedDays(o))
	assert.Equal(t, []int{2}, o.IntegrityIssues)
	assert.Equal(t, 2, o.GatedDays())
}

func TestEvaluateUnlocks_CompletedDayNeverRelocked(t *testing.T) {
	// q2 was added to the catalog after the learner had already passed q3.
	o := EvaluateUnlocks(4, gatesFor(4), map[string]bool{"q1": true, "q3": true})

	assert.True(t, o.IsUnlocked(3))
	assert.True(t, o.IsUnlocked(4))
	assert.True(t, o.IsUnlocked(2))
	assert.Equal(t, 2, o.CurrentDay)
}

func TestEvaluateUnlocks_MonotonicForEveryPassSubset(t *testing.T) {
	const days = 8
	ids := quizIDs(days)
	for mask := 0; mask < 1<<days; mask++ {
		passed := map[string]bool{}
		for i := 0; i < days; i++ {
			if mask&(1<<i) != 0 {
				passed[ids[i]] = true
			}
		}
		o := EvaluateUnlocks(days, gatesFor(days), passed)
		require.True(t, o.IsUnlocked(1))
		for n := 2; n <= days; n++ {
			if o.IsUnlocked(n) {
				assert.True(t, o.IsUnlocked(n-1), "mask=%b day=%d", mask, n)
			}
		}
	}
}

func TestEvaluateUnlocks_StrictGatingWithoutOutOfOrderPasses(t *testing.T) {
	const days = 10
	ids := quizIDs(days)
	for k := 0; k <= days; k++ {
		passed := map[string]bool{}
		for i := 0; i < k; i++ {
			passed[ids[i]] = true
		}
		o := EvaluateUnlocks(days, gatesFor(days), passed)
		for n := 2; n <= days; n++ {
			assert.Equal(t, passed[ids[n-2]], o.IsUnlocked(n), "k=%d day=%d", k, n)
		}
	}
}

func TestNewlyUnlocked(t *testing.T) {
	before := EvaluateUnlocks(3, gatesFor(3), map[string]bool{"q1": true})
	after := EvaluateUnlocks(3, gatesFor(3), map[string]bool{"q1": true, "q2": true})

	assert.Equal(t, []int{3}, NewlyUnlocked(before, after))
	assert.Empty(t, NewlyUnlocked(after, after))
}

func TestOutline_IsUnlockedOutOfRange(t *testing.T) {
	o := EvaluateUnlocks(3, gatesFor(3), nil)
	assert.False(t, o.IsUnlocked(0))
	assert.False(t, o.IsUnlocked(4))
}
