// Package progress holds the pure progression rules of a day-gated course:
// completion percentage, day unlocking and certificate eligibility.
// Functions here take plain inputs and never touch storage.
package progress

import "github.com/Supriya-Al/LSM-learn-sub000/internal/domain/shared"

// Calculate returns round(100*|P∩Q|/T) for quiz lesson ids Q and passed set P.
// Duplicates in Q count once. ok is false when the course has no quiz lessons,
// in which case there is no authoritative percentage.
func Calculate(quizLessonIDs []string, passed map[string]bool) (pct shared.Percentage, ok bool) {
	ids := Distinct(quizLessonIDs)
	total := len(ids)
	if total == 0 {
		return 0, false
	}
	done := PassedCount(ids, passed)
	// Integer half-up rounding avoids float drift on values like 12.5.
	return shared.Percentage((200*done + total) / (2 * total)), true
}

// Resolve picks the value to persist: the computed one, or the stored one
// when there is no authoritative signal.
func Resolve(stored int, computed shared.Percentage, ok bool) shared.Percentage {
	if !ok {
		return shared.Percentage(stored)
	}
	return computed
}

// PassedCount counts distinct quiz lessons in Q that are in P.
func PassedCount(quizLessonIDs []string, passed map[string]bool) int {
	n := 0
	for _, id := range Distinct(quizLessonIDs) {
		if passed[id] {
			n++
		}
	}
	return n
}

// Distinct returns ids without repeats, keeping first-seen order.
func Distinct(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
