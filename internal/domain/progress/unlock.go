package progress

// DayState is the learner's view of one course day.
type DayState struct {
	Day          int    `json:"day"`
	Unlocked     bool   `json:"unlocked"`
	Completed    bool   `json:"completed"`
	HasGate      bool   `json:"has_gate"`
	GateLessonID string `json:"gate_lesson_id,omitempty"`
}

// Outline is the per-day unlock state of a course for one learner.
type Outline struct {
	TotalDays  int
	Days       []DayState
	CurrentDay int
	// IntegrityIssues lists days that have no quiz gate.
	IntegrityIssues []int
}

// EvaluateUnlocks applies the single-track gating policy.
//
// Day 1 is always unlocked. Day N is unlocked when day N-1 is unlocked and
// its gate is passed; a day without a gate does not block the next one and
// is reported in IntegrityIssues. A completed day is never re-locked, and
// an unlocked day keeps every earlier day unlocked.
func EvaluateUnlocks(totalDays int, gates map[int]string, passed map[string]bool) Outline {
	out := Outline{TotalDays: totalDays}
	if totalDays <= 0 {
		return out
	}
	out.Days = make([]DayState, totalDays)

	for i := 0; i < totalDays; i++ {
		day := i + 1
		gate, has := gates[day]
		st := DayState{Day: day, HasGate: has, GateLessonID: gate}
		st.Completed = has && passed[gate]
		if !has {
			out.IntegrityIssues = append(out.IntegrityIssues, day)
		}

		switch {
		case day == 1, st.Completed:
			st.Unlocked = true
		default:
			prev := out.Days[i-1]
			st.Unlocked = prev.Unlocked && (prev.Completed || !prev.HasGate)
		}
		out.Days[i] = st
	}

	for i := totalDays - 1; i > 0; i-- {
		if out.Days[i].Unlocked {
			out.Days[i-1].Unlocked = true
		}
	}

	out.CurrentDay = currentDay(out.Days)
	return out
}

// currentDay is the first unlocked day that is not completed, or the last
// unlocked day when everything reachable is done.
func currentDay(days []DayState) int {
	last := 0
	for _, d := range days {
		if !d.Unlocked {
			continue
		}
		last = d.Day
		if !d.Completed && d.HasGate {
			return d.Day
		}
	}
	return last
}

// IsUnlocked reports whether the learner may open the given day.
func (o Outline) IsUnlocked(day int) bool {
	if day < 1 || day > len(o.Days) {
		return false
	}
	return o.Days[day-1].Unlocked
}

// CompletedDays counts days whose gate is passed.
func (o Outline) CompletedDays() int {
	n := 0
	for _, d := range o.Days {
		if d.Completed {
			n++
		}
	}
	return n
}

// GatedDays counts days that have a quiz gate.
func (o Outline) GatedDays() int {
	n := 0
	for _, d := range o.Days {
		if d.HasGate {
			n++
		}
	}
	return n
}

// NewlyUnlocked returns days unlocked in after but not in before.
func NewlyUnlocked(before, after Outline) []int {
	var days []int
	for i, d := range after.Days {
		if d.Unlocked && (i >= len(before.Days) || !before.Days[i].Unlocked) {
			days = append(days, d.Day)
		}
	}
	return days
}
