package progress

import (
	"fmt"
	"time"

	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/enrollment"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/shared"
)

// Rejection reason codes.
const (
	ReasonNotCompleted   = "enrollment_not_completed"
	ReasonProgressBelow  = "progress_below_100"
	ReasonDaysIncomplete = "days_not_completed"
	ReasonNoQuizzes      = "course_has_no_quizzes"
	ReasonNoEnrollment   = "enrollment_not_found"
)

// CertificateInput is everything the eligibility predicate looks at.
type CertificateInput struct {
	StudentName    string
	CourseName     string
	CourseDuration int
	Enrollment     enrollment.Enrollment
	QuizLessonIDs  []string
	Progress       []enrollment.LessonProgress
}

// CertificateData is the contract handed to certificate rendering.
type CertificateData struct {
	StudentName          string    `json:"studentName"`
	CourseName           string    `json:"courseName"`
	CourseDuration       int       `json:"courseDuration"`
	CompletionPercentage int       `json:"completionPercentage"`
	QuizAverageScore     float64   `json:"quizAverageScore"`
	CompletionDate       time.Time `json:"completionDate"`
}

// CertificateRejection names the missing condition.
type CertificateRejection struct {
	Reason        string `json:"reason"`
	Message       string `json:"message"`
	CompletedDays int    `json:"completedDays"`
	TotalDays     int    `json:"totalDays"`
}

// CertificateDecision is either eligible with data or rejected with a reason.
type CertificateDecision struct {
	Eligible  bool
	Data      *CertificateData
	Rejection *CertificateRejection
}

// EvaluateCertificate checks status completed, progress 100 and a recorded
// pass on every quiz lesson. The cached progress alone is not trusted.
func EvaluateCertificate(in CertificateInput) CertificateDecision {
	byLesson := make(map[string]enrollment.LessonProgress, len(in.Progress))
	for _, p := range in.Progress {
		byLesson[p.LessonID] = p
	}

	passed := make(map[string]bool, len(byLesson))
	for id, p := range byLesson {
		if p.QuizPassed {
			passed[id] = true
		}
	}
	total := len(Distinct(in.QuizLessonIDs))
	done := PassedCount(in.QuizLessonIDs, passed)

	reject := func(reason, msg string) CertificateDecision {
		return CertificateDecision{Rejection: &CertificateRejection{
			Reason:        reason,
			Message:       msg,
			CompletedDays: done,
			TotalDays:     total,
		}}
	}

	e := in.Enrollment
	switch {
	case total == 0:
		return reject(ReasonNoQuizzes, "course has no quiz lessons")
	case e.Status != enrollment.StatusCompleted:
		return reject(ReasonNotCompleted, fmt.Sprintf("enrollment is %s, not completed", e.Status))
	case e.Progress != 100:
		return reject(ReasonProgressBelow, fmt.Sprintf("progress is %d, not 100", e.Progress))
	case done < total:
		return reject(ReasonDaysIncomplete, fmt.Sprintf("%d of %d days not completed", total-done, total))
	}

	completedAt := e.UpdatedAt
	if e.CompletedAt != nil {
		completedAt = *e.CompletedAt
	}
	return CertificateDecision{
		Eligible: true,
		Data: &CertificateData{
			StudentName:          in.StudentName,
			CourseName:           in.CourseName,
			CourseDuration:       in.CourseDuration,
			CompletionPercentage: e.Progress,
			QuizAverageScore:     QuizAverage(in.QuizLessonIDs, byLesson),
			CompletionDate:       completedAt,
		},
	}
}

// QuizAverage is the mean of recorded scores across quiz lessons, one decimal.
// Lessons never attempted are excluded.
func QuizAverage(quizLessonIDs []string, byLesson map[string]enrollment.LessonProgress) float64 {
	sum, n := 0.0, 0
	for _, id := range Distinct(quizLessonIDs) {
		p, ok := byLesson[id]
		if !ok || p.QuizScore == nil {
			continue
		}
		sum += *p.QuizScore
		n++
	}
	if n == 0 {
		return 0
	}
	return shared.RoundTo(sum/float64(n), 1)
}
