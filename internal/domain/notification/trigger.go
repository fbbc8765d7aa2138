package notification

import "fmt"

// ══════════════════════════════════════════════════════════════════════════════
// TEMPLATES
// Тексты уведомлений строятся из структурированных данных.
// ══════════════════════════════════════════════════════════════════════════════

// Recipient is who a notification goes to.
type Recipient struct {
	ID    string
	Email string
	Name  string
}

// DayUnlocked builds the notification for a newly opened day.
func DayUnlocked(id string, to Recipient, courseID, courseTitle string, day int) (*Notification, error) {
	return New(NewParams{
		ID:      id,
		Type:    TypeDayUnlocked,
		To:      to,
		Title:   fmt.Sprintf("Day %d is open", day),
		Message: fmt.Sprintf("You passed the previous quiz. Day %d of %s is now unlocked.", day, titleOr(courseTitle, courseID)),
		Data:    Data{CourseID: courseID, CourseTitle: courseTitle, DayNumber: day},
	})
}

// AttendanceMarked builds the notification for an attendance mark.
func AttendanceMarked(id string, to Recipient, courseID, courseTitle string, day int, status string) (*Notification, error) {
	return New(NewParams{
		ID:      id,
		Type:    TypeAttendanceMarked,
		To:      to,
		Title:   fmt.Sprintf("Attendance for day %d", day),
		Message: fmt.Sprintf("Your attendance for day %d of %s was recorded as %s.", day, titleOr(courseTitle, courseID), status),
		Data:    Data{CourseID: courseID, CourseTitle: courseTitle, DayNumber: day, Status: status},
	})
}

// CourseCompleted builds the notification for a completed enrollment.
func CourseCompleted(id string, to Recipient, courseID, courseTitle string) (*Notification, error) {
	return New(NewParams{
		ID:      id,
		Type:    TypeCourseCompleted,
		To:      to,
		Title:   "Course completed",
		Message: fmt.Sprintf("Congratulations, you completed %s. Your certificate is ready.", titleOr(courseTitle, courseID)),
		Data:    Data{CourseID: courseID, CourseTitle: courseTitle},
	})
}

// Enrolled builds the welcome notification.
func Enrolled(id string, to Recipient, courseID, courseTitle string) (*Notification, error) {
	return New(NewParams{
		ID:      id,
		Type:    TypeEnrolled,
		To:      to,
		Title:   "Welcome aboard",
		Message: fmt.Sprintf("You are enrolled in %s. Day 1 is open.", titleOr(courseTitle, courseID)),
		Data:    Data{CourseID: courseID, CourseTitle: courseTitle, DayNumber: 1},
	})
}

func titleOr(title, fallback string) string {
	if title != "" {
		return title
	}
	return fallback
}
