package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Supriya-Al/LSM-learn-sub000/internal/application/command"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/application/query"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/shared"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/interface/http/handlers"
	"github.com/Supriya-Al/LSM-learn-sub000/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth serves /health, /healthz and /ready.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		writeJSON(w, r, http.StatusOK, map[string]interface{}{
			"healthy": true,
			"uptime":  s.Uptime().String(),
			"version": s.config.Version,
		})
		return
	}

	status := s.deps.HealthChecker.Check(r.Context())
	status.Uptime = s.Uptime().String()
	if !status.Healthy {
		writeJSON(w, r, http.StatusServiceUnavailable, status)
		return
	}
	writeJSON(w, r, http.StatusOK, status)
}

// handleLive handles the liveness probe endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleEnroll handles POST /api/v1/courses/{courseId}/enroll.
func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Enroll.Handle(r.Context(), command.EnrollCommand{
		Actor:    s.principal(r),
		CourseID: r.PathValue("courseId"),
	})
	if err != nil {
		s.writeDomainError(w, r, err, nil)
		return
	}

	resp := toEnrollmentResponse(res.Enrollment)
	resp.Unchanged = res.AlreadyEnrolled
	status := http.StatusCreated
	if res.AlreadyEnrolled {
		status = http.StatusOK
	}
	writeJSON(w, r, status, resp)
}

// handleDrop handles POST /api/v1/courses/{courseId}/drop.
func (s *Server) handleDrop(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Drop.Handle(r.Context(), command.DropEnrollmentCommand{
		Actor:    s.principal(r),
		UserID:   r.URL.Query().Get("user_id"),
		CourseID: r.PathValue("courseId"),
	})
	if err != nil {
		s.writeDomainError(w, r, err, nil)
		return
	}

	resp := toEnrollmentResponse(res.Enrollment)
	resp.Unchanged = res.AlreadyDropped
	writeJSON(w, r, http.StatusOK, resp)
}

// ══════════════════════════════════════════════════════════════════════════════
// LESSON ACTIVITY HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleSubmitQuiz handles POST /api/v1/lessons/{lessonId}/quiz-attempts.
func (s *Server) handleSubmitQuiz(w http.ResponseWriter, r *http.Request) {
	var req SubmitQuizRequest
	if err := s.decodeBody(r, &req); err != nil {
		s.writeDomainError(w, r, err, nil)
		return
	}

	res, err := s.deps.SubmitQuiz.Handle(r.Context(), command.SubmitQuizCommand{
		Actor:    s.principal(r),
		LessonID: r.PathValue("lessonId"),
		Answers:  req.Answers,
	})
	if err != nil {
		// The attempt may already be stored; report it with the error.
		var data interface{}
		if res != nil {
			data = toQuizAttemptResponse(res)
		}
		s.writeDomainError(w, r, err, data)
		return
	}
	writeJSON(w, r, http.StatusCreated, toQuizAttemptResponse(res))
}

// handleRecordView handles POST /api/v1/lessons/{lessonId}/views.
func (s *Server) handleRecordView(w http.ResponseWriter, r *http.Request) {
	var req RecordViewRequest
	if err := s.decodeBody(r, &req); err != nil {
		s.writeDomainError(w, r, err, nil)
		return
	}

	lp, err := s.deps.RecordView.Handle(r.Context(), command.RecordLessonViewCommand{
		Actor:    s.principal(r),
		LessonID: r.PathValue("lessonId"),
	})
	if err != nil {
		s.writeDomainError(w, r, err, nil)
		return
	}
	writeJSON(w, r, http.StatusOK, toLessonProgressResponse(lp))
}

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleMarkAttendance handles PUT /api/v1/courses/{courseId}/attendance/{day}.
func (s *Server) handleMarkAttendance(w http.ResponseWriter, r *http.Request) {
	day, err := strconv.Atoi(r.PathValue("day"))
	if err != nil {
		s.writeDomainError(w, r, shared.ValidationError("http", "MarkAttendance", shared.CodeInvalidDay,
			"day must be an integer"), nil)
		return
	}

	var req MarkAttendanceRequest
	if err := s.decodeBody(r, &req); err != nil {
		s.writeDomainError(w, r, err, nil)
		return
	}

	var date time.Time
	if req.Date != "" {
		date, err = timeutil.ParseDate(req.Date, s.config.Location)
		if err != nil {
			s.writeDomainError(w, r, shared.ValidationError("http", "MarkAttendance", shared.CodeValidation,
				"date must be YYYY-MM-DD"), nil)
			return
		}
	}

	res, err := s.deps.MarkAttendance.Handle(r.Context(), command.MarkAttendanceCommand{
		Actor:     s.principal(r),
		UserID:    req.UserID,
		CourseID:  r.PathValue("courseId"),
		DayNumber: day,
		Status:    req.Status,
		Date:      date,
	})
	if err != nil {
		var data interface{}
		if res != nil {
			data = toAttendanceResponse(res)
		}
		s.writeDomainError(w, r, err, data)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, r, status, toAttendanceResponse(res))
}

// ══════════════════════════════════════════════════════════════════════════════
// READ HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetProgress handles GET /api/v1/courses/{courseId}/progress.
func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	dto, err := s.deps.Progress.Handle(r.Context(), query.GetEnrollmentProgressQuery{
		Actor:    s.principal(r),
		UserID:   r.URL.Query().Get("user_id"),
		CourseID: r.PathValue("courseId"),
	})
	if err != nil {
		s.writeDomainError(w, r, err, nil)
		return
	}
	writeJSON(w, r, http.StatusOK, dto)
}

// handleGetCertificate handles GET /api/v1/courses/{courseId}/certificate-eligibility.
// An ineligible learner is a normal 200 answer with a reason.
func (s *Server) handleGetCertificate(w http.ResponseWriter, r *http.Request) {
	dto, err := s.deps.Certificate.Handle(r.Context(), query.GetCertificateEligibilityQuery{
		Actor:    s.principal(r),
		UserID:   r.URL.Query().Get("user_id"),
		CourseID: r.PathValue("courseId"),
	})
	if err != nil {
		s.writeDomainError(w, r, err, nil)
		return
	}
	writeJSON(w, r, http.StatusOK, dto)
}

// handleGetOutline handles GET /api/v1/courses/{courseId}/outline.
func (s *Server) handleGetOutline(w http.ResponseWriter, r *http.Request) {
	dto, err := s.deps.Outline.Handle(r.Context(), query.GetCourseOutlineQuery{
		Actor:    s.principal(r),
		UserID:   r.URL.Query().Get("user_id"),
		CourseID: r.PathValue("courseId"),
	})
	if err != nil {
		s.writeDomainError(w, r, err, nil)
		return
	}
	writeJSON(w, r, http.StatusOK, dto)
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleImportCourse handles PUT /api/v1/admin/courses/{courseId}.
func (s *Server) handleImportCourse(w http.ResponseWriter, r *http.Request) {
	var req ImportCourseRequest
	if err := s.decodeBody(r, &req); err != nil {
		s.writeDomainError(w, r, err, nil)
		return
	}

	strict := s.config.StrictCatalogIntegrity
	if v := r.URL.Query().Get("strict"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			s.writeDomainError(w, r, shared.ValidationError("http", "ImportCourse", shared.CodeValidation,
				"strict must be a boolean"), nil)
			return
		}
		strict = parsed
	}

	courseID := r.PathValue("courseId")
	res, err := s.deps.ImportCourse.Handle(r.Context(), command.ImportCourseCommand{
		Actor:           s.principal(r),
		Catalog:         req.toCatalog(courseID),
		StrictIntegrity: strict,
	})
	if err != nil {
		s.writeDomainError(w, r, err, nil)
		return
	}
	writeJSON(w, r, http.StatusOK, toImportCourseResponse(res))
}

// handleRecompute handles POST /api/v1/admin/courses/{courseId}/learners/{userId}/recompute.
func (s *Server) handleRecompute(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Recompute.Handle(r.Context(), command.RecomputeProgressCommand{
		Actor:    s.principal(r),
		UserID:   r.PathValue("userId"),
		CourseID: r.PathValue("courseId"),
	})
	if err != nil {
		s.writeDomainError(w, r, err, nil)
		return
	}
	writeJSON(w, r, http.StatusOK, toRecomputeResponse(res))
}

// principal returns the verified caller. The zero Principal makes every
// command reject the request as unauthenticated.
func (s *Server) principal(r *http.Request) shared.Principal {
	p, _ := handlers.PrincipalFrom(r.Context())
	return p
}
