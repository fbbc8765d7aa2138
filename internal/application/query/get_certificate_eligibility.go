package query

import (
	"context"

	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/progress"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET CERTIFICATE ELIGIBILITY QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetCertificateEligibilityQuery содержит параметры запроса.
type GetCertificateEligibilityQuery struct {
	Actor    shared.Principal
	UserID   string
	CourseID string
}

// CertificateEligibilityDTO is {eligible, data} or {eligible:false, reason...}.
type CertificateEligibilityDTO struct {
	Eligible bool                     `json:"eligible"`
	Data     *progress.CertificateData `json:"data,omitempty"`

	*progress.CertificateRejection
}

// GetCertificateEligibilityHandler обрабатывает запрос.
type GetCertificateEligibilityHandler struct {
	store progress.Store
}

// NewGetCertificateEligibilityHandler создаёт новый обработчик.
func NewGetCertificateEligibilityHandler(store progress.Store) *GetCertificateEligibilityHandler {
	return &GetCertificateEligibilityHandler{store: store}
}

// Handle returns the decision. A learner without an enrollment gets a
// rejection, not an error; a missing course is NotFound.
func (h *GetCertificateEligibilityHandler) Handle(ctx context.Context, q GetCertificateEligibilityQuery) (*CertificateEligibilityDTO, error) {
	if err := requireCourse("GetCertificateEligibility", q.CourseID); err != nil {
		return nil, err
	}
	userID, err := subjectFor("GetCertificateEligibility", q.Actor, q.UserID)
	if err != nil {
		return nil, err
	}

	catalog, err := h.store.Catalog().GetCatalog(ctx, q.CourseID)
	if err != nil {
		return nil, err
	}
	quizIDs := catalog.QuizLessonIDs()

	snap, err := progress.LoadSnapshot(ctx, h.store, userID, q.CourseID, progress.LoadOptions{})
	if shared.IsNotFound(err) {
		return &CertificateEligibilityDTO{CertificateRejection: &progress.CertificateRejection{
			Reason:    progress.ReasonNoEnrollment,
			Message:   "no enrollment for this course",
			TotalDays: len(quizIDs),
		}}, nil
	}
	if err != nil {
		return nil, err
	}

	name := userID
	if p, err := h.store.Students().GetByID(ctx, userID); err == nil {
		name = p.DisplayName()
	} else if !shared.IsNotFound(err) {
		return nil, err
	}

	decision := progress.EvaluateCertificate(progress.CertificateInput{
		StudentName:    name,
		CourseName:     snap.Catalog.Course.Title,
		CourseDuration: snap.Catalog.Course.TotalDays,
		Enrollment:     *snap.Enrollment,
		QuizLessonIDs:  snap.Catalog.QuizLessonIDs(),
		Progress:       snap.Progress,
	})
	return &CertificateEligibilityDTO{
		Eligible:             decision.Eligible,
		Data:                 decision.Data,
		CertificateRejection: decision.Rejection,
	}, nil
}
