package command

import (
	"context"
	"strings"

	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/shared"
	"github.com/Supriya-Al/LSM-learn-sub000/pkg/logger"
)

// RecomputeProgressCommand is the admin path to re-run the promoter, for
// example after LessonProgress was corrected by hand.
type RecomputeProgressCommand struct {
	Actor    shared.Principal
	UserID   string
	CourseID string
}

// RecomputeProgressHandler handles RecomputeProgressCommand.
type RecomputeProgressHandler struct {
	promoter *CompletionPromoter
	log      *logger.Logger
}

// NewRecomputeProgressHandler creates a new RecomputeProgressHandler.
func NewRecomputeProgressHandler(promoter *CompletionPromoter, log *logger.Logger) *RecomputeProgressHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &RecomputeProgressHandler{promoter: promoter, log: log.With(logger.Component("recompute_progress"))}
}

// Handle checks the admin role before touching anything.
func (h *RecomputeProgressHandler) Handle(ctx context.Context, cmd RecomputeProgressCommand) (*PromotionResult, error) {
	if err := requireAdmin(cmd.Actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cmd.CourseID) == "" {
		return nil, shared.ValidationError("enrollment", "Recompute", shared.CodeValidation, "course id is required")
	}
	uid, err := shared.NewUserID(cmd.UserID)
	if err != nil {
		return nil, err
	}

	res, err := h.promoter.Promote(ctx, uid.String(), cmd.CourseID)
	if err != nil {
		return nil, err
	}
	h.log.Info("manual recompute",
		logger.String("admin_id", cmd.Actor.ID.String()),
		logger.UserID(uid.String()),
		logger.CourseID(cmd.CourseID),
		logger.Progress(res.Progress),
		logger.Bool("changed", res.Changed),
	)
	return res, nil
}
