package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"backend/internal/models"
	"backend/internal/repository"

	"github.com/sirupsen/logrus"
)

var (
	// ErrClassificationNotFound covers both a missing record and a record
	// owned by another user; callers cannot tell the two apart.
	ErrClassificationNotFound = errors.New("classification not found")
	// ErrFeedbackConflict is returned when feedback was already submitted.
	// Resubmission is an error, not a silent no-op.
	ErrFeedbackConflict = errors.New("feedback already submitted")
)

type FeedbackService interface {
	Submit(ctx context.Context, classificationID, userID int64, isCorrect bool, comment string) (*models.Feedback, error)
}

type feedbackService struct {
	repo repository.FeedbackRepository
	log  *logrus.Logger
}

func NewFeedbackService(repo repository.FeedbackRepository, log *logrus.Logger) FeedbackService {
	return &feedbackService{repo: repo, log: log}
}

// Submit records the user's verdict on their own classification. The insert
// and the feedback_provided flag update happen in one transaction inside the
// repository, so a crash cannot leave one without the other.
func (s *feedbackService) Submit(ctx context.Context, classificationID, userID int64, isCorrect bool, comment string) (*models.Feedback, error) {
	fb := &models.Feedback{
		ClassificationID: classificationID,
		IsCorrect:        isCorrect,
	}
	if trimmed := strings.TrimSpace(comment); trimmed != "" {
		fb.UserComment = &trimmed
	}

	err := s.repo.Submit(ctx, fb, userID)
	switch {
	case errors.Is(err, repository.ErrClassificationNotFound):
		s.log.Infof("Feedback rejected: classification %d not found for user %d", classificationID, userID)
		return nil, ErrClassificationNotFound
	case errors.Is(err, repository.ErrFeedbackAlreadyProvided):
		s.log.Infof("Feedback rejected: duplicate for classification %d", classificationID)
		return nil, ErrFeedbackConflict
	case err != nil:
		s.log.Errorf("Failed to submit feedback for classification %d: %v", classificationID, err)
		return nil, fmt.Errorf("failed to submit feedback: %w", err)
	}

	s.log.Infof("Feedback recorded for classification %d: correct=%t", classificationID, isCorrect)
	return fb, nil
}
