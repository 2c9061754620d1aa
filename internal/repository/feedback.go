package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"backend/internal/models"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

var (
	// ErrClassificationNotFound is returned when the classification does not
	// exist or is not owned by the given user.
	ErrClassificationNotFound = errors.New("classification not found")
	// ErrFeedbackAlreadyProvided is returned when feedback was already
	// recorded for the classification.
	ErrFeedbackAlreadyProvided = errors.New("feedback already provided")
)

// FeedbackRepository handles database operations for the 'feedback' table.
type FeedbackRepository interface {
	Submit(ctx context.Context, fb *models.Feedback, userID int64) error
}

type feedbackRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewFeedbackRepository creates a new feedback repository.
func NewFeedbackRepository(db *sqlx.DB, logger *zap.Logger) FeedbackRepository {
	return &feedbackRepository{db: db, logger: logger}
}

// Submit inserts the feedback row and flips feedback_provided on the owning
// classification inside a single transaction. The classification row is
// locked for the duration so concurrent submissions cannot both pass the
// duplicate check; the unique constraint on feedback.classification_id backs
// this up at the schema level.
func (r *feedbackRepository) Submit(ctx context.Context, fb *models.Feedback, userID int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var provided bool
	query := `
		SELECT feedback_provided FROM classifications
		WHERE id = $1 AND user_id = $2
		FOR UPDATE
	`
	if err := tx.GetContext(ctx, &provided, query, fb.ClassificationID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrClassificationNotFound
		}
		return fmt.Errorf("failed to lock classification: %w", err)
	}

	if provided {
		return ErrFeedbackAlreadyProvided
	}

	query = `
		INSERT INTO feedback (classification_id, is_correct, user_comment)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	err = tx.QueryRowxContext(ctx, query, fb.ClassificationID, fb.IsCorrect, fb.UserComment).
		Scan(&fb.ID, &fb.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert feedback: %w", err)
	}

	_, err = tx.ExecContext(ctx, `UPDATE classifications SET feedback_provided = TRUE WHERE id = $1`, fb.ClassificationID)
	if err != nil {
		return fmt.Errorf("failed to mark classification: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit feedback transaction: %w", err)
	}

	return nil
}
